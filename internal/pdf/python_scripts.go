package pdf

// Pdf2DocxScriptName is the file name the conversion script is written to
const Pdf2DocxScriptName = "pdf2docx_convert.py"

// Pdf2DocxScript converts a PDF into an editable DOCX using pdf2docx,
// which keeps text flow, tables and images.
const Pdf2DocxScript = `#!/usr/bin/env python3
# -*- coding: utf-8 -*-
"""PDF to DOCX conversion using pdf2docx."""
import sys
import os

def convert(input_pdf, output_docx):
    try:
        from pdf2docx import Converter
    except ImportError:
        print("Error: pdf2docx not installed", file=sys.stderr)
        return 2

    cv = Converter(input_pdf)
    try:
        cv.convert(output_docx)
    except Exception as e:
        print(f"pdf2docx error: {e}", file=sys.stderr)
        return 1
    finally:
        cv.close()

    if not os.path.exists(output_docx):
        print(f"Error: no output written to {output_docx}", file=sys.stderr)
        return 1
    print(f"DOCX written: {output_docx}")
    return 0

if __name__ == '__main__':
    if len(sys.argv) < 3:
        print("Usage: script.py <input_pdf> <output_docx>", file=sys.stderr)
        sys.exit(1)

    input_pdf, output_docx = sys.argv[1], sys.argv[2]
    if not os.path.exists(input_pdf):
        print(f"Error: PDF not found: {input_pdf}", file=sys.stderr)
        sys.exit(1)

    sys.exit(convert(input_pdf, output_docx))
`
