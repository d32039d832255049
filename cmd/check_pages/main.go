// Command check_pages compares an original PDF with its translation.
// Translation through DOCX can reflow text; a large difference in page
// count or a translation without text layer usually means layout was lost.
//
// Usage:
//
//	go run ./cmd/check_pages <original.pdf> <translated.pdf>
package main

import (
	"fmt"
	"os"

	"pdf-translator/internal/pdf"
)

// maxPageDrift is the tolerated relative page count difference
const maxPageDrift = 0.15

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: check_pages <original.pdf> <translated.pdf>")
		fmt.Println()
		fmt.Println("Compares page counts and text layers of an original and a translated PDF.")
		fmt.Printf("Exits with status 2 when the page counts differ by more than %.0f%%.\n", maxPageDrift*100)
		os.Exit(1)
	}

	originalPath := os.Args[1]
	translatedPath := os.Args[2]

	parser := pdf.NewPDFParser()
	original, err := parser.GetPDFInfo(originalPath)
	if err != nil {
		fmt.Printf("Error: original PDF: %v\n", err)
		os.Exit(1)
	}
	if err := pdf.ValidatePDF(translatedPath); err != nil {
		fmt.Printf("Error: translated PDF: %v\n", err)
		os.Exit(1)
	}
	translated, err := parser.GetPDFInfo(translatedPath)
	if err != nil {
		fmt.Printf("Error: translated PDF: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-12s %6s %10s\n", "", "pages", "chars")
	fmt.Printf("%-12s %6d %10d\n", "original", original.PageCount, original.CharCount)
	fmt.Printf("%-12s %6d %10d\n", "translated", translated.PageCount, translated.CharCount)

	ok := true
	if original.IsTextPDF && !translated.IsTextPDF {
		fmt.Println("Warning: translated PDF has no text layer")
		ok = false
	}
	if original.PageCount > 0 {
		drift := float64(translated.PageCount-original.PageCount) / float64(original.PageCount)
		if drift > maxPageDrift || drift < -maxPageDrift {
			fmt.Printf("Warning: page count changed by %+.0f%%\n", drift*100)
			ok = false
		}
	}

	if !ok {
		os.Exit(2)
	}
	fmt.Println("OK")
}
