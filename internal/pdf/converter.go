package pdf

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/python"
)

// EditableConverter turns the PDF at pdfPath into a DOCX file at docxPath.
type EditableConverter interface {
	ToEditable(ctx context.Context, pdfPath, docxPath string) error
}

// PDFRenderer turns the DOCX file at docxPath into a PDF at pdfPath.
type PDFRenderer interface {
	ToPDF(ctx context.Context, docxPath, pdfPath string) error
}

// scriptRunner runs a Python script, see python.Env
type scriptRunner interface {
	RunScript(ctx context.Context, scriptPath string, args ...string) (string, error)
}

// Pdf2DocxConfig configures a Pdf2DocxConverter
type Pdf2DocxConfig struct {
	Timeout time.Duration
	// Progress receives Python environment setup messages
	Progress func(message string)
}

// Pdf2DocxConverter converts PDF to DOCX with the pdf2docx Python package,
// run in the managed Python environment.
type Pdf2DocxConverter struct {
	timeout  time.Duration
	progress func(string)
	runner   scriptRunner // nil selects the global python environment
}

// NewPdf2DocxConverter creates a Pdf2DocxConverter
func NewPdf2DocxConverter(cfg Pdf2DocxConfig) *Pdf2DocxConverter {
	return &Pdf2DocxConverter{timeout: cfg.Timeout, progress: cfg.Progress}
}

// ToEditable implements EditableConverter.
func (c *Pdf2DocxConverter) ToEditable(ctx context.Context, pdfPath, docxPath string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	runner := c.runner
	if runner == nil {
		env, err := python.EnsureGlobalEnv(ctx, c.progress)
		if err != nil {
			return NewPDFError(ErrToolNotFound, "Python environment not ready", err)
		}
		runner = env
	}

	scriptPath := filepath.Join(filepath.Dir(docxPath), Pdf2DocxScriptName)
	if err := os.WriteFile(scriptPath, []byte(Pdf2DocxScript), 0644); err != nil {
		return NewPDFError(ErrConvertFailed, "failed to write conversion script", err)
	}
	defer os.Remove(scriptPath)

	logger.Info("converting PDF to DOCX", logger.String("input", pdfPath), logger.String("output", docxPath))
	start := time.Now()

	output, err := runner.RunScript(ctx, scriptPath, pdfPath, docxPath)
	if cerr := contextError(ctx, "PDF to DOCX conversion"); cerr != nil {
		return cerr
	}
	if err != nil {
		return NewPDFErrorWithDetails(ErrConvertFailed, "PDF to DOCX conversion failed", tail(output, 10), err)
	}
	if st, err := os.Stat(docxPath); err != nil || st.Size() == 0 {
		return NewPDFErrorWithDetails(ErrConvertFailed, "PDF to DOCX conversion produced no output", tail(output, 10), err)
	}

	logger.Info("PDF converted to DOCX", logger.String("elapsed", time.Since(start).Round(time.Millisecond).String()))
	return nil
}

// LibreOfficeConfig configures a LibreOfficeRenderer
type LibreOfficeConfig struct {
	// Binary is the soffice executable; empty searches the usual locations
	Binary  string
	Timeout time.Duration
}

// LibreOfficeRenderer converts DOCX to PDF with a headless LibreOffice.
type LibreOfficeRenderer struct {
	binary  string
	timeout time.Duration
}

// NewLibreOfficeRenderer creates a LibreOfficeRenderer
func NewLibreOfficeRenderer(cfg LibreOfficeConfig) *LibreOfficeRenderer {
	return &LibreOfficeRenderer{binary: cfg.Binary, timeout: cfg.Timeout}
}

// FindLibreOffice resolves the LibreOffice executable. An explicit binary
// must exist; otherwise soffice/libreoffice are searched on PATH and in the
// default install location.
func FindLibreOffice(binary string) (string, error) {
	if binary != "" {
		path, err := exec.LookPath(binary)
		if err != nil {
			return "", NewPDFErrorWithDetails(ErrToolNotFound, "LibreOffice not found", binary, err)
		}
		return path, nil
	}

	for _, name := range []string{"soffice", "libreoffice"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{"/Applications/LibreOffice.app/Contents/MacOS/soffice"}
	case "windows":
		candidates = []string{
			`C:\Program Files\LibreOffice\program\soffice.exe`,
			`C:\Program Files (x86)\LibreOffice\program\soffice.exe`,
		}
	default:
		candidates = []string{"/usr/lib/libreoffice/program/soffice", "/opt/libreoffice/program/soffice"}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", NewPDFError(ErrToolNotFound, "LibreOffice not found, install it or set libreoffice_path", nil)
}

// ToPDF implements PDFRenderer. The produced file is validated before it is
// moved to pdfPath.
func (r *LibreOfficeRenderer) ToPDF(ctx context.Context, docxPath, pdfPath string) error {
	bin, err := FindLibreOffice(r.binary)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	outDir, err := os.MkdirTemp(filepath.Dir(docxPath), "render-")
	if err != nil {
		return NewPDFError(ErrRenderFailed, "failed to create render directory", err)
	}
	defer os.RemoveAll(outDir)

	// A private profile lets this run alongside an open LibreOffice
	profile, err := fileURL(filepath.Join(outDir, "profile"))
	if err != nil {
		return NewPDFError(ErrRenderFailed, "failed to resolve profile directory", err)
	}

	args := []string{
		"--headless", "--norestore", "--nologo",
		"-env:UserInstallation=" + profile,
		"--convert-to", "pdf",
		"--outdir", outDir,
		docxPath,
	}
	logger.Info("converting DOCX to PDF", logger.String("binary", bin), logger.String("input", docxPath))
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)
	python.HideConsole(cmd)
	output, err := cmd.CombinedOutput()
	if cerr := contextError(ctx, "DOCX to PDF conversion"); cerr != nil {
		return cerr
	}
	if err != nil {
		return NewPDFErrorWithDetails(ErrRenderFailed, "LibreOffice conversion failed", tail(string(output), 10), err)
	}

	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(docxPath), filepath.Ext(docxPath))+".pdf")
	if err := ValidatePDF(produced); err != nil {
		return NewPDFErrorWithDetails(ErrRenderFailed, "LibreOffice produced no valid PDF", tail(string(output), 10), err)
	}

	if err := os.MkdirAll(filepath.Dir(pdfPath), 0755); err != nil {
		return NewPDFError(ErrRenderFailed, "failed to create output directory", err)
	}
	if err := moveFile(produced, pdfPath); err != nil {
		return NewPDFError(ErrRenderFailed, "failed to move rendered PDF", err)
	}

	logger.Info("DOCX converted to PDF",
		logger.String("output", pdfPath),
		logger.String("elapsed", time.Since(start).Round(time.Millisecond).String()))
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// contextError reports a cancelled or timed out conversion.
func contextError(ctx context.Context, what string) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return NewPDFError(ErrConvertFailed, what+" timed out", err)
	case err != nil:
		return NewPDFError(ErrCancelled, what+" cancelled", err)
	}
	return nil
}

func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String(), nil
}

// tail returns the last n non-empty lines of tool output
func tail(output string, n int) string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}
