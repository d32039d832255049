package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdf-translator/internal/logger"
)

// textPDFThreshold is the number of characters on the first pages above
// which a PDF is considered to carry a text layer.
const textPDFThreshold = 50

var disableConfigDir sync.Once

// newPDFCPUConfig returns a relaxed pdfcpu configuration that never touches
// the user's pdfcpu config directory.
func newPDFCPUConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PDFParser inspects PDF files
type PDFParser struct{}

// NewPDFParser creates a new PDFParser
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// GetPDFInfo 获取 PDF 基本信息（页数、文件大小、文本层）
func (p *PDFParser) GetPDFInfo(pdfPath string) (*PDFInfo, error) {
	fileInfo, err := statPDF(pdfPath)
	if err != nil {
		return nil, err
	}

	f, r, err := openPDF(pdfPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &PDFInfo{
		FilePath:  pdfPath,
		FileName:  filepath.Base(pdfPath),
		PageCount: r.NumPage(),
		FileSize:  fileInfo.Size(),
	}

	// Count text on all pages; a failure leaves the estimate at zero
	info.CharCount, err = countText(r, r.NumPage(), 0)
	if err != nil {
		logger.Warn("failed to extract text for estimate", logger.String("path", pdfPath), logger.Err(err))
	}
	info.IsTextPDF = info.CharCount > 0

	return info, nil
}

// IsTextPDF 检查 PDF 是否包含可提取的文本
// Only the first three pages are examined.
func (p *PDFParser) IsTextPDF(pdfPath string) (bool, error) {
	if _, err := statPDF(pdfPath); err != nil {
		return false, err
	}

	f, r, err := openPDF(pdfPath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	n, err := countText(r, 3, textPDFThreshold)
	if err != nil {
		return false, NewPDFError(ErrPDFInvalid, "failed to read PDF text", err)
	}
	return n > 0, nil
}

// ValidatePDF checks that pdfPath exists, is not empty and parses as a PDF.
func ValidatePDF(pdfPath string) error {
	fileInfo, err := statPDF(pdfPath)
	if err != nil {
		return err
	}
	if fileInfo.Size() == 0 {
		return NewPDFErrorWithDetails(ErrPDFInvalid, "PDF file is empty", pdfPath, nil)
	}
	if err := api.ValidateFile(pdfPath, newPDFCPUConfig()); err != nil {
		return NewPDFErrorWithDetails(ErrPDFInvalid, "invalid PDF structure", pdfPath, err)
	}
	return nil
}

// PageCount returns the number of pages as counted by pdfcpu.
func PageCount(pdfPath string) (int, error) {
	if _, err := statPDF(pdfPath); err != nil {
		return 0, err
	}
	disableConfigDir.Do(api.DisableConfigDir)
	n, err := api.PageCountFile(pdfPath)
	if err != nil {
		return 0, NewPDFError(ErrPDFInvalid, "failed to count pages", err)
	}
	return n, nil
}

func statPDF(pdfPath string) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewPDFErrorWithDetails(ErrPDFNotFound, "file does not exist", pdfPath, err)
		}
		return nil, NewPDFError(ErrPDFInvalid, "cannot access file", err)
	}
	if fileInfo.IsDir() {
		return nil, NewPDFErrorWithDetails(ErrPDFInvalid, "path is a directory, not a file", pdfPath, nil)
	}
	return fileInfo, nil
}

func openPDF(pdfPath string) (f *os.File, r *pdf.Reader, err error) {
	// The reader panics on some malformed inputs
	defer func() {
		if rec := recover(); rec != nil {
			err = NewPDFError(ErrPDFInvalid, "cannot open PDF file", fmt.Errorf("%v", rec))
		}
	}()

	f, r, err = pdf.Open(pdfPath)
	if err != nil {
		return nil, nil, NewPDFError(ErrPDFInvalid, "cannot open PDF file", err)
	}
	return f, r, nil
}

// countText counts non-whitespace characters on the first maxPages pages,
// stopping early once stopAfter is exceeded (zero means never).
func countText(r *pdf.Reader, maxPages, stopAfter int) (total int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("text extraction panicked: %v", rec)
		}
	}()

	if maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}
	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, c := range content {
			if !unicode.IsSpace(c) {
				total++
			}
		}
		if stopAfter > 0 && total > stopAfter {
			break
		}
	}
	return total, nil
}
