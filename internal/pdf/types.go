// Package pdf converts between PDF and the editable DOCX format and
// inspects PDF files before and after conversion.
package pdf

// PDFInfo PDF 文件信息
type PDFInfo struct {
	FilePath  string `json:"file_path"`
	FileName  string `json:"file_name"`
	PageCount int    `json:"page_count"`
	FileSize  int64  `json:"file_size"`
	IsTextPDF bool   `json:"is_text_pdf"`
	// CharCount is the number of non-whitespace characters of extractable
	// text, an estimate of what a translation will consume.
	CharCount int `json:"char_count"`
}

// PDFErrorCode 错误代码枚举
type PDFErrorCode string

const (
	ErrPDFNotFound   PDFErrorCode = "PDF_NOT_FOUND"
	ErrPDFInvalid    PDFErrorCode = "PDF_INVALID"
	ErrConvertFailed PDFErrorCode = "CONVERT_FAILED"
	ErrRenderFailed  PDFErrorCode = "RENDER_FAILED"
	ErrToolNotFound  PDFErrorCode = "TOOL_NOT_FOUND"
	ErrCancelled     PDFErrorCode = "CANCELLED"
)

// PDFError PDF 处理错误
type PDFError struct {
	Code    PDFErrorCode `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Cause   error        `json:"-"`
}

// Error implements the error interface for PDFError
func (e *PDFError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// NewPDFError creates a new PDFError with the given code, message, and optional cause
func NewPDFError(code PDFErrorCode, message string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPDFErrorWithDetails creates a new PDFError with details
func NewPDFErrorWithDetails(code PDFErrorCode, message, details string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}
