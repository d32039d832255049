// Package types defines core data types and error codes shared by the PDF translator packages.
package types

import (
	"errors"
	"time"
)

// Engine names accepted by the translation layer
const (
	EngineDeepL  = "deepl"
	EngineOpenAI = "openai"
)

// Config holds the application configuration loaded from the config file,
// environment and command line.
type Config struct {
	AuthKey     string `yaml:"auth_key"`
	DeepLAPIURL string `yaml:"deepl_api_url"` // empty selects the free/pro endpoint from the key
	Engine      string `yaml:"engine"`        // "deepl" or "openai"
	SourceLang  string `yaml:"source_lang,omitempty"`
	Formality   string `yaml:"formality,omitempty"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`

	WorkDirectory string `yaml:"work_directory"` // parent of per-run working directories
	KeepWorkDir   bool   `yaml:"keep_work_dir"`
	CachePath     string `yaml:"cache_path"`
	CacheDisabled bool   `yaml:"cache_disabled"`

	MaxChunkChars    int           `yaml:"max_chunk_chars"`
	RequestDelay     time.Duration `yaml:"request_delay"`
	RateLimitWait    time.Duration `yaml:"rate_limit_wait"`
	RateLimitRetries int           `yaml:"rate_limit_retries"`

	PythonPath        string        `yaml:"python_path,omitempty"` // use this interpreter instead of the managed venv
	LibreOfficePath   string        `yaml:"libreoffice_path,omitempty"`
	ConversionTimeout time.Duration `yaml:"conversion_timeout"`

	LogFile string `yaml:"log_file,omitempty"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrNetwork       ErrorCode = "NETWORK_ERROR"
	ErrFileNotFound  ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrAPICall       ErrorCode = "API_CALL_ERROR"
	ErrAPIRateLimit  ErrorCode = "API_RATE_LIMIT"
	ErrQuotaExceeded ErrorCode = "API_QUOTA_EXCEEDED"
	ErrConversion    ErrorCode = "CONVERSION_ERROR"
	ErrConfig        ErrorCode = "CONFIG_ERROR"
	ErrInternal      ErrorCode = "INTERNAL_ERROR"
	ErrTranslation   ErrorCode = "TRANSLATION_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
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
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// RootCodeOf returns the code of the innermost AppError in err's chain, or ""
// if there is none.
func RootCodeOf(err error) ErrorCode {
	var code ErrorCode
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			break
		}
		code = appErr.Code
		err = appErr.Cause
	}
	return code
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}
