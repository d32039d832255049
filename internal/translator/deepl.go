package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DeepLFreeURL is the translate endpoint for DeepL API Free keys
	DeepLFreeURL = "https://api-free.deepl.com/v2/translate"
	// DeepLProURL is the translate endpoint for DeepL API Pro keys
	DeepLProURL = "https://api.deepl.com/v2/translate"
	// DefaultTimeout is the default HTTP client timeout for API calls
	DefaultTimeout = 60 * time.Second

	// StatusQuotaExceeded is DeepL's non-standard "quota exceeded" status
	StatusQuotaExceeded = 456
)

// DeepLConfig holds configuration options for creating a DeepLClient
type DeepLConfig struct {
	AuthKey string
	// APIURL overrides the endpoint chosen from the key type
	APIURL     string
	SourceLang string
	Formality  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DeepLClient is a Backend for the DeepL v2 translate API.
type DeepLClient struct {
	authKey    string
	apiURL     string
	sourceLang string
	formality  string
	client     *http.Client
}

// NewDeepLClient creates a DeepLClient with the given configuration
func NewDeepLClient(cfg DeepLConfig) *DeepLClient {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultDeepLURL(cfg.AuthKey)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &DeepLClient{
		authKey:    cfg.AuthKey,
		apiURL:     apiURL,
		sourceLang: cfg.SourceLang,
		formality:  cfg.Formality,
		client:     client,
	}
}

// DefaultDeepLURL picks the free endpoint for keys ending in ":fx" and the pro endpoint otherwise.
func DefaultDeepLURL(authKey string) string {
	if strings.HasSuffix(authKey, ":fx") {
		return DeepLFreeURL
	}
	return DeepLProURL
}

// APIURL returns the translate endpoint in use.
func (c *DeepLClient) APIURL() string {
	return c.apiURL
}

type deeplRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
	Formality  string   `json:"formality,omitempty"`
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// TranslateChunk sends one chunk to DeepL.
func (c *DeepLClient) TranslateChunk(ctx context.Context, chunk, targetLang string) (string, error) {
	if c.authKey == "" {
		return "", types.NewAppError(types.ErrConfig, "DeepL auth key is not configured", nil)
	}

	body, err := json.Marshal(deeplRequest{
		Text:       []string{chunk},
		TargetLang: targetLang,
		SourceLang: c.sourceLang,
		Formality:  c.formality,
	})
	if err != nil {
		return "", types.NewAppError(types.ErrInternal, "failed to marshal request body", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var result deeplResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		logger.Error("failed to parse DeepL response", err)
		return "", types.NewAppError(types.ErrAPICall, "failed to parse API response", err)
	}
	if len(result.Translations) == 0 {
		return "", types.NewAppError(types.ErrAPICall, "API returned no translations", nil)
	}

	logger.Debug("DeepL chunk translated",
		logger.Int("chars", len(chunk)),
		logger.String("detectedSource", result.Translations[0].DetectedSourceLanguage))
	return result.Translations[0].Text, nil
}

// Usage reports the account's character consumption for the billing period.
type Usage struct {
	CharacterCount int64 `json:"character_count"`
	CharacterLimit int64 `json:"character_limit"`
}

// Remaining returns the characters left before the quota is hit.
func (u *Usage) Remaining() int64 {
	if u.CharacterLimit <= u.CharacterCount {
		return 0
	}
	return u.CharacterLimit - u.CharacterCount
}

// Usage queries the /v2/usage endpoint next to the translate endpoint.
func (c *DeepLClient) Usage(ctx context.Context) (*Usage, error) {
	if c.authKey == "" {
		return nil, types.NewAppError(types.ErrConfig, "DeepL auth key is not configured", nil)
	}

	usageURL := strings.TrimSuffix(strings.TrimSuffix(c.apiURL, "/"), "/translate") + "/usage"
	respBody, err := c.do(ctx, http.MethodGet, usageURL, nil)
	if err != nil {
		return nil, err
	}

	var usage Usage
	if err := json.Unmarshal(respBody, &usage); err != nil {
		return nil, types.NewAppError(types.ErrAPICall, "failed to parse usage response", err)
	}
	logger.Debug("DeepL usage",
		logger.Int64("characterCount", usage.CharacterCount),
		logger.Int64("characterLimit", usage.CharacterLimit))
	return &usage, nil
}

func (c *DeepLClient) do(ctx context.Context, method, url string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to create HTTP request", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.authKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Error("DeepL request failed", err, logger.String("url", url))
		return nil, types.NewAppError(types.ErrNetwork, "API request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrNetwork, "failed to read API response", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("DeepL returned error status", logger.Int("statusCode", resp.StatusCode))
		return nil, handleAPIHTTPError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// handleAPIHTTPError creates an appropriate AppError based on the HTTP status code and response body.
func handleAPIHTTPError(statusCode int, body []byte) error {
	var errResp struct {
		Message string `json:"message"`
	}
	details := ""
	if err := json.Unmarshal(body, &errResp); err == nil {
		details = errResp.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "API authentication failed", "invalid auth key", nil)
	case http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(types.ErrAPIRateLimit, "API rate limit exceeded", details, nil)
	case StatusQuotaExceeded:
		return types.NewAppErrorWithDetails(types.ErrQuotaExceeded, "API quota exceeded", details, nil)
	case http.StatusBadRequest:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "invalid API request", details, nil)
	case http.StatusRequestEntityTooLarge:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "request too large", details, nil)
	default:
		if statusCode >= 500 {
			return types.NewAppErrorWithDetails(types.ErrAPICall, "API server error",
				fmt.Sprintf("status %d: %s", statusCode, details), nil)
		}
		return types.NewAppErrorWithDetails(types.ErrAPICall, "API request failed",
			fmt.Sprintf("status %d: %s", statusCode, details), nil)
	}
}
