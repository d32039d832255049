package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	goopenai "github.com/meguminnnnnnnnn/go-openai"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// LLMConfig configures an OpenAI-compatible chat model used as a translation backend.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// chatGenerator is the part of an eino chat model the backend needs
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// LLMBackend translates chunks with a chat completion model.
type LLMBackend struct {
	chat  chatGenerator
	model string
}

// NewLLMBackend creates an LLMBackend on top of eino's OpenAI chat model.
func NewLLMBackend(ctx context.Context, cfg LLMConfig) (*LLMBackend, error) {
	if cfg.APIKey == "" {
		return nil, types.NewAppError(types.ErrConfig, "OpenAI API key is not configured", nil)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	chatModelConfig := &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create chat model", err)
	}

	logger.Info("LLM translation backend ready", logger.String("model", cfg.Model), logger.String("baseURL", cfg.BaseURL))
	return &LLMBackend{chat: chatModel, model: cfg.Model}, nil
}

// TranslateChunk asks the model for a translation of chunk and nothing else.
func (b *LLMBackend) TranslateChunk(ctx context.Context, chunk, targetLang string) (string, error) {
	msg, err := b.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(targetLang)),
		schema.UserMessage(chunk),
	})
	if err != nil {
		return "", classifyLLMError(err)
	}
	if msg == nil {
		return "", types.NewAppError(types.ErrAPICall, "model returned no message", nil)
	}
	return strings.TrimSpace(msg.Content), nil
}

func buildSystemPrompt(targetLang string) string {
	return fmt.Sprintf(`You are a professional document translator.
Translate the user's text into %s (%s).
Keep numbers, names, URLs and punctuation layout unchanged.
Reply with the translation only, without quotes, notes or explanations.`, LanguageName(targetLang), targetLang)
}

// classifyLLMError maps OpenAI-style failures onto the codes the chunked
// translator reacts to, using the HTTP status the client attached.
func classifyLLMError(err error) error {
	status, code := llmErrorStatus(err)
	switch {
	case status == 0:
		return types.NewAppError(types.ErrNetwork, "chat completion request failed", err)
	case status == http.StatusTooManyRequests && code == "insufficient_quota":
		return types.NewAppError(types.ErrQuotaExceeded, "API quota exceeded", err)
	case status == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrAPIRateLimit, "API rate limit exceeded", err)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return types.NewAppError(types.ErrAPICall, "API authentication failed", err)
	default:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "chat completion failed", fmt.Sprintf("status %d", status), err)
	}
}

// llmErrorStatus returns the HTTP status and the OpenAI error code carried by
// err, or 0 when the request never got a response.
func llmErrorStatus(err error) (int, string) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		if code == "" {
			code = apiErr.Type
		}
		return apiErr.HTTPStatusCode, code
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, ""
	}
	return 0, ""
}
