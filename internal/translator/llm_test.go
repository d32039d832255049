package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	goopenai "github.com/meguminnnnnnnnn/go-openai"

	"pdf-translator/internal/types"
)

type fakeChat struct {
	input []*schema.Message
	reply *schema.Message
	err   error
}

func (f *fakeChat) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	return f.reply, f.err
}

func TestLLMBackend_TranslateChunk(t *testing.T) {
	chat := &fakeChat{reply: schema.AssistantMessage("  Hola mundo.\n", nil)}
	backend := &LLMBackend{chat: chat, model: "test-model"}

	got, err := backend.TranslateChunk(context.Background(), "Hello world.", "ES")
	if err != nil {
		t.Fatalf("TranslateChunk error: %v", err)
	}
	if got != "Hola mundo." {
		t.Errorf("TranslateChunk() = %q", got)
	}

	if len(chat.input) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(chat.input))
	}
	if chat.input[0].Role != schema.System || !strings.Contains(chat.input[0].Content, "Spanish") {
		t.Errorf("system prompt = %q", chat.input[0].Content)
	}
	if chat.input[1].Role != schema.User || chat.input[1].Content != "Hello world." {
		t.Errorf("user message = %+v", chat.input[1])
	}
}

func TestLLMBackend_NilMessage(t *testing.T) {
	backend := &LLMBackend{chat: &fakeChat{}}
	if _, err := backend.TranslateChunk(context.Background(), "x", "DE"); !types.IsCode(err, types.ErrAPICall) {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestNewLLMBackend_RequiresKey(t *testing.T) {
	if _, err := NewLLMBackend(context.Background(), LLMConfig{Model: "gpt-4o-mini"}); !types.IsCode(err, types.ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestClassifyLLMError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"insufficient quota", &goopenai.APIError{HTTPStatusCode: 429, Code: "insufficient_quota", Message: "You exceeded your current quota"}, types.ErrQuotaExceeded},
		{"quota by type", &goopenai.APIError{HTTPStatusCode: 429, Type: "insufficient_quota"}, types.ErrQuotaExceeded},
		{"rate limit", &goopenai.APIError{HTTPStatusCode: 429, Code: "rate_limit_exceeded", Message: "Rate limit reached"}, types.ErrAPIRateLimit},
		{"wrapped rate limit", fmt.Errorf("failed to create chat completion: %w", &goopenai.APIError{HTTPStatusCode: 429}), types.ErrAPIRateLimit},
		{"gateway rate limit", &goopenai.RequestError{HTTPStatusCode: 429, Body: []byte("slow down")}, types.ErrAPIRateLimit},
		{"bad key", &goopenai.APIError{HTTPStatusCode: 401, Message: "Incorrect API key provided"}, types.ErrAPICall},
		{"server error mentioning 429", &goopenai.APIError{HTTPStatusCode: 500, Message: "upstream returned 429 rate limit"}, types.ErrAPICall},
		{"proxy error mentioning 429", &goopenai.RequestError{HTTPStatusCode: 502, Body: []byte("error 429 from backend")}, types.ErrAPICall},
		{"no response", errors.New("dial tcp: connection reset by peer, status code: 429"), types.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyLLMError(tt.err)
			if code := types.CodeOf(err); code != tt.want {
				t.Errorf("classifyLLMError() = %s, want %s", code, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("the client error should stay in the chain")
			}
		})
	}
}

func TestChunkedTranslator_LLMRateLimitRetried(t *testing.T) {
	chat := &fakeChat{err: &goopenai.APIError{HTTPStatusCode: 429, Message: "Rate limit reached"}}
	backend := &LLMBackend{chat: chat}
	opts := testOpts
	opts.RateLimitRetries = 1
	tr, slept := newTestTranslator(backend, opts)

	_, err := tr.Translate(context.Background(), "Hello.", "DE")
	if !types.IsCode(err, types.ErrAPIRateLimit) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if tr.Requests() != 2 || len(*slept) != 2 {
		t.Errorf("requests = %d, sleeps = %v", tr.Requests(), *slept)
	}
}
