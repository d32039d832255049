// Package translator sends document text to a machine-translation service.
// Text longer than the service's request limit is split on sentence
// boundaries, translated chunk by chunk and joined back together.
package translator

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// Backend translates one chunk with one request to a translation service.
type Backend interface {
	TranslateChunk(ctx context.Context, chunk, targetLang string) (string, error)
}

// TextTranslator translates arbitrary text into a target language.
type TextTranslator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Options controls chunking and pacing of a ChunkedTranslator.
type Options struct {
	// MaxChunkChars is the request size limit; zero selects DefaultMaxChunkChars
	MaxChunkChars int
	// RequestDelay is slept after every successful chunk request
	RequestDelay time.Duration
	// RateLimitWait is slept after a rate-limited (HTTP 429) request
	RateLimitWait time.Duration
	// RateLimitRetries is how many times a rate-limited chunk is re-sent after
	// waiting. Zero waits once and then fails.
	RateLimitRetries int
	// Chunker splits long text; nil selects SplitIntoChunks
	Chunker ChunkFunc
}

// ChunkedTranslator implements TextTranslator on top of a single-chunk Backend.
// It is not safe for concurrent use.
type ChunkedTranslator struct {
	backend Backend
	opts    Options
	sleep   func(ctx context.Context, d time.Duration) error

	requests   int
	characters int
}

// NewChunkedTranslator creates a ChunkedTranslator. Delays are used as given,
// so a zero Options value translates without pausing.
func NewChunkedTranslator(backend Backend, opts Options) *ChunkedTranslator {
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = DefaultMaxChunkChars
	}
	if opts.Chunker == nil {
		opts.Chunker = SplitIntoChunks
	}
	if opts.RateLimitRetries < 0 {
		opts.RateLimitRetries = 0
	}
	return &ChunkedTranslator{
		backend: backend,
		opts:    opts,
		sleep:   sleepContext,
	}
}

// Translate returns the translation of text. Blank text returns "" without
// a request. Chunk translations are joined with a single space and trimmed.
// The first chunk that fails aborts the whole text.
func (t *ChunkedTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	chunks := t.opts.Chunker(text, t.opts.MaxChunkChars)
	if len(chunks) > 1 {
		logger.Debug("text split into chunks",
			logger.Int("length", utf8.RuneCountInString(text)),
			logger.Int("chunks", len(chunks)))
	}

	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		translated, err := t.translateChunk(ctx, chunk, targetLang)
		if err != nil {
			logger.Error("chunk translation failed", err,
				logger.Int("chunk", i+1),
				logger.Int("chunks", len(chunks)))
			return "", err
		}
		parts = append(parts, translated)

		if err := t.sleep(ctx, t.opts.RequestDelay); err != nil {
			return "", err
		}
	}

	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

// translateChunk sends one chunk. Every 429 is followed by RateLimitWait; the
// chunk is re-sent while the retry budget lasts. Quota exhaustion and all
// other failures return immediately.
func (t *ChunkedTranslator) translateChunk(ctx context.Context, chunk, targetLang string) (string, error) {
	for attempt := 0; ; attempt++ {
		t.requests++
		t.characters += utf8.RuneCountInString(chunk)

		translated, err := t.backend.TranslateChunk(ctx, chunk, targetLang)
		if err == nil {
			return translated, nil
		}

		switch types.CodeOf(err) {
		case types.ErrQuotaExceeded:
			logger.Error("translation quota exceeded", err)
			return "", err
		case types.ErrAPIRateLimit:
			logger.Warn("rate limit exceeded, waiting",
				logger.String("wait", t.opts.RateLimitWait.String()),
				logger.Int("attempt", attempt+1),
				logger.Int("retries", t.opts.RateLimitRetries))
			if serr := t.sleep(ctx, t.opts.RateLimitWait); serr != nil {
				return "", serr
			}
			if attempt < t.opts.RateLimitRetries {
				continue
			}
			return "", types.NewAppErrorWithDetails(types.ErrAPIRateLimit,
				"rate limit retries exhausted", "", err)
		default:
			return "", err
		}
	}
}

// Requests returns how many chunk requests were sent, retries included.
func (t *ChunkedTranslator) Requests() int {
	return t.requests
}

// Characters returns how many characters were sent, retries included.
func (t *ChunkedTranslator) Characters() int {
	return t.characters
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
