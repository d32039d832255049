package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdf-translator/internal/types"
)

func newDeepLTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *DeepLClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewDeepLClient(DeepLConfig{
		AuthKey: "test-key:fx",
		APIURL:  server.URL + "/v2/translate",
	})
	return server, client
}

func TestDeepLClient_TranslateChunk(t *testing.T) {
	var gotReq deeplRequest
	_, client := newDeepLTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v2/translate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "DeepL-Auth-Key test-key:fx" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"translations":[{"detected_source_language":"EN","text":"Hola mundo."}]}`))
	})

	got, err := client.TranslateChunk(context.Background(), "Hello world.", "ES")
	if err != nil {
		t.Fatalf("TranslateChunk error: %v", err)
	}
	if got != "Hola mundo." {
		t.Errorf("TranslateChunk() = %q", got)
	}
	if len(gotReq.Text) != 1 || gotReq.Text[0] != "Hello world." || gotReq.TargetLang != "ES" {
		t.Errorf("unexpected request body: %+v", gotReq)
	}
	if gotReq.SourceLang != "" || gotReq.Formality != "" {
		t.Errorf("optional fields should be omitted: %+v", gotReq)
	}
}

func TestDeepLClient_OptionalFields(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"translations":[{"text":"Hallo"}]}`))
	}))
	defer server.Close()

	client := NewDeepLClient(DeepLConfig{
		AuthKey:    "key",
		APIURL:     server.URL,
		SourceLang: "EN",
		Formality:  "more",
	})
	if _, err := client.TranslateChunk(context.Background(), "Hello", "DE"); err != nil {
		t.Fatal(err)
	}
	if raw["source_lang"] != "EN" || raw["formality"] != "more" {
		t.Errorf("request body = %v", raw)
	}
}

func TestDeepLClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   types.ErrorCode
	}{
		{"rate limited", http.StatusTooManyRequests, `{"message":"Too many requests"}`, types.ErrAPIRateLimit},
		{"quota exceeded", StatusQuotaExceeded, `{"message":"Quota exceeded"}`, types.ErrQuotaExceeded},
		{"forbidden", http.StatusForbidden, ``, types.ErrAPICall},
		{"bad request", http.StatusBadRequest, `{"message":"Value for 'target_lang' not supported."}`, types.ErrAPICall},
		{"server error", http.StatusServiceUnavailable, `oops`, types.ErrAPICall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newDeepLTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.TranslateChunk(context.Background(), "Hello", "DE")
			if err == nil {
				t.Fatal("expected an error")
			}
			if code := types.CodeOf(err); code != tt.want {
				t.Errorf("code = %s, want %s (err: %v)", code, tt.want, err)
			}
		})
	}
}

func TestDeepLClient_ErrorDetailsFromBody(t *testing.T) {
	_, client := newDeepLTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Value for 'target_lang' not supported."}`))
	})

	_, err := client.TranslateChunk(context.Background(), "Hello", "XX")
	if err == nil || !strings.Contains(err.Error(), "target_lang") {
		t.Errorf("expected the API message in the error, got %v", err)
	}
}

func TestDeepLClient_EmptyTranslations(t *testing.T) {
	_, client := newDeepLTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"translations":[]}`))
	})

	if _, err := client.TranslateChunk(context.Background(), "Hello", "DE"); !types.IsCode(err, types.ErrAPICall) {
		t.Errorf("expected API error for empty translations, got %v", err)
	}
}

func TestDeepLClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewDeepLClient(DeepLConfig{AuthKey: "key", APIURL: url})
	_, err := client.TranslateChunk(context.Background(), "Hello", "DE")
	if !types.IsCode(err, types.ErrNetwork) {
		t.Errorf("expected network error, got %v", err)
	}
}

func TestDeepLClient_MissingKey(t *testing.T) {
	client := NewDeepLClient(DeepLConfig{APIURL: "http://127.0.0.1:1"})
	if _, err := client.TranslateChunk(context.Background(), "Hello", "DE"); !types.IsCode(err, types.ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
	if _, err := client.Usage(context.Background()); !types.IsCode(err, types.ErrConfig) {
		t.Errorf("expected config error from Usage, got %v", err)
	}
}

func TestDeepLClient_Usage(t *testing.T) {
	_, client := newDeepLTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v2/usage" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"character_count":499000,"character_limit":500000}`))
	})

	usage, err := client.Usage(context.Background())
	if err != nil {
		t.Fatalf("Usage error: %v", err)
	}
	if usage.CharacterCount != 499000 || usage.CharacterLimit != 500000 {
		t.Errorf("usage = %+v", usage)
	}
	if usage.Remaining() != 1000 {
		t.Errorf("Remaining() = %d", usage.Remaining())
	}
}

func TestUsage_RemainingNeverNegative(t *testing.T) {
	u := &Usage{CharacterCount: 600, CharacterLimit: 500}
	if u.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", u.Remaining())
	}
}

func TestDefaultDeepLURL(t *testing.T) {
	if got := DefaultDeepLURL("abc:fx"); got != DeepLFreeURL {
		t.Errorf("free key -> %s", got)
	}
	if got := DefaultDeepLURL("abc"); got != DeepLProURL {
		t.Errorf("pro key -> %s", got)
	}
	if got := NewDeepLClient(DeepLConfig{AuthKey: "abc:fx"}).APIURL(); got != DeepLFreeURL {
		t.Errorf("APIURL() = %s", got)
	}
}

func TestChunkedTranslator_DeepLQuotaStopsImmediately(t *testing.T) {
	requests := 0
	_, client := newDeepLTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(StatusQuotaExceeded)
	})

	tr, slept := newTestTranslator(client, testOpts)
	_, err := tr.Translate(context.Background(), buildSentences(300), "DE")
	if !types.IsCode(err, types.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if requests != 1 {
		t.Errorf("expected a single request, got %d", requests)
	}
	if len(*slept) != 0 {
		t.Errorf("quota error should not wait, slept %v", *slept)
	}
}

func TestChunkedTranslator_DeepLRateLimitThenSuccess(t *testing.T) {
	requests := 0
	_, client := newDeepLTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"translations":[{"text":"Adiós."}]}`))
	})

	tr, slept := newTestTranslator(client, testOpts)
	got, err := tr.Translate(context.Background(), "Goodbye.", "ES")
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if got != "Adiós." || requests != 2 {
		t.Errorf("got %q after %d requests", got, requests)
	}
	if (*slept)[0] != testOpts.RateLimitWait {
		t.Errorf("first sleep = %v, want the rate limit wait", (*slept)[0])
	}
}
