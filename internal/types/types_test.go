package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewAppErrorWithDetails(ErrNetwork, "request failed", "POST /v2/translate", cause)

	msg := err.Error()
	for _, want := range []string{"request failed", "POST /v2/translate", "connection reset"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestIsCode(t *testing.T) {
	quota := NewAppError(ErrQuotaExceeded, "quota exceeded", nil)
	wrapped := fmt.Errorf("translating paragraph 3: %w", quota)
	nested := NewAppError(ErrTranslation, "translation aborted", wrapped)

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"direct", quota, ErrQuotaExceeded, true},
		{"fmt wrapped", wrapped, ErrQuotaExceeded, true},
		{"outer code", nested, ErrTranslation, true},
		{"inner code through outer", nested, ErrQuotaExceeded, true},
		{"absent code", nested, ErrAPIRateLimit, false},
		{"plain error", errors.New("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.want {
				t.Errorf("IsCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("x: %w", NewAppError(ErrConfig, "bad", nil))); got != ErrConfig {
		t.Errorf("CodeOf() = %q, want %q", got, ErrConfig)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestRootCodeOf(t *testing.T) {
	quota := NewAppError(ErrQuotaExceeded, "quota exceeded", nil)
	wrapped := NewAppErrorWithDetails(ErrTranslation, "failed to translate paragraph", "body paragraph 1/2", quota)

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"single", quota, ErrQuotaExceeded},
		{"re-coded", wrapped, ErrQuotaExceeded},
		{"fmt wrapped", fmt.Errorf("translate stage failed: %w", wrapped), ErrQuotaExceeded},
		{"plain cause", NewAppError(ErrNetwork, "request failed", errors.New("EOF")), ErrNetwork},
		{"plain", errors.New("boom"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RootCodeOf(tt.err); got != tt.want {
				t.Errorf("RootCodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
