package translator

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func buildSentences(n int) string {
	sentences := make([]string, n)
	for i := range sentences {
		sentences[i] = fmt.Sprintf("Sentence number %03d is part of a long paragraph.", i)
	}
	return strings.Join(sentences, " ")
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Hi. How are you? Fine! Bye")
	want := []string{"Hi.", "How are you?", "Fine!", "Bye"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSentences() = %q, want %q", got, want)
	}
}

func TestSplitIntoChunks_ShortTextIsOneChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"single word", "Hello"},
		{"keeps surrounding whitespace", "  Hello world.  "},
		{"exactly at limit", strings.Repeat("x", DefaultMaxChunkChars)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitIntoChunks(tt.text, DefaultMaxChunkChars)
			if len(chunks) != 1 || chunks[0] != tt.text {
				t.Errorf("expected the text as a single chunk, got %d chunks", len(chunks))
			}
		})
	}
}

func TestSplitIntoChunks_LongTextRespectsLimit(t *testing.T) {
	text := buildSentences(400)
	if utf8.RuneCountInString(text) <= DefaultMaxChunkChars {
		t.Fatalf("fixture too short: %d", len(text))
	}

	chunks := SplitIntoChunks(text, DefaultMaxChunkChars)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n > DefaultMaxChunkChars {
			t.Errorf("chunk %d has %d chars, limit %d", i, n, DefaultMaxChunkChars)
		}
		if !strings.HasSuffix(chunk, ".") {
			t.Errorf("chunk %d does not end at a sentence boundary: ...%q", i, chunk[len(chunk)-10:])
		}
	}

	if joined := strings.Join(chunks, " "); joined != text {
		t.Error("joining chunks with single spaces does not reproduce the input")
	}
}

func TestSplitIntoChunks_MixedPunctuation(t *testing.T) {
	text := "Is this a question? Yes! It is. Another one? Sure!"
	chunks := SplitIntoChunks(text, 25)

	want := []string{"Is this a question? Yes!", "It is. Another one?", "Sure!"}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("SplitIntoChunks() = %q, want %q", chunks, want)
	}
}

func TestSplitIntoChunks_OversizedSentence(t *testing.T) {
	long := strings.Repeat("a", 6000) + "."
	text := long + " Short one."

	chunks := SplitIntoChunks(text, DefaultMaxChunkChars)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != long {
		t.Error("oversized sentence should be kept whole in its own chunk")
	}
	if chunks[1] != "Short one." {
		t.Errorf("second chunk = %q", chunks[1])
	}
}

func TestSplitIntoChunks_CountsCharactersNotBytes(t *testing.T) {
	// 3000 two-byte runes: 6000 bytes but within a 5000 character budget
	text := strings.Repeat("é", 3000)
	if chunks := SplitIntoChunks(text, DefaultMaxChunkChars); len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitIntoChunks_DefaultLimit(t *testing.T) {
	text := buildSentences(10)
	if got := SplitIntoChunks(text, 0); len(got) != 1 {
		t.Errorf("zero limit should fall back to the default, got %d chunks", len(got))
	}
}
