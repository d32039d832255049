package translator

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkChars is the per-request character budget of the DeepL API.
const DefaultMaxChunkChars = 5000

// ChunkFunc splits text into request-sized pieces. It is the replaceable
// strategy behind SplitIntoChunks.
type ChunkFunc func(text string, maxChars int) []string

// sentenceBreaks are the boundaries text may be split at. The separator's
// space is dropped; it comes back when chunks are packed.
var sentenceBreaks = strings.NewReplacer(". ", ".\x00", "! ", "!\x00", "? ", "?\x00")

// SplitSentences splits text after ". ", "! " and "? ". It is a heuristic,
// not a tokenizer: abbreviations such as "e.g. " are split too.
func SplitSentences(text string) []string {
	return strings.Split(sentenceBreaks.Replace(text), "\x00")
}

// SplitIntoChunks returns text unchanged as a single chunk when it fits in
// maxChars. Longer text is split into sentences which are packed greedily;
// a sentence joins the current chunk while len(chunk)+len(sentence)+1 stays
// within maxChars. A single sentence longer than maxChars becomes its own
// oversized chunk. Lengths are counted in characters.
func SplitIntoChunks(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, sentence := range SplitSentences(text) {
		sentenceLen := utf8.RuneCountInString(sentence)
		if currentLen+sentenceLen+1 > maxChars && currentLen > 0 {
			if chunk := strings.TrimSpace(current.String()); chunk != "" {
				chunks = append(chunks, chunk)
			}
			current.Reset()
			currentLen = 0
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
		currentLen += sentenceLen + 1
	}

	if chunk := strings.TrimSpace(current.String()); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}
