package chunker

import (
	"strings"
	"unicode/utf8"
)

// Split divides text into chunks of at most maxChunkChars characters,
// breaking on sentence terminators ('.', '!', '?'). A single sentence
// longer than maxChunkChars is emitted whole rather than truncated, so
// the bound is best-effort. Whitespace-only chunks are dropped.
//
// The same text and maxChunkChars always produce the same chunk
// sequence; callers must treat the returned length as the authoritative
// chunk count once chunks have been persisted.
func Split(text string, maxChunkChars int) []string {
	if maxChunkChars <= 0 {
		maxChunkChars = 1000
	}

	sentences := splitSentences(text)

	var chunks []string
	var buf strings.Builder
	bufLen := 0 // the budget is in characters, not bytes
	for _, sentence := range sentences {
		n := utf8.RuneCountInString(sentence)
		if bufLen > 0 && bufLen+n > maxChunkChars {
			chunks = appendChunk(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
		buf.WriteString(sentence)
		bufLen += n
	}
	chunks = appendChunk(chunks, buf.String())

	return chunks
}

// splitSentences scans text and returns sentence-sized pieces, each
// including its terminator and any whitespace that follows it. The
// trailing piece is returned even without a terminator.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		// Swallow consecutive terminators ("..." or "?!") and the
		// whitespace run after them so it stays with the sentence.
		j := i + 1
		for j < len(runes) && isTerminator(runes[j]) {
			j++
		}
		for j < len(runes) && isSpace(runes[j]) {
			j++
		}
		sentences = append(sentences, string(runes[start:j]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

// appendChunk adds s to chunks unless it is empty after trimming.
func appendChunk(chunks []string, s string) []string {
	if trimmed := strings.TrimSpace(s); trimmed != "" {
		chunks = append(chunks, trimmed)
	}
	return chunks
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
