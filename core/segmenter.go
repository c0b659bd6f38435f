package orchestration

import "strings"

// sentenceSegmenter cuts a stream of text fragments into complete sentences
// so synthesis can start before the full reply is generated. A sentence ends
// at '.', '?' or '!' followed by whitespace; the trailing whitespace is
// consumed. Text is never dropped: everything pushed comes back out either as
// a sentence or through Flush.
type sentenceSegmenter struct {
	pending strings.Builder
}

// Push appends a fragment and returns any sentences completed by it.
func (s *sentenceSegmenter) Push(fragment string) []string {
	if fragment == "" {
		return nil
	}
	s.pending.WriteString(fragment)

	text := s.pending.String()
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !isSentenceTerminator(text[i]) {
			continue
		}
		if i+1 >= len(text) || !isWhitespace(text[i+1]) {
			continue
		}

		sentence := strings.TrimSpace(text[start : i+1])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}

		i++
		for i+1 < len(text) && isWhitespace(text[i+1]) {
			i++
		}
		start = i + 1
	}

	if start > 0 {
		remainder := text[start:]
		s.pending.Reset()
		s.pending.WriteString(remainder)
	}

	return sentences
}

// Flush returns the unterminated remainder, if any, and resets the
// segmenter.
func (s *sentenceSegmenter) Flush() (string, bool) {
	remainder := strings.TrimSpace(s.pending.String())
	s.pending.Reset()
	if remainder == "" {
		return "", false
	}
	return remainder, true
}

func isSentenceTerminator(c byte) bool {
	return c == '.' || c == '?' || c == '!'
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
