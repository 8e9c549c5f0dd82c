package chunking

import "strings"

// Splitter cuts extracted document text into retrieval passages. Splitting
// is sentence-aware: a passage never breaks mid-sentence unless a single
// sentence alone exceeds the passage size.
type Splitter struct {
	PassageSize     int
	SentenceOverlap int
}

func NewSplitter(passageSize, sentenceOverlap int) *Splitter {
	if passageSize <= 0 {
		passageSize = 600
	}
	if sentenceOverlap < 0 {
		sentenceOverlap = 0
	}
	return &Splitter{
		PassageSize:     passageSize,
		SentenceOverlap: sentenceOverlap,
	}
}

func (s *Splitter) Split(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var out []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		out = append(out, strings.Join(current, " "))
		if s.SentenceOverlap > 0 && s.SentenceOverlap < len(current) {
			current = append([]string(nil), current[len(current)-s.SentenceOverlap:]...)
		} else {
			current = nil
		}
		currentLen = 0
		for _, kept := range current {
			currentLen += len([]rune(kept)) + 1
		}
	}

	for _, sentence := range sentences {
		length := len([]rune(sentence))
		if length > s.PassageSize {
			flush()
			out = append(out, hardSplit(sentence, s.PassageSize)...)
			current = nil
			currentLen = 0
			continue
		}
		if currentLen+length > s.PassageSize {
			flush()
		}
		current = append(current, sentence)
		currentLen += length + 1
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// splitSentences breaks text on sentence-ending punctuation followed by
// whitespace. Newlines also terminate a sentence so headings and list items
// become their own units.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
			continue
		}
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\t' || runes[i+1] == '\n') {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func hardSplit(sentence string, size int) []string {
	runes := []rune(sentence)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		part := strings.TrimSpace(string(runes[start:end]))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
