package chunking

import (
	"strings"
	"testing"
)

func TestSplitKeepsSentencesWhole(t *testing.T) {
	s := NewSplitter(40, 0)
	text := "Water boils at 100 degrees. Ice melts at zero. The sky is blue."

	passages := s.Split(text)
	if len(passages) < 2 {
		t.Fatalf("expected multiple passages, got %v", passages)
	}
	for _, p := range passages {
		if !strings.HasSuffix(p, ".") {
			t.Fatalf("passage must end on a sentence boundary: %q", p)
		}
	}
}

func TestSplitOverlapRepeatsTrailingSentence(t *testing.T) {
	s := NewSplitter(50, 1)
	text := "First sentence here. Second sentence here. Third sentence here."

	passages := s.Split(text)
	if len(passages) < 2 {
		t.Fatalf("expected multiple passages, got %v", passages)
	}
	for i := 1; i < len(passages); i++ {
		prevLast := lastSentence(passages[i-1])
		if !strings.HasPrefix(passages[i], prevLast) {
			t.Fatalf("passage %d must start with the previous trailing sentence: %q vs %q", i, passages[i], prevLast)
		}
	}
}

func TestSplitHardBreaksOversizedSentence(t *testing.T) {
	s := NewSplitter(10, 0)
	passages := s.Split("averyverylongwordwithoutanybreaksatall")
	if len(passages) < 3 {
		t.Fatalf("expected hard split, got %v", passages)
	}
	for _, p := range passages {
		if len([]rune(p)) > 10 {
			t.Fatalf("hard-split passage exceeds size: %q", p)
		}
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(100, 0)
	if got := s.Split("   \n  "); got != nil {
		t.Fatalf("expected nil for blank text, got %v", got)
	}
}

func TestSplitNewlineTerminatesSentence(t *testing.T) {
	s := NewSplitter(100, 0)
	passages := s.Split("Heading without period\nBody sentence.")
	joined := strings.Join(passages, " | ")
	if !strings.Contains(joined, "Heading without period") {
		t.Fatalf("heading lost: %v", passages)
	}
}

func lastSentence(passage string) string {
	trimmed := strings.TrimSpace(passage)
	idx := strings.LastIndex(trimmed[:len(trimmed)-1], ". ")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+2:]
}
