package localfs

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Save(context.Background(), "doc-1_facts.txt", bytes.NewBufferString("evidence body")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reader, err := s.Open(context.Background(), "doc-1_facts.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "evidence body" {
		t.Fatalf("unexpected content %q", raw)
	}
}

func TestSaveRejectsTraversalKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, key := range []string{"../escape.txt", "a/b.txt", ""} {
		if err := s.Save(context.Background(), key, bytes.NewBufferString("x")); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestOpenMissingKey(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.Open(context.Background(), "absent.txt"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
