package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

type evidenceRepoFake struct {
	created  *domain.EvidenceDocument
	byID     map[string]*domain.EvidenceDocument
	statuses []domain.EvidenceStatus
	lastErr  string
	err      error
}

func (f *evidenceRepoFake) Create(_ context.Context, doc *domain.EvidenceDocument) error {
	if f.err != nil {
		return f.err
	}
	copyDoc := *doc
	f.created = &copyDoc
	return nil
}

func (f *evidenceRepoFake) GetByID(_ context.Context, id string) (*domain.EvidenceDocument, error) {
	if doc, ok := f.byID[id]; ok {
		return doc, nil
	}
	return nil, domain.ErrEvidenceNotFound
}

func (f *evidenceRepoFake) UpdateStatus(_ context.Context, _ string, status domain.EvidenceStatus, errMessage string) error {
	f.statuses = append(f.statuses, status)
	f.lastErr = errMessage
	return nil
}

type ingestStorageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *ingestStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *ingestStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

type ingestQueueFake struct {
	documentID string
	err        error
}

func (f *ingestQueueFake) PublishEvidenceIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *ingestQueueFake) SubscribeEvidenceIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func (f *ingestQueueFake) PublishClaimSubmitted(context.Context, domain.ClaimJob) error {
	return errors.New("not implemented")
}

func (f *ingestQueueFake) SubscribeClaimSubmitted(context.Context, func(context.Context, domain.ClaimJob) error) error {
	return errors.New("not implemented")
}

func TestIngestUploadSuccess(t *testing.T) {
	repo := &evidenceRepoFake{}
	storage := &ingestStorageFake{}
	queue := &ingestQueueFake{}
	uc := NewIngestEvidenceUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "facts 1.txt", "text/plain", "https://example.org/facts", "", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected document id")
	}
	if doc.Status != domain.EvidenceUploaded {
		t.Fatalf("expected status uploaded, got %s", doc.Status)
	}
	if doc.TenantID != domain.DefaultTenantID {
		t.Fatalf("expected default tenant, got %s", doc.TenantID)
	}
	if repo.created == nil {
		t.Fatalf("expected repo.Create call")
	}
	if queue.documentID != doc.ID {
		t.Fatalf("expected queued doc id %s, got %s", doc.ID, queue.documentID)
	}
	if !strings.Contains(storage.savedKey, "_facts_1.txt") {
		t.Fatalf("expected sanitized key suffix, got %s", storage.savedKey)
	}
	if storage.savedBody != "hello" {
		t.Fatalf("expected saved body hello, got %s", storage.savedBody)
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	repo := &evidenceRepoFake{}
	storage := &ingestStorageFake{}
	queue := &ingestQueueFake{err: errors.New("queue down")}
	uc := NewIngestEvidenceUseCase(repo, storage, queue)

	_, err := uc.Upload(context.Background(), "facts.txt", "text/plain", "", "", bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish ingestion event") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestIngestUploadStorageError(t *testing.T) {
	repo := &evidenceRepoFake{}
	storage := &ingestStorageFake{err: errors.New("disk full")}
	queue := &ingestQueueFake{}
	uc := NewIngestEvidenceUseCase(repo, storage, queue)

	_, err := uc.Upload(context.Background(), "facts.txt", "text/plain", "", "t-1", bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if repo.created != nil {
		t.Fatalf("metadata must not be created when the upload failed")
	}
}
