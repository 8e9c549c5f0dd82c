package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
	"github.com/kirillkom/claim-verifier/internal/core/ports"
)

type IngestEvidenceUseCase struct {
	repo    ports.EvidenceRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestEvidenceUseCase(
	repo ports.EvidenceRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestEvidenceUseCase {
	return &IngestEvidenceUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestEvidenceUseCase) Upload(
	ctx context.Context,
	filename, mimeType, sourceURL, tenantID string,
	body io.Reader,
) (*domain.EvidenceDocument, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if tenantID == "" {
		tenantID = domain.DefaultTenantID
	}

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.EvidenceDocument{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		SourceURL:   sourceURL,
		TenantID:    tenantID,
		Status:      domain.EvidenceUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create evidence metadata: %w", err)
	}

	if err := uc.queue.PublishEvidenceIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
