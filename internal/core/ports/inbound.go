package ports

import (
	"context"
	"io"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

// ClaimVerifier is the inbound contract for the verification pipeline.
type ClaimVerifier interface {
	Verify(ctx context.Context, req domain.VerificationRequest) (*domain.PipelineResult, error)
}

// VerificationReader is the inbound read model for persisted results.
type VerificationReader interface {
	GetByClaimID(ctx context.Context, claimID string) (*domain.PipelineResult, error)
}

// EvidenceIngestor is the inbound contract for corpus uploads.
type EvidenceIngestor interface {
	Upload(ctx context.Context, filename, mimeType, sourceURL, tenantID string, body io.Reader) (*domain.EvidenceDocument, error)
}

// EvidenceProcessor is the inbound contract for asynchronous indexing.
type EvidenceProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
