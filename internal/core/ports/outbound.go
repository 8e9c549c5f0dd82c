package ports

import (
	"context"
	"io"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

// Embedder builds vectors for passages and claim text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores passage vectors and performs similarity search.
// Search returns candidates best match first with Similarity in [0,1];
// results below minSimilarity are excluded by the collaborator.
type VectorIndex interface {
	IndexPassages(ctx context.Context, passages []domain.EvidencePassage, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, topK int, minSimilarity float64, tenantID string) ([]domain.EvidenceCandidate, error)
}

// KeywordIndex stores passage text and performs full-text search,
// best match first by lexical relevance.
type KeywordIndex interface {
	IndexPassages(ctx context.Context, passages []domain.EvidencePassage) error
	Search(ctx context.Context, queryText string, topK int, tenantID string) ([]domain.EvidenceCandidate, error)
}

// NLIVerifier scores every (evidence content, claim text) pair of one batch.
// The returned slice matches the candidate order. A non-nil error means the
// whole batch failed; per-pair failures are reported inside NLIOutcome.
type NLIVerifier interface {
	VerifyBatch(ctx context.Context, claimText string, evidence []domain.EvidenceCandidate) ([]domain.NLIOutcome, error)
}

// VerificationStore persists completed pipeline results. Store is
// best-effort from the pipeline's perspective: failures must not abort
// the in-flight verification.
type VerificationStore interface {
	Store(ctx context.Context, result *domain.PipelineResult) (string, error)
	GetByClaimID(ctx context.Context, claimID string) (*domain.PipelineResult, error)
}

// VerificationCache maps claim fingerprints to recent pipeline results.
type VerificationCache interface {
	Get(fingerprint string) (*domain.PipelineResult, bool)
	Put(fingerprint string, result *domain.PipelineResult)
	Evict(fingerprint string)
	Len() int
}

// RetryExecutor retries a fallible operation under its configured policy.
type RetryExecutor interface {
	Execute(ctx context.Context, operation string, fn func(context.Context) error) error
}

// EvidenceRepository persists evidence document state.
type EvidenceRepository interface {
	Create(ctx context.Context, doc *domain.EvidenceDocument) error
	GetByID(ctx context.Context, id string) (*domain.EvidenceDocument, error)
	UpdateStatus(ctx context.Context, id string, status domain.EvidenceStatus, errMessage string) error
}

// ObjectStorage stores raw uploaded evidence files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from a stored evidence document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.EvidenceDocument) (string, error)
}

// Chunker splits extracted text into passages.
type Chunker interface {
	Split(text string) []string
}

// MessageQueue publishes/consumes evidence-ingest and claim-verify jobs.
type MessageQueue interface {
	PublishEvidenceIngested(ctx context.Context, documentID string) error
	SubscribeEvidenceIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishClaimSubmitted(ctx context.Context, job domain.ClaimJob) error
	SubscribeClaimSubmitted(ctx context.Context, handler func(context.Context, domain.ClaimJob) error) error
}
