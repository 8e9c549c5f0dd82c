package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
	"github.com/kirillkom/claim-verifier/internal/core/ports"
)

// ProcessEvidenceUseCase turns an uploaded evidence document into indexed
// passages: extract, chunk, embed, then write both the vector and the
// keyword index under the same passage IDs.
type ProcessEvidenceUseCase struct {
	repo         ports.EvidenceRepository
	extractor    ports.TextExtractor
	chunker      ports.Chunker
	embedder     ports.Embedder
	vectorIndex  ports.VectorIndex
	keywordIndex ports.KeywordIndex
}

func NewProcessEvidenceUseCase(
	repo ports.EvidenceRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorIndex ports.VectorIndex,
	keywordIndex ports.KeywordIndex,
) *ProcessEvidenceUseCase {
	return &ProcessEvidenceUseCase{
		repo:         repo,
		extractor:    extractor,
		chunker:      chunker,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
	}
}

func (uc *ProcessEvidenceUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.EvidenceProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.EvidenceReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	return nil
}

func (uc *ProcessEvidenceUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return err
	}

	chunks, err := uc.chunk(ctx, text)
	if err != nil {
		return err
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return err
	}

	passages := buildPassages(doc, chunks)
	return uc.index(ctx, passages, vectors)
}

func (uc *ProcessEvidenceUseCase) loadDocument(ctx context.Context, documentID string) (*domain.EvidenceDocument, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch evidence by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessEvidenceUseCase) extractText(ctx context.Context, doc *domain.EvidenceDocument) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *ProcessEvidenceUseCase) chunk(_ context.Context, text string) ([]string, error) {
	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk evidence", errors.New("chunking produced zero passages"))
	}
	return chunks, nil
}

func (uc *ProcessEvidenceUseCase) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed passages",
			fmt.Errorf("vectors/passages mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

func (uc *ProcessEvidenceUseCase) index(ctx context.Context, passages []domain.EvidencePassage, vectors [][]float32) error {
	if err := uc.vectorIndex.IndexPassages(ctx, passages, vectors); err != nil {
		return fmt.Errorf("index passages in vector store: %w", err)
	}
	if err := uc.keywordIndex.IndexPassages(ctx, passages); err != nil {
		return fmt.Errorf("index passages in keyword store: %w", err)
	}
	return nil
}

func (uc *ProcessEvidenceUseCase) markStatus(ctx context.Context, documentID string, status domain.EvidenceStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessEvidenceUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.EvidenceFailed, processErr.Error())
}

func buildPassages(doc *domain.EvidenceDocument, chunks []string) []domain.EvidencePassage {
	passages := make([]domain.EvidencePassage, 0, len(chunks))
	for i, content := range chunks {
		passages = append(passages, domain.EvidencePassage{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			TenantID:   doc.TenantID,
			SourceURL:  doc.SourceURL,
			Index:      i,
			Content:    content,
		})
	}
	return passages
}
