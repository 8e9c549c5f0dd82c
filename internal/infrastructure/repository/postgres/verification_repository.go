package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

// VerificationRepository persists completed pipeline results. GetByClaimID
// returns the most recent record for a claim.
type VerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082502)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS verifications (
	id TEXT PRIMARY KEY,
	claim_id TEXT NOT NULL,
	claim_text TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	verdict TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	conflict BOOLEAN NOT NULL DEFAULT FALSE,
	strategy TEXT NOT NULL,
	verdict_detail JSONB NOT NULL,
	evidence JSONB NOT NULL DEFAULT '[]'::jsonb,
	retrieval_method TEXT NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verifications_claim ON verifications(claim_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_verifications_tenant ON verifications(tenant_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *VerificationRepository) Store(ctx context.Context, result *domain.PipelineResult) (string, error) {
	verdictJSON, err := json.Marshal(result.Verdict)
	if err != nil {
		return "", fmt.Errorf("marshal verdict: %w", err)
	}
	evidenceJSON, err := json.Marshal(result.Evidence)
	if err != nil {
		return "", fmt.Errorf("marshal evidence: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO verifications (
	id, claim_id, claim_text, tenant_id, verdict, confidence, conflict, strategy,
	verdict_detail, evidence, retrieval_method, duration_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		id, result.ClaimID, result.ClaimText, result.TenantID,
		string(result.Verdict.Label), result.Verdict.Confidence, result.Verdict.Conflict, string(result.Verdict.Strategy),
		verdictJSON, evidenceJSON, result.RetrievalMethod, result.Duration.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert verification: %w", err)
	}
	return id, nil
}

func (r *VerificationRepository) GetByClaimID(ctx context.Context, claimID string) (*domain.PipelineResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, claim_id, claim_text, tenant_id, verdict_detail, evidence, retrieval_method, duration_ms
FROM verifications
WHERE claim_id = $1
ORDER BY created_at DESC
LIMIT 1
`, claimID)

	var result domain.PipelineResult
	var verdictRaw, evidenceRaw []byte
	var durationMs int64

	err := row.Scan(
		&result.RecordID, &result.ClaimID, &result.ClaimText, &result.TenantID,
		&verdictRaw, &evidenceRaw, &result.RetrievalMethod, &durationMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrVerificationNotFound, "get verification", fmt.Errorf("claim %s", claimID))
		}
		return nil, fmt.Errorf("scan verification: %w", err)
	}

	if err := json.Unmarshal(verdictRaw, &result.Verdict); err != nil {
		return nil, fmt.Errorf("unmarshal verdict: %w", err)
	}
	if err := json.Unmarshal(evidenceRaw, &result.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	result.Duration = time.Duration(durationMs) * time.Millisecond
	return &result, nil
}
