package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

// KeywordIndex is the full-text retrieval leg backed by Postgres. Passages
// land in evidence_passages whose generated tsvector column carries a GIN
// index; search ranks with ts_rank over a websearch-style query.
type KeywordIndex struct {
	db *sql.DB
}

func NewKeywordIndex(db *sql.DB) *KeywordIndex {
	return &KeywordIndex{db: db}
}

func (k *KeywordIndex) IndexPassages(ctx context.Context, passages []domain.EvidencePassage) error {
	if len(passages) == 0 {
		return nil
	}

	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapTemporary("begin passage tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
INSERT INTO evidence_passages (id, document_id, tenant_id, source_url, passage_index, content)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content, source_url = EXCLUDED.source_url
`
	for _, passage := range passages {
		if _, err := tx.ExecContext(ctx, query,
			passage.ID, passage.DocumentID, passage.TenantID, passage.SourceURL, passage.Index, passage.Content,
		); err != nil {
			return wrapTemporary("insert passage", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapTemporary("commit passage tx", err)
	}
	return nil
}

func (k *KeywordIndex) Search(ctx context.Context, queryText string, topK int, tenantID string) ([]domain.EvidenceCandidate, error) {
	const query = `
SELECT id, content, COALESCE(source_url, ''), ts_rank(content_tsv, q) AS rank
FROM evidence_passages, websearch_to_tsquery('english', $1) q
WHERE content_tsv @@ q AND tenant_id = $2
ORDER BY rank DESC, id ASC
LIMIT $3
`
	rows, err := k.db.QueryContext(ctx, query, queryText, tenantID, topK)
	if err != nil {
		return nil, wrapTemporary("keyword search", err)
	}
	defer rows.Close()

	var out []domain.EvidenceCandidate
	for rows.Next() {
		var cand domain.EvidenceCandidate
		if err := rows.Scan(&cand.ID, &cand.Content, &cand.SourceURL, &cand.Relevance); err != nil {
			return nil, fmt.Errorf("scan keyword candidate: %w", err)
		}
		out = append(out, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapTemporary("keyword search rows", err)
	}
	return out, nil
}

func wrapTemporary(operation string, err error) error {
	if err == nil {
		return nil
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}
