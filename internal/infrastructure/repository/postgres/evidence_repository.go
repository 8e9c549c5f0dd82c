package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

type EvidenceRepository struct {
	db *sql.DB
}

func NewEvidenceRepository(db *sql.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *EvidenceRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS evidence_documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	source_url TEXT,
	tenant_id TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_documents_status ON evidence_documents(status);
CREATE INDEX IF NOT EXISTS idx_evidence_documents_tenant ON evidence_documents(tenant_id);

CREATE TABLE IF NOT EXISTS evidence_passages (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES evidence_documents(id) ON DELETE CASCADE,
	tenant_id TEXT NOT NULL,
	source_url TEXT,
	passage_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	content_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
);

CREATE INDEX IF NOT EXISTS idx_evidence_passages_document ON evidence_passages(document_id);
CREATE INDEX IF NOT EXISTS idx_evidence_passages_tsv ON evidence_passages USING GIN(content_tsv);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *EvidenceRepository) Create(ctx context.Context, doc *domain.EvidenceDocument) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO evidence_documents (
	id, filename, mime_type, storage_path, source_url, tenant_id, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, doc.SourceURL, doc.TenantID,
		string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evidence document: %w", err)
	}
	return nil
}

func (r *EvidenceRepository) GetByID(ctx context.Context, id string) (*domain.EvidenceDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, source_url, tenant_id, status, error_message, created_at, updated_at
FROM evidence_documents
WHERE id = $1
`, id)

	var doc domain.EvidenceDocument
	var status string

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &doc.SourceURL, &doc.TenantID,
		&status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrEvidenceNotFound, "get evidence", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan evidence document: %w", err)
	}

	doc.Status = domain.EvidenceStatus(status)
	return &doc, nil
}

func (r *EvidenceRepository) UpdateStatus(ctx context.Context, id string, status domain.EvidenceStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE evidence_documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update evidence status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update evidence status rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrEvidenceNotFound, "update evidence status", fmt.Errorf("id %s", id))
	}
	return nil
}
