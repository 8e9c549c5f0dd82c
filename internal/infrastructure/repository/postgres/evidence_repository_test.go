package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

func newEvidenceRepoWithMock(t *testing.T) (*EvidenceRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &EvidenceRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestEvidenceGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newEvidenceRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, filename, mime_type, storage_path").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrEvidenceNotFound) {
		t.Fatalf("expected ErrEvidenceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEvidenceUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newEvidenceRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE evidence_documents").
		WithArgs("missing", string(domain.EvidenceProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.EvidenceProcessing, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrEvidenceNotFound) {
		t.Fatalf("expected ErrEvidenceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEvidenceCreateInsertsAllColumns(t *testing.T) {
	repo, mock, done := newEvidenceRepoWithMock(t)
	defer done()

	doc := &domain.EvidenceDocument{
		ID:          "doc-1",
		Filename:    "facts.txt",
		MimeType:    "text/plain",
		StoragePath: "doc-1_facts.txt",
		SourceURL:   "https://example.org/facts",
		TenantID:    "t-1",
		Status:      domain.EvidenceUploaded,
	}

	mock.ExpectExec("INSERT INTO evidence_documents").
		WithArgs(doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, doc.SourceURL, doc.TenantID,
			string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
