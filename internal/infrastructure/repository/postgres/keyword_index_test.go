package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

func newKeywordIndexWithMock(t *testing.T) (*KeywordIndex, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &KeywordIndex{db: db}, mock, func() { _ = db.Close() }
}

func TestKeywordSearchRanksAndScans(t *testing.T) {
	idx, mock, done := newKeywordIndexWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "content", "source_url", "rank"}).
		AddRow("p-1", "water boils at 100 degrees", "https://example.org", 0.61).
		AddRow("p-2", "boiling point of water", "", 0.42)

	mock.ExpectQuery("SELECT id, content").
		WithArgs("water boils", "t-1", 10).
		WillReturnRows(rows)

	results, err := idx.Search(context.Background(), "water boils", 10, "t-1")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "p-1" || results[0].Relevance != 0.61 {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestKeywordSearchWrapsFailureAsTemporary(t *testing.T) {
	idx, mock, done := newKeywordIndexWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, content").
		WithArgs("q", "t-1", 5).
		WillReturnError(errors.New("connection refused"))

	_, err := idx.Search(context.Background(), "q", 5, "t-1")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestKeywordIndexPassagesUpsertsInOneTx(t *testing.T) {
	idx, mock, done := newKeywordIndexWithMock(t)
	defer done()

	passages := []domain.EvidencePassage{
		{ID: "p-1", DocumentID: "doc-1", TenantID: "t-1", Index: 0, Content: "a"},
		{ID: "p-2", DocumentID: "doc-1", TenantID: "t-1", Index: 1, Content: "b"},
	}

	mock.ExpectBegin()
	for _, p := range passages {
		mock.ExpectExec("INSERT INTO evidence_passages").
			WithArgs(p.ID, p.DocumentID, p.TenantID, p.SourceURL, p.Index, p.Content).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	if err := idx.IndexPassages(context.Background(), passages); err != nil {
		t.Fatalf("IndexPassages() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestKeywordIndexPassagesRollsBackOnFailure(t *testing.T) {
	idx, mock, done := newKeywordIndexWithMock(t)
	defer done()

	passages := []domain.EvidencePassage{{ID: "p-1", DocumentID: "doc-1", TenantID: "t-1", Content: "a"}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO evidence_passages").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := idx.IndexPassages(context.Background(), passages)
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
