package domain

import "time"

type EvidenceStatus string

const (
	EvidenceUploaded   EvidenceStatus = "uploaded"
	EvidenceProcessing EvidenceStatus = "processing"
	EvidenceReady      EvidenceStatus = "ready"
	EvidenceFailed     EvidenceStatus = "failed"
)

// EvidenceDocument is a source document uploaded into the corpus. Its text
// is split into passages, which are what retrieval actually returns.
type EvidenceDocument struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	SourceURL   string         `json:"source_url,omitempty"`
	TenantID    string         `json:"tenant_id"`
	Status      EvidenceStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// EvidencePassage is one indexed retrieval unit of a document. The same
// passage ID is used in both the vector and the keyword index so fused
// candidates deduplicate cleanly.
type EvidencePassage struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	TenantID   string `json:"tenant_id"`
	SourceURL  string `json:"source_url,omitempty"`
	Index      int    `json:"index"`
	Content    string `json:"content"`
}

// EvidenceCandidate is one passage returned by retrieval for a claim.
// VectorRank/KeywordRank are 1-based positions in the respective ranked
// lists; zero means the passage was not returned by that method.
type EvidenceCandidate struct {
	ID          string  `json:"id"`
	Content     string  `json:"content"`
	SourceURL   string  `json:"source_url,omitempty"`
	VectorRank  int     `json:"vector_rank,omitempty"`
	KeywordRank int     `json:"keyword_rank,omitempty"`
	Similarity  float64 `json:"similarity,omitempty"`
	Relevance   float64 `json:"relevance,omitempty"`
	RRFScore    float64 `json:"rrf_score"`
}
