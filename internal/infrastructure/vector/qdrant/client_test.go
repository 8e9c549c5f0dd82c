package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

func passages() []domain.EvidencePassage {
	return []domain.EvidencePassage{
		{ID: "p-1", DocumentID: "doc-1", TenantID: "t-1", Index: 0, Content: "a"},
		{ID: "p-2", DocumentID: "doc-1", TenantID: "t-1", Index: 1, Content: "b"},
	}
}

func TestIndexPassagesEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	var upsertBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/passages":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/passages/points":
			_ = json.NewDecoder(r.Body).Decode(&upsertBody)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "passages")
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexPassages(context.Background(), passages(), vectors); err != nil {
		t.Fatalf("first IndexPassages() error = %v", err)
	}
	if err := client.IndexPassages(context.Background(), passages(), vectors); err != nil {
		t.Fatalf("second IndexPassages() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}

	points := upsertBody["points"].([]any)
	first := points[0].(map[string]any)
	if first["id"] != "p-1" {
		t.Fatalf("point id must be the passage id, got %v", first["id"])
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/passages" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "passages")
	err := client.IndexPassages(context.Background(), passages()[:1], [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("qdrant outage must be tagged temporary, got %v", err)
	}
}

func TestSearchSendsThresholdAndTenantFilter(t *testing.T) {
	var searchBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/passages/points/search" {
			_ = json.NewDecoder(r.Body).Decode(&searchBody)
			_, _ = w.Write([]byte(`{"result":[
				{"id":"p-1","score":0.92,"payload":{"content":"a","source_url":"https://example.org"}},
				{"id":"p-2","score":0.81,"payload":{"content":"b"}}
			]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "passages")
	results, err := client.Search(context.Background(), []float32{0.1, 0.2}, 10, 0.5, "t-1")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "p-1" || results[0].Similarity != 0.92 {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[0].SourceURL != "https://example.org" {
		t.Fatalf("payload source_url lost: %+v", results[0])
	}

	if searchBody["score_threshold"].(float64) != 0.5 {
		t.Fatalf("expected score_threshold=0.5, got %v", searchBody["score_threshold"])
	}
	if _, ok := searchBody["filter"]; !ok {
		t.Fatalf("expected tenant filter in search body")
	}
}

func TestSearchFailureIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "passages")
	_, err := client.Search(context.Background(), []float32{0.1}, 5, 0, "")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
