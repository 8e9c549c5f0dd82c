package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

type verifierFake struct {
	lastReq domain.VerificationRequest
	result  *domain.PipelineResult
	err     error
}

func (f *verifierFake) Verify(_ context.Context, req domain.VerificationRequest) (*domain.PipelineResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type readerFake struct {
	result *domain.PipelineResult
	err    error
}

func (f *readerFake) GetByClaimID(_ context.Context, _ string) (*domain.PipelineResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type ingestorFake struct {
	filename  string
	mimeType  string
	sourceURL string
	tenantID  string
	doc       *domain.EvidenceDocument
	err       error
}

func (f *ingestorFake) Upload(_ context.Context, filename, mimeType, sourceURL, tenantID string, body io.Reader) (*domain.EvidenceDocument, error) {
	f.filename = filename
	f.mimeType = mimeType
	f.sourceURL = sourceURL
	f.tenantID = tenantID
	_, _ = io.ReadAll(body)
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type repoFake struct {
	doc *domain.EvidenceDocument
	err error
}

func (f *repoFake) Create(context.Context, *domain.EvidenceDocument) error { return nil }

func (f *repoFake) GetByID(context.Context, string) (*domain.EvidenceDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *repoFake) UpdateStatus(context.Context, string, domain.EvidenceStatus, string) error {
	return nil
}

type queueFake struct {
	jobs       []domain.ClaimJob
	publishErr error
}

func (f *queueFake) PublishEvidenceIngested(context.Context, string) error { return nil }

func (f *queueFake) SubscribeEvidenceIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *queueFake) PublishClaimSubmitted(_ context.Context, job domain.ClaimJob) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *queueFake) SubscribeClaimSubmitted(context.Context, func(context.Context, domain.ClaimJob) error) error {
	return nil
}

type routerFixture struct {
	verifier *verifierFake
	reader   *readerFake
	ingestor *ingestorFake
	repo     *repoFake
	queue    *queueFake
	handler  http.Handler
}

func newRouterFixture(cfg RouterConfig) *routerFixture {
	f := &routerFixture{
		verifier: &verifierFake{result: &domain.PipelineResult{
			ClaimID: "c-1",
			Verdict: domain.VerdictResult{
				Label:      domain.VerdictSupported,
				Confidence: 0.9,
				Strategy:   domain.StrategyWeightedVote,
			},
		}},
		reader:   &readerFake{},
		ingestor: &ingestorFake{doc: &domain.EvidenceDocument{ID: "doc-1", Status: domain.EvidenceUploaded}},
		repo:     &repoFake{doc: &domain.EvidenceDocument{ID: "doc-1", Status: domain.EvidenceReady}},
		queue:    &queueFake{},
	}
	f.handler = NewRouter(f.verifier, f.reader, f.ingestor, f.repo, f.queue, nil, cfg).Handler()
	return f
}

func TestVerifyClaimReturnsResult(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	body := `{"claim_id": "c-1", "claim_text": "water boils at 100C", "strategy": "majority_vote", "use_cache": false}`
	req := httptest.NewRequest(http.MethodPost, "/v1/claims/verify", strings.NewReader(body))
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if f.verifier.lastReq.Strategy != domain.StrategyMajorityVote {
		t.Fatalf("strategy not forwarded, got %q", f.verifier.lastReq.Strategy)
	}
	if f.verifier.lastReq.UseCache {
		t.Fatalf("use_cache=false not forwarded")
	}
	if !f.verifier.lastReq.StoreResult {
		t.Fatalf("store_result should default to true")
	}

	var result domain.PipelineResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Verdict.Label != domain.VerdictSupported {
		t.Fatalf("unexpected verdict %q", result.Verdict.Label)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestVerifyClaimGeneratesClaimID(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/claims/verify", strings.NewReader(`{"claim_text": "x"}`))
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if f.verifier.lastReq.ClaimID == "" {
		t.Fatalf("expected generated claim id")
	}
}

func TestVerifyClaimRequiresClaimText(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/claims/verify", strings.NewReader(`{"claim_text": "  "}`))
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestVerifyClaimErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "verify", domain.ErrInvalidInput), http.StatusBadRequest},
		{"temporary", domain.WrapError(domain.ErrTemporary, "verify", domain.ErrTemporary), http.StatusServiceUnavailable},
		{"deadline", &domain.StageError{Stage: domain.StageRetrieval, Err: domain.ErrDeadline}, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRouterFixture(RouterConfig{})
			f.verifier.err = tc.err

			req := httptest.NewRequest(http.MethodPost, "/v1/claims/verify", strings.NewReader(`{"claim_text": "x"}`))
			res := httptest.NewRecorder()
			f.handler.ServeHTTP(res, req)

			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
		})
	}
}

func TestSubmitClaimQueuesJob(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	body := `{"claim_text": "the moon is made of rock", "tenant_id": "t-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/claims", strings.NewReader(body))
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(f.queue.jobs) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(f.queue.jobs))
	}
	job := f.queue.jobs[0]
	if job.ClaimID == "" || job.TenantID != "t-1" {
		t.Fatalf("unexpected job %+v", job)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["claim_id"] != job.ClaimID || resp["status"] != "queued" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestGetVerificationNotFound(t *testing.T) {
	f := newRouterFixture(RouterConfig{})
	f.reader.err = domain.WrapError(domain.ErrVerificationNotFound, "get verification", domain.ErrVerificationNotFound)

	req := httptest.NewRequest(http.MethodGet, "/v1/claims/c-404", nil)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUploadEvidence(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "facts.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("water boils at 100C at sea level")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.WriteField("source_url", "https://example.org/facts"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.WriteField("tenant_id", "t-1"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/evidence", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if f.ingestor.filename != "facts.txt" {
		t.Fatalf("filename not forwarded, got %q", f.ingestor.filename)
	}
	if f.ingestor.sourceURL != "https://example.org/facts" || f.ingestor.tenantID != "t-1" {
		t.Fatalf("form fields not forwarded: %q %q", f.ingestor.sourceURL, f.ingestor.tenantID)
	}
}

func TestUploadEvidenceRequiresFile(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/evidence", strings.NewReader("no multipart"))
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetEvidenceByID(t *testing.T) {
	f := newRouterFixture(RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/evidence/doc-1", nil)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var doc domain.EvidenceDocument
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.ID != "doc-1" || doc.Status != domain.EvidenceReady {
		t.Fatalf("unexpected document %+v", doc)
	}
}
