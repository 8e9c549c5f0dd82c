package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
	"github.com/kirillkom/claim-verifier/internal/core/ports"
	"github.com/kirillkom/claim-verifier/internal/observability/metrics"
)

type RouterConfig struct {
	Service          string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

type Router struct {
	verifier ports.ClaimVerifier
	reader   ports.VerificationReader
	ingestor ports.EvidenceIngestor
	repo     ports.EvidenceRepository
	queue    ports.MessageQueue
	metrics  *metrics.HTTPServerMetrics
	cfg      RouterConfig
}

func NewRouter(
	verifier ports.ClaimVerifier,
	reader ports.VerificationReader,
	ingestor ports.EvidenceIngestor,
	repo ports.EvidenceRepository,
	queue ports.MessageQueue,
	httpMetrics *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.Service == "" {
		cfg.Service = "api"
	}
	if cfg.BackpressureWait <= 0 {
		cfg.BackpressureWait = 5 * time.Second
	}
	return &Router{
		verifier: verifier,
		reader:   reader,
		ingestor: ingestor,
		repo:     repo,
		queue:    queue,
		metrics:  httpMetrics,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/claims/verify", rt.verifyClaim)
	mux.HandleFunc("/v1/claims", rt.submitClaim)
	mux.HandleFunc("/v1/claims/", rt.getVerification)
	mux.HandleFunc("/v1/evidence", rt.uploadEvidence)
	mux.HandleFunc("/v1/evidence/", rt.getEvidence)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type verifyClaimRequest struct {
	ClaimID       string  `json:"claim_id"`
	ClaimText     string  `json:"claim_text"`
	TenantID      string  `json:"tenant_id"`
	TopKEvidence  int     `json:"top_k_evidence"`
	MinSimilarity float64 `json:"min_similarity"`
	Strategy      string  `json:"strategy"`
	UseCache      *bool   `json:"use_cache"`
	StoreResult   *bool   `json:"store_result"`
	TimeoutMS     int     `json:"timeout_ms"`
}

func (rt *Router) verifyClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body verifyClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.ClaimText) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "claim_text is required"})
		return
	}
	if body.ClaimID == "" {
		body.ClaimID = uuid.NewString()
	}

	req := domain.NewVerificationRequest(body.ClaimID, body.ClaimText)
	req.TenantID = body.TenantID
	req.TopKEvidence = body.TopKEvidence
	req.MinSimilarity = body.MinSimilarity
	req.Strategy = domain.AggregationStrategy(body.Strategy)
	if body.UseCache != nil {
		req.UseCache = *body.UseCache
	}
	if body.StoreResult != nil {
		req.StoreResult = *body.StoreResult
	}
	if body.TimeoutMS > 0 {
		req.Timeout = time.Duration(body.TimeoutMS) * time.Millisecond
	}

	result, err := rt.verifier.Verify(r.Context(), req)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordVerification(rt.cfg.Service, result)
		rt.metrics.RecordCacheEvent(rt.cfg.Service, result.FromCache)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) submitClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body struct {
		ClaimID   string `json:"claim_id"`
		ClaimText string `json:"claim_text"`
		TenantID  string `json:"tenant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.ClaimText) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "claim_text is required"})
		return
	}
	if body.ClaimID == "" {
		body.ClaimID = uuid.NewString()
	}

	job := domain.ClaimJob{
		ClaimID:   body.ClaimID,
		ClaimText: body.ClaimText,
		TenantID:  body.TenantID,
	}
	if err := rt.queue.PublishClaimSubmitted(r.Context(), job); err != nil {
		rt.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"claim_id": body.ClaimID,
		"status":   "queued",
	})
}

func (rt *Router) getVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/claims/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "claim id is required"})
		return
	}

	result, err := rt.reader.GetByClaimID(r.Context(), id)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) uploadEvidence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		r.FormValue("source_url"),
		r.FormValue("tenant_id"),
		file,
	)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getEvidence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/evidence/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
