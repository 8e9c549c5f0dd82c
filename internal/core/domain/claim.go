package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxClaimLength = 8192

	DefaultTopKEvidence  = 10
	DefaultMinSimilarity = 0.5
	DefaultTenantID      = "default"
	DefaultVerifyTimeout = 60 * time.Second
)

// Claim is a natural-language statement submitted for verification.
type Claim struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	TenantID string `json:"tenant_id"`
}

// ClaimJob is the queue payload for asynchronous verification.
type ClaimJob struct {
	ClaimID   string `json:"claim_id"`
	ClaimText string `json:"claim_text"`
	TenantID  string `json:"tenant_id"`
}

// VerificationRequest carries one claim plus per-call pipeline knobs.
// Use NewVerificationRequest to get the documented defaults for the
// boolean switches; WithDefaults fills the remaining zero values.
type VerificationRequest struct {
	ClaimID       string
	ClaimText     string
	TenantID      string
	TopKEvidence  int
	MinSimilarity float64
	Strategy      AggregationStrategy
	UseCache      bool
	StoreResult   bool
	Timeout       time.Duration
}

func NewVerificationRequest(claimID, claimText string) VerificationRequest {
	return VerificationRequest{
		ClaimID:     claimID,
		ClaimText:   claimText,
		UseCache:    true,
		StoreResult: true,
	}
}

func (r VerificationRequest) WithDefaults(strategy AggregationStrategy, timeout time.Duration) VerificationRequest {
	out := r
	if out.TenantID == "" {
		out.TenantID = DefaultTenantID
	}
	if out.TopKEvidence == 0 {
		out.TopKEvidence = DefaultTopKEvidence
	}
	if out.MinSimilarity == 0 {
		out.MinSimilarity = DefaultMinSimilarity
	}
	if out.Strategy == "" {
		if strategy == "" {
			strategy = StrategyWeightedVote
		}
		out.Strategy = strategy
	}
	if out.Timeout <= 0 {
		if timeout <= 0 {
			timeout = DefaultVerifyTimeout
		}
		out.Timeout = timeout
	}
	return out
}

func (r VerificationRequest) Validate() error {
	text := strings.TrimSpace(r.ClaimText)
	if text == "" {
		return WrapError(ErrInvalidInput, "validate request", fmt.Errorf("claim text is empty"))
	}
	if utf8.RuneCountInString(text) > maxClaimLength {
		return WrapError(ErrInvalidInput, "validate request", fmt.Errorf("claim text exceeds %d characters", maxClaimLength))
	}
	if r.TopKEvidence <= 0 {
		return WrapError(ErrInvalidInput, "validate request", fmt.Errorf("top_k_evidence must be positive, got %d", r.TopKEvidence))
	}
	if r.MinSimilarity < 0 || r.MinSimilarity > 1 {
		return WrapError(ErrInvalidInput, "validate request", fmt.Errorf("min_similarity must be within [0,1], got %v", r.MinSimilarity))
	}
	if !r.Strategy.Valid() {
		return WrapError(ErrInvalidInput, "validate request", fmt.Errorf("unknown aggregation strategy %q", r.Strategy))
	}
	return nil
}

// NormalizeClaim lowercases the claim, collapses whitespace runs and drops
// trailing sentence punctuation so trivially reworded claims share a cache
// fingerprint.
func NormalizeClaim(text string) string {
	joined := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return strings.TrimRight(joined, ".!?")
}

// ClaimFingerprint is the cache key for a claim text.
func ClaimFingerprint(text string) string {
	sum := sha256.Sum256([]byte(NormalizeClaim(text)))
	return hex.EncodeToString(sum[:])
}
