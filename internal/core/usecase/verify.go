package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
	"github.com/kirillkom/claim-verifier/internal/core/ports"
)

// RetrievalMethodHybridRRF names the only retrieval mode the pipeline runs:
// vector and keyword search fused by weighted reciprocal ranks.
const RetrievalMethodHybridRRF = "hybrid_rrf"

// VerifyConfig carries the tunables of the verification pipeline.
type VerifyConfig struct {
	Fusion      FusionConfig
	Aggregation AggregationConfig

	DefaultStrategy domain.AggregationStrategy
	DefaultTimeout  time.Duration

	// DropFailedNLIPairs keeps a batch alive when single pairs fail to
	// score; when false any failed pair fails the whole pipeline.
	DropFailedNLIPairs bool

	// SingleFlight collapses concurrent verifications of the same
	// normalized claim into one pipeline run.
	SingleFlight bool
}

func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{
		Fusion:             DefaultFusionConfig(),
		Aggregation:        DefaultAggregationConfig(),
		DefaultStrategy:    domain.StrategyWeightedVote,
		DefaultTimeout:     60 * time.Second,
		DropFailedNLIPairs: true,
	}
}

// VerifyClaimUseCase drives one claim through the full pipeline:
// cache check, query embedding, hybrid retrieval, NLI scoring, verdict
// aggregation, persistence and cache update.
type VerifyClaimUseCase struct {
	embedder     ports.Embedder
	vectorIndex  ports.VectorIndex
	keywordIndex ports.KeywordIndex
	nli          ports.NLIVerifier
	store        ports.VerificationStore
	cache        ports.VerificationCache

	embedRetry    ports.RetryExecutor
	retrieveRetry ports.RetryExecutor
	nliRetry      ports.RetryExecutor

	cfg    VerifyConfig
	logger *slog.Logger
	group  singleflight.Group
}

type VerifyDeps struct {
	Embedder     ports.Embedder
	VectorIndex  ports.VectorIndex
	KeywordIndex ports.KeywordIndex
	NLI          ports.NLIVerifier
	Store        ports.VerificationStore
	Cache        ports.VerificationCache

	EmbedRetry    ports.RetryExecutor
	RetrieveRetry ports.RetryExecutor
	NLIRetry      ports.RetryExecutor
}

func NewVerifyClaimUseCase(deps VerifyDeps, cfg VerifyConfig, logger *slog.Logger) *VerifyClaimUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = domain.StrategyWeightedVote
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	cfg.Fusion = cfg.Fusion.normalize()
	cfg.Aggregation = cfg.Aggregation.normalize()

	return &VerifyClaimUseCase{
		embedder:      deps.Embedder,
		vectorIndex:   deps.VectorIndex,
		keywordIndex:  deps.KeywordIndex,
		nli:           deps.NLI,
		store:         deps.Store,
		cache:         deps.Cache,
		embedRetry:    deps.EmbedRetry,
		retrieveRetry: deps.RetrieveRetry,
		nliRetry:      deps.NLIRetry,
		cfg:           cfg,
		logger:        logger,
	}
}

func (uc *VerifyClaimUseCase) Verify(ctx context.Context, req domain.VerificationRequest) (*domain.PipelineResult, error) {
	req = req.WithDefaults(uc.cfg.DefaultStrategy, uc.cfg.DefaultTimeout)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	if uc.cfg.SingleFlight && req.UseCache {
		shared, err, _ := uc.group.Do(cacheKey(req), func() (any, error) {
			return uc.run(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		result := *(shared.(*domain.PipelineResult))
		result.ClaimID = req.ClaimID
		return &result, nil
	}

	return uc.run(ctx, req)
}

// GetByClaimID returns the latest persisted verification for a claim.
func (uc *VerifyClaimUseCase) GetByClaimID(ctx context.Context, claimID string) (*domain.PipelineResult, error) {
	if uc.store == nil {
		return nil, domain.ErrVerificationNotFound
	}
	return uc.store.GetByClaimID(ctx, claimID)
}

// cacheKey scopes the claim fingerprint to a tenant. Retrieval is
// tenant-filtered, so a shared key would serve one tenant's evidence and
// verdict to another.
func cacheKey(req domain.VerificationRequest) string {
	return req.TenantID + ":" + domain.ClaimFingerprint(req.ClaimText)
}

func (uc *VerifyClaimUseCase) run(ctx context.Context, req domain.VerificationRequest) (*domain.PipelineResult, error) {
	start := time.Now()
	key := cacheKey(req)

	if req.UseCache && uc.cache != nil {
		if cached, ok := uc.cache.Get(key); ok {
			result := *cached
			result.ClaimID = req.ClaimID
			result.FromCache = true
			result.Duration = time.Since(start)
			uc.logger.Info("verification_cache_hit", "claim_id", req.ClaimID, "cache_key", key)
			return &result, nil
		}
	}

	queryVector, err := uc.embedQuery(ctx, req.ClaimText)
	if err != nil {
		return nil, failStage(domain.StageEmbedding, err)
	}

	fused, err := uc.retrieve(ctx, req, queryVector)
	if err != nil {
		return nil, failStage(domain.StageRetrieval, err)
	}

	judgments, evidence, err := uc.scoreEvidence(ctx, req, fused)
	if err != nil {
		return nil, failStage(domain.StageNLIScoring, err)
	}

	verdict, err := aggregateVerdict(judgments, req.Strategy, uc.cfg.Aggregation)
	if err != nil {
		return nil, failStage(domain.StageAggregation, err)
	}

	result := &domain.PipelineResult{
		ClaimID:         req.ClaimID,
		ClaimText:       req.ClaimText,
		TenantID:        req.TenantID,
		Verdict:         verdict,
		Evidence:        evidence,
		Duration:        time.Since(start),
		RetrievalMethod: RetrievalMethodHybridRRF,
	}

	// Persistence is best-effort: a storage outage must not discard a
	// verdict the pipeline already produced.
	if req.StoreResult && uc.store != nil {
		recordID, storeErr := uc.store.Store(ctx, result)
		if storeErr != nil {
			uc.logger.Warn("verification_store_failed", "claim_id", req.ClaimID, "error", storeErr)
		} else {
			result.RecordID = recordID
		}
	}

	if req.UseCache && uc.cache != nil {
		uc.cache.Put(key, result)
	}

	uc.logger.Info("verification_done",
		"claim_id", req.ClaimID,
		"verdict", verdict.Label,
		"confidence", verdict.Confidence,
		"evidence_count", len(evidence),
		"conflict", verdict.Conflict,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (uc *VerifyClaimUseCase) embedQuery(ctx context.Context, claimText string) ([]float32, error) {
	var vector []float32
	err := uc.embedRetry.Execute(ctx, "embed_query", func(ctx context.Context) error {
		var embedErr error
		vector, embedErr = uc.embedder.EmbedQuery(ctx, claimText)
		return embedErr
	})
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector")
	}
	return vector, nil
}

type searchOutcome struct {
	items []domain.EvidenceCandidate
	err   error
}

// retrieve fans out to both indexes concurrently, each leg under its own
// retry budget, then fuses the ranked lists.
func (uc *VerifyClaimUseCase) retrieve(ctx context.Context, req domain.VerificationRequest, queryVector []float32) ([]domain.EvidenceCandidate, error) {
	limit := uc.cfg.Fusion.CandidateLimit
	if limit < req.TopKEvidence {
		limit = req.TopKEvidence
	}

	vectorCh := make(chan searchOutcome, 1)
	keywordCh := make(chan searchOutcome, 1)

	go func() {
		var items []domain.EvidenceCandidate
		err := uc.retrieveRetry.Execute(ctx, "vector_search", func(ctx context.Context) error {
			var searchErr error
			items, searchErr = uc.vectorIndex.Search(ctx, queryVector, limit, req.MinSimilarity, req.TenantID)
			return searchErr
		})
		vectorCh <- searchOutcome{items: items, err: err}
	}()

	go func() {
		var items []domain.EvidenceCandidate
		err := uc.retrieveRetry.Execute(ctx, "keyword_search", func(ctx context.Context) error {
			var searchErr error
			items, searchErr = uc.keywordIndex.Search(ctx, req.ClaimText, limit, req.TenantID)
			return searchErr
		})
		keywordCh <- searchOutcome{items: items, err: err}
	}()

	vector := <-vectorCh
	keyword := <-keywordCh
	if vector.err != nil {
		return nil, fmt.Errorf("vector search: %w", vector.err)
	}
	if keyword.err != nil {
		return nil, fmt.Errorf("keyword search: %w", keyword.err)
	}

	return fuseEvidenceRRF(vector.items, keyword.items, uc.cfg.Fusion, req.TopKEvidence)
}

func (uc *VerifyClaimUseCase) scoreEvidence(ctx context.Context, req domain.VerificationRequest, candidates []domain.EvidenceCandidate) ([]domain.NLIJudgment, []domain.ScoredEvidence, error) {
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	var outcomes []domain.NLIOutcome
	err := uc.nliRetry.Execute(ctx, "nli_batch", func(ctx context.Context) error {
		var batchErr error
		outcomes, batchErr = uc.nli.VerifyBatch(ctx, req.ClaimText, candidates)
		return batchErr
	})
	if err != nil {
		return nil, nil, err
	}
	if len(outcomes) != len(candidates) {
		return nil, nil, fmt.Errorf("nli batch returned %d outcomes for %d candidates", len(outcomes), len(candidates))
	}

	judgments := make([]domain.NLIJudgment, 0, len(candidates))
	evidence := make([]domain.ScoredEvidence, 0, len(candidates))
	dropped := 0
	for i, outcome := range outcomes {
		if outcome.Err != nil {
			if !uc.cfg.DropFailedNLIPairs {
				return nil, nil, fmt.Errorf("scoring evidence %s: %w", candidates[i].ID, outcome.Err)
			}
			dropped++
			continue
		}
		judgment := outcome.Judgment
		judgment.EvidenceID = candidates[i].ID
		judgments = append(judgments, judgment)
		evidence = append(evidence, domain.ScoredEvidence{Candidate: candidates[i], Judgment: judgment})
	}
	if dropped > 0 {
		uc.logger.Warn("nli_pairs_dropped", "claim_id", req.ClaimID, "dropped", dropped, "total", len(candidates))
	}
	return judgments, evidence, nil
}

// failStage tags a pipeline error with the stage it originated in.
// Deadline expiry is mapped to the semantic deadline error so callers can
// distinguish timeouts from collaborator failures.
func failStage(stage domain.PipelineStage, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrDeadline) {
		err = domain.WrapError(domain.ErrDeadline, string(stage), err)
	}
	return &domain.StageError{Stage: stage, Err: err}
}
