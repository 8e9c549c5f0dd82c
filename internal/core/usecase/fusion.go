package usecase

import (
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

const (
	DefaultFusionK         = 60
	DefaultVectorWeight    = 0.7
	DefaultKeywordWeight   = 0.3
	DefaultCandidateLimit  = 30
	fusionWeightSumEpsilon = 0.01
)

// FusionConfig controls reciprocal rank fusion of the two retrieval legs.
type FusionConfig struct {
	K              int
	VectorWeight   float64
	KeywordWeight  float64
	CandidateLimit int
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		K:              DefaultFusionK,
		VectorWeight:   DefaultVectorWeight,
		KeywordWeight:  DefaultKeywordWeight,
		CandidateLimit: DefaultCandidateLimit,
	}
}

func (c FusionConfig) normalize() FusionConfig {
	out := c
	def := DefaultFusionConfig()
	if out.K <= 0 {
		out.K = def.K
	}
	if out.VectorWeight <= 0 && out.KeywordWeight <= 0 {
		out.VectorWeight = def.VectorWeight
		out.KeywordWeight = def.KeywordWeight
	}
	if out.CandidateLimit <= 0 {
		out.CandidateLimit = def.CandidateLimit
	}
	return out
}

func (c FusionConfig) Validate() error {
	if c.K <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate fusion config", fmt.Errorf("rank constant must be positive, got %d", c.K))
	}
	if c.VectorWeight < 0 || c.KeywordWeight < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate fusion config", fmt.Errorf("weights must be non-negative"))
	}
	if sum := c.VectorWeight + c.KeywordWeight; math.Abs(sum-1.0) > fusionWeightSumEpsilon {
		return domain.WrapError(domain.ErrInvalidInput, "validate fusion config", fmt.Errorf("weights must sum to 1.0, got %v", sum))
	}
	return nil
}

type fusedCandidate struct {
	candidate domain.EvidenceCandidate
	score     float64
	bestRank  int
}

// fuseEvidenceRRF merges the vector and keyword result lists with weighted
// reciprocal rank fusion. Both inputs are expected best match first; ranks
// are 1-based. A candidate present in only one list contributes only that
// list's term. Ties break on the better individual rank, then on ID.
func fuseEvidenceRRF(vectorRanked, keywordRanked []domain.EvidenceCandidate, cfg FusionConfig, topK int) ([]domain.EvidenceCandidate, error) {
	if topK <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fuse evidence", fmt.Errorf("top_k must be positive, got %d", topK))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(vectorRanked) == 0 && len(keywordRanked) == 0 {
		return []domain.EvidenceCandidate{}, nil
	}

	fused := make(map[string]*fusedCandidate, len(vectorRanked)+len(keywordRanked))

	for i, cand := range vectorRanked {
		rank := i + 1
		entry, ok := fused[cand.ID]
		if !ok {
			entry = &fusedCandidate{candidate: cand, bestRank: rank}
			fused[cand.ID] = entry
		}
		entry.candidate.VectorRank = rank
		entry.candidate.Similarity = cand.Similarity
		if cand.Content != "" {
			entry.candidate.Content = cand.Content
		}
		if cand.SourceURL != "" {
			entry.candidate.SourceURL = cand.SourceURL
		}
		entry.score += cfg.VectorWeight / float64(cfg.K+rank)
		if rank < entry.bestRank {
			entry.bestRank = rank
		}
	}

	for i, cand := range keywordRanked {
		rank := i + 1
		entry, ok := fused[cand.ID]
		if !ok {
			entry = &fusedCandidate{candidate: cand, bestRank: rank}
			fused[cand.ID] = entry
		}
		entry.candidate.KeywordRank = rank
		entry.candidate.Relevance = cand.Relevance
		if entry.candidate.Content == "" {
			entry.candidate.Content = cand.Content
		}
		if entry.candidate.SourceURL == "" {
			entry.candidate.SourceURL = cand.SourceURL
		}
		entry.score += cfg.KeywordWeight / float64(cfg.K+rank)
		if rank < entry.bestRank {
			entry.bestRank = rank
		}
	}

	merged := make([]*fusedCandidate, 0, len(fused))
	for _, entry := range fused {
		entry.candidate.RRFScore = entry.score
		merged = append(merged, entry)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		if merged[i].bestRank != merged[j].bestRank {
			return merged[i].bestRank < merged[j].bestRank
		}
		return merged[i].candidate.ID < merged[j].candidate.ID
	})

	if topK < len(merged) {
		merged = merged[:topK]
	}

	out := make([]domain.EvidenceCandidate, 0, len(merged))
	for _, entry := range merged {
		out = append(out, entry.candidate)
	}
	return out, nil
}
