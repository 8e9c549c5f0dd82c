package domain

import "time"

type VerdictLabel string

const (
	VerdictSupported VerdictLabel = "supported"
	VerdictRefuted   VerdictLabel = "refuted"
	VerdictUncertain VerdictLabel = "uncertain"
)

type AggregationStrategy string

const (
	StrategyWeightedVote        AggregationStrategy = "weighted_vote"
	StrategyMajorityVote        AggregationStrategy = "majority_vote"
	StrategyConfidenceThreshold AggregationStrategy = "confidence_threshold"
	StrategyStrictConsensus     AggregationStrategy = "strict_consensus"
)

func (s AggregationStrategy) Valid() bool {
	switch s {
	case StrategyWeightedVote, StrategyMajorityVote, StrategyConfidenceThreshold, StrategyStrictConsensus:
		return true
	default:
		return false
	}
}

// VerdictScores are the per-label aggregate scores a verdict was derived
// from. The winning label's score is always the verdict confidence.
type VerdictScores struct {
	Supported float64 `json:"supported"`
	Refuted   float64 `json:"refuted"`
	Uncertain float64 `json:"uncertain"`
}

func (s VerdictScores) For(label VerdictLabel) float64 {
	switch label {
	case VerdictSupported:
		return s.Supported
	case VerdictRefuted:
		return s.Refuted
	default:
		return s.Uncertain
	}
}

// VerdictResult is the aggregated outcome of all NLI judgments for a claim.
// Immutable once produced; Explanation is advisory text and must not be
// parsed for logic.
type VerdictResult struct {
	Label       VerdictLabel        `json:"label"`
	Confidence  float64             `json:"confidence"`
	Scores      VerdictScores       `json:"scores"`
	Supporting  int                 `json:"supporting"`
	Refuting    int                 `json:"refuting"`
	Neutral     int                 `json:"neutral"`
	Conflict    bool                `json:"conflict"`
	Explanation string              `json:"explanation"`
	Strategy    AggregationStrategy `json:"strategy"`
}

func (v VerdictResult) EvidenceCount() int {
	return v.Supporting + v.Refuting + v.Neutral
}

// ScoredEvidence pairs a retrieved candidate with its NLI judgment.
type ScoredEvidence struct {
	Candidate EvidenceCandidate `json:"candidate"`
	Judgment  NLIJudgment       `json:"judgment"`
}

// PipelineResult is the full output of one verification run. The caller
// owns it after return; the orchestrator keeps no reference.
type PipelineResult struct {
	ClaimID         string           `json:"claim_id"`
	ClaimText       string           `json:"claim_text"`
	TenantID        string           `json:"tenant_id"`
	Verdict         VerdictResult    `json:"verdict"`
	Evidence        []ScoredEvidence `json:"evidence"`
	Duration        time.Duration    `json:"duration"`
	RetrievalMethod string           `json:"retrieval_method"`
	RecordID        string           `json:"record_id,omitempty"`
	FromCache       bool             `json:"from_cache,omitempty"`
}
