package usecase

import (
	"fmt"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

const (
	DefaultMinConfidence     = 0.5
	DefaultHighConfidence    = 0.75
	DefaultConflictThreshold = 0.3
)

// AggregationConfig controls how per-evidence judgments collapse into one
// verdict.
type AggregationConfig struct {
	MinConfidence     float64
	HighConfidence    float64
	ConflictThreshold float64
}

func DefaultAggregationConfig() AggregationConfig {
	return AggregationConfig{
		MinConfidence:     DefaultMinConfidence,
		HighConfidence:    DefaultHighConfidence,
		ConflictThreshold: DefaultConflictThreshold,
	}
}

func (c AggregationConfig) normalize() AggregationConfig {
	out := c
	def := DefaultAggregationConfig()
	if out.MinConfidence <= 0 || out.MinConfidence > 1 {
		out.MinConfidence = def.MinConfidence
	}
	if out.HighConfidence <= 0 || out.HighConfidence > 1 {
		out.HighConfidence = def.HighConfidence
	}
	if out.ConflictThreshold <= 0 || out.ConflictThreshold > 1 {
		out.ConflictThreshold = def.ConflictThreshold
	}
	return out
}

// verdictOrder fixes the iteration order for argmax so equal scores always
// resolve the same way: supported beats refuted beats uncertain.
var verdictOrder = []domain.VerdictLabel{
	domain.VerdictSupported,
	domain.VerdictRefuted,
	domain.VerdictUncertain,
}

// aggregateVerdict collapses the judgments for one claim into a verdict
// using the requested strategy. Zero judgments is not an error: the claim
// is simply uncertain for lack of evidence.
func aggregateVerdict(judgments []domain.NLIJudgment, strategy domain.AggregationStrategy, cfg AggregationConfig) (domain.VerdictResult, error) {
	cfg = cfg.normalize()

	for _, j := range judgments {
		if err := j.Validate(); err != nil {
			return domain.VerdictResult{}, domain.WrapError(domain.ErrAggregation, "aggregate verdict", err)
		}
	}

	if len(judgments) == 0 {
		return insufficientEvidence(strategy), nil
	}

	var verdict domain.VerdictResult
	switch strategy {
	case domain.StrategyWeightedVote:
		verdict = weightedVoteStrategy(judgments, cfg)
	case domain.StrategyMajorityVote:
		verdict = majorityVote(judgments, cfg)
	case domain.StrategyConfidenceThreshold:
		verdict = confidenceThreshold(judgments, cfg)
	case domain.StrategyStrictConsensus:
		verdict = strictConsensus(judgments, cfg)
	default:
		return domain.VerdictResult{}, domain.WrapError(domain.ErrInvalidInput, "aggregate verdict", fmt.Errorf("unknown aggregation strategy %q", strategy))
	}

	verdict.Strategy = strategy
	verdict.Supporting, verdict.Refuting, verdict.Neutral = countLabels(judgments)
	if verdict.Explanation == "" {
		verdict.Explanation = buildExplanation(verdict, excludedCount(judgments, strategy, cfg))
	}
	return verdict, nil
}

func insufficientEvidence(strategy domain.AggregationStrategy) domain.VerdictResult {
	return domain.VerdictResult{
		Label:       domain.VerdictUncertain,
		Confidence:  0,
		Strategy:    strategy,
		Explanation: "no evidence passed retrieval; the claim cannot be assessed",
	}
}

// weightedVoteStrategy is the WEIGHTED_VOTE entry point. When the
// confidence floor excludes every judgment the claim stays uncertain with
// zero confidence; evidence the floor rejected must not vote.
func weightedVoteStrategy(judgments []domain.NLIJudgment, cfg AggregationConfig) domain.VerdictResult {
	if countBelow(judgments, cfg.MinConfidence) == len(judgments) {
		return domain.VerdictResult{
			Label:      domain.VerdictUncertain,
			Confidence: 0,
			Scores:     domain.VerdictScores{Uncertain: 1},
			Explanation: fmt.Sprintf(
				"verdict uncertain with confidence 0.00: all %d judgments fell below the confidence floor and were excluded",
				len(judgments)),
		}
	}
	return weightedVote(judgments, cfg)
}

// weightedVote sums per-label confidence mass and normalizes. Judgments
// below the confidence floor do not vote; when nothing clears the floor
// the full set votes (the CONFIDENCE_THRESHOLD degrade path enters here).
func weightedVote(judgments []domain.NLIJudgment, cfg AggregationConfig) domain.VerdictResult {
	eligible := make([]domain.NLIJudgment, 0, len(judgments))
	for _, j := range judgments {
		if j.Confidence >= cfg.MinConfidence {
			eligible = append(eligible, j)
		}
	}
	if len(eligible) == 0 {
		eligible = judgments
	}

	var scores domain.VerdictScores
	var total float64
	for _, j := range eligible {
		total += j.Confidence
		switch j.Label.Verdict() {
		case domain.VerdictSupported:
			scores.Supported += j.Confidence
		case domain.VerdictRefuted:
			scores.Refuted += j.Confidence
		default:
			scores.Uncertain += j.Confidence
		}
	}
	if total > 0 {
		scores.Supported /= total
		scores.Refuted /= total
		scores.Uncertain /= total
	} else {
		scores.Uncertain = 1
	}

	label := argmaxLabel(scores)
	return domain.VerdictResult{
		Label:      label,
		Confidence: scores.For(label),
		Scores:     scores,
		Conflict:   isConflicted(scores, cfg),
	}
}

// majorityVote counts one vote per judgment. Ties break on summed
// confidence for the tied labels, then on the fixed label order.
func majorityVote(judgments []domain.NLIJudgment, cfg AggregationConfig) domain.VerdictResult {
	votes := map[domain.VerdictLabel]int{}
	confidence := map[domain.VerdictLabel]float64{}
	for _, j := range judgments {
		label := j.Label.Verdict()
		votes[label]++
		confidence[label] += j.Confidence
	}

	winner := domain.VerdictUncertain
	bestVotes := -1
	for _, label := range verdictOrder {
		n := votes[label]
		if n > bestVotes || (n == bestVotes && confidence[label] > confidence[winner]) {
			winner = label
			bestVotes = n
		}
	}

	total := float64(len(judgments))
	scores := domain.VerdictScores{
		Supported: float64(votes[domain.VerdictSupported]) / total,
		Refuted:   float64(votes[domain.VerdictRefuted]) / total,
		Uncertain: float64(votes[domain.VerdictUncertain]) / total,
	}

	return domain.VerdictResult{
		Label:      winner,
		Confidence: float64(bestVotes) / total,
		Scores:     scores,
		Conflict:   isConflicted(scores, cfg),
	}
}

// confidenceThreshold aggregates only the high-confidence judgments when
// any exist; otherwise it degrades to a weighted vote over the full set.
func confidenceThreshold(judgments []domain.NLIJudgment, cfg AggregationConfig) domain.VerdictResult {
	confident := make([]domain.NLIJudgment, 0, len(judgments))
	for _, j := range judgments {
		if j.Confidence >= cfg.HighConfidence {
			confident = append(confident, j)
		}
	}
	if len(confident) == 0 {
		return weightedVote(judgments, cfg)
	}
	return weightedVote(confident, cfg)
}

// strictConsensus demands unanimity. Any disagreement yields an uncertain,
// conflicted verdict with zero confidence.
func strictConsensus(judgments []domain.NLIJudgment, cfg AggregationConfig) domain.VerdictResult {
	first := judgments[0].Label.Verdict()
	var sum float64
	for _, j := range judgments {
		if j.Label.Verdict() != first {
			return domain.VerdictResult{
				Label:       domain.VerdictUncertain,
				Confidence:  0,
				Scores:      domain.VerdictScores{Uncertain: 1},
				Conflict:    true,
				Explanation: "evidence disagrees; strict consensus requires unanimity",
			}
		}
		sum += j.Confidence
	}

	mean := sum / float64(len(judgments))
	var scores domain.VerdictScores
	switch first {
	case domain.VerdictSupported:
		scores.Supported = mean
	case domain.VerdictRefuted:
		scores.Refuted = mean
	default:
		scores.Uncertain = mean
	}
	return domain.VerdictResult{
		Label:      first,
		Confidence: mean,
		Scores:     scores,
		Conflict:   false,
	}
}

func argmaxLabel(scores domain.VerdictScores) domain.VerdictLabel {
	best := verdictOrder[0]
	for _, label := range verdictOrder[1:] {
		if scores.For(label) > scores.For(best) {
			best = label
		}
	}
	return best
}

func isConflicted(scores domain.VerdictScores, cfg AggregationConfig) bool {
	return scores.Supported > cfg.ConflictThreshold && scores.Refuted > cfg.ConflictThreshold
}

func countLabels(judgments []domain.NLIJudgment) (supporting, refuting, neutral int) {
	for _, j := range judgments {
		switch j.Label.Verdict() {
		case domain.VerdictSupported:
			supporting++
		case domain.VerdictRefuted:
			refuting++
		default:
			neutral++
		}
	}
	return supporting, refuting, neutral
}

func countBelow(judgments []domain.NLIJudgment, floor float64) int {
	n := 0
	for _, j := range judgments {
		if j.Confidence < floor {
			n++
		}
	}
	return n
}

// excludedCount reports how many judgments the strategy's confidence
// filter kept out of the vote, for the explanation text only. A filter
// that excluded everything does not count: those paths carry their own
// explanation or degrade to the full set.
func excludedCount(judgments []domain.NLIJudgment, strategy domain.AggregationStrategy, cfg AggregationConfig) int {
	switch strategy {
	case domain.StrategyWeightedVote:
		if n := countBelow(judgments, cfg.MinConfidence); n < len(judgments) {
			return n
		}
	case domain.StrategyConfidenceThreshold:
		if n := countBelow(judgments, cfg.HighConfidence); n < len(judgments) {
			return n
		}
	}
	return 0
}

func buildExplanation(v domain.VerdictResult, excluded int) string {
	text := fmt.Sprintf("verdict %s with confidence %.2f: %d of %d passages support the claim, %d refute it, %d are neutral",
		v.Label, v.Confidence, v.Supporting, v.EvidenceCount(), v.Refuting, v.Neutral)
	if excluded > 0 {
		text += fmt.Sprintf("; %d low-confidence judgments were excluded", excluded)
	}
	if v.Conflict {
		text += "; the evidence is conflicting"
	}
	return text
}
