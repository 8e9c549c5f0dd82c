package domain

import (
	"fmt"
	"math"
)

type NLILabel string

const (
	LabelEntailment    NLILabel = "entailment"
	LabelContradiction NLILabel = "contradiction"
	LabelNeutral       NLILabel = "neutral"
)

func (l NLILabel) Verdict() VerdictLabel {
	switch l {
	case LabelEntailment:
		return VerdictSupported
	case LabelContradiction:
		return VerdictRefuted
	default:
		return VerdictUncertain
	}
}

// scoreSumEpsilon bounds how far an NLI score triple may drift from 1.0
// before it is rejected as a collaborator contract violation.
const scoreSumEpsilon = 0.01

// NLIJudgment is the verdict of the NLI collaborator for one
// (evidence content, claim text) pair. The score triple is untrusted
// external input and must pass Validate before aggregation.
type NLIJudgment struct {
	EvidenceID    string   `json:"evidence_id"`
	Label         NLILabel `json:"label"`
	Confidence    float64  `json:"confidence"`
	Entailment    float64  `json:"entailment"`
	Contradiction float64  `json:"contradiction"`
	Neutral       float64  `json:"neutral"`
}

func (j NLIJudgment) Validate() error {
	if j.Confidence < 0 || j.Confidence > 1 {
		return fmt.Errorf("judgment for evidence %s: confidence %v outside [0,1]", j.EvidenceID, j.Confidence)
	}
	for _, score := range []float64{j.Entailment, j.Contradiction, j.Neutral} {
		if math.IsNaN(score) || score < 0 || score > 1 {
			return fmt.Errorf("judgment for evidence %s: score %v outside [0,1]", j.EvidenceID, score)
		}
	}
	sum := j.Entailment + j.Contradiction + j.Neutral
	if math.Abs(sum-1.0) > scoreSumEpsilon {
		return fmt.Errorf("judgment for evidence %s: score triple sums to %v, want 1.0", j.EvidenceID, sum)
	}
	switch j.Label {
	case LabelEntailment, LabelContradiction, LabelNeutral:
		return nil
	default:
		return fmt.Errorf("judgment for evidence %s: unknown label %q", j.EvidenceID, j.Label)
	}
}

// NLIOutcome is one slot of a batch NLI call: either a judgment or a
// per-pair failure inside an otherwise successful batch.
type NLIOutcome struct {
	Judgment NLIJudgment
	Err      error
}
