package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

// Verifier scores claim/evidence pairs with a generative model prompted to
// emit one NLI result per premise.
type Verifier struct {
	client *Client
}

func NewVerifier(client *Client) *Verifier {
	return &Verifier{client: client}
}

type nliSlot struct {
	Label         string  `json:"label"`
	Entailment    float64 `json:"entailment"`
	Contradiction float64 `json:"contradiction"`
	Neutral       float64 `json:"neutral"`
}

func (v *Verifier) VerifyBatch(ctx context.Context, claimText string, evidence []domain.EvidenceCandidate) ([]domain.NLIOutcome, error) {
	if len(evidence) == 0 {
		return nil, nil
	}

	raw, err := v.client.generateJSON(ctx, buildNLIPrompt(claimText, evidence))
	if err != nil {
		return nil, wrapTemporaryIfNeeded("nli", err)
	}

	var response struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &response); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "nli", fmt.Errorf("parse nli response: %w", err))
	}
	if len(response.Results) != len(evidence) {
		return nil, domain.WrapError(domain.ErrTemporary, "nli",
			fmt.Errorf("model returned %d results for %d premises", len(response.Results), len(evidence)))
	}

	outcomes := make([]domain.NLIOutcome, len(evidence))
	for i, rawSlot := range response.Results {
		judgment, slotErr := parseSlot(rawSlot, evidence[i].ID)
		if slotErr != nil {
			outcomes[i] = domain.NLIOutcome{Err: slotErr}
			continue
		}
		outcomes[i] = domain.NLIOutcome{Judgment: judgment}
	}
	return outcomes, nil
}

func parseSlot(raw json.RawMessage, evidenceID string) (domain.NLIJudgment, error) {
	var slot nliSlot
	if err := json.Unmarshal(raw, &slot); err != nil {
		return domain.NLIJudgment{}, fmt.Errorf("parse nli slot: %w", err)
	}

	label := domain.NLILabel(strings.ToLower(strings.TrimSpace(slot.Label)))
	switch label {
	case domain.LabelEntailment, domain.LabelContradiction, domain.LabelNeutral:
	default:
		label = argmaxSlotLabel(slot)
	}

	judgment := domain.NLIJudgment{
		EvidenceID:    evidenceID,
		Label:         label,
		Confidence:    slotScore(slot, label),
		Entailment:    slot.Entailment,
		Contradiction: slot.Contradiction,
		Neutral:       slot.Neutral,
	}
	if err := judgment.Validate(); err != nil {
		return domain.NLIJudgment{}, err
	}
	return judgment, nil
}

func argmaxSlotLabel(slot nliSlot) domain.NLILabel {
	label := domain.LabelEntailment
	best := slot.Entailment
	if slot.Contradiction > best {
		label = domain.LabelContradiction
		best = slot.Contradiction
	}
	if slot.Neutral > best {
		label = domain.LabelNeutral
	}
	return label
}

func slotScore(slot nliSlot, label domain.NLILabel) float64 {
	switch label {
	case domain.LabelEntailment:
		return slot.Entailment
	case domain.LabelContradiction:
		return slot.Contradiction
	default:
		return slot.Neutral
	}
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
