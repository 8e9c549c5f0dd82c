package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

func buildNLIPrompt(claimText string, evidence []domain.EvidenceCandidate) string {
	var premises strings.Builder
	for idx, cand := range evidence {
		premises.WriteString(fmt.Sprintf("[%d]\n%s\n\n", idx+1, truncate(cand.Content, 2000)))
	}

	return fmt.Sprintf(`You are a natural language inference judge.
For each numbered premise decide its relation to the hypothesis.
Return a strict JSON object: {"results": [...]} with one entry per premise, in order.
Each entry has keys:
label ("entailment", "contradiction" or "neutral"),
entailment, contradiction, neutral (numbers from 0 to 1 summing to 1).
No markdown, no extra keys.

Hypothesis:
%s

Premises:
%s`, claimText, premises.String())
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
