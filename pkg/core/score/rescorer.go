// Package score implements LLM rescoring, weighted score mixing, and the
// type-dependent accept/review/reject decision, using a batched prompt
// that scores every candidate in a single structured-response round trip.
package score

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cvegs-matcher/pkg/core/prompt"
	"cvegs-matcher/pkg/core/utils"
	"cvegs-matcher/pkg/models"
)

// Chatter is the narrow LLM contract the rescorer needs.
type Chatter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Rescorer asks the model to judge how well each candidate matches the
// original description, batched into one prompt indexed by position.
type Rescorer struct {
	chat Chatter
}

func NewRescorer(chat Chatter) *Rescorer {
	return &Rescorer{chat: chat}
}

type rescoreItem struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rescore fills LLMScore on every candidate. On any failure (transport,
// malformed JSON) every candidate's LLMScore is 0 rather than the error
// being propagated; a candidate the response does not score (missing or
// out-of-range index) also keeps 0.
func (r *Rescorer) Rescore(ctx context.Context, description string, candidates []models.Candidate) []models.Candidate {
	if r.chat == nil || len(candidates) == 0 {
		return candidates
	}
	for i := range candidates {
		candidates[i].LLMScore = 0
	}

	sys, err := prompt.GetScorePrompt("rescore")
	if err != nil {
		sys = defaultRescoreSystemPrompt
	}

	raw, err := r.chat.Complete(ctx, sys, buildRescorePrompt(description, candidates))
	if err != nil {
		return candidates
	}

	repaired, err := utils.RepairJSON(raw)
	if err != nil {
		return candidates
	}

	var items []rescoreItem
	if err := json.Unmarshal([]byte(repaired), &items); err != nil {
		return candidates
	}

	for _, item := range items {
		if item.Index < 0 || item.Index >= len(candidates) {
			continue
		}
		score := item.Score
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		candidates[item.Index].LLMScore = score
	}

	return candidates
}

func buildRescorePrompt(description string, candidates []models.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original description: %q\n\nCandidates:\n", description)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d: %s %s %s (%s)\n", i, c.Marca, c.Submarca, c.Descveh, c.Tipveh)
	}
	b.WriteString("\nRespond with a strict JSON array: [{\"index\": 0, \"score\": 0.0-1.0}, ...], one entry per candidate, scoring how well each matches the original description.")
	return b.String()
}

const defaultRescoreSystemPrompt = `You judge how well each candidate vehicle catalog entry matches a free-text description. Respond only with the requested JSON array, no prose.`
