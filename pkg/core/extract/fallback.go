package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cvegs-matcher/pkg/core/catalog"
	"cvegs-matcher/pkg/core/fuzzy"
	"cvegs-matcher/pkg/core/prompt"
	"cvegs-matcher/pkg/core/utils"
	"cvegs-matcher/pkg/models"
)

// Chatter is the narrow LLM contract the fallback needs: send a rendered
// prompt, get raw text back. Concrete implementations live in pkg/core/llm.
type Chatter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Fallback implements the LLM-assisted re-extraction: when the deterministic extractor produces a weak
// aggregate result, ask the model to choose among the catalog's own
// hierarchical frequency table rather than inventing values, then recover
// its answer against the candidate sets with fuzzy matching.
type Fallback struct {
	chat Chatter
}

func NewFallback(chat Chatter) *Fallback {
	return &Fallback{chat: chat}
}

type fallbackResponse struct {
	Marca    string `json:"marca"`
	Submarca string `json:"submarca"`
	Tipveh   string `json:"tipveh"`
}

// Reextract asks the model to re-derive marca, submarca and tipveh, recovers its
// answer with fuzzy matching against the real candidate sets, and returns
// a corrected ExtractedFields plus a non-empty reason string on success.
// On any failure it returns the original tentative result unchanged and an
// empty reason, degrading gracefully rather than propagating the error.
func (f *Fallback) Reextract(ctx context.Context, idx *catalog.CandidateIndex, description string, tentative models.ExtractedFields) (models.ExtractedFields, string) {
	sys, err := prompt.GetExtractionPrompt("fallback")
	if err != nil {
		sys = defaultFallbackSystemPrompt
	}

	user := buildFallbackUserPrompt(idx, description, tentative)

	raw, err := f.chat.Complete(ctx, sys, user)
	if err != nil {
		return tentative, ""
	}

	repaired, err := utils.RepairJSON(raw)
	if err != nil {
		return tentative, ""
	}

	var resp fallbackResponse
	if err := json.Unmarshal([]byte(repaired), &resp); err != nil {
		return tentative, ""
	}

	corrected := tentative
	corrected.Marca = recoverField(resp.Marca, catalog.SortedCandidates(idx.MarcaSet), tentative.Marca)
	corrected.Submarca = recoverField(resp.Submarca, submarcaCandidatesFor(idx, corrected.Marca), tentative.Submarca)
	corrected.Tipveh = recoverField(resp.Tipveh, catalog.SortedCandidates(idx.TipvehSet), tentative.Tipveh)

	return corrected, "llm_fallback"
}

func submarcaCandidatesFor(idx *catalog.CandidateIndex, marca models.FieldConfidence) []string {
	if marca.Confidence == 1.0 {
		return catalog.SortedCandidates(idx.SubmarcaByMarca[marca.Value])
	}
	return catalog.SortedCandidates(idx.SubmarcaSet)
}

// recoverField accepts the model's free-text answer only if it fuzzy-matches
// a real candidate at ratio >= 0.9; otherwise it keeps the original field
// rather than trusting an unconstrained model string.
func recoverField(raw string, candidates []string, original models.FieldConfidence) models.FieldConfidence {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return original
	}

	bestScore := -1.0
	bestCand := ""
	for _, cand := range candidates {
		score := fuzzy.Ratio(raw, cand)
		if score > bestScore {
			bestScore = score
			bestCand = cand
		}
	}

	if bestScore < 0.9 {
		return original
	}

	conf := original.Confidence
	if conf < 0.7 {
		conf = 0.7
	}
	if conf > 0.9 {
		conf = 0.9
	}

	return models.FieldConfidence{
		Value:      bestCand,
		Present:    true,
		Confidence: conf,
		Method:     models.MethodLLMCorrected,
	}
}

func buildFallbackUserPrompt(idx *catalog.CandidateIndex, description string, tentative models.ExtractedFields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Description: %q\n\n", description)
	fmt.Fprintf(&b, "Tentative extraction: marca=%q (%.2f), submarca=%q (%.2f), tipveh=%q (%.2f)\n\n",
		tentative.Marca.Value, tentative.Marca.Confidence,
		tentative.Submarca.Value, tentative.Submarca.Confidence,
		tentative.Tipveh.Value, tentative.Tipveh.Confidence)

	b.WriteString("Known marcas ranked by frequency:\n")
	for _, marca := range topMarcasByFrequency(idx, 15) {
		entry := idx.Freq[marca]
		fmt.Fprintf(&b, "- %s (count=%d, submarcas=%d)\n", marca, entry.Total, len(entry.Submarcas))
	}

	b.WriteString("\nRespond with strict JSON: {\"marca\": \"...\", \"submarca\": \"...\", \"tipveh\": \"...\"}\n")
	b.WriteString("Use only values consistent with the marcas listed above. Leave a field empty string if unknown.\n")
	return b.String()
}

func topMarcasByFrequency(idx *catalog.CandidateIndex, n int) []string {
	type pair struct {
		marca string
		count int
	}
	pairs := make([]pair, 0, len(idx.Freq))
	for marca, entry := range idx.Freq {
		pairs = append(pairs, pair{marca, entry.Total})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].marca < pairs[j].marca
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.marca
	}
	return out
}

const defaultFallbackSystemPrompt = `You are classifying a Mexican auto-insurance vehicle description into a catalog's marca/submarca/tipveh taxonomy. Only answer with values that plausibly belong to the catalog; never invent a brand that wasn't suggested.`
