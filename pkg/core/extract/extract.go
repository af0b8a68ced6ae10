// Package extract implements the field extractor, the principal algorithm
// of the matching pipeline: catalog-driven extraction of marca, submarca,
// and tipveh from a normalized description, with hierarchical constraint
// propagation and an LLM fallback (extract/fallback.go) for poor aggregate
// quality. Deterministic parsing always runs first; the model is consulted
// only when that pass is weak.
package extract

import (
	"context"
	"strings"

	"cvegs-matcher/pkg/core/catalog"
	"cvegs-matcher/pkg/core/fuzzy"
	"cvegs-matcher/pkg/models"
)

// Extractor runs the field-match procedure for marca/submarca/tipveh and
// triggers the LLM fallback when aggregate quality is poor.
type Extractor struct {
	cache    *catalog.Cache
	fallback *Fallback // nil disables the LLM fallback (degrades to returning the tentative extraction unchanged)
}

// New builds an Extractor. fallback may be nil if no LLM is configured;
// Extract then always returns the deterministic result.
func New(cache *catalog.Cache, fallback *Fallback) *Extractor {
	return &Extractor{cache: cache, fallback: fallback}
}

// Extract resolves marca, submarca, and tipveh for a normalized
// description within the given model year's candidate set.
func (e *Extractor) Extract(ctx context.Context, year int, description string) models.ExtractedFields {
	idx := e.cache.IndexForYear(year)
	if idx.Empty() {
		return models.ExtractedFields{
			Marca:    models.Empty(),
			Submarca: models.Empty(),
			Tipveh:   models.Empty(),
			Descveh:  description,
		}
	}

	working := description

	marca := matchField(working, catalog.SortedCandidates(idx.MarcaSet))
	if marca.Confidence >= 0.9 {
		working = removeMatched(working, marca.Value)
	}

	var submarcaCandidates []string
	if marca.Confidence == 1.0 {
		submarcaCandidates = catalog.SortedCandidates(idx.SubmarcaByMarca[marca.Value])
	} else {
		// Restrict by marca only when marca.confidence is exactly 1.0, never
		// for a merely-plausible (< 1.0) marca match.
		submarcaCandidates = catalog.SortedCandidates(idx.SubmarcaSet)
	}

	submarca := matchField(working, submarcaCandidates)
	if submarca.Confidence >= 0.9 {
		working = removeMatched(working, submarca.Value)
	}

	tipveh := matchField(working, catalog.SortedCandidates(idx.TipvehSet))

	result := models.ExtractedFields{
		Marca:    marca,
		Submarca: submarca,
		Tipveh:   tipveh,
		Descveh:  description,
	}

	if e.fallback != nil && ShouldTriggerFallback(result) {
		corrected, reason := e.fallback.Reextract(ctx, idx, description, result)
		if reason != "" {
			return corrected
		}
	}

	return result
}

// ShouldTriggerFallback reports whether aggregate extraction quality is
// poor enough to consult the model: no field >= 0.8, or marca and
// submarca both < 0.5, or mean confidence < 0.6.
func ShouldTriggerFallback(f models.ExtractedFields) bool {
	return !f.AnyHighConfidence() || f.MarcaAndSubmarcaBothWeak() || f.MeanConfidence() < 0.6
}

// matchField runs the field-match procedure against one candidate set,
// already sorted longest-first.
func matchField(description string, candidatesSorted []string) models.FieldConfidence {
	if len(candidatesSorted) == 0 {
		return models.Empty()
	}

	// Stage A: direct longest-prefix substring match.
	for _, cand := range candidatesSorted {
		if cand == "" {
			continue
		}
		if strings.Contains(description, cand) {
			return models.FieldConfidence{
				Value:      cand,
				Present:    true,
				Confidence: 1.0,
				Method:     models.MethodDirect,
			}
		}
	}

	// Stage B: fuzzy scoring. Ties on stage B are broken by candidate
	// lexicographic order: an equal score replaces the incumbent only when
	// the candidate sorts before it.
	best := models.Empty()
	bestScore := -1.0
	var bestMethod models.ExtractionMethod

	for _, cand := range candidatesSorted {
		if cand == "" {
			continue
		}
		score, method := fuzzy.Best(cand, description)
		if score > bestScore || (score == bestScore && cand < best.Value) {
			bestScore = score
			best = models.FieldConfidence{Value: cand, Present: true}
			bestMethod = models.ExtractionMethod(method)
		}
	}

	if bestScore < 0 {
		return models.Empty()
	}

	switch {
	case bestScore >= 0.8:
		conf := bestScore
		if conf > 0.95 {
			conf = 0.95
		}
		best.Confidence = conf
		best.Method = bestMethod
	case bestScore >= 0.6:
		best.Confidence = bestScore * 0.8
		best.Method = bestMethod
	case bestScore >= 0.4:
		best.Confidence = bestScore * 0.6
		best.Method = bestMethod
	default:
		return models.Empty()
	}

	return best
}

// removeMatched strips the first occurrence of matched from description,
// collapsing the resulting double space.
func removeMatched(description, matched string) string {
	if matched == "" {
		return description
	}
	idx := strings.Index(description, matched)
	if idx < 0 {
		return description
	}
	out := description[:idx] + description[idx+len(matched):]
	return strings.Join(strings.Fields(out), " ")
}
