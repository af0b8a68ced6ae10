// Package rerank implements the reranker: a cheap fuzzy rescoring pass
// over every filtered candidate, followed by an embedding-similarity pass
// that ranks and trims the final top-N whenever an embedder is available.
// The fuzzy ranking only decides the trim when similarity scoring can't
// run at all.
package rerank

import (
	"context"
	"math"
	"sort"

	"cvegs-matcher/pkg/core/fuzzy"
	"cvegs-matcher/pkg/models"
)

// EmbeddingService produces a dense vector for free text; Embed errors
// degrade the pass to a zero similarity score rather than fail the match.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Rerank scores every candidate by fuzzy ratio, then — if embedder is
// non-nil and descveh embeds successfully — scores every candidate by
// embedding cosine similarity and trims to topN by that ranking. If there
// is no embedder, or the embed call fails, it falls back to trimming by
// fuzzy score instead.
func Rerank(ctx context.Context, embedder EmbeddingService, descveh string, candidates []models.Candidate, topN int) []models.Candidate {
	for i := range candidates {
		candidates[i].FuzzyScore = fuzzy.Ratio(descveh, candidates[i].Descveh)
	}

	if embedder == nil {
		return trimByFuzzy(candidates, topN)
	}

	queryVec, err := embedder.Embed(ctx, descveh)
	if err != nil {
		return trimByFuzzy(candidates, topN) // similarity_score stays 0 for all, graceful degrade
	}

	for i := range candidates {
		if len(candidates[i].Embedding) == 0 {
			continue
		}
		candidates[i].SimilarityScore = cosineToUnit(queryVec, candidates[i].Embedding)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SimilarityScore > candidates[j].SimilarityScore
	})
	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}

// trimByFuzzy sorts by fuzzy score descending and trims to topN; used when
// embedding similarity can't be computed at all.
func trimByFuzzy(candidates []models.Candidate, topN int) []models.Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FuzzyScore > candidates[j].FuzzyScore
	})
	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}

// cosineToUnit maps cosine similarity from [-1,1] to [0,1].
func cosineToUnit(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}
