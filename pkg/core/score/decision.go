package score

import (
	"sort"

	"cvegs-matcher/pkg/core/config"
	"cvegs-matcher/pkg/models"
)

// Decide mixes every candidate's final score, sorts descending, assigns a
// quality label, and returns the top candidate's decision plus the review
// lists trimmed to their configured sizes.
func Decide(cfg *config.Config, tipveh string, candidates []models.Candidate) (models.Decision, *string, float64, []models.Candidate) {
	thresholds := cfg.ThresholdsForTipveh(tipveh)

	for i := range candidates {
		candidates[i].FinalScore = Mix(cfg.Weights,
			candidates[i].FilterScore, candidates[i].FuzzyScore,
			candidates[i].SimilarityScore, candidates[i].LLMScore)
		candidates[i].Quality = qualityLabel(candidates[i].FinalScore, thresholds)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})

	if len(candidates) == 0 {
		return models.DecisionNoMatch, nil, 0, trimReviewList(candidates, cfg.ReviewListSizes.NoMatch)
	}

	top := candidates[0]
	switch {
	case top.FinalScore >= thresholds.High:
		cvegs := top.CVEGS
		return models.DecisionAutoAccept, &cvegs, top.FinalScore, trimReviewList(candidates, cfg.ReviewListSizes.AutoAccept)
	case top.FinalScore >= thresholds.Low:
		cvegs := top.CVEGS
		return models.DecisionNeedsReview, &cvegs, top.FinalScore, trimReviewList(candidates, cfg.ReviewListSizes.NeedsReview)
	default:
		return models.DecisionNoMatch, nil, top.FinalScore, trimReviewList(candidates, cfg.ReviewListSizes.NoMatch)
	}
}

func qualityLabel(score float64, t config.ThresholdPair) string {
	switch {
	case score >= t.High:
		return "high"
	case score >= t.Low:
		return "medium"
	case score >= t.Low*0.5:
		return "low"
	default:
		return "very_low"
	}
}

func trimReviewList(candidates []models.Candidate, n int) []models.Candidate {
	if n <= 0 || len(candidates) <= n {
		return candidates
	}
	return candidates[:n]
}
