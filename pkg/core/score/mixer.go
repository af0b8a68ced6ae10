package score

import "cvegs-matcher/pkg/core/config"

// Mix computes FinalScore as the configured weighted sum of the four
// component scores. The filter never assigns FinalScore; only the mixer
// does, so a candidate that was never reranked or rescored simply
// contributes 0 for those terms rather than being excluded.
func Mix(weights config.Weights, filterScore, fuzzyScore, similarityScore, llmScore float64) float64 {
	return weights.Filter*filterScore +
		weights.Fuzzy*fuzzyScore +
		weights.Similarity*similarityScore +
		weights.LLM*llmScore
}
