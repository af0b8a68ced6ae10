package score

import (
	"testing"

	"cvegs-matcher/pkg/core/config"
	"cvegs-matcher/pkg/models"
)

func TestDecide_AutoAcceptAboveHighThreshold(t *testing.T) {
	cfg := config.Default()
	candidates := []models.Candidate{
		{CVEGS: "A1", FilterScore: 1.0, FuzzyScore: 1.0, SimilarityScore: 1.0, LLMScore: 1.0},
	}

	decision, cvegs, confidence, reviewList := Decide(cfg, "auto", candidates)

	if decision != models.DecisionAutoAccept {
		t.Fatalf("expected auto_accept for a perfect score, got %s", decision)
	}
	if cvegs == nil || *cvegs != "A1" {
		t.Errorf("expected suggested cvegs A1, got %+v", cvegs)
	}
	if confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %.2f", confidence)
	}
	if len(reviewList) != 1 {
		t.Errorf("expected review list length 1, got %d", len(reviewList))
	}
}

func TestDecide_NoMatchOnEmptyCandidates(t *testing.T) {
	cfg := config.Default()
	decision, cvegs, confidence, _ := Decide(cfg, "auto", nil)

	if decision != models.DecisionNoMatch {
		t.Errorf("expected no_match for an empty candidate set, got %s", decision)
	}
	if cvegs != nil {
		t.Errorf("expected nil suggestion, got %v", cvegs)
	}
	if confidence != 0 {
		t.Errorf("expected 0 confidence, got %.2f", confidence)
	}
}

func TestDecide_NeedsReviewBetweenThresholds(t *testing.T) {
	cfg := config.Default()
	thresholds := cfg.ThresholdsForTipveh("auto")
	mid := (thresholds.High + thresholds.Low) / 2

	candidates := []models.Candidate{
		{CVEGS: "A1", FilterScore: mid, FuzzyScore: mid, SimilarityScore: mid, LLMScore: mid},
	}
	decision, cvegs, _, _ := Decide(cfg, "auto", candidates)

	if decision != models.DecisionNeedsReview {
		t.Fatalf("expected needs_review for a mid-band score, got %s", decision)
	}
	if cvegs == nil || *cvegs != "A1" {
		t.Errorf("expected suggested cvegs A1 for needs_review, got %+v", cvegs)
	}
}

func TestDecide_SortsCandidatesByFinalScoreDescending(t *testing.T) {
	cfg := config.Default()
	candidates := []models.Candidate{
		{CVEGS: "LOW", FilterScore: 0.1, FuzzyScore: 0.1, SimilarityScore: 0.1, LLMScore: 0.1},
		{CVEGS: "HIGH", FilterScore: 1.0, FuzzyScore: 1.0, SimilarityScore: 1.0, LLMScore: 1.0},
	}
	_, _, _, reviewList := Decide(cfg, "auto", candidates)

	if len(reviewList) < 2 || reviewList[0].CVEGS != "HIGH" {
		t.Errorf("expected HIGH first after sorting, got %+v", reviewList)
	}
}

func TestQualityLabelBands(t *testing.T) {
	pair := config.ThresholdPair{High: 0.8, Low: 0.6}
	cases := map[float64]string{
		0.9:  "high",
		0.7:  "medium",
		0.35: "low",
		0.1:  "very_low",
	}
	for score, want := range cases {
		if got := qualityLabel(score, pair); got != want {
			t.Errorf("qualityLabel(%.2f) = %q, want %q", score, got, want)
		}
	}
}
