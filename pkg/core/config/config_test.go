package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsBadWeightSum(t *testing.T) {
	cfg := Default()
	cfg.Weights = Weights{Filter: 0.5, Fuzzy: 0.3, Similarity: 0.3, LLM: 0.1} // sums to 1.2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for weight sum 1.2, got nil")
	}
}

func TestValidateAcceptsWeightSumWithinTolerance(t *testing.T) {
	cfg := Default()
	cfg.Weights = Weights{Filter: 0.25, Fuzzy: 0.20, Similarity: 0.25, LLM: 0.295} // sums to 0.995
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected tolerance to accept 0.995 sum, got: %v", err)
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := Default()
	cfg.ThresholdsByType["default"] = ThresholdPair{High: 0.5, Low: 0.9}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for inverted threshold pair, got nil")
	}
}

func TestThresholdsForTipvehBuckets(t *testing.T) {
	cfg := Default()
	cases := map[string]ThresholdPair{
		"auto":          cfg.ThresholdsByType["passenger"],
		"tracto camion": cfg.ThresholdsByType["commercial"],
		"moto":          cfg.ThresholdsByType["motorcycle"],
		"unknown_type":  cfg.ThresholdsByType["default"],
	}
	for tipveh, want := range cases {
		got := cfg.ThresholdsForTipveh(tipveh)
		if got != want {
			t.Errorf("ThresholdsForTipveh(%q) = %+v, want %+v", tipveh, got, want)
		}
	}
}

func TestNewRejectsBadConfigAtConstruction(t *testing.T) {
	_, err := New(func(c *Config) {
		c.Weights = Weights{Filter: 1, Fuzzy: 1, Similarity: 1, LLM: 1}
	})
	if err == nil {
		t.Fatal("expected New to reject an invalid config")
	}
}

func TestLoadFileOverridesOnlyWhatItSets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matcher.yaml")
	contents := []byte("llm_model_identifier: qwen-max\ntop_n_rerank: 30\n")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.LLMModelIdentifier != "qwen-max" {
		t.Errorf("expected llm_model_identifier override to apply, got %q", cfg.LLMModelIdentifier)
	}
	if cfg.TopNRerank != 30 {
		t.Errorf("expected top_n_rerank override to apply, got %d", cfg.TopNRerank)
	}
	if cfg.HighConfidenceThresh != Default().HighConfidenceThresh {
		t.Errorf("expected unspecified fields to keep their default, got %.2f", cfg.HighConfidenceThresh)
	}
}

func TestLoadFileRejectsMissingFile(t *testing.T) {
	if _, err := LoadFile("/nonexistent/matcher.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
