// Package config holds the single immutable configuration bundle the
// matching core is built from. All runtime knobs live here; validation
// (weight sum, threshold ordering) runs once at construction rather than
// per request.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"cvegs-matcher/pkg/core/matcherr"
)

// Weights are the four score-mixer weights; they must sum to 1.0
// within weightSumTolerance.
type Weights struct {
	Filter     float64 `yaml:"filter"`
	Fuzzy      float64 `yaml:"fuzzy"`
	Similarity float64 `yaml:"similarity"`
	LLM        float64 `yaml:"llm"`
}

// Sum returns the sum of the four weights.
func (w Weights) Sum() float64 {
	return w.Filter + w.Fuzzy + w.Similarity + w.LLM
}

const weightSumTolerance = 0.01

// ThresholdPair is the (high, low) decision boundary for one tipveh category.
type ThresholdPair struct {
	High float64 `yaml:"high"`
	Low  float64 `yaml:"low"`
}

// ReviewListSizes controls how many candidates are emitted per decision.
type ReviewListSizes struct {
	AutoAccept  int `yaml:"auto_accept"`
	NeedsReview int `yaml:"needs_review"`
	NoMatch     int `yaml:"no_match"`
}

// Config is the immutable bundle every pipeline stage is built from.
type Config struct {
	CatalogRefreshInterval time.Duration `yaml:"catalog_refresh_interval"`
	HighConfidenceThresh   float64       `yaml:"high_confidence_threshold"`
	FuzzyAcceptThreshold   float64       `yaml:"fuzzy_accept_threshold"`

	Weights Weights `yaml:"weights"`

	// ThresholdsByType maps a vehicle-type category name (passenger,
	// commercial, motorcycle, default) to its (high, low) pair.
	ThresholdsByType map[string]ThresholdPair `yaml:"thresholds_by_type"`

	MinVehicleYear   int `yaml:"min_vehicle_year"`
	FutureYearsAhead int `yaml:"future_years_ahead"`

	TopNRerank      int             `yaml:"top_n_rerank"`
	ReviewListSizes ReviewListSizes `yaml:"review_list_size"`

	LLMModelIdentifier string  `yaml:"llm_model_identifier"`
	LLMTemperature     float64 `yaml:"llm_temperature"`

	SingleMatchDeadline time.Duration `yaml:"single_match_deadline"`
	BatchJobDeadline    time.Duration `yaml:"batch_job_deadline"`
}

// Default returns the configuration bundle with every documented default applied.
func Default() *Config {
	return &Config{
		CatalogRefreshInterval: 24 * time.Hour,
		HighConfidenceThresh:   0.9,
		FuzzyAcceptThreshold:   0.8,
		Weights: Weights{
			Filter:     0.25,
			Fuzzy:      0.20,
			Similarity: 0.25,
			LLM:        0.30,
		},
		ThresholdsByType: map[string]ThresholdPair{
			"passenger":  {High: 0.90, Low: 0.70},
			"commercial": {High: 0.75, Low: 0.55},
			"motorcycle": {High: 0.85, Low: 0.65},
			"default":    {High: 0.80, Low: 0.60},
		},
		MinVehicleYear:      1950,
		FutureYearsAhead:    5,
		TopNRerank:          20,
		ReviewListSizes:     ReviewListSizes{AutoAccept: 3, NeedsReview: 3, NoMatch: 5},
		LLMModelIdentifier:  "gemini-2.0-flash-exp",
		LLMTemperature:      0.05,
		SingleMatchDeadline: 10 * time.Second,
		BatchJobDeadline:    10 * time.Minute,
	}
}

// Validate rejects a config before any request is processed: a weight sum
// off by more than the tolerance, an inverted or out-of-range threshold
// pair, a non-positive rerank cutoff, or a missing default threshold.
func (c *Config) Validate() error {
	if diff := math.Abs(c.Weights.Sum() - 1.0); diff > weightSumTolerance {
		return matcherr.New(matcherr.KindInternalInvariant,
			fmt.Sprintf("weights must sum to 1.0 (+/- %.2f), got %.4f", weightSumTolerance, c.Weights.Sum()))
	}
	for name, pair := range c.ThresholdsByType {
		if pair.Low > pair.High {
			return matcherr.New(matcherr.KindInternalInvariant,
				fmt.Sprintf("threshold pair %q has low (%.2f) > high (%.2f)", name, pair.Low, pair.High))
		}
		if pair.High < 0 || pair.High > 1 || pair.Low < 0 || pair.Low > 1 {
			return matcherr.New(matcherr.KindInternalInvariant,
				fmt.Sprintf("threshold pair %q must be within [0,1], got (%.2f,%.2f)", name, pair.High, pair.Low))
		}
	}
	if c.TopNRerank <= 0 {
		return matcherr.New(matcherr.KindInternalInvariant, "top_n_rerank must be positive")
	}
	if _, ok := c.ThresholdsByType["default"]; !ok {
		return matcherr.New(matcherr.KindInternalInvariant, "thresholds_by_type must define a \"default\" entry")
	}
	return nil
}

// New builds and validates a Config, the only entrypoint callers should use.
func New(overrides func(*Config)) (*Config, error) {
	cfg := Default()
	if overrides != nil {
		overrides(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// yamlConfig mirrors Config but with duration fields as strings, since
// yaml.v2 has no built-in time.Duration support.
type yamlConfig struct {
	CatalogRefreshInterval string                    `yaml:"catalog_refresh_interval"`
	HighConfidenceThresh   float64                   `yaml:"high_confidence_threshold"`
	FuzzyAcceptThreshold   float64                   `yaml:"fuzzy_accept_threshold"`
	Weights                Weights                   `yaml:"weights"`
	ThresholdsByType       map[string]ThresholdPair `yaml:"thresholds_by_type"`
	MinVehicleYear         int                       `yaml:"min_vehicle_year"`
	FutureYearsAhead       int                       `yaml:"future_years_ahead"`
	TopNRerank             int                       `yaml:"top_n_rerank"`
	ReviewListSizes        ReviewListSizes           `yaml:"review_list_size"`
	LLMModelIdentifier     string                    `yaml:"llm_model_identifier"`
	LLMTemperature         float64                   `yaml:"llm_temperature"`
	SingleMatchDeadline    string                    `yaml:"single_match_deadline"`
	BatchJobDeadline       string                    `yaml:"batch_job_deadline"`
}

// LoadFile reads a YAML config bundle, applying it over Default() for any
// field the file leaves zero-valued would otherwise be ambiguous, then
// validates the result.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg := Default()
	if yc.CatalogRefreshInterval != "" {
		if d, err := time.ParseDuration(yc.CatalogRefreshInterval); err == nil {
			cfg.CatalogRefreshInterval = d
		}
	}
	if yc.HighConfidenceThresh != 0 {
		cfg.HighConfidenceThresh = yc.HighConfidenceThresh
	}
	if yc.FuzzyAcceptThreshold != 0 {
		cfg.FuzzyAcceptThreshold = yc.FuzzyAcceptThreshold
	}
	if yc.Weights.Sum() != 0 {
		cfg.Weights = yc.Weights
	}
	if len(yc.ThresholdsByType) > 0 {
		cfg.ThresholdsByType = yc.ThresholdsByType
	}
	if yc.MinVehicleYear != 0 {
		cfg.MinVehicleYear = yc.MinVehicleYear
	}
	if yc.FutureYearsAhead != 0 {
		cfg.FutureYearsAhead = yc.FutureYearsAhead
	}
	if yc.TopNRerank != 0 {
		cfg.TopNRerank = yc.TopNRerank
	}
	if yc.ReviewListSizes != (ReviewListSizes{}) {
		cfg.ReviewListSizes = yc.ReviewListSizes
	}
	if yc.LLMModelIdentifier != "" {
		cfg.LLMModelIdentifier = yc.LLMModelIdentifier
	}
	if yc.LLMTemperature != 0 {
		cfg.LLMTemperature = yc.LLMTemperature
	}
	if yc.SingleMatchDeadline != "" {
		if d, err := time.ParseDuration(yc.SingleMatchDeadline); err == nil {
			cfg.SingleMatchDeadline = d
		}
	}
	if yc.BatchJobDeadline != "" {
		if d, err := time.ParseDuration(yc.BatchJobDeadline); err == nil {
			cfg.BatchJobDeadline = d
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ThresholdsForTipveh resolves the (high, low) decision pair for a tipveh
// value, bucketing it into passenger/commercial/motorcycle/default.
func (c *Config) ThresholdsForTipveh(tipveh string) ThresholdPair {
	switch tipveh {
	case "auto", "sedan", "hatchback", "coupe":
		if p, ok := c.ThresholdsByType["passenger"]; ok {
			return p
		}
	case "camioneta", "pickup", "truck", "tracto", "tracto camion":
		if p, ok := c.ThresholdsByType["commercial"]; ok {
			return p
		}
	case "motocicleta", "motorcycle", "moto", "scooter":
		if p, ok := c.ThresholdsByType["motorcycle"]; ok {
			return p
		}
	}
	return c.ThresholdsByType["default"]
}
