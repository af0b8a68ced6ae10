// Package pipeline wires the matching stages together: preprocess, extract
// (with LLM fallback), filter, rerank, LLM rescore, mix, and decide. It
// drives the stage sequence, applies the per-request deadline, and
// collects diagnostics when requested.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cvegs-matcher/pkg/core/catalog"
	"cvegs-matcher/pkg/core/config"
	"cvegs-matcher/pkg/core/extract"
	"cvegs-matcher/pkg/core/filter"
	"cvegs-matcher/pkg/core/preprocess"
	"cvegs-matcher/pkg/core/rerank"
	"cvegs-matcher/pkg/core/score"
	"cvegs-matcher/pkg/models"
)

// Orchestrator drives a single match end to end.
type Orchestrator struct {
	cfg          *config.Config
	cache        *catalog.Cache
	preprocessor *preprocess.Preprocessor
	extractor    *extract.Extractor
	embedder     rerank.EmbeddingService // may be nil
	rescorer     *score.Rescorer         // may be nil
}

// New builds an Orchestrator from its fully-constructed dependencies.
func New(cfg *config.Config, cache *catalog.Cache, preprocessor *preprocess.Preprocessor, extractor *extract.Extractor, embedder rerank.EmbeddingService, rescorer *score.Rescorer) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		cache:        cache,
		preprocessor: preprocessor,
		extractor:    extractor,
		embedder:     embedder,
		rescorer:     rescorer,
	}
}

// Request is a single raw input row, already unwrapped by the caller from
// whatever batch/single-record shape it arrived in.
type Request struct {
	Row   preprocess.Row
	Debug bool
}

// Match runs PREPROCESS -> EXTRACT(+FALLBACK) -> FILTER -> RERANK ->
// LLM_RESCORE -> MIX_DECIDE, exiting early whenever an upstream stage
// yields nothing for downstream stages to work on.
func (o *Orchestrator) Match(ctx context.Context, req Request) (*models.MatchResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SingleMatchDeadline)
	defer cancel()

	diag := &models.Diagnostics{RequestID: uuid.New().String()}
	var notes []string

	rows := map[string]preprocess.Row{"0": req.Row}
	preStart := time.Now()
	resolved, err := o.preprocessor.Process(ctx, rows)
	diag.PreprocessMs = msSince(preStart)
	if err != nil {
		return nil, err
	}
	single, ok := resolved["0"]
	if !ok {
		return noMatchResult(models.ExtractedFields{}, start, diag, req.Debug, "preprocess could not resolve year/description fields")
	}

	extractStart := time.Now()
	fields := o.extractor.Extract(ctx, single.Year, single.Description)
	diag.ExtractMs = msSince(extractStart)
	if req.Debug {
		raw := fields
		diag.RawExtraction = &raw
	}

	snap := o.cache.Snapshot()
	if snap == nil {
		return noMatchResult(fields, start, diag, req.Debug, "no catalog snapshot loaded")
	}
	records := snap.RecordsForYear(single.Year)
	if len(records) == 0 {
		return noMatchResult(fields, start, diag, req.Debug, "no catalog rows for requested year")
	}

	filterStart := time.Now()
	filterResult := filter.Filter(records, fields)
	diag.FilterMs = msSince(filterStart)
	diag.FilterFallbackTag = filterResult.Tag
	if len(filterResult.Candidates) == 0 {
		return noMatchResult(fields, start, diag, req.Debug, "filter produced no candidates at any fallback tier")
	}

	rerankStart := time.Now()
	candidates := rerank.Rerank(ctx, o.embedder, single.Description, filterResult.Candidates, o.cfg.TopNRerank)
	diag.RerankMs = msSince(rerankStart)

	rescoreStart := time.Now()
	if o.rescorer != nil {
		candidates = o.rescorer.Rescore(ctx, single.Description, candidates)
	}
	diag.LLMRescoreMs = msSince(rescoreStart)

	mixStart := time.Now()
	decision, suggested, confidence, reviewList := score.Decide(o.cfg, fields.Tipveh.Value, candidates)
	diag.MixMs = msSince(mixStart)

	diag.Notes = notes
	result := &models.MatchResult{
		Decision:        decision,
		SuggestedCVEGS:  suggested,
		Confidence:      confidence,
		ExtractedFields: fields,
		Candidates:      reviewList,
		ProcessingMs:    msSince(start),
	}
	if req.Debug {
		result.Diagnostics = diag
	}
	return result, nil
}

func noMatchResult(fields models.ExtractedFields, start time.Time, diag *models.Diagnostics, debug bool, note string) (*models.MatchResult, error) {
	diag.Notes = append(diag.Notes, note)
	result := &models.MatchResult{
		Decision:        models.DecisionNoMatch,
		ExtractedFields: fields,
		ProcessingMs:    msSince(start),
	}
	if debug {
		result.Diagnostics = diag
	}
	return result, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
