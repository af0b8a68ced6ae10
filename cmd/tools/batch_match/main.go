package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"cvegs-matcher/pkg/core/catalog"
	"cvegs-matcher/pkg/core/config"
	"cvegs-matcher/pkg/core/extract"
	"cvegs-matcher/pkg/core/llm"
	"cvegs-matcher/pkg/core/pipeline"
	"cvegs-matcher/pkg/core/preprocess"
	"cvegs-matcher/pkg/core/rerank"
	"cvegs-matcher/pkg/core/score"
	"cvegs-matcher/pkg/core/store"
)

type batchRow struct {
	ID     string
	Fields preprocess.Row
}

type batchResult struct {
	ID     string                `json:"id"`
	Result *matchOutcome         `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

type matchOutcome struct {
	Decision       string  `json:"decision"`
	SuggestedCVEGS *string `json:"suggested_cvegs"`
	Confidence     float64 `json:"confidence"`
}

func main() {
	inputPath := flag.String("input", "", "CSV file of rows to match; first row is the header")
	concurrency := flag.Int("concurrency", 8, "max concurrent match requests")
	qps := flag.Float64("qps", 5, "max match requests per second across the whole batch")
	configPath := flag.String("config", "", "path to a matcher.yaml config file (defaults built in if omitted)")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("usage: batch_match -input=rows.csv")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env not found, using environment variables")
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.New(nil)
	}
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BatchJobDeadline)
	defer cancel()

	if err := store.InitDB(ctx); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	repo := store.NewCatalogRepo(store.GetPool())
	cache := catalog.New(repo)
	if err := cache.Refresh(ctx); err != nil {
		log.Fatalf("catalog refresh failed: %v", err)
	}

	matcher := llm.NewMatcher(cfg.LLMModelIdentifier, cfg.LLMTemperature)
	embedder := llm.NewEmbedder("")
	preproc := preprocess.New(cfg.MinVehicleYear, time.Now().Year()+cfg.FutureYearsAhead, matcher)
	extractor := extract.New(cache, extract.NewFallback(matcher))
	rescorer := score.NewRescorer(matcher)

	rows, err := loadRows(*inputPath)
	if err != nil {
		log.Fatalf("failed to load %s: %v", *inputPath, err)
	}
	fmt.Printf("Loaded %d rows from %s\n", len(rows), *inputPath)

	limiter := rate.NewLimiter(rate.Limit(*qps), 1)
	results := make([]batchResult, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)

	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				results[i] = batchResult{ID: row.ID, Error: err.Error()}
				return nil
			}

			orch := pipeline.New(cfg, cache, preproc, extractor, rerankEmbedder{embedder}, rescorer)
			res, err := orch.Match(gctx, pipeline.Request{Row: row.Fields})
			if err != nil {
				results[i] = batchResult{ID: row.ID, Error: err.Error()}
				return nil
			}
			results[i] = batchResult{ID: row.ID, Result: &matchOutcome{
				Decision:       string(res.Decision),
				SuggestedCVEGS: res.SuggestedCVEGS,
				Confidence:     res.Confidence,
			}}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("batch run aborted: %v", err)
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal results: %v", err)
	}
	fmt.Println(string(out))
}

func loadRows(path string) ([]batchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]batchRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		fields := make(preprocess.Row, len(header))
		for j, col := range header {
			if j < len(rec) {
				fields[col] = rec[j]
			}
		}
		rows = append(rows, batchRow{ID: fmt.Sprintf("%d", i), Fields: fields})
	}
	return rows, nil
}

// rerankEmbedder adapts llm.Embedder to rerank.EmbeddingService.
type rerankEmbedder struct {
	e *llm.Embedder
}

func (r rerankEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return r.e.Embed(ctx, text)
}

var _ rerank.EmbeddingService = rerankEmbedder{}
