package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"cvegs-matcher/pkg/core/catalog"
	"cvegs-matcher/pkg/core/config"
	"cvegs-matcher/pkg/core/extract"
	"cvegs-matcher/pkg/core/llm"
	"cvegs-matcher/pkg/core/pipeline"
	"cvegs-matcher/pkg/core/preprocess"
	"cvegs-matcher/pkg/core/prompt"
	"cvegs-matcher/pkg/core/rerank"
	"cvegs-matcher/pkg/core/score"
	"cvegs-matcher/pkg/core/store"
)

func logStep(step, details string) {
	fmt.Printf("\n[STEP] %s\n", step)
	fmt.Println("---------------------------------------------------------")
	fmt.Println(details)
	fmt.Println("---------------------------------------------------------")
}

func main() {
	year := flag.Int("year", 0, "vehicle model year")
	description := flag.String("description", "", "free-text vehicle description")
	debug := flag.Bool("debug", false, "include per-stage diagnostics in output")
	configPath := flag.String("config", "", "path to a matcher.yaml config file (defaults built in if omitted)")
	flag.Parse()

	if *year == 0 || *description == "" {
		fmt.Println("usage: match -year=2022 -description=\"toyota yaris auto sedan\"")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: no .env file loaded: %v\n", err)
	}

	if err := prompt.LoadFromDirectory("resources"); err != nil {
		fmt.Printf("Warning: failed to load prompts from 'resources': %v\n", err)
	} else {
		fmt.Println("Prompt library loaded")
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.New(nil)
	}
	if err != nil {
		fmt.Printf("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		fmt.Printf("Error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	repo := store.NewCatalogRepo(store.GetPool())
	cache := catalog.New(repo)

	logStep("1. Catalog Load", "Refreshing catalog snapshot from Postgres...")
	if err := cache.Refresh(ctx); err != nil {
		fmt.Printf("Error: catalog refresh failed: %v\n", err)
		os.Exit(1)
	}
	cache.StartAutoRefresh(ctx, cfg.CatalogRefreshInterval, func(err error) {
		fmt.Printf("Warning: background catalog refresh failed: %v\n", err)
	})
	defer cache.StopAutoRefresh()

	matcher := llm.NewMatcher(cfg.LLMModelIdentifier, cfg.LLMTemperature)
	embedder := llm.NewEmbedder("")

	preproc := preprocess.New(cfg.MinVehicleYear, time.Now().Year()+cfg.FutureYearsAhead, matcher)
	fallback := extract.NewFallback(matcher)
	extractor := extract.New(cache, fallback)
	rescorer := score.NewRescorer(matcher)

	orch := pipeline.New(cfg, cache, preproc, extractor, rerankEmbedder{embedder}, rescorer)

	logStep("2. Match", fmt.Sprintf("year=%d description=%q", *year, *description))
	result, err := orch.Match(ctx, pipeline.Request{
		Row: preprocess.Row{
			"anio":        fmt.Sprintf("%d", *year),
			"descripcion": *description,
		},
		Debug: *debug,
	})
	if err != nil {
		fmt.Printf("Error: match failed: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf("Error: failed to marshal result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// rerankEmbedder adapts llm.Embedder to rerank.EmbeddingService without
// rerank importing the llm package directly.
type rerankEmbedder struct {
	e *llm.Embedder
}

func (r rerankEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return r.e.Embed(ctx, text)
}

var _ rerank.EmbeddingService = rerankEmbedder{}
