package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kdowney/storewise/internal/agent"
	"github.com/kdowney/storewise/internal/batch"
	"github.com/kdowney/storewise/internal/config"
	"github.com/kdowney/storewise/internal/corpus"
	"github.com/kdowney/storewise/internal/engine"
	"github.com/kdowney/storewise/internal/llm"
	"github.com/kdowney/storewise/internal/planner"
	"github.com/kdowney/storewise/internal/retrieval"
	"github.com/kdowney/storewise/internal/router"
	"github.com/kdowney/storewise/internal/schema"
	"github.com/kdowney/storewise/internal/sqlgen"
	"github.com/kdowney/storewise/internal/trace"
)

// #region main
func main() {
	cfgPath := flag.String("config", envOr("STOREWISE_CONFIG", "config/storewise.yaml"), "path to config file")
	inPath := flag.String("in", "", "input JSONL file (default stdin)")
	outPath := flag.String("out", "", "output JSONL file (default stdout)")
	noTrace := flag.Bool("no-trace", false, "skip trace persistence")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ag, eng, err := buildAgent(cfg)
	if err != nil {
		log.Fatalf("failed to assemble agent: %v", err)
	}
	defer eng.Close()

	var traces *trace.Store
	if !*noTrace {
		traces, err = trace.Open(cfg.TraceDB)
		if err != nil {
			log.Fatalf("failed to open trace db %s: %v", cfg.TraceDB, err)
		}
		defer traces.Close()
	}

	in := os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			log.Fatalf("open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("create output: %v", err)
		}
		defer f.Close()
		out = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := batch.NewRunner(ag, traces)
	if err := runner.Run(ctx, in, out); err != nil {
		log.Fatalf("batch failed: %v", err)
	}
}

// #endregion main

// #region assembly
func buildAgent(cfg config.Config) (*agent.Agent, *engine.SQLiteEngine, error) {
	chunks, err := corpus.Load(cfg.CorpusDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load corpus: %w", err)
	}

	sheet, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load schema sheet: %w", err)
	}

	eng, err := engine.Open(engine.Config{
		Path:    cfg.Engine.Path,
		Timeout: cfg.ExecutionTimeout(),
		MaxRows: cfg.Engine.MaxRows,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open engine: %w", err)
	}

	overrides := make([]router.OverrideRule, 0, len(cfg.Overrides))
	for _, r := range cfg.Overrides {
		intent, err := router.ParseIntent(r.Intent)
		if err != nil {
			eng.Close()
			return nil, nil, fmt.Errorf("override %q: %w", r.Keyword, err)
		}
		overrides = append(overrides, router.OverrideRule{Keyword: r.Keyword, Intent: intent})
	}

	client := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	index := retrieval.NewIndex(chunks, retrieval.Config{
		K1:           cfg.Retrieval.K1,
		B:            cfg.Retrieval.B,
		TopK:         cfg.Retrieval.TopK,
		MinRelevance: cfg.Retrieval.MinRelevance,
		NameBoost:    cfg.Retrieval.NameBoost,
	})

	ag := agent.New(agent.Deps{
		Router:           router.New(overrides, client, cfg.InferenceTimeout()),
		Index:            index,
		Planner:          planner.New(client, cfg.InferenceTimeout()),
		Generator:        sqlgen.New(client, sheet, sqlgen.DefaultRepairs(), cfg.InferenceTimeout()),
		Engine:           eng,
		Client:           client,
		InferenceTimeout: cfg.InferenceTimeout(),
		MaxTokens:        cfg.LLM.MaxTokens,
		MaxRepairs:       cfg.MaxRepairs,
	})
	return ag, eng, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion assembly
