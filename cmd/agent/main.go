package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kdowney/storewise/internal/agent"
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

	traces, err := trace.Open(cfg.TraceDB)
	if err != nil {
		log.Fatalf("failed to open trace db %s: %v", cfg.TraceDB, err)
	}
	defer traces.Close()

	fmt.Println("Storewise retail analytics agent ready.")
	fmt.Printf("  DB: %s | Model: %s @ %s\n", cfg.Engine.Path, cfg.LLM.Model, cfg.LLM.BaseURL)
	fmt.Println("Type a question (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "quit" || question == "exit" {
			break
		}

		st, err := ag.Run(context.Background(), question, "")
		if err != nil {
			log.Printf("run error: %v", err)
			continue
		}

		fmt.Printf("\n%s\n", st.Answer.Text)
		if len(st.Answer.Citations) > 0 {
			fmt.Println("\nSources:")
			for _, c := range st.Answer.Citations {
				fmt.Printf("  [%s] %s\n", c.Source, c.Claim)
			}
		}
		fmt.Printf("\n[%s] intent=%s confidence=%s sql_attempts=%d\n",
			shortID(st.RunID), st.Routing.Intent, st.Answer.Confidence, len(st.Attempts))

		if err := traces.Record(st); err != nil {
			log.Printf("[TRACE] record run %s: %v", st.RunID, err)
		}
	}
}

// #endregion main

// #region assembly

// buildAgent wires the workflow from configuration. The returned engine is
// handed back so the caller owns its lifetime.
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

	overrides, err := parseOverrides(cfg.Overrides)
	if err != nil {
		eng.Close()
		return nil, nil, err
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

func parseOverrides(rules []config.OverrideRule) ([]router.OverrideRule, error) {
	out := make([]router.OverrideRule, 0, len(rules))
	for _, r := range rules {
		intent, err := router.ParseIntent(r.Intent)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", r.Keyword, err)
		}
		out = append(out, router.OverrideRule{Keyword: r.Keyword, Intent: intent})
	}
	return out, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion assembly
