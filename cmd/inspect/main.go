package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/kdowney/storewise/internal/trace"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the trace database")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/storewise_trace.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	store, err := trace.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *runID != "" {
		err = runDetailMode(store, *runID, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(store *trace.Store, last int, jsonOut bool) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	if jsonOut {
		return printJSON(runs)
	}

	fmt.Printf("%-10s  %-8s  %-8s  %-20s  %s\n", "Run", "Intent", "Conf", "Time", "Query")
	fmt.Printf("%-10s+-%-8s+-%-8s+-%-20s+-%s\n",
		"----------", "--------", "--------", "--------------------", "------------------------------")
	for _, r := range runs {
		fmt.Printf("%-10s  %-8s  %-8s  %-20s  %s\n",
			shortID(r.RunID), r.Intent, r.Confidence,
			r.CreatedAt.Format("2006-01-02T15:04:05Z"), truncate(r.Query, 60))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(store *trace.Store, runID string, jsonOut bool) error {
	rec, err := store.GetRun(runID)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(rec)
	}

	fmt.Printf("Run:        %s\n", rec.RunID)
	fmt.Printf("Created:    %s\n", rec.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Query:      %s\n", rec.Query)
	if rec.FormatHint != "" {
		fmt.Printf("Format:     %s\n", rec.FormatHint)
	}
	fmt.Printf("Intent:     %s (%s)\n", rec.Intent, rec.RouteSource)
	if rec.RouteRationale != "" {
		fmt.Printf("Rationale:  %s\n", truncate(rec.RouteRationale, 120))
	}
	fmt.Printf("Confidence: %s\n", rec.Confidence)
	fmt.Printf("Answer:     %s\n", rec.AnswerText)

	if len(rec.ChunkIDs) > 0 {
		fmt.Printf("\nRetrieved chunks:\n")
		for _, id := range rec.ChunkIDs {
			fmt.Printf("  %s\n", id)
		}
	}
	if len(rec.Constraints) > 0 {
		fmt.Printf("\nConstraints:\n")
		for _, c := range rec.Constraints {
			fmt.Printf("  %s = %s\n", c.Name, c.Value)
		}
	}
	if len(rec.Attempts) > 0 {
		fmt.Printf("\nSQL attempts:\n")
		for _, a := range rec.Attempts {
			fmt.Printf("  #%d [%s] rows=%d\n", a.Number, a.Status, a.RowCount)
			if a.Query != "" {
				fmt.Printf("     %s\n", a.Query)
			}
			if a.Error != "" {
				fmt.Printf("     error: %s\n", a.Error)
			}
		}
	}
	if len(rec.Citations) > 0 {
		fmt.Printf("\nCitations:\n")
		for _, c := range rec.Citations {
			fmt.Printf("  [%s] %s\n", c.Source, c.Claim)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// #endregion output
