package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiworks/lexisurvey/internal/screens/results"
	"github.com/lexiworks/lexisurvey/internal/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Show a stored session: state, answers, report and events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		backend, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		defer backend.Close()

		rec, err := backend.Get(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no session %q in %s store", args[0], cfg.Store.Driver)
		}
		if err != nil {
			return err
		}
		events, err := backend.Events(ctx, args[0])
		if err != nil {
			return fmt.Errorf("read events: %w", err)
		}
		printRecord(rec, events)
		return nil
	},
}

func printRecord(rec *store.Record, events []store.Event) {
	s := rec.Session
	fmt.Printf("Session %s\n", s.ID)
	fmt.Printf("  %-14s %s\n", "Status", s.Status)
	fmt.Printf("  %-14s %s (±%d)\n", "Phase", s.Phase, s.StepBound)
	fmt.Printf("  %-14s %d (started at %d)\n", "Rank estimate", s.RankEstimate, s.StartRank)
	fmt.Printf("  %-14s %d – %d\n", "Rank domain", s.MinRank, s.MaxRank)
	fmt.Printf("  %-14s %s\n", "Created", s.CreatedAt.Local().Format(time.DateTime))
	if rec.AbortReason != "" {
		fmt.Printf("  %-14s %s\n", "Aborted", rec.AbortReason)
	}

	if len(s.History) > 0 {
		fmt.Println()
		fmt.Printf("%-3s  %-7s  %-8s  %-8s  %-7s  %s\n", "#", "Phase", "Target", "Item", "Time", "Result")
		fmt.Println(strings.Repeat("─", 50))
		for i, h := range s.History {
			result := "✗"
			if h.Correct {
				result = "✓"
			}
			fmt.Printf("%-3d  %-7s  %-8d  %-8d  %-7s  %s\n",
				i+1, h.Phase, h.TargetRank, h.ItemRank, h.TimeTaken.Round(100*time.Millisecond), result)
		}
	}

	if r := rec.Report; r != nil {
		fmt.Println()
		fmt.Println("Report")
		fmt.Printf("  %-14s %.0f\n", "Volume", r.Volume)
		fmt.Printf("  %-14s %.0f\n", "Reach", r.Reach)
		fmt.Printf("  %-14s %s\n", "Density", results.FormatDensity(r.Density))
		fmt.Printf("  %-14s %s (brier %.3f, log loss %.3f)\n", "Fit", r.Fit.Method, r.Fit.Brier, r.Fit.LogLoss)
	}

	if len(events) > 0 {
		fmt.Println()
		fmt.Println("Events")
		for _, e := range events {
			fmt.Printf("  %-4d %s  %-18s %v\n", e.ID, e.CreatedAt.Local().Format(time.TimeOnly), e.Kind, e.Payload)
		}
	}
}
