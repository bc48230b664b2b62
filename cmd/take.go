package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexiworks/lexisurvey/internal/tui"
)

var takeCmd = &cobra.Command{
	Use:   "take",
	Short: "Take the survey in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTake(cmd)
	},
}

func init() {
	takeCmd.Flags().Int("rank-hint", 0, "Starting rank estimate (0 uses the configured start rank)")
	takeCmd.Flags().String("log-file", "", "Write logs to this file instead of discarding them")
}

// runTake wires the engine in-process and runs the terminal client.
func runTake(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The terminal is owned by the UI; logs go to a file or nowhere.
	var w io.Writer = io.Discard
	if p, _ := cmd.Flags().GetString("log-file"); p != "" {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		w = f
	}
	logger := cfg.Log.NewLogger(w)
	slog.SetDefault(logger)

	eng, err := buildEngine(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	return tui.Run(eng.svc, rankHint(cmd))
}
