package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexiworks/lexisurvey/internal/config"
	"github.com/lexiworks/lexisurvey/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "lexisurvey",
	Short: "Adaptive vocabulary assessment",
	Long: "LexiSurvey estimates how many words a learner knows from a short adaptive\n" +
		"multiple-choice survey, reporting vocabulary volume, reach and density.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTake(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (overrides LEXISURVEY_CONFIG env var)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides LEXISURVEY_DB env var)")
	rootCmd.PersistentFlags().String("bank", "", "Path to a JSON item bank (overrides the configured source)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.Flags().Int("rank-hint", 0, "Starting rank estimate (0 uses the configured start rank)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves configuration: defaults, then the config file
// (--config, LEXISURVEY_CONFIG, XDG path), then environment, then flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		cfg, err = config.Load(p)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()

	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Store.Driver = store.DriverSQLite
		cfg.Store.DSN = p
	}
	if p, _ := cmd.Flags().GetString("bank"); p != "" {
		cfg.ItemBank.Source = config.SourceFile
		cfg.ItemBank.Path = p
	}
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		cfg.Log.Level = l
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// rankHint reads the --rank-hint flag. Zero means no hint.
func rankHint(cmd *cobra.Command) *int {
	h, _ := cmd.Flags().GetInt("rank-hint")
	if h <= 0 {
		return nil
	}
	return &h
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}
