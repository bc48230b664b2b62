package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexiworks/lexisurvey/internal/config"
	"github.com/lexiworks/lexisurvey/internal/itembank"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Inspect and manage item banks",
}

var itemsValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate an item bank file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bank, err := decodeBank(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s: %d items, schema %s\n", args[0], len(bank.Items), bank.SchemaVersion)
		return nil
	},
}

var itemsStatsCmd = &cobra.Command{
	Use:   "stats [file]",
	Short: "Summarize an item bank (default: the configured source)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			bank  *itembank.File
			label string
			err   error
		)
		switch {
		case len(args) == 1:
			label = args[0]
			bank, err = decodeBank(args[0])
		default:
			cfg, cerr := loadConfig(cmd)
			if cerr != nil {
				return cerr
			}
			switch cfg.ItemBank.Source {
			case config.SourceMongo:
				return mongoStats(cmd, cfg)
			case config.SourceFile:
				label = cfg.ItemBank.Path
				bank, err = decodeBank(cfg.ItemBank.Path)
			default:
				label = "embedded seed bank"
				bank = itembank.SeedFile()
			}
		}
		if err != nil {
			return err
		}
		printStats(label, itembank.ComputeStats(bank.Items))
		return nil
	},
}

var itemsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Upsert a bank file into the configured MongoDB collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.ItemBank.Mongo.URI == "" {
			return fmt.Errorf("item_bank.mongo.uri is not set (use LEXISURVEY_MONGO_URI)")
		}
		bank, err := decodeBank(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		coll, disconnect, err := connectMongo(ctx, cfg.ItemBank.Mongo)
		if err != nil {
			return err
		}
		defer disconnect()

		repo, err := itembank.NewMongoRepository(ctx, coll)
		if err != nil {
			return err
		}
		n, err := repo.Import(ctx, bank.Items)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d items into %s.%s (%d changed)\n",
			len(bank.Items), cfg.ItemBank.Mongo.Database, coll.Name(), n)
		return nil
	},
}

func init() {
	itemsCmd.AddCommand(itemsValidateCmd)
	itemsCmd.AddCommand(itemsStatsCmd)
	itemsCmd.AddCommand(itemsImportCmd)
}

func decodeBank(path string) (*itembank.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bank: %w", err)
	}
	defer f.Close()
	bank, err := itembank.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bank, nil
}

func mongoStats(cmd *cobra.Command, cfg config.Config) error {
	repo, closeRepo, err := openRepository(cmd.Context(), cfg.ItemBank)
	if err != nil {
		return err
	}
	defer closeRepo()

	b, err := repo.Bounds(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Item bank: mongo %s.%s\n", cfg.ItemBank.Mongo.Database, cfg.ItemBank.Mongo.Collection)
	fmt.Printf("  %-12s %d\n", "Items", b.Count)
	fmt.Printf("  %-12s %d – %d\n", "Ranks", b.MinRank, b.MaxRank)
	return nil
}

func printStats(label string, s itembank.Stats) {
	fmt.Printf("Item bank: %s\n", label)
	fmt.Println(strings.Repeat("─", 40))
	fmt.Printf("  %-12s %d\n", "Items", s.Items)
	fmt.Printf("  %-12s %d – %d\n", "Ranks", s.MinRank, s.MaxRank)
	for _, k := range itembank.AllRelationKinds() {
		fmt.Printf("  %-12s %d\n", strings.ToUpper(string(k[:1]))+string(k[1:]), s.Relations[k])
	}
	fmt.Printf("  %-12s %d\n", "Isolated", s.Isolated)
	if s.Embedded > 0 {
		fmt.Printf("  %-12s %d (%d dims)\n", "Embedded", s.Embedded, s.Dimensions)
	} else {
		fmt.Printf("  %-12s none\n", "Embedded")
	}
}
