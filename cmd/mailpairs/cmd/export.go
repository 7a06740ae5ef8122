package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mailpairs/internal/pairs"
	"github.com/MikeSquared-Agency/mailpairs/internal/store"
)

var (
	exportIn    string
	exportRunID string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the pairs table to Postgres",
	Long: `Load the pairs table and insert it into the qa_pairs table of DATABASE_URL
under a run id. The table is created if it does not exist. Exporting again
with --run-id replaces the pairs previously stored under that id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Services.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}

		runID := uuid.New()
		replace := exportRunID != ""
		if replace {
			var err error
			if runID, err = uuid.Parse(exportRunID); err != nil {
				return fmt.Errorf("invalid --run-id: %w", err)
			}
		}

		in := cfg.Path(cfg.Pairs.OutFile)
		if exportIn != "" {
			in = exportIn
		}
		ps, err := pairs.Read(in, cfg.Global.Encoding)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, err := store.New(ctx, cfg.Services.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info("database connected")

		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		res, err := db.Export(ctx, runID, ps, replace)
		if err != nil {
			return err
		}
		logger.Info("pairs exported",
			"run_id", runID,
			"in", in,
			"pairs", res.Written,
			"replaced", res.Replaced,
			"stored", res.Stored,
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportIn, "in", "", "pairs table to export (default PAIRS_OUT_FILE)")
	exportCmd.Flags().StringVar(&exportRunID, "run-id", "", "run id to store the pairs under, replacing its earlier pairs (default: new)")
	rootCmd.AddCommand(exportCmd)
}
