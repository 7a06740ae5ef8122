package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mailpairs/internal/pairs"
)

var pairsIn string

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "Flatten conversations into question and answer pairs",
	Long: `Turn each student-opened conversation into (question, answer) records:
every student message paired with the advising reply that followed it.

Reads the filtered table by default, or the extracted table when the filter
is disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := pairsIn
		if in == "" {
			in = cfg.Path(cfg.Extract.OutFile)
			if cfg.Filter.Enabled {
				in = cfg.Path(cfg.Filter.OutFile)
			}
		}
		if err := checkFile(in, "conversation table"); err != nil {
			return err
		}

		out := cfg.Path(cfg.Pairs.OutFile)
		ps, err := pairs.File(in, out, cfg.Global.Encoding)
		if err != nil {
			return err
		}
		logger.Info("pairs file saved", "in", in, "out", out, "pairs", len(ps))
		return nil
	},
}

func init() {
	pairsCmd.Flags().StringVar(&pairsIn, "in", "", "conversation table to read")
	rootCmd.AddCommand(pairsCmd)
}
