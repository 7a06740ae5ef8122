package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mailpairs/internal/filter"
)

var filterIn string

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Remove out-of-scope conversations",
	Long: `Drop every conversation that mentions a header or body keyword, has no
student participant, or involves an internal third party. The keyword files
list one phrase per line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Filter.Enabled {
			logger.Info("keyword filter is disabled")
			return nil
		}

		in := cfg.Path(cfg.Extract.OutFile)
		if filterIn != "" {
			in = filterIn
		}
		if err := checkFile(in, "conversation table"); err != nil {
			return err
		}

		var kw filter.Keywords
		var err error
		if kw.Body, err = filter.ReadKeywords(cfg.Path(cfg.Filter.BodyKWFile)); err != nil {
			return err
		}
		if kw.Header, err = filter.ReadKeywords(cfg.Path(cfg.Filter.HeaderKWFile)); err != nil {
			return err
		}

		out := cfg.Path(cfg.Filter.OutFile)
		res, err := filter.File(in, out, cfg.Global.Encoding, filter.Predicates(kw))
		if err != nil {
			return err
		}
		logger.Info("done removing emails by keyword",
			"in", in,
			"out", out,
			"rows", res.Rows,
			"removed_rows", res.RemovedRows,
			"removed_conversations", len(res.Conversations),
		)
		return nil
	},
}

func init() {
	filterCmd.Flags().StringVar(&filterIn, "in", "", "conversation table to filter (default EXTRACT_OUT_FILE)")
	rootCmd.AddCommand(filterCmd)
}
