package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mailpairs/internal/mailsource"
)

var (
	domainsFolder string
	domainsWrite  bool
)

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List every recipient domain in the sent folder",
	Long: `List the distinct recipient domains found in the sent folder, one per line.

Use the output to assemble the internal domains file: keep the domains that
belong to your organisation and delete the rest. With --write the full list
is written to INTERNAL_DOMAINS_FILE instead of stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openSource()
		if err != nil {
			return err
		}
		defer src.Close()

		folder := cfg.Extract.SentFolder
		if domainsFolder != "" {
			folder = domainsFolder
		}
		domains, err := mailsource.RecipientDomains(cmd.Context(), src, folder)
		if err != nil {
			return err
		}
		logger.Info("recipient domains collected", "folder", folder, "domains", len(domains))

		if !domainsWrite {
			for _, d := range domains {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		}
		path := cfg.Path(cfg.Extract.InternalDomainsFile)
		if err := os.WriteFile(path, []byte(strings.Join(domains, "\n")+"\n"), 0o644); err != nil {
			return fmt.Errorf("write domains file: %w", err)
		}
		logger.Info("domains file written", "path", path)
		return nil
	},
}

func init() {
	domainsCmd.Flags().StringVar(&domainsFolder, "folder", "", "mail folder to read (default SENT_FOLDER)")
	domainsCmd.Flags().BoolVar(&domainsWrite, "write", false, "write the list to INTERNAL_DOMAINS_FILE")
	rootCmd.AddCommand(domainsCmd)
}
