package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mailpairs/internal/config"
	"github.com/MikeSquared-Agency/mailpairs/internal/mailsource"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mailpairs",
	Short: "Build question and answer pairs from an advising mailbox",
	Long: `mailpairs reconstructs conversations from the sent folder of an advising
mailbox, redacts personal information, filters out-of-scope threads and
flattens the remainder into question and answer pairs.

The passes are run in order:
  mailpairs extract
  mailpairs filter
  mailpairs pairs
  mailpairs export   (optional, writes the pairs to Postgres)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger = setupLogging(cfg.Global.LogLevel)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && logger != nil {
		logger.Error("command failed", "error", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML config file")
}

func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// openSource connects to the configured mail store.
func openSource() (mailsource.Source, error) {
	switch cfg.Mail.Source {
	case "mbox":
		dir := cfg.Mail.MboxDir
		if dir == "" {
			return nil, fmt.Errorf("MBOX_DIR is required for the mbox source")
		}
		if cfg.Extract.AdvisingInboxName != "" {
			dir = filepath.Join(dir, cfg.Extract.AdvisingInboxName)
		}
		return mailsource.NewMboxSource(dir, logger), nil
	default:
		if cfg.Mail.IMAPServer == "" {
			return nil, fmt.Errorf("IMAP_SERVER is required for the imap source")
		}
		src, err := mailsource.DialIMAP(mailsource.IMAPConfig{
			Server:   cfg.Mail.IMAPServer,
			Username: cfg.Mail.IMAPUsername,
			Password: cfg.Mail.IMAPPassword,
		}, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

func location() (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Extract.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Extract.Timezone, err)
	}
	return loc, nil
}
