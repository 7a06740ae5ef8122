package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mailpairs/internal/api"
	"github.com/MikeSquared-Agency/mailpairs/internal/conversation"
	"github.com/MikeSquared-Agency/mailpairs/internal/events"
	"github.com/MikeSquared-Agency/mailpairs/internal/extract"
	"github.com/MikeSquared-Agency/mailpairs/internal/header"
	"github.com/MikeSquared-Agency/mailpairs/internal/participant"
	"github.com/MikeSquared-Agency/mailpairs/internal/scrub"
	"github.com/MikeSquared-Agency/mailpairs/internal/slack"
)

var (
	extractResume    bool
	extractOverwrite bool
	extractFolder    string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Reconstruct conversations from the sent folder",
	Long: `Read every message in the sent folder, split out the quoted replies,
redact personal information and write the deduplicated conversation table.

The table is checkpointed every SAVE_INTERVAL messages. When the output file
already exists you are asked whether to overwrite it or continue from it;
--resume and --overwrite answer in advance.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractResume && extractOverwrite {
			return fmt.Errorf("--resume and --overwrite are mutually exclusive")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runExtract(ctx, cmd)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractResume, "resume", false, "continue from an existing checkpoint")
	extractCmd.Flags().BoolVar(&extractOverwrite, "overwrite", false, "replace an existing checkpoint")
	extractCmd.Flags().StringVar(&extractFolder, "folder", "", "mail folder to read (default SENT_FOLDER)")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(ctx context.Context, cmd *cobra.Command) error {
	loc, err := location()
	if err != nil {
		return err
	}
	classifier, err := buildClassifier()
	if err != nil {
		return err
	}
	scrubber, err := buildScrubber()
	if err != nil {
		return err
	}

	src, err := openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	folder := cfg.Extract.SentFolder
	if extractFolder != "" {
		folder = extractFolder
	}
	mode := extract.ModeAsk
	switch {
	case extractResume:
		mode = extract.ModeResume
	case extractOverwrite:
		mode = extract.ModeOverwrite
	}

	store := conversation.NewStore(scrubber)
	pipeline := extract.NewPipeline(store, classifier, header.NewParser(loc), scrubber, logger)
	runner := extract.NewRunner(extract.Config{
		Folder:       folder,
		OutPath:      cfg.Path(cfg.Extract.OutFile),
		Encoding:     cfg.Global.Encoding,
		SaveInterval: cfg.Extract.SaveInterval,
		Mode:         mode,
	}, src, store, pipeline, extract.NewTerminalPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), logger)

	if url := cfg.Services.NatsURL; url != "" {
		nc, err := events.NewClient(ctx, url, cfg.Services.NatsToken, logger)
		if err != nil {
			logger.Warn("nats unavailable, running without events", "error", err)
		} else {
			defer nc.Close()
			runner.WithEvents(nc)
			logger.Info("NATS connected", "url", url)
		}
	}

	if cfg.Services.SlackBotToken != "" && cfg.Services.SlackChannel != "" {
		runner.WithNotifier(slack.NewPoster(cfg.Services.SlackBotToken, cfg.Services.SlackChannel, logger))
		logger.Info("slack poster ready", "channel", cfg.Services.SlackChannel)
	}

	if port := cfg.Services.StatusPort; port > 0 {
		progress := extract.NewProgress()
		runner.WithProgress(progress)
		srv := api.NewServer(port, progress, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("status server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("extraction starting", "run_id", runner.RunID(), "folder", folder, "source", cfg.Mail.Source)
	sum, err := runner.Run(ctx)
	if errors.Is(err, extract.ErrQuit) {
		logger.Info("existing checkpoint left untouched")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Finished, saved %d conversations (%d turns) to %s\n",
		sum.Stats.Conversations, sum.Stats.Turns, sum.Path)
	return nil
}

func buildClassifier() (*participant.Classifier, error) {
	pc := participant.Config{
		AdvisingName:    cfg.Extract.AdvisingName,
		AdvisingAddress: cfg.Extract.AdvisingAddress,
	}
	if name := cfg.Extract.InternalDomainsFile; name != "" {
		domains, err := participant.ReadDomains(cfg.Path(name))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("internal domains file not found, no addresses will be classed internal",
				"path", cfg.Path(name))
		case err != nil:
			return nil, err
		default:
			pc.InternalDomains = domains
		}
	}
	return participant.NewClassifier(pc), nil
}

func buildScrubber() (*scrub.Pipeline, error) {
	var names []string
	if name := cfg.Extract.NamesFile; name != "" {
		var err error
		names, err = scrub.ReadNames(cfg.Path(name))
		if err != nil {
			return nil, err
		}
	}
	return scrub.New(scrub.DefaultDetectors(), names), nil
}

// checkFile fails early with a clear message when an input table is missing.
func checkFile(path, what string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s %s: %w", what, path, err)
	}
	return nil
}
