// Package slack posts extraction run summaries to a Slack channel.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

type Poster struct {
	api     *slack.Client
	channel string
	logger  *slog.Logger
}

// Option configures a Poster.
type Option func(*options)

type options struct {
	apiURL string
	client *http.Client
}

// WithAPIURL points the poster at another Slack API base URL, ending in "/".
func WithAPIURL(url string) Option {
	return func(o *options) { o.apiURL = url }
}

func NewPoster(token, channel string, logger *slog.Logger, opts ...Option) *Poster {
	o := options{client: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}

	slackOpts := []slack.Option{slack.OptionHTTPClient(o.client)}
	if o.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(o.apiURL))
	}
	return &Poster{
		api:     slack.New(token, slackOpts...),
		channel: channel,
		logger:  logger,
	}
}

// PostSummary posts text as a standalone mrkdwn message.
func (p *Poster) PostSummary(ctx context.Context, text string) error {
	_, ts, err := p.api.PostMessageContext(ctx, p.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		),
	)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	p.logger.Info("posted summary to slack", "channel", p.channel, "ts", ts)
	return nil
}
