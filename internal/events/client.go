// Package events publishes extraction run events over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectCheckpoint = "mailpairs.extract.checkpoint"
	SubjectCompleted  = "mailpairs.extract.completed"
)

// Checkpoint is published after every successful checkpoint write.
type Checkpoint struct {
	RunID         string    `json:"run_id"`
	Folder        string    `json:"folder"`
	Processed     int       `json:"processed"`
	Conversations int       `json:"conversations"`
	Path          string    `json:"path"`
	At            time.Time `json:"at"`
}

// Completed is published once at the end of a run.
type Completed struct {
	RunID         string        `json:"run_id"`
	Folder        string        `json:"folder"`
	Processed     int           `json:"processed"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	Conversations int           `json:"conversations"`
	Turns         int           `json:"turns"`
	Evicted       int           `json:"evicted"`
	Dropped       int           `json:"dropped"`
	SkippedEmpty  int           `json:"skipped_empty"`
	Path          string        `json:"path"`
	Duration      time.Duration `json:"duration_ns"`
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("mailpairs"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// Close flushes pending events and closes the connection.
func (c *Client) Close() {
	if err := c.conn.Flush(); err != nil {
		c.logger.Debug("nats flush failed", "error", err)
	}
	c.conn.Close()
}
