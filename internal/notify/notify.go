// Package notify posts snapshot run summaries to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/config"
	"github.com/dgnsrekt/gexdash/internal/export"
)

// Notifier reports the outcome of a snapshot run.
type Notifier interface {
	SendSuccess(ctx context.Context, result *export.BatchResult, duration time.Duration) error
	SendFailure(ctx context.Context, result *export.BatchResult, duration time.Duration, err error) error
}

// Client posts to an ntfy server.
type Client struct {
	http     *http.Client
	endpoint string
	token    string
	tags     []string
	priority string
	logger   *zap.Logger
}

func NewClient(cfg config.NotifyConfig, logger *zap.Logger) *Client {
	return &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		endpoint: strings.TrimSuffix(cfg.Server, "/") + "/" + cfg.Topic,
		token:    cfg.Token,
		tags:     strings.Split(cfg.Tags, ","),
		priority: cfg.Priority,
		logger:   logger.With(zap.String("component", "notify")),
	}
}

func (c *Client) SendSuccess(ctx context.Context, result *export.BatchResult, duration time.Duration) error {
	return c.Publish(ctx, SuccessMessage(result, duration, c.tags, c.priority))
}

func (c *Client) SendFailure(ctx context.Context, result *export.BatchResult, duration time.Duration, err error) error {
	return c.Publish(ctx, FailureMessage(result, duration, err, c.tags))
}

// Publish posts m to the configured topic. Any non-2xx answer is an error.
func (c *Client) Publish(ctx context.Context, m Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(m.Body))
	if err != nil {
		return fmt.Errorf("building ntfy request: %w", err)
	}
	req.Header.Set("Title", m.Title)
	if m.Priority != "" {
		req.Header.Set("Priority", m.Priority)
	}
	if tags := m.headerTags(); tags != "" {
		req.Header.Set("Tags", tags)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("ntfy unreachable", zap.Error(err))
		return fmt.Errorf("posting to ntfy: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		c.logger.Warn("ntfy rejected message", zap.Int("status", resp.StatusCode), zap.String("title", m.Title))
		return fmt.Errorf("ntfy answered %d", resp.StatusCode)
	}
	c.logger.Debug("notification sent", zap.String("title", m.Title))
	return nil
}

// NoopNotifier is used when notifications are disabled.
type NoopNotifier struct{}

func (NoopNotifier) SendSuccess(context.Context, *export.BatchResult, time.Duration) error {
	return nil
}

func (NoopNotifier) SendFailure(context.Context, *export.BatchResult, time.Duration, error) error {
	return nil
}

// New returns a Client when notifications are enabled and a NoopNotifier
// otherwise.
func New(cfg config.NotifyConfig, logger *zap.Logger) Notifier {
	if !cfg.Enabled {
		return NoopNotifier{}
	}
	return NewClient(cfg, logger)
}
