// Package bus publishes submitted report text to the context-bus service
// and polls its stream statistics.
package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Event is the payload accepted by the context-bus add endpoint.
type Event struct {
	Prompt       string `json:"prompt"`
	UserID       string `json:"user_id,omitempty"`
	ShouldFilter bool   `json:"should_filter"`
}

// Stats summarizes the context-bus streams.
type Stats struct {
	TotalEvents    int    `json:"total_events"`
	FilteredEvents int    `json:"filtered_events"`
	LastEventID    string `json:"last_event_id"`
}

// Client talks to the context-bus HTTP API rooted at a base URL such as
// http://127.0.0.1:8000/api/context-bus.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a context-bus client. A nil httpClient uses a client
// with a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// AddEvent appends a prompt to the context-bus stream.
func (c *Client) AddEvent(ctx context.Context, prompt string) error {
	body, err := json.Marshal(Event{Prompt: prompt, ShouldFilter: true})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/add", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("add event failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return nil
}

// Stats fetches stream statistics.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		return Stats{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Stats{}, fmt.Errorf("stats failed: HTTP %d", resp.StatusCode)
	}

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return Stats{}, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

// Poller periodically fetches context-bus stats and logs them. It exists so
// the daemon notices a dead bus endpoint without waiting for a submission.
type Poller struct {
	client   *Client
	logger   *slog.Logger
	interval time.Duration
}

// NewPoller creates a stats poller. Intervals below one second are raised
// to one second.
func NewPoller(client *Client, logger *slog.Logger, interval time.Duration) *Poller {
	if interval < time.Second {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{client: client, logger: logger, interval: interval}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := p.client.Stats(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Warn("context bus stats poll failed", "error", err)
				continue
			}
			p.logger.Debug("context bus stats",
				"total_events", stats.TotalEvents,
				"filtered_events", stats.FilteredEvents,
				"last_event_id", stats.LastEventID,
			)
		}
	}
}
