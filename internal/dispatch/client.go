package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client posts outbound events to the decision service. Delivery is
// best-effort and at-most-once: Dispatch returns an error for the caller to
// log, but nothing is queued or retried, and a failed delivery never blocks
// the ingestion cursor.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *zap.Logger
}

// New creates a dispatch client for the given base URL.
func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Dispatch delivers one event to its intent route.
func (c *Client) Dispatch(ctx context.Context, evt Event) error {
	raw, err := json.Marshal(evt.body())
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	url := c.baseURL + evt.route()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", evt.route(), err)
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: http %d", evt.route(), resp.StatusCode)
	}

	c.logger.Info("event dispatched",
		zap.String("event_id", evt.EventID),
		zap.String("route", evt.route()))
	return nil
}
