package asx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kangaroo/internal/application/port"
	"kangaroo/internal/domain/model"
)

// Client polls a scrape endpoint that exposes the current ASX table as a
// JSON array of display rows. It returns the full universe each fetch;
// the endpoint contract forbids partial batches.
type Client struct {
	sourceURL string
	client    *http.Client
}

func New(sourceURL string) *Client {
	return &Client{
		sourceURL: sourceURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Name() string { return "asx" }

// Start probes the endpoint once. A failure is reported but not fatal; the
// poll loop retries every cycle anyway.
func (c *Client) Start(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.sourceURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", c.sourceURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) Fetch(ctx context.Context) ([]model.StockRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("source error: %d %s", resp.StatusCode, string(body))
	}

	var rows []model.StockRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) Stop(ctx context.Context) error {
	c.client.CloseIdleConnections()
	return nil
}

var _ port.MarketFeed = (*Client)(nil)
