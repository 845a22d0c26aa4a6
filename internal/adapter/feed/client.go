// Package feed implements the client for the external catalog and price
// snapshot API. The feed is an untrusted network boundary: every call has
// a timeout, and any transport or HTTP failure aborts the caller's cycle.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"itemsearch/internal/domain"
)

// Client fetches full item-mapping and latest-price snapshots.
type Client struct {
	mappingURL string
	latestURL  string
	userAgent  string
	client     *http.Client
}

// NewClient creates a feed client. The user agent is required by the feed
// operator; timeout bounds every request so a stalled feed cannot starve
// the sync loop.
func NewClient(mappingURL, latestURL, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		mappingURL: mappingURL,
		latestURL:  latestURL,
		userAgent:  userAgent,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchMapping retrieves the full item-mapping snapshot.
func (c *Client) FetchMapping(ctx context.Context) ([]domain.MappingEntry, error) {
	body, err := c.get(ctx, c.mappingURL)
	if err != nil {
		return nil, &domain.FeedError{Endpoint: "mapping", Err: err}
	}

	var entries []domain.MappingEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &domain.FeedError{Endpoint: "mapping", Err: fmt.Errorf("decode: %w", err)}
	}

	return entries, nil
}

// latestResponse mirrors the feed payload: {"data": {"<id>": {high, low}}}.
type latestResponse struct {
	Data map[string]domain.PriceQuote `json:"data"`
}

// FetchLatestPrices retrieves the full latest-price snapshot keyed by item
// id. Entries with an unparsable id or with both prices absent are dropped.
func (c *Client) FetchLatestPrices(ctx context.Context) (map[int64]domain.PriceQuote, error) {
	body, err := c.get(ctx, c.latestURL)
	if err != nil {
		return nil, &domain.FeedError{Endpoint: "latest", Err: err}
	}

	var resp latestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.FeedError{Endpoint: "latest", Err: fmt.Errorf("decode: %w", err)}
	}

	prices := make(map[int64]domain.PriceQuote, len(resp.Data))
	for idStr, quote := range resp.Data {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		if quote.High == nil && quote.Low == nil {
			continue
		}
		prices[id] = quote
	}

	return prices, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}
