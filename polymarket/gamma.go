package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultGammaURL = "https://gamma-api.polymarket.com"

// ErrNotFound is returned when a slug or token id resolves to nothing
var ErrNotFound = errors.New("not found")

// GammaClient reads market/event metadata from the Gamma API. All endpoints
// are public; no auth headers are needed.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a Gamma client. Empty baseURL uses the production API.
func NewGammaClient(baseURL string) *GammaClient {
	if baseURL == "" {
		baseURL = DefaultGammaURL
	}
	return &GammaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// MarketQuery filters for ListMarkets
type MarketQuery struct {
	Limit  int
	Offset int
	Active *bool
	Closed *bool
	Tag    string
	Search string
	Order  string // e.g. "volume24hr"
	IDs    []string
}

func (q MarketQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Active != nil {
		v.Set("active", strconv.FormatBool(*q.Active))
	}
	if q.Closed != nil {
		v.Set("closed", strconv.FormatBool(*q.Closed))
	}
	if q.Tag != "" {
		v.Set("tag_slug", q.Tag)
	}
	if q.Search != "" {
		v.Set("slug_contains", q.Search)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
		v.Set("ascending", "false")
	}
	for _, id := range q.IDs {
		v.Add("id", id)
	}
	return v
}

// ListMarkets returns markets matching the query
func (c *GammaClient) ListMarkets(ctx context.Context, q MarketQuery) ([]Market, error) {
	var markets []Market
	if err := c.getJSON(ctx, "/markets", q.values(), &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// GetMarketBySlug looks a market up by its URL slug
func (c *GammaClient) GetMarketBySlug(ctx context.Context, slug string) (*Market, error) {
	v := url.Values{}
	v.Set("slug", slug)
	var markets []Market
	if err := c.getJSON(ctx, "/markets", v, &markets); err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("market %s: %w", slug, ErrNotFound)
	}
	return &markets[0], nil
}

// GetMarketByTokenID resolves a CLOB token id back to its market
func (c *GammaClient) GetMarketByTokenID(ctx context.Context, tokenID string) (*Market, error) {
	v := url.Values{}
	v.Set("clob_token_ids", tokenID)
	var markets []Market
	if err := c.getJSON(ctx, "/markets", v, &markets); err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("no market for token %s: %w", tokenID, ErrNotFound)
	}
	return &markets[0], nil
}

// ListEvents returns events matching the query
func (c *GammaClient) ListEvents(ctx context.Context, q MarketQuery) ([]Event, error) {
	var events []Event
	if err := c.getJSON(ctx, "/events", q.values(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetEvent looks an event up by slug
func (c *GammaClient) GetEvent(ctx context.Context, slug string) (*Event, error) {
	v := url.Values{}
	v.Set("slug", slug)
	var events []Event
	if err := c.getJSON(ctx, "/events", v, &events); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event %s: %w", slug, ErrNotFound)
	}
	return &events[0], nil
}

func (c *GammaClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("Gamma API error")
		return fmt.Errorf("gamma API error %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	return nil
}
