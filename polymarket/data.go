package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultDataURL = "https://data-api.polymarket.com"

// DataClient reads public activity from the Polymarket Data API: trade
// prints, wallet positions and top holders. No auth required.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewDataClient(baseURL string) *DataClient {
	if baseURL == "" {
		baseURL = DefaultDataURL
	}
	return &DataClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Trades returns recent public prints, optionally filtered by market
// (condition id) and/or user wallet.
func (c *DataClient) Trades(ctx context.Context, conditionID, user string, limit int) ([]PublicTrade, error) {
	v := url.Values{}
	if conditionID != "" {
		v.Set("market", conditionID)
	}
	if user != "" {
		v.Set("user", user)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var trades []PublicTrade
	if err := c.getJSON(ctx, "/trades", v, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// Positions returns a wallet's current holdings. sizeThreshold filters dust.
func (c *DataClient) Positions(ctx context.Context, user string, sizeThreshold float64) ([]Position, error) {
	if user == "" {
		return nil, fmt.Errorf("user address required")
	}
	v := url.Values{}
	v.Set("user", user)
	if sizeThreshold > 0 {
		v.Set("sizeThreshold", strconv.FormatFloat(sizeThreshold, 'f', -1, 64))
	}
	v.Set("sortBy", "CURRENT")
	v.Set("sortDirection", "DESC")
	var positions []Position
	if err := c.getJSON(ctx, "/positions", v, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// Holders returns the top holders of a market's outcome tokens
func (c *DataClient) Holders(ctx context.Context, conditionID string, limit int) ([]Holder, error) {
	v := url.Values{}
	v.Set("market", conditionID)
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	// /holders wraps the rows per token
	var result []struct {
		Token   string   `json:"token"`
		Holders []Holder `json:"holders"`
	}
	if err := c.getJSON(ctx, "/holders", v, &result); err != nil {
		return nil, err
	}
	var holders []Holder
	for _, t := range result {
		holders = append(holders, t.Holders...)
	}
	return holders, nil
}

func (c *DataClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
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
		return fmt.Errorf("data API error %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	return nil
}
