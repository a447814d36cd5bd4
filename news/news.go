// Package news aggregates headlines relevant to prediction markets from
// NewsAPI.ai (Event Registry) and Adjacent News.
package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultEventRegistryURL = "https://eventregistry.org/api/v1"
	DefaultAdjacentURL      = "https://api.data.adj.news"
)

// Article normalized headline
type Article struct {
	URI       string  `json:"uri"`
	Title     string  `json:"title"`
	Body      string  `json:"body,omitempty"`
	URL       string  `json:"url"`
	Source    string  `json:"source"`
	Image     string  `json:"image,omitempty"`
	Date      string  `json:"date"`
	Sentiment float64 `json:"sentiment,omitempty"`
}

// UpstreamError keeps the upstream status so the proxy layer can map it
// (401 bad key, 429 quota) instead of collapsing everything to 500.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.StatusCode, e.Body)
}

// NewsAPIClient queries NewsAPI.ai (Event Registry) article search
type NewsAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewNewsAPIClient(baseURL, apiKey string) *NewsAPIClient {
	if baseURL == "" {
		baseURL = DefaultEventRegistryURL
	}
	return &NewsAPIClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SearchArticles runs a keyword search, newest first. page is 1-based.
func (c *NewsAPIClient) SearchArticles(ctx context.Context, keyword, lang string, page, count int) ([]Article, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("news API key not configured")
	}
	if page < 1 {
		page = 1
	}
	if count <= 0 || count > 100 {
		count = 20
	}
	if lang == "" {
		lang = "eng"
	}

	payload := map[string]interface{}{
		"action":         "getArticles",
		"keyword":        keyword,
		"keywordLoc":     "title,body",
		"lang":           lang,
		"articlesPage":   page,
		"articlesCount":  count,
		"articlesSortBy": "date",
		"resultType":     "articles",
		"dataType":       []string{"news"},
		"apiKey":         c.apiKey,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/article/getArticles", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("Event Registry error")
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Articles struct {
			Results []struct {
				URI   string  `json:"uri"`
				Title string  `json:"title"`
				Body  string  `json:"body"`
				URL   string  `json:"url"`
				Image string  `json:"image"`
				Date  string  `json:"dateTimePub"`
				Sent  float64 `json:"sentiment"`
				Src   struct {
					Title string `json:"title"`
				} `json:"source"`
			} `json:"results"`
		} `json:"articles"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("event registry: %s", result.Error)
	}

	articles := make([]Article, 0, len(result.Articles.Results))
	for _, r := range result.Articles.Results {
		articles = append(articles, Article{
			URI:       r.URI,
			Title:     r.Title,
			Body:      r.Body,
			URL:       r.URL,
			Source:    r.Src.Title,
			Image:     r.Image,
			Date:      r.Date,
			Sentiment: r.Sent,
		})
	}
	return articles, nil
}

// RelatedMarket a prediction market surfaced by Adjacent News
type RelatedMarket struct {
	ID          string  `json:"market_id"`
	Question    string  `json:"question"`
	Platform    string  `json:"platform"`
	Probability float64 `json:"probability"`
	Link        string  `json:"link"`
}

// AdjacentClient queries the Adjacent News API for markets and headlines
// related to a query or market.
type AdjacentClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewAdjacentClient(baseURL, apiKey string) *AdjacentClient {
	if baseURL == "" {
		baseURL = DefaultAdjacentURL
	}
	return &AdjacentClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SearchMarkets finds prediction markets related to a free-text query
func (c *AdjacentClient) SearchMarkets(ctx context.Context, query string, limit int) ([]RelatedMarket, error) {
	v := url.Values{}
	v.Set("q", query)
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var result struct {
		Data []RelatedMarket `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/markets/search", v, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// NewsForMarket returns headlines Adjacent associates with a market question
func (c *AdjacentClient) NewsForMarket(ctx context.Context, question string, limit int) ([]Article, error) {
	v := url.Values{}
	v.Set("q", question)
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var result struct {
		Data []struct {
			Title     string `json:"title"`
			URL       string `json:"url"`
			Source    string `json:"source"`
			Published string `json:"published_at"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/news", v, &result); err != nil {
		return nil, err
	}
	articles := make([]Article, 0, len(result.Data))
	for _, r := range result.Data {
		articles = append(articles, Article{
			Title:  r.Title,
			URL:    r.URL,
			Source: r.Source,
			Date:   r.Published,
		})
	}
	return articles, nil
}

func (c *AdjacentClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("adjacent API key not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	return nil
}
