package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// WebhookPayload JSON body posted to user webhooks
type WebhookPayload struct {
	Event     string  `json:"event"` // "alert" | "anomaly" | "test"
	AlertID   string  `json:"alert_id,omitempty"`
	AlertName string  `json:"alert_name,omitempty"`
	MarketID  string  `json:"market_id,omitempty"`
	Question  string  `json:"question,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Message   string  `json:"message"`
	Timestamp int64   `json:"timestamp"`
}

// WebhookClient posts payloads with bounded retry. Retries transport errors
// and 5xx/408/429; other 4xx responses fail immediately since a bad URL or
// auth will not heal on retry.
type WebhookClient struct {
	httpClient  *http.Client
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func NewWebhookClient() *WebhookClient {
	return &WebhookClient{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		maxAttempts: 3,
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  5 * time.Second,
	}
}

// Post delivers the payload, retrying per the client policy
func (c *WebhookClient) Post(ctx context.Context, url string, payload WebhookPayload) error {
	if payload.Timestamp == 0 {
		payload.Timestamp = time.Now().Unix()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.attempt(ctx, url, body)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == c.maxAttempts {
			break
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Str("url", url).Msg("webhook delivery failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", c.maxAttempts, lastErr)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		if se.code == http.StatusRequestTimeout || se.code == http.StatusTooManyRequests {
			return true
		}
		return se.code >= 500
	}
	// transport errors retry
	return true
}

func (c *WebhookClient) attempt(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &statusError{code: http.StatusBadRequest, body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{code: resp.StatusCode, body: string(respBody)}
}
