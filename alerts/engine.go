package alerts

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"polyterm/logger"
	"polyterm/notify"
	"polyterm/polymarket"
	"polyterm/store"
)

// Quotes provides current prices; implemented by market.Monitor
type Quotes interface {
	Price(ctx context.Context, assetID string) (decimal.Decimal, error)
	Spread(ctx context.Context, assetID string) (decimal.Decimal, error)
}

// Markets resolves market metadata; implemented by pool.MarketPool
type Markets interface {
	Market(idOrSlug string) *polymarket.Market
}

// TelegramSender is satisfied by notify.TelegramNotifier
type TelegramSender interface {
	Enabled() bool
	Send(chatID int64, html string) error
}

// WebhookPoster is satisfied by notify.WebhookClient
type WebhookPoster interface {
	Post(ctx context.Context, url string, payload notify.WebhookPayload) error
}

// Engine periodically evaluates every enabled alert and dispatches firings
// to the alert's configured channels.
type Engine struct {
	store    *store.Store
	quotes   Quotes
	markets  Markets
	telegram TelegramSender
	webhook  WebhookPoster
	detector *Detector
	interval time.Duration

	mu   sync.Mutex
	prev map[string]map[string]float64 // alertID -> metric -> last seen value

	done      chan struct{}
	closeOnce sync.Once
}

func NewEngine(st *store.Store, quotes Quotes, markets Markets, telegram TelegramSender, webhook WebhookPoster, detector *Detector, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Engine{
		store:    st,
		quotes:   quotes,
		markets:  markets,
		telegram: telegram,
		webhook:  webhook,
		detector: detector,
		interval: interval,
		prev:     make(map[string]map[string]float64),
		done:     make(chan struct{}),
	}
}

// Run evaluates on a ticker until Stop or ctx cancellation
func (e *Engine) Run(ctx context.Context) {
	logger.Infof("✓ Alert engine started (interval %s)", e.interval)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Stop terminates Run
func (e *Engine) Stop() {
	e.closeOnce.Do(func() { close(e.done) })
}

// Tick runs one evaluation pass over all enabled alerts
func (e *Engine) Tick(ctx context.Context) {
	enabled, err := e.store.Alert().ListEnabled()
	if err != nil {
		logger.Errorf("❌ Failed to load enabled alerts: %v", err)
		return
	}
	for _, a := range enabled {
		if err := e.evaluate(ctx, a); err != nil {
			logger.Warnf("⚠️ Alert %s evaluation failed: %v", a.ID, err)
		}
	}
}

func (e *Engine) evaluate(ctx context.Context, a *store.Alert) error {
	cond, err := a.ParseConditions()
	if err != nil {
		return err
	}

	// cooldown gate
	if a.LastTriggeredAt != nil && a.CooldownSeconds > 0 {
		if time.Since(*a.LastTriggeredAt) < time.Duration(a.CooldownSeconds)*time.Second {
			return nil
		}
	}

	metrics, err := e.collectMetrics(ctx, cond)
	if err != nil {
		return err
	}

	e.mu.Lock()
	prev := e.prev[a.ID]
	fired, reason := EvaluateConditions(cond, metrics, prev)
	e.prev[a.ID] = metrics
	e.mu.Unlock()

	if !fired {
		return nil
	}

	price := metrics[MetricPrice]
	if err := e.store.Alert().RecordTrigger(a.ID, price, reason); err != nil {
		logger.Errorf("❌ Failed to record trigger for alert %s: %v", a.ID, err)
	}
	logger.Infof("🔔 Alert fired: %s (%s)", a.Name, reason)
	e.dispatch(ctx, a, cond, price, reason)
	return nil
}

// collectMetrics resolves the current value for every metric the condition
// tree references.
func (e *Engine) collectMetrics(ctx context.Context, cond *store.AlertConditions) (map[string]float64, error) {
	tokenID := cond.TokenID
	var m *polymarket.Market
	if e.markets != nil {
		m = e.markets.Market(cond.MarketID)
	}
	if tokenID == "" && m != nil && len(m.ClobTokenIDs) > 0 {
		tokenID = m.ClobTokenIDs[0] // YES token by convention
	}

	metrics := make(map[string]float64)
	for _, rule := range cond.Rules {
		if _, ok := metrics[rule.Metric]; ok {
			continue
		}
		switch rule.Metric {
		case MetricPrice:
			if tokenID == "" {
				continue
			}
			p, err := e.quotes.Price(ctx, tokenID)
			if err != nil {
				return nil, err
			}
			metrics[MetricPrice], _ = p.Float64()
		case MetricSpread:
			if tokenID == "" {
				continue
			}
			s, err := e.quotes.Spread(ctx, tokenID)
			if err != nil {
				continue
			}
			metrics[MetricSpread], _ = s.Float64()
		case MetricVolume24h:
			if m != nil {
				metrics[MetricVolume24h] = m.Volume24hr
			}
		case MetricLiquidity:
			if m != nil {
				if v, err := strconv.ParseFloat(m.Liquidity, 64); err == nil {
					metrics[MetricLiquidity] = v
				}
			}
		case MetricHeatScore:
			if e.detector != nil && tokenID != "" {
				metrics[MetricHeatScore] = e.detector.HeatScore(tokenID)
			}
		}
	}
	return metrics, nil
}

func (e *Engine) dispatch(ctx context.Context, a *store.Alert, cond *store.AlertConditions, price float64, reason string) {
	channels, err := a.ParseChannels()
	if err != nil {
		logger.Warnf("⚠️ Alert %s has invalid channels: %v", a.ID, err)
		return
	}

	question := a.MarketID
	if e.markets != nil {
		if m := e.markets.Market(cond.MarketID); m != nil {
			question = m.Question
		}
	}

	if channels.InApp {
		n := &store.Notification{
			ID:       uuid.New().String(),
			UserID:   a.UserID,
			Kind:     "alert",
			Title:    a.Name,
			Body:     reason,
			MarketID: a.MarketID,
		}
		if err := e.store.Notification().Create(n); err != nil {
			logger.Errorf("❌ Failed to create notification: %v", err)
		}
	}

	if channels.Telegram && e.telegram != nil && e.telegram.Enabled() {
		msg := notify.FormatAlert(a.Name, question, price, reason)
		if err := e.telegram.Send(channels.TelegramChatID, msg); err != nil {
			logger.Warnf("⚠️ Telegram dispatch failed for alert %s: %v", a.ID, err)
		}
	}

	if channels.WebhookURL != "" && e.webhook != nil {
		payload := notify.WebhookPayload{
			Event:     "alert",
			AlertID:   a.ID,
			AlertName: a.Name,
			MarketID:  a.MarketID,
			Question:  question,
			Price:     price,
			Message:   reason,
		}
		if err := e.webhook.Post(ctx, channels.WebhookURL, payload); err != nil {
			logger.Warnf("⚠️ Webhook dispatch failed for alert %s: %v", a.ID, err)
		}
	}
}
