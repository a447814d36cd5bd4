package alerts

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyterm/notify"
	"polyterm/polymarket"
	"polyterm/store"
)

type fakeQuotes struct {
	mu     sync.Mutex
	price  decimal.Decimal
	spread decimal.Decimal
}

func (q *fakeQuotes) setPrice(p string) {
	q.mu.Lock()
	q.price = decimal.RequireFromString(p)
	q.mu.Unlock()
}

func (q *fakeQuotes) Price(_ context.Context, _ string) (decimal.Decimal, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.price, nil
}

func (q *fakeQuotes) Spread(_ context.Context, _ string) (decimal.Decimal, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.spread, nil
}

type fakeMarkets struct {
	markets map[string]*polymarket.Market
}

func (f *fakeMarkets) Market(idOrSlug string) *polymarket.Market {
	return f.markets[idOrSlug]
}

type fakeTelegram struct {
	mu    sync.Mutex
	sends []string
}

func (f *fakeTelegram) Enabled() bool { return true }

func (f *fakeTelegram) Send(_ int64, html string) error {
	f.mu.Lock()
	f.sends = append(f.sends, html)
	f.mu.Unlock()
	return nil
}

type fakeWebhook struct {
	mu    sync.Mutex
	posts []notify.WebhookPayload
}

func (f *fakeWebhook) Post(_ context.Context, _ string, payload notify.WebhookPayload) error {
	f.mu.Lock()
	f.posts = append(f.posts, payload)
	f.mu.Unlock()
	return nil
}

func newEngineFixture(t *testing.T) (*Engine, *store.Store, *fakeQuotes, *fakeTelegram, *fakeWebhook) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.User().Create(&store.User{ID: "u1", Email: "u1@example.com", PasswordHash: "x"}))

	quotes := &fakeQuotes{price: decimal.RequireFromString("0.40")}
	markets := &fakeMarkets{markets: map[string]*polymarket.Market{
		"m1": {
			ID:           "m1",
			Question:     "Will it rain tomorrow?",
			ClobTokenIDs: polymarket.StringList{"tok-yes", "tok-no"},
			Volume24hr:   50000,
			Liquidity:    "120000",
		},
	}}
	tg := &fakeTelegram{}
	wh := &fakeWebhook{}

	eng := NewEngine(st, quotes, markets, tg, wh, nil, 0)
	return eng, st, quotes, tg, wh
}

func createAlert(t *testing.T, st *store.Store, id string, cond store.AlertConditions, ch store.AlertChannels, cooldown int) {
	t.Helper()
	condJSON, err := json.Marshal(cond)
	require.NoError(t, err)
	chJSON, err := json.Marshal(ch)
	require.NoError(t, err)
	require.NoError(t, st.Alert().Create(&store.Alert{
		ID:              id,
		UserID:          "u1",
		Name:            "test alert " + id,
		MarketID:        cond.MarketID,
		Conditions:      string(condJSON),
		Channels:        string(chJSON),
		Enabled:         true,
		CooldownSeconds: cooldown,
	}))
}

func TestEngineTickFiresAndDispatches(t *testing.T) {
	eng, st, quotes, tg, wh := newEngineFixture(t)
	createAlert(t, st, "a1", store.AlertConditions{
		MarketID: "m1",
		Rules:    []store.AlertRule{{Metric: MetricPrice, Op: OpAbove, Value: 0.5}},
	}, store.AlertChannels{InApp: true, Telegram: true, TelegramChatID: 42, WebhookURL: "https://hooks.example.com/x"}, 300)

	// below threshold: nothing happens
	eng.Tick(context.Background())
	a, err := st.Alert().Get("u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, a.TriggerCount)

	quotes.setPrice("0.62")
	eng.Tick(context.Background())

	a, err = st.Alert().Get("u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.TriggerCount)
	require.NotNil(t, a.LastTriggeredAt)

	history, err := st.Alert().History("a1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 0.62, history[0].Price, 1e-9)

	notes, err := st.Notification().List("u1", true, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "alert", notes[0].Kind)
	assert.Equal(t, "m1", notes[0].MarketID)

	require.Len(t, tg.sends, 1)
	assert.Contains(t, tg.sends[0], "Will it rain tomorrow?")

	require.Len(t, wh.posts, 1)
	assert.Equal(t, "a1", wh.posts[0].AlertID)
	assert.InDelta(t, 0.62, wh.posts[0].Price, 1e-9)
}

func TestEngineCooldownSuppressesRefire(t *testing.T) {
	eng, st, quotes, _, _ := newEngineFixture(t)
	createAlert(t, st, "a1", store.AlertConditions{
		MarketID: "m1",
		Rules:    []store.AlertRule{{Metric: MetricPrice, Op: OpAbove, Value: 0.5}},
	}, store.AlertChannels{InApp: true}, 3600)

	quotes.setPrice("0.70")
	eng.Tick(context.Background())
	eng.Tick(context.Background())
	eng.Tick(context.Background())

	a, err := st.Alert().Get("u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.TriggerCount)
}

func TestEngineCrossesAboveNeedsActualCrossing(t *testing.T) {
	eng, st, quotes, _, _ := newEngineFixture(t)
	createAlert(t, st, "a1", store.AlertConditions{
		MarketID: "m1",
		Rules:    []store.AlertRule{{Metric: MetricPrice, Op: OpCrossesAbove, Value: 0.5}},
	}, store.AlertChannels{InApp: true}, 0)

	// already above on the first observation: no previous value, stays quiet
	quotes.setPrice("0.60")
	eng.Tick(context.Background())
	a, err := st.Alert().Get("u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, a.TriggerCount)

	// dips below, then crosses
	quotes.setPrice("0.45")
	eng.Tick(context.Background())
	quotes.setPrice("0.55")
	eng.Tick(context.Background())

	a, err = st.Alert().Get("u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.TriggerCount)
}

func TestEngineAnyModeWithMarketMetrics(t *testing.T) {
	eng, st, _, _, _ := newEngineFixture(t)
	createAlert(t, st, "a1", store.AlertConditions{
		MarketID: "m1",
		Mode:     "any",
		Rules: []store.AlertRule{
			{Metric: MetricVolume24h, Op: OpAbove, Value: 10000},
			{Metric: MetricLiquidity, Op: OpBelow, Value: 1000},
		},
	}, store.AlertChannels{InApp: true}, 300)

	eng.Tick(context.Background())

	a, err := st.Alert().Get("u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.TriggerCount)

	history, err := st.Alert().History("a1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Message, "volume_24h")
	assert.NotContains(t, history[0].Message, "liquidity")
}

func TestEngineDisabledAlertIgnored(t *testing.T) {
	eng, st, quotes, _, _ := newEngineFixture(t)
	createAlert(t, st, "a1", store.AlertConditions{
		MarketID: "m1",
		Rules:    []store.AlertRule{{Metric: MetricPrice, Op: OpAbove, Value: 0.5}},
	}, store.AlertChannels{InApp: true}, 300)
	require.NoError(t, st.Alert().SetEnabled("u1", "a1", false))

	quotes.setPrice("0.99")
	eng.Tick(context.Background())

	a, err := st.Alert().Get("u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, a.TriggerCount)
}
