// Package market maintains live order-book snapshots for watched Polymarket
// outcome tokens over the CLOB market websocket channel.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"polyterm/polymarket"
)

const DefaultWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

// BookSnapshot latest known state for one outcome token
type BookSnapshot struct {
	AssetID   string          `json:"asset_id"`
	BestBid   decimal.Decimal `json:"best_bid"`
	BestAsk   decimal.Decimal `json:"best_ask"`
	Mid       decimal.Decimal `json:"mid"`
	Spread    decimal.Decimal `json:"spread"`
	LastTrade decimal.Decimal `json:"last_trade"`
	BidDepth  decimal.Decimal `json:"bid_depth"`
	AskDepth  decimal.Decimal `json:"ask_depth"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Monitor subscribes to the CLOB market channel and keeps one BookSnapshot
// per asset. Lookups fall back to the REST midpoint when the socket has no
// fresh data for a token.
type Monitor struct {
	wsURL string
	clob  *polymarket.CLOBClient

	mu        sync.RWMutex
	conn      *websocket.Conn
	assetIDs  []string
	snapshots map[string]*BookSnapshot

	updates   chan BookSnapshot
	done      chan struct{}
	stopped   chan struct{}
	started   bool
	closeOnce sync.Once
	staleTTL  time.Duration
}

func NewMonitor(wsURL string, clob *polymarket.CLOBClient) *Monitor {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &Monitor{
		wsURL:     wsURL,
		clob:      clob,
		snapshots: make(map[string]*BookSnapshot),
		updates:   make(chan BookSnapshot, 1000),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		staleTTL:  30 * time.Second,
	}
}

// Updates streams every snapshot change; the anomaly scanner consumes this.
// Messages are dropped, not blocked on, when the consumer lags.
func (m *Monitor) Updates() <-chan BookSnapshot { return m.updates }

// Start dials the socket and keeps it alive until Close. Safe to call with an
// empty asset list; Subscribe can extend it later.
func (m *Monitor) Start(assetIDs []string) {
	m.mu.Lock()
	m.assetIDs = append([]string(nil), assetIDs...)
	alreadyStarted := m.started
	m.started = true
	m.mu.Unlock()
	if alreadyStarted {
		return
	}
	go func() {
		m.run()
		close(m.stopped)
	}()
}

// Subscribe adds tokens to the watched set. The socket is re-dialed since the
// CLOB market channel takes its asset list at subscription time.
func (m *Monitor) Subscribe(assetIDs []string) {
	m.mu.Lock()
	known := make(map[string]bool, len(m.assetIDs))
	for _, id := range m.assetIDs {
		known[id] = true
	}
	added := false
	for _, id := range assetIDs {
		if id != "" && !known[id] {
			m.assetIDs = append(m.assetIDs, id)
			known[id] = true
			added = true
		}
	}
	conn := m.conn
	m.mu.Unlock()

	if added && conn != nil {
		conn.Close() // run loop reconnects with the new list
	}
}

// Snapshot returns the live snapshot for a token, nil when none is fresh
func (m *Monitor) Snapshot(assetID string) *BookSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[assetID]
	if !ok || time.Since(snap.UpdatedAt) > m.staleTTL {
		return nil
	}
	copied := *snap
	return &copied
}

// Price returns the current mid for a token, hitting CLOB REST when the
// socket snapshot is missing or stale.
func (m *Monitor) Price(ctx context.Context, assetID string) (decimal.Decimal, error) {
	if snap := m.Snapshot(assetID); snap != nil && !snap.Mid.IsZero() {
		return snap.Mid, nil
	}
	if m.clob == nil {
		return decimal.Zero, fmt.Errorf("no snapshot for %s and no REST fallback", assetID)
	}
	return m.clob.GetMidpoint(ctx, assetID)
}

// Spread returns the current spread for a token with REST fallback
func (m *Monitor) Spread(ctx context.Context, assetID string) (decimal.Decimal, error) {
	if snap := m.Snapshot(assetID); snap != nil {
		return snap.Spread, nil
	}
	if m.clob == nil {
		return decimal.Zero, fmt.Errorf("no snapshot for %s and no REST fallback", assetID)
	}
	return m.clob.GetSpread(ctx, assetID)
}

func (m *Monitor) run() {
	backoff := time.Second
	for {
		select {
		case <-m.done:
			return
		default:
		}

		m.mu.RLock()
		assets := append([]string(nil), m.assetIDs...)
		m.mu.RUnlock()

		if len(assets) == 0 {
			select {
			case <-m.done:
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		if err := m.connectAndRead(assets); err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			log.Warn().Err(err).Dur("backoff", backoff).Msg("market socket dropped, reconnecting")
			select {
			case <-m.done:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}
		backoff = time.Second
	}
}

func (m *Monitor) connectAndRead(assets []string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(m.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	defer func() {
		conn.Close()
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
	}()

	sub := map[string]interface{}{
		"type":       "market",
		"assets_ids": assets,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	log.Info().Int("assets", len(assets)).Msg("✅ Market socket subscribed")

	// CLOB drops idle connections; PING every 10s
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		m.handleMessage(message)
	}
}

// wsEvent covers the market-channel event types we consume: "book" carries a
// full snapshot, "price_change" single-level deltas, "last_trade_price" prints.
type wsEvent struct {
	EventType string                 `json:"event_type"`
	AssetID   string                 `json:"asset_id"`
	Market    string                 `json:"market"`
	Bids      []polymarket.BookLevel `json:"bids"`
	Asks      []polymarket.BookLevel `json:"asks"`
	Price     string                 `json:"price"`
	Changes   []struct {
		Price string `json:"price"`
		Side  string `json:"side"`
		Size  string `json:"size"`
	} `json:"price_changes"`
}

func (m *Monitor) handleMessage(message []byte) {
	if string(message) == "PONG" {
		return
	}
	// events can arrive singly or batched in an array
	var events []wsEvent
	if err := json.Unmarshal(message, &events); err != nil {
		var single wsEvent
		if err := json.Unmarshal(message, &single); err != nil {
			log.Debug().Err(err).Msg("unparseable market event")
			return
		}
		events = []wsEvent{single}
	}
	for _, ev := range events {
		m.applyEvent(ev)
	}
}

func (m *Monitor) applyEvent(ev wsEvent) {
	if ev.AssetID == "" {
		return
	}
	switch ev.EventType {
	case "book":
		book := &polymarket.OrderBook{AssetID: ev.AssetID, Bids: ev.Bids, Asks: ev.Asks}
		snap := BookSnapshot{
			AssetID:   ev.AssetID,
			BestBid:   book.BestBid(),
			BestAsk:   book.BestAsk(),
			Mid:       book.Mid(),
			Spread:    book.SpreadValue(),
			BidDepth:  sumSizes(ev.Bids),
			AskDepth:  sumSizes(ev.Asks),
			UpdatedAt: time.Now(),
		}
		m.store(snap)
	case "last_trade_price":
		price, err := decimal.NewFromString(ev.Price)
		if err != nil {
			return
		}
		m.mu.Lock()
		snap, ok := m.snapshots[ev.AssetID]
		if !ok {
			snap = &BookSnapshot{AssetID: ev.AssetID}
			m.snapshots[ev.AssetID] = snap
		}
		snap.LastTrade = price
		snap.UpdatedAt = time.Now()
		copied := *snap
		m.mu.Unlock()
		m.publish(copied)
	case "price_change":
		// deltas only move the top of book when they beat it; rather than
		// replay the ladder, refresh the touched side bounds
		m.mu.Lock()
		snap, ok := m.snapshots[ev.AssetID]
		if ok {
			for _, ch := range ev.Changes {
				p, err := decimal.NewFromString(ch.Price)
				if err != nil {
					continue
				}
				if ch.Side == "BUY" && p.GreaterThan(snap.BestBid) {
					snap.BestBid = p
				}
				if ch.Side == "SELL" && (snap.BestAsk.IsZero() || p.LessThan(snap.BestAsk)) {
					snap.BestAsk = p
				}
			}
			if !snap.BestBid.IsZero() && !snap.BestAsk.IsZero() {
				snap.Mid = snap.BestBid.Add(snap.BestAsk).Div(decimal.NewFromInt(2))
				snap.Spread = snap.BestAsk.Sub(snap.BestBid)
			}
			snap.UpdatedAt = time.Now()
		}
		var copied BookSnapshot
		if ok {
			copied = *snap
		}
		m.mu.Unlock()
		if ok {
			m.publish(copied)
		}
	}
}

func (m *Monitor) store(snap BookSnapshot) {
	m.mu.Lock()
	m.snapshots[snap.AssetID] = &snap
	m.mu.Unlock()
	m.publish(snap)
}

func (m *Monitor) publish(snap BookSnapshot) {
	select {
	case m.updates <- snap:
	default:
	}
}

func sumSizes(levels []polymarket.BookLevel) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range levels {
		sz, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			continue
		}
		total = total.Add(sz)
	}
	return total
}

// Close stops the monitor and its socket, then closes the updates channel so
// consumers ranging over it return. Waits for the run loop, the only
// producer, before closing.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.mu.Lock()
		if m.conn != nil {
			m.conn.Close()
			m.conn = nil
		}
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.stopped
		}
		close(m.updates)
	})
}
