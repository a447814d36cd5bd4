package alerts

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"polyterm/logger"
	"polyterm/market"
	"polyterm/polymarket"
	"polyterm/store"
)

// Severity bands for anomaly signals
const (
	SeverityInfo     = "info"
	SeverityWarn     = "warn"
	SeverityCritical = "critical"
)

// Anomaly signal kinds
const (
	AnomalyPriceShock = "price_shock"
	AnomalyBookShift  = "book_imbalance"
)

// Signal one detected anomaly, served by the heat board
type Signal struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	Kind      string    `json:"kind"`
	Severity  string    `json:"severity"`
	ZScore    float64   `json:"z_score"`
	HeatScore float64   `json:"heat_score"`
	Mid       float64   `json:"mid"`
	Message   string    `json:"message"`
	FiredAt   time.Time `json:"fired_at"`
}

// assetWindow rolling stats for one token
type assetWindow struct {
	mids     []float64 // ring buffer, oldest first
	depths   []float64
	lastImb  float64 // bid depth / total depth, 0.5 = balanced
	heat     float64
	lastSeen time.Time
}

// DetectorConfig tuning for the anomaly scanner
type DetectorConfig struct {
	WindowSize    int     // samples kept per asset
	MinSamples    int     // below this no signal fires
	WarnZ         float64 // |z| of mid move for a warn signal
	CriticalZ     float64
	ImbalanceWarn float64 // deviation of bid share from 0.5
	SignalTTL     time.Duration
	MaxSignals    int
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		WindowSize:    120,
		MinSamples:    20,
		WarnZ:         2.5,
		CriticalZ:     4,
		ImbalanceWarn: 0.35,
		SignalTTL:     30 * time.Minute,
		MaxSignals:    200,
	}
}

// TokenResolver maps a CLOB token back to its market; implemented by
// pool.MarketPool. May be nil, fanout then matches watchlist tokens only.
type TokenResolver interface {
	MarketByToken(tokenID string) *polymarket.Market
}

// Detector consumes book snapshots, keeps rolling per-asset stats and emits
// anomaly signals with a composite 0-100 heat score.
type Detector struct {
	cfg     DetectorConfig
	store   *store.Store
	markets TokenResolver

	mu      sync.RWMutex
	windows map[string]*assetWindow
	signals []Signal
}

func NewDetector(st *store.Store, markets TokenResolver, cfg DetectorConfig) *Detector {
	if cfg.WindowSize <= 0 {
		cfg = DefaultDetectorConfig()
	}
	return &Detector{
		cfg:     cfg,
		store:   st,
		markets: markets,
		windows: make(map[string]*assetWindow),
	}
}

// Consume drains monitor updates until the channel closes
func (d *Detector) Consume(updates <-chan market.BookSnapshot) {
	for snap := range updates {
		d.Observe(snap)
	}
}

// Observe folds one snapshot into the rolling stats and fires signals when
// thresholds are crossed.
func (d *Detector) Observe(snap market.BookSnapshot) {
	mid, _ := snap.Mid.Float64()
	if mid <= 0 {
		return
	}
	bidDepth, _ := snap.BidDepth.Float64()
	askDepth, _ := snap.AskDepth.Float64()

	d.mu.Lock()
	w, ok := d.windows[snap.AssetID]
	if !ok {
		w = &assetWindow{}
		d.windows[snap.AssetID] = w
	}

	mean, std := meanStd(w.mids)
	n := len(w.mids)

	w.mids = append(w.mids, mid)
	if len(w.mids) > d.cfg.WindowSize {
		w.mids = w.mids[1:]
	}
	total := bidDepth + askDepth
	if total > 0 {
		w.lastImb = bidDepth / total
		w.depths = append(w.depths, total)
		if len(w.depths) > d.cfg.WindowSize {
			w.depths = w.depths[1:]
		}
	}
	w.lastSeen = time.Now()

	if n < d.cfg.MinSamples || std == 0 {
		w.heat = d.heatLocked(w, 0)
		d.mu.Unlock()
		return
	}

	z := (mid - mean) / std
	w.heat = d.heatLocked(w, z)

	var fired []Signal
	if abs := math.Abs(z); abs >= d.cfg.WarnZ {
		severity := SeverityWarn
		if abs >= d.cfg.CriticalZ {
			severity = SeverityCritical
		}
		fired = append(fired, Signal{
			ID:        uuid.New().String(),
			AssetID:   snap.AssetID,
			Kind:      AnomalyPriceShock,
			Severity:  severity,
			ZScore:    z,
			HeatScore: w.heat,
			Mid:       mid,
			Message:   "mid moved beyond rolling band",
			FiredAt:   time.Now(),
		})
	}
	if dev := math.Abs(w.lastImb - 0.5); dev >= d.cfg.ImbalanceWarn && total > 0 {
		fired = append(fired, Signal{
			ID:        uuid.New().String(),
			AssetID:   snap.AssetID,
			Kind:      AnomalyBookShift,
			Severity:  SeverityInfo,
			ZScore:    z,
			HeatScore: w.heat,
			Mid:       mid,
			Message:   "order book heavily one-sided",
			FiredAt:   time.Now(),
		})
	}
	for _, s := range fired {
		d.signals = append(d.signals, s)
	}
	if len(d.signals) > d.cfg.MaxSignals {
		d.signals = d.signals[len(d.signals)-d.cfg.MaxSignals:]
	}
	d.mu.Unlock()

	for _, s := range fired {
		logger.Infof("📈 Anomaly %s on %s (severity %s, heat %.1f)", s.Kind, s.AssetID, s.Severity, s.HeatScore)
		d.notifySubscribers(s)
	}
}

// heatLocked computes the composite 0-100 heat score. Caller holds the lock.
// Components: magnitude of the mid z-score, depth trend and book imbalance.
func (d *Detector) heatLocked(w *assetWindow, z float64) float64 {
	// price component saturates at |z| = criticalZ → 60 points
	price := math.Min(math.Abs(z)/d.cfg.CriticalZ, 1) * 60

	// depth component: current depth vs window average → 20 points
	depth := 0.0
	if n := len(w.depths); n > 1 {
		mean, _ := meanStd(w.depths[:n-1])
		if mean > 0 {
			ratio := w.depths[n-1] / mean
			depth = math.Min(math.Abs(ratio-1), 1) * 20
		}
	}

	// imbalance component → 20 points
	imb := math.Min(math.Abs(w.lastImb-0.5)/0.5, 1) * 20

	return math.Min(price+depth+imb, 100)
}

// HeatScore returns the current heat for a token, 0 when unknown
func (d *Detector) HeatScore(assetID string) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if w, ok := d.windows[assetID]; ok {
		return w.heat
	}
	return 0
}

// Signals returns live signals, newest first, expired ones pruned
func (d *Detector) Signals() []Signal {
	cutoff := time.Now().Add(-d.cfg.SignalTTL)
	d.mu.Lock()
	kept := d.signals[:0]
	for _, s := range d.signals {
		if s.FiredAt.After(cutoff) {
			kept = append(kept, s)
		}
	}
	d.signals = kept
	out := append([]Signal(nil), d.signals...)
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// notifySubscribers writes an in-app notification for every user whose
// watchlists or alerts reference the asset's market. Without a store this is
// a no-op (tests).
func (d *Detector) notifySubscribers(s Signal) {
	if d.store == nil || s.Severity == SeverityInfo {
		return
	}
	var marketID, marketSlug string
	if d.markets != nil {
		if m := d.markets.MarketByToken(s.AssetID); m != nil {
			marketID = m.ID
			marketSlug = m.Slug
		}
	}

	recipients := make(map[string]bool)
	watchers, err := d.store.Watchlist().SubscriberIDs(marketID, s.AssetID)
	if err != nil {
		logger.Warnf("⚠️ Failed to list watchlist subscribers for anomaly fanout: %v", err)
	}
	for _, id := range watchers {
		recipients[id] = true
	}
	alerters, err := d.store.Alert().SubscriberIDs(marketID, marketSlug)
	if err != nil {
		logger.Warnf("⚠️ Failed to list alert subscribers for anomaly fanout: %v", err)
	}
	for _, id := range alerters {
		recipients[id] = true
	}

	ids := make([]string, 0, len(recipients))
	for id := range recipients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, userID := range ids {
		n := &store.Notification{
			ID:     uuid.New().String(),
			UserID: userID,
			Kind:   "anomaly",
			Title:  "Market anomaly: " + s.Kind,
			Body:   s.Message,
		}
		if err := d.store.Notification().Create(n); err != nil {
			logger.Warnf("⚠️ Failed to store anomaly notification: %v", err)
		}
	}
}

func meanStd(xs []float64) (float64, float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / n
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / n)
}
