// Package pool maintains the set of Polymarket markets the terminal watches:
// a volume-ranked trending slice from Gamma merged with every market an
// enabled alert or watchlist references.
package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"polyterm/logger"
	"polyterm/polymarket"
	"polyterm/store"
)

// Config pool tuning
type Config struct {
	TrendingLimit   int
	CacheDir        string
	CacheTTL        time.Duration // beyond this the cache is warned about but still served
	RefreshInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		TrendingLimit:   50,
		CacheDir:        "market_pool_cache",
		CacheTTL:        24 * time.Hour,
		RefreshInterval: 5 * time.Minute,
	}
}

// poolCache cached trending snapshot for Gamma outages
type poolCache struct {
	Markets    []polymarket.Market `json:"markets"`
	FetchedAt  time.Time           `json:"fetched_at"`
	SourceType string              `json:"source_type"`
}

// MarketPool the watched-market set. Refresh merges three sources: Gamma
// trending, alert markets, watchlist markets. The CLOB token ids of the
// merged set feed the websocket monitor and the anomaly scanner.
type MarketPool struct {
	gamma *polymarket.GammaClient
	store *store.Store
	cfg   Config

	mu      sync.RWMutex
	markets map[string]*polymarket.Market // keyed by market id AND slug
	ordered []*polymarket.Market
}

func New(gamma *polymarket.GammaClient, st *store.Store, cfg Config) *MarketPool {
	if cfg.TrendingLimit <= 0 {
		cfg.TrendingLimit = 50
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	return &MarketPool{
		gamma:   gamma,
		store:   st,
		cfg:     cfg,
		markets: make(map[string]*polymarket.Market),
	}
}

// Refresh rebuilds the pool. Gamma failures fall back to the file cache so an
// upstream outage does not empty the watch set.
func (p *MarketPool) Refresh(ctx context.Context) error {
	trending, err := p.fetchTrending(ctx)
	if err != nil {
		logger.Warnf("⚠️ Trending fetch failed, trying cache: %v", err)
		trending, err = p.loadCache()
		if err != nil {
			logger.Warnf("⚠️ No usable market cache: %v", err)
			trending = nil
		}
	} else if err := p.saveCache(trending); err != nil {
		logger.Warnf("⚠️ Failed to save market pool cache: %v", err)
	}

	merged := make(map[string]*polymarket.Market)
	var ordered []*polymarket.Market
	add := func(m *polymarket.Market) {
		if m == nil || m.ID == "" {
			return
		}
		if _, ok := merged[m.ID]; ok {
			return
		}
		merged[m.ID] = m
		if m.Slug != "" {
			merged[m.Slug] = m
		}
		ordered = append(ordered, m)
	}
	for i := range trending {
		add(&trending[i])
	}

	// Markets referenced by alerts/watchlists stay watched even when they
	// fall out of trending.
	for _, id := range p.watchedIDs() {
		if _, ok := merged[id]; ok {
			continue
		}
		m, err := p.resolveMarket(ctx, id)
		if err != nil {
			logger.Warnf("⚠️ Cannot resolve watched market %s: %v", id, err)
			continue
		}
		add(m)
	}

	p.mu.Lock()
	p.markets = merged
	p.ordered = ordered
	p.mu.Unlock()

	logger.Infof("✓ Market pool refreshed: trending=%d total=%d", len(trending), len(ordered))
	return nil
}

func (p *MarketPool) fetchTrending(ctx context.Context) ([]polymarket.Market, error) {
	active := true
	closed := false
	markets, err := p.gamma.ListMarkets(ctx, polymarket.MarketQuery{
		Limit:  p.cfg.TrendingLimit,
		Active: &active,
		Closed: &closed,
		Order:  "volume24hr",
	})
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("trending market list is empty")
	}
	return markets, nil
}

// watchedIDs collects market ids referenced by enabled alerts and watchlists
func (p *MarketPool) watchedIDs() []string {
	if p.store == nil {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string

	if alerts, err := p.store.Alert().ListEnabled(); err == nil {
		for _, a := range alerts {
			if a.MarketID != "" && !seen[a.MarketID] {
				seen[a.MarketID] = true
				ids = append(ids, a.MarketID)
			}
		}
	} else {
		logger.Warnf("⚠️ Failed to list enabled alerts: %v", err)
	}

	if watched, err := p.store.Watchlist().AllMarketIDs(); err == nil {
		for _, id := range watched {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	} else {
		logger.Warnf("⚠️ Failed to list watchlist markets: %v", err)
	}
	return ids
}

// resolveMarket accepts either a Gamma market id or a slug
func (p *MarketPool) resolveMarket(ctx context.Context, id string) (*polymarket.Market, error) {
	markets, err := p.gamma.ListMarkets(ctx, polymarket.MarketQuery{IDs: []string{id}})
	if err == nil && len(markets) > 0 {
		return &markets[0], nil
	}
	return p.gamma.GetMarketBySlug(ctx, id)
}

// Markets returns the pool in trending order
func (p *MarketPool) Markets() []*polymarket.Market {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*polymarket.Market(nil), p.ordered...)
}

// Market looks up by market id or slug, nil when unknown
func (p *MarketPool) Market(idOrSlug string) *polymarket.Market {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.markets[idOrSlug]
}

// MarketByToken looks up the pooled market carrying the CLOB token,
// nil when no pooled market references it
func (p *MarketPool) MarketByToken(tokenID string) *polymarket.Market {
	if tokenID == "" {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.ordered {
		for _, tok := range m.ClobTokenIDs {
			if tok == tokenID {
				return m
			}
		}
	}
	return nil
}

// TokenIDs returns all CLOB token ids in the pool, for socket subscriptions
func (p *MarketPool) TokenIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, m := range p.ordered {
		for _, tok := range m.ClobTokenIDs {
			if tok != "" && !seen[tok] {
				seen[tok] = true
				ids = append(ids, tok)
			}
		}
	}
	return ids
}

// Run refreshes periodically until ctx is done, calling onChange with the
// current token set after each successful refresh.
func (p *MarketPool) Run(ctx context.Context, onChange func(tokenIDs []string)) {
	ticker := time.NewTicker(p.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		if err := p.Refresh(ctx); err == nil && onChange != nil {
			onChange(p.TokenIDs())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *MarketPool) saveCache(markets []polymarket.Market) error {
	if p.cfg.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(p.cfg.CacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	cache := poolCache{Markets: markets, FetchedAt: time.Now(), SourceType: "api"}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.cfg.CacheDir, "latest.json"), data, 0644)
}

func (p *MarketPool) loadCache() ([]polymarket.Market, error) {
	if p.cfg.CacheDir == "" {
		return nil, fmt.Errorf("cache disabled")
	}
	data, err := os.ReadFile(filepath.Join(p.cfg.CacheDir, "latest.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	var cache poolCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse cache data: %w", err)
	}
	age := time.Since(cache.FetchedAt)
	if age > p.cfg.CacheTTL {
		logger.Warnf("⚠️ Market cache is old (%.1f hours), still usable", age.Hours())
	}
	if len(cache.Markets) == 0 {
		return nil, fmt.Errorf("cache is empty")
	}
	logger.Infof("📂 Using cached market pool (%d markets, %.1f minutes old)", len(cache.Markets), age.Minutes())
	return cache.Markets, nil
}
