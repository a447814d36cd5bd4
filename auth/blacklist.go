package auth

import (
	"sync"
	"time"
)

// Token blacklist for logout. Entries expire with the token itself.
var (
	blacklist   = make(map[string]time.Time)
	blacklistMu sync.RWMutex
	janitorOnce sync.Once
)

// BlacklistToken marks a token as revoked until its expiry.
func BlacklistToken(token string, expiresAt time.Time) {
	blacklistMu.Lock()
	blacklist[token] = expiresAt
	blacklistMu.Unlock()

	janitorOnce.Do(func() {
		go janitor()
	})
}

// IsTokenBlacklisted reports whether a token has been revoked.
func IsTokenBlacklisted(token string) bool {
	blacklistMu.RLock()
	defer blacklistMu.RUnlock()
	exp, ok := blacklist[token]
	if !ok {
		return false
	}
	return time.Now().Before(exp)
}

// janitor sweeps expired entries so the map does not grow unbounded.
func janitor() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		blacklistMu.Lock()
		for token, exp := range blacklist {
			if now.After(exp) {
				delete(blacklist, token)
			}
		}
		blacklistMu.Unlock()
	}
}
