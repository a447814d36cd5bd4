package store

import (
	"database/sql"
)

// WatchlistStore watchlist storage
type WatchlistStore struct {
	db *DBDriver
}

// Watchlist a named set of tracked markets
type Watchlist struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Name      string           `json:"name"`
	IsDefault bool             `json:"is_default"`
	Items     []*WatchlistItem `json:"items,omitempty"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

// WatchlistItem one tracked market within a watchlist
type WatchlistItem struct {
	WatchlistID string `json:"watchlist_id"`
	MarketID    string `json:"market_id"`
	TokenID     string `json:"token_id,omitempty"`
	Position    int    `json:"position"`
	Note        string `json:"note,omitempty"`
	AddedAt     string `json:"added_at"`
}

func (s *WatchlistStore) initTables() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS watchlists (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS watchlist_items (
			watchlist_id TEXT NOT NULL,
			market_id TEXT NOT NULL,
			token_id TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT '',
			added_at TEXT NOT NULL,
			PRIMARY KEY (watchlist_id, market_id)
		)
	`); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_watchlists_user ON watchlists(user_id)
	`)
	return err
}

// Create creates a watchlist
func (s *WatchlistStore) Create(w *Watchlist) error {
	now := nowString()
	w.CreatedAt = now
	w.UpdatedAt = now
	_, err := s.db.Exec(`
		INSERT INTO watchlists (id, user_id, name, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, w.ID, w.UserID, w.Name, w.IsDefault, now, now)
	return err
}

// Get returns a watchlist (with items) owned by the user
func (s *WatchlistStore) Get(userID, watchlistID string) (*Watchlist, error) {
	var w Watchlist
	err := s.db.QueryRow(`
		SELECT id, user_id, name, is_default, created_at, updated_at
		FROM watchlists WHERE id = ? AND user_id = ?
	`, watchlistID, userID).Scan(&w.ID, &w.UserID, &w.Name, &w.IsDefault, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	items, err := s.Items(watchlistID)
	if err != nil {
		return nil, err
	}
	w.Items = items
	return &w, nil
}

// List returns all of a user's watchlists, without items
func (s *WatchlistStore) List(userID string) ([]*Watchlist, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, is_default, created_at, updated_at
		FROM watchlists WHERE user_id = ? ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []*Watchlist
	for rows.Next() {
		var w Watchlist
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.IsDefault, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		lists = append(lists, &w)
	}
	return lists, rows.Err()
}

// Rename updates the watchlist name
func (s *WatchlistStore) Rename(userID, watchlistID, name string) error {
	res, err := s.db.Exec(`
		UPDATE watchlists SET name = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, name, nowString(), watchlistID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a watchlist and its items
func (s *WatchlistStore) Delete(userID, watchlistID string) error {
	res, err := s.db.Exec(`DELETE FROM watchlists WHERE id = ? AND user_id = ?`, watchlistID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	_, err = s.db.Exec(`DELETE FROM watchlist_items WHERE watchlist_id = ?`, watchlistID)
	return err
}

// Items returns items ordered by position
func (s *WatchlistStore) Items(watchlistID string) ([]*WatchlistItem, error) {
	rows, err := s.db.Query(`
		SELECT watchlist_id, market_id, token_id, position, note, added_at
		FROM watchlist_items WHERE watchlist_id = ? ORDER BY position, added_at
	`, watchlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*WatchlistItem
	for rows.Next() {
		var it WatchlistItem
		if err := rows.Scan(&it.WatchlistID, &it.MarketID, &it.TokenID, &it.Position, &it.Note, &it.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// AddItem appends a market to the watchlist (idempotent on market_id)
func (s *WatchlistStore) AddItem(it *WatchlistItem) error {
	var maxPos sql.NullInt64
	if err := s.db.QueryRow(`
		SELECT MAX(position) FROM watchlist_items WHERE watchlist_id = ?
	`, it.WatchlistID).Scan(&maxPos); err != nil {
		return err
	}
	it.Position = int(maxPos.Int64) + 1
	it.AddedAt = nowString()
	_, err := s.db.Exec(`
		INSERT INTO watchlist_items (watchlist_id, market_id, token_id, position, note, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(watchlist_id, market_id) DO UPDATE SET token_id = excluded.token_id, note = excluded.note
	`, it.WatchlistID, it.MarketID, it.TokenID, it.Position, it.Note, it.AddedAt)
	return err
}

// RemoveItem drops a market from the watchlist
func (s *WatchlistStore) RemoveItem(watchlistID, marketID string) error {
	res, err := s.db.Exec(`
		DELETE FROM watchlist_items WHERE watchlist_id = ? AND market_id = ?
	`, watchlistID, marketID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Reorder rewrites item positions to match the given market ID order.
// Markets not mentioned keep their relative order after the listed ones.
func (s *WatchlistStore) Reorder(watchlistID string, marketIDs []string) error {
	for i, marketID := range marketIDs {
		if _, err := s.db.Exec(`
			UPDATE watchlist_items SET position = ? WHERE watchlist_id = ? AND market_id = ?
		`, i, watchlistID, marketID); err != nil {
			return err
		}
	}
	return nil
}

// SubscriberIDs returns the distinct owners of watchlists containing the
// market or token; anomaly notifications fan out to these users only.
func (s *WatchlistStore) SubscriberIDs(marketID, tokenID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT w.user_id FROM watchlists w
		JOIN watchlist_items i ON i.watchlist_id = w.id
		WHERE i.token_id = ? OR (? != '' AND i.market_id = ?)
	`, tokenID, marketID, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AllMarketIDs returns the distinct market IDs across every watchlist,
// used to seed the market pool subscription set.
func (s *WatchlistStore) AllMarketIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT market_id FROM watchlist_items`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
