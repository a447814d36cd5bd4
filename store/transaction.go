package store

import (
	"database/sql"
	"time"
)

// TransactionStore recorded fills/trades per user
type TransactionStore struct {
	db *DBDriver
}

// Transaction one fill, either entered manually or synced from CLOB history
type Transaction struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MarketID   string    `json:"market_id"`
	TokenID    string    `json:"token_id,omitempty"`
	Outcome    string    `json:"outcome,omitempty"` // YES / NO
	Side       string    `json:"side"`              // BUY / SELL
	Price      float64   `json:"price"`
	Size       float64   `json:"size"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Source     string    `json:"source"` // "manual" | "clob_sync"
	ExecutedAt time.Time `json:"executed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// MarketSummary realized aggregate per market
type MarketSummary struct {
	MarketID   string  `json:"market_id"`
	Trades     int     `json:"trades"`
	BuySize    float64 `json:"buy_size"`
	SellSize   float64 `json:"sell_size"`
	NetSize    float64 `json:"net_size"`
	CostBasis  float64 `json:"cost_basis"`
	Proceeds   float64 `json:"proceeds"`
	RealizedPL float64 `json:"realized_pnl"`
}

func (s *TransactionStore) initTables() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			market_id TEXT NOT NULL,
			token_id TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL,
			price REAL NOT NULL,
			size REAL NOT NULL,
			tx_hash TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'manual',
			executed_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id)
	`)
	return err
}

// Create records a transaction
func (s *TransactionStore) Create(t *Transaction) error {
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now().UTC()
	}
	t.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO transactions (id, user_id, market_id, token_id, outcome, side, price, size,
			tx_hash, source, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.MarketID, t.TokenID, t.Outcome, t.Side, t.Price, t.Size,
		t.TxHash, t.Source, t.ExecutedAt.Format(timeFormat), t.CreatedAt.Format(timeFormatPrecise))
	return err
}

// ExistsByTxHash reports whether a synced fill was already recorded;
// used to dedupe CLOB history syncs.
func (s *TransactionStore) ExistsByTxHash(userID, txHash string) (bool, error) {
	if txHash == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM transactions WHERE user_id = ? AND tx_hash = ?
	`, userID, txHash).Scan(&count)
	return count > 0, err
}

// List returns the user's transactions, newest first, optionally for one market
func (s *TransactionStore) List(userID, marketID string, limit int) ([]*Transaction, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	query := `
		SELECT id, user_id, market_id, token_id, outcome, side, price, size, tx_hash, source, executed_at, created_at
		FROM transactions WHERE user_id = ?`
	args := []interface{}{userID}
	if marketID != "" {
		query += ` AND market_id = ?`
		args = append(args, marketID)
	}
	// created_at carries sub-second precision, so fills recorded within the
	// same executed_at second still come back in insertion order; id breaks
	// the (theoretical) remaining tie deterministically.
	query += ` ORDER BY executed_at DESC, created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		var t Transaction
		var executedAt, createdAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.MarketID, &t.TokenID, &t.Outcome, &t.Side,
			&t.Price, &t.Size, &t.TxHash, &t.Source, &executedAt, &createdAt); err != nil {
			return nil, err
		}
		t.ExecutedAt = parseTime(executedAt)
		t.CreatedAt = parseTime(createdAt)
		txs = append(txs, &t)
	}
	return txs, rows.Err()
}

// Summary aggregates fills per market. Realized PnL pairs sells against the
// average buy price (average-cost method).
func (s *TransactionStore) Summary(userID string) ([]*MarketSummary, error) {
	txs, err := s.List(userID, "", 1000)
	if err != nil {
		return nil, err
	}

	byMarket := make(map[string]*MarketSummary)
	var order []string
	for i := len(txs) - 1; i >= 0; i-- { // oldest first for average-cost pairing
		t := txs[i]
		sum, ok := byMarket[t.MarketID]
		if !ok {
			sum = &MarketSummary{MarketID: t.MarketID}
			byMarket[t.MarketID] = sum
			order = append(order, t.MarketID)
		}
		sum.Trades++
		switch t.Side {
		case "BUY":
			sum.BuySize += t.Size
			sum.CostBasis += t.Price * t.Size
		case "SELL":
			sum.SellSize += t.Size
			sum.Proceeds += t.Price * t.Size
			if sum.BuySize > 0 {
				avgCost := sum.CostBasis / sum.BuySize
				sum.RealizedPL += (t.Price - avgCost) * t.Size
			}
		}
		sum.NetSize = sum.BuySize - sum.SellSize
	}

	result := make([]*MarketSummary, 0, len(order))
	for _, id := range order {
		result = append(result, byMarket[id])
	}
	return result, nil
}

// Delete removes a transaction owned by the user
func (s *TransactionStore) Delete(userID, txID string) error {
	res, err := s.db.Exec(`DELETE FROM transactions WHERE id = ? AND user_id = ?`, txID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
