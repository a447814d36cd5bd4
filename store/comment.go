package store

import (
	"database/sql"
)

// CommentStore market comment storage
type CommentStore struct {
	db *DBDriver
}

// Comment user note on a market, optionally replying to another comment
type Comment struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	MarketID  string `json:"market_id"`
	ParentID  string `json:"parent_id,omitempty"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

func (s *CommentStore) initTables() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			market_id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_comments_market ON comments(market_id)
	`)
	return err
}

// Create creates a comment
func (s *CommentStore) Create(c *Comment) error {
	c.CreatedAt = nowString()
	_, err := s.db.Exec(`
		INSERT INTO comments (id, user_id, market_id, parent_id, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.MarketID, c.ParentID, c.Body, c.CreatedAt)
	return err
}

// ListByMarket returns comments for a market, oldest first
func (s *CommentStore) ListByMarket(marketID string, limit int) ([]*Comment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, market_id, parent_id, body, created_at
		FROM comments WHERE market_id = ? ORDER BY created_at LIMIT ?
	`, marketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.UserID, &c.MarketID, &c.ParentID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// Delete removes a comment owned by the user
func (s *CommentStore) Delete(userID, commentID string) error {
	res, err := s.db.Exec(`DELETE FROM comments WHERE id = ? AND user_id = ?`, commentID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
