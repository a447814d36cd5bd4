package store

import (
	"database/sql"
	"time"
)

// NotificationStore in-app notification storage
type NotificationStore struct {
	db *DBDriver
}

// Notification an in-app message produced by the alert engine or the system
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"` // "alert" | "anomaly" | "system"
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	MarketID  string    `json:"market_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *NotificationStore) initTables() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			market_id TEXT NOT NULL DEFAULT '',
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read)
	`)
	return err
}

// Create stores a notification
func (s *NotificationStore) Create(n *Notification) error {
	n.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO notifications (id, user_id, kind, title, body, market_id, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, FALSE, ?)
	`, n.ID, n.UserID, n.Kind, n.Title, n.Body, n.MarketID, n.CreatedAt.Format(timeFormat))
	return err
}

// List returns the user's notifications, newest first
func (s *NotificationStore) List(userID string, unreadOnly bool, limit int) ([]*Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, user_id, kind, title, body, market_id, read, created_at
		FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var n Notification
		var createdAt string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.MarketID, &n.Read, &createdAt); err != nil {
			return nil, err
		}
		n.CreatedAt = parseTime(createdAt)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// UnreadCount returns the number of unread notifications
func (s *NotificationStore) UnreadCount(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = FALSE
	`, userID).Scan(&count)
	return count, err
}

// MarkRead marks one notification read
func (s *NotificationStore) MarkRead(userID, notificationID string) error {
	res, err := s.db.Exec(`
		UPDATE notifications SET read = TRUE WHERE id = ? AND user_id = ?
	`, notificationID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAllRead marks every notification read
func (s *NotificationStore) MarkAllRead(userID string) error {
	_, err := s.db.Exec(`
		UPDATE notifications SET read = TRUE WHERE user_id = ? AND read = FALSE
	`, userID)
	return err
}
