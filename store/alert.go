package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AlertStore alert storage
type AlertStore struct {
	db *DBDriver
}

// Alert price/volume alert owned by a user
type Alert struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	MarketID        string     `json:"market_id"`
	Conditions      string     `json:"conditions"` // AlertConditions JSON; carries market_id inside the blob as well
	Channels        string     `json:"channels"`   // AlertChannels JSON
	Enabled         bool       `json:"enabled"`
	CooldownSeconds int        `json:"cooldown_seconds"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	TriggerCount    int        `json:"trigger_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AlertConditions condition tree evaluated by the alert engine
type AlertConditions struct {
	// MarketID duplicated from the row for self-contained payloads
	MarketID string `json:"market_id"`
	// TokenID outcome token the conditions refer to
	TokenID string `json:"token_id,omitempty"`
	// Mode: "all" (default) or "any"
	Mode  string      `json:"mode,omitempty"`
	Rules []AlertRule `json:"rules"`
}

// AlertRule single condition: metric compared against a value
type AlertRule struct {
	// Metric: "price" | "volume_24h" | "spread" | "liquidity" | "heat_score"
	Metric string `json:"metric"`
	// Op: "above" | "below" | "crosses_above" | "crosses_below"
	Op    string  `json:"op"`
	Value float64 `json:"value"`
}

// AlertChannels notification fan-out targets
type AlertChannels struct {
	Telegram       bool   `json:"telegram"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
	WebhookURL     string `json:"webhook_url,omitempty"`
	InApp          bool   `json:"in_app"`
}

// AlertTrigger one firing of an alert
type AlertTrigger struct {
	ID      int64     `json:"id"`
	AlertID string    `json:"alert_id"`
	FiredAt time.Time `json:"fired_at"`
	Price   float64   `json:"price"`
	Message string    `json:"message"`
}

func (s *AlertStore) initTables() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			market_id TEXT NOT NULL,
			conditions TEXT NOT NULL,
			channels TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			cooldown_seconds INTEGER NOT NULL DEFAULT 300,
			last_triggered_at TEXT,
			trigger_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id)
	`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_triggers (
			id INTEGER PRIMARY KEY,
			alert_id TEXT NOT NULL,
			fired_at TEXT NOT NULL,
			price REAL NOT NULL,
			message TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_alert_triggers_alert ON alert_triggers(alert_id)
	`)
	return err
}

// Create creates an alert
func (s *AlertStore) Create(a *Alert) error {
	now := nowString()
	if a.CooldownSeconds <= 0 {
		a.CooldownSeconds = 300
	}
	_, err := s.db.Exec(`
		INSERT INTO alerts (id, user_id, name, market_id, conditions, channels, enabled,
			cooldown_seconds, trigger_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, a.ID, a.UserID, a.Name, a.MarketID, a.Conditions, a.Channels, a.Enabled,
		a.CooldownSeconds, now, now)
	return err
}

func (s *AlertStore) scanAlert(row interface{ Scan(...interface{}) error }) (*Alert, error) {
	var a Alert
	var createdAt, updatedAt string
	var lastTriggered sql.NullString
	err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.MarketID, &a.Conditions, &a.Channels,
		&a.Enabled, &a.CooldownSeconds, &lastTriggered, &a.TriggerCount,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	if lastTriggered.Valid {
		t := parseTime(lastTriggered.String)
		a.LastTriggeredAt = &t
	}
	return &a, nil
}

const alertColumns = `id, user_id, name, market_id, conditions, channels, enabled,
	cooldown_seconds, last_triggered_at, trigger_count, created_at, updated_at`

// Get returns an alert owned by the user
func (s *AlertStore) Get(userID, alertID string) (*Alert, error) {
	return s.scanAlert(s.db.QueryRow(`
		SELECT `+alertColumns+` FROM alerts WHERE id = ? AND user_id = ?
	`, alertID, userID))
}

// List returns all alerts owned by the user
func (s *AlertStore) List(userID string) ([]*Alert, error) {
	rows, err := s.db.Query(`
		SELECT `+alertColumns+` FROM alerts WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collect(rows)
}

// ListEnabled returns all enabled alerts across users, for the scan loop
func (s *AlertStore) ListEnabled() ([]*Alert, error) {
	rows, err := s.db.Query(`
		SELECT ` + alertColumns + ` FROM alerts WHERE enabled = TRUE ORDER BY market_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collect(rows)
}

// SubscriberIDs returns the distinct owners of enabled alerts on any of the
// given market references (ID and slug both count, alerts store whichever
// the user supplied).
func (s *AlertStore) SubscriberIDs(marketRefs ...string) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, ref := range marketRefs {
		if ref == "" {
			continue
		}
		rows, err := s.db.Query(`
			SELECT DISTINCT user_id FROM alerts WHERE enabled = TRUE AND market_id = ?
		`, ref)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return ids, nil
}

func (s *AlertStore) collect(rows *sql.Rows) ([]*Alert, error) {
	var alerts []*Alert
	for rows.Next() {
		a, err := s.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Update updates an alert owned by the user
func (s *AlertStore) Update(a *Alert) error {
	res, err := s.db.Exec(`
		UPDATE alerts SET name = ?, market_id = ?, conditions = ?, channels = ?,
			enabled = ?, cooldown_seconds = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, a.Name, a.MarketID, a.Conditions, a.Channels, a.Enabled, a.CooldownSeconds,
		nowString(), a.ID, a.UserID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetEnabled flips the enabled flag
func (s *AlertStore) SetEnabled(userID, alertID string, enabled bool) error {
	res, err := s.db.Exec(`
		UPDATE alerts SET enabled = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, enabled, nowString(), alertID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an alert and its trigger history
func (s *AlertStore) Delete(userID, alertID string) error {
	res, err := s.db.Exec(`DELETE FROM alerts WHERE id = ? AND user_id = ?`, alertID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	_, err = s.db.Exec(`DELETE FROM alert_triggers WHERE alert_id = ?`, alertID)
	return err
}

// RecordTrigger stamps a firing and appends to history
func (s *AlertStore) RecordTrigger(alertID string, price float64, message string) error {
	now := nowString()
	if _, err := s.db.Exec(`
		UPDATE alerts SET last_triggered_at = ?, trigger_count = trigger_count + 1 WHERE id = ?
	`, now, alertID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO alert_triggers (alert_id, fired_at, price, message) VALUES (?, ?, ?, ?)
	`, alertID, now, price, message)
	return err
}

// History returns most recent firings, newest first
func (s *AlertStore) History(alertID string, limit int) ([]*AlertTrigger, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, alert_id, fired_at, price, message
		FROM alert_triggers WHERE alert_id = ? ORDER BY id DESC LIMIT ?
	`, alertID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []*AlertTrigger
	for rows.Next() {
		var t AlertTrigger
		var firedAt string
		if err := rows.Scan(&t.ID, &t.AlertID, &firedAt, &t.Price, &t.Message); err != nil {
			return nil, err
		}
		t.FiredAt = parseTime(firedAt)
		triggers = append(triggers, &t)
	}
	return triggers, rows.Err()
}

// ParseConditions decodes the conditions blob
func (a *Alert) ParseConditions() (*AlertConditions, error) {
	var c AlertConditions
	if err := json.Unmarshal([]byte(a.Conditions), &c); err != nil {
		return nil, fmt.Errorf("invalid alert conditions: %w", err)
	}
	if c.MarketID == "" {
		c.MarketID = a.MarketID
	}
	if c.Mode == "" {
		c.Mode = "all"
	}
	return &c, nil
}

// ParseChannels decodes the channels blob
func (a *Alert) ParseChannels() (*AlertChannels, error) {
	var c AlertChannels
	if err := json.Unmarshal([]byte(a.Channels), &c); err != nil {
		return nil, fmt.Errorf("invalid alert channels: %w", err)
	}
	return &c, nil
}
