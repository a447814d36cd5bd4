package store

import (
	"database/sql"
	"fmt"
)

// TemplateStore layout template storage
type TemplateStore struct {
	db *DBDriver
}

// Template a reusable dashboard layout. System defaults have an empty
// user_id and cannot be modified or deleted through user operations.
type Template struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Layout      string `json:"layout"`
	IsDefault   bool   `json:"is_default"`
	CreatedAt   string `json:"created_at"`
}

func (s *TemplateStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			layout TEXT NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL
		)
	`)
	return err
}

// Seeded system templates: id, name, description, layout.
var defaultTemplates = [][4]string{
	{
		"tpl-trading-desk", "Trading Desk", "Order book, watchlist and alerts side by side",
		`{"cards":[{"type":"orderbook","x":0,"y":0,"w":6,"h":8},{"type":"watchlist","x":6,"y":0,"w":6,"h":4},{"type":"alerts","x":6,"y":4,"w":6,"h":4}]}`,
	},
	{
		"tpl-research", "Research", "Market detail, news feed and comments",
		`{"cards":[{"type":"market","x":0,"y":0,"w":8,"h":6},{"type":"news","x":8,"y":0,"w":4,"h":6},{"type":"comments","x":0,"y":6,"w":12,"h":4}]}`,
	},
	{
		"tpl-risk", "Risk & Sizing", "Kelly calculator with positions and anomaly board",
		`{"cards":[{"type":"kelly","x":0,"y":0,"w":4,"h":6},{"type":"positions","x":4,"y":0,"w":8,"h":6},{"type":"anomalies","x":0,"y":6,"w":12,"h":4}]}`,
	},
}

func (s *TemplateStore) initDefaultData() error {
	for _, tpl := range defaultTemplates {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM templates WHERE id = ?`, tpl[0]).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.Exec(`
			INSERT INTO templates (id, user_id, name, description, layout, is_default, created_at)
			VALUES (?, '', ?, ?, ?, TRUE, ?)
		`, tpl[0], tpl[1], tpl[2], tpl[3], nowString()); err != nil {
			return fmt.Errorf("failed to seed template %s: %w", tpl[0], err)
		}
	}
	return nil
}

// Create creates a user template. User templates always carry a user_id;
// system defaults are only created by seeding.
func (s *TemplateStore) Create(t *Template) error {
	if t.UserID == "" {
		return fmt.Errorf("user template requires an owner")
	}
	t.IsDefault = false
	t.CreatedAt = nowString()
	_, err := s.db.Exec(`
		INSERT INTO templates (id, user_id, name, description, layout, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, FALSE, ?)
	`, t.ID, t.UserID, t.Name, t.Description, t.Layout, t.CreatedAt)
	return err
}

// Get returns a template visible to the user (own or system default)
func (s *TemplateStore) Get(userID, templateID string) (*Template, error) {
	var t Template
	err := s.db.QueryRow(`
		SELECT id, user_id, name, description, layout, is_default, created_at
		FROM templates WHERE id = ? AND (user_id = ? OR is_default = TRUE)
	`, templateID, userID).Scan(&t.ID, &t.UserID, &t.Name, &t.Description, &t.Layout, &t.IsDefault, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns system defaults plus the user's own templates
func (s *TemplateStore) List(userID string) ([]*Template, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, description, layout, is_default, created_at
		FROM templates WHERE user_id = ? OR is_default = TRUE
		ORDER BY is_default DESC, created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Description, &t.Layout, &t.IsDefault, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}

// Delete removes a user template. System defaults are not deletable.
func (s *TemplateStore) Delete(userID, templateID string) error {
	res, err := s.db.Exec(`
		DELETE FROM templates WHERE id = ? AND user_id = ? AND is_default = FALSE
	`, templateID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
