package store

import (
	"database/sql"
	"fmt"
)

// ThemeStore theme storage
type ThemeStore struct {
	db *DBDriver
}

// Theme a color scheme. At most one theme is active per user.
type Theme struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	Name      string `json:"name"`
	Colors    string `json:"colors"` // JSON map of css variables
	IsActive  bool   `json:"is_active"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at"`
}

func (s *ThemeStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS themes (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			colors TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL
		)
	`)
	return err
}

var defaultThemes = [][3]string{
	{"theme-terminal-dark", "Terminal Dark", `{"bg":"#0b0e14","panel":"#11151f","text":"#d6deeb","up":"#22c55e","down":"#ef4444","accent":"#38bdf8"}`},
	{"theme-paper-light", "Paper Light", `{"bg":"#fafaf7","panel":"#ffffff","text":"#1f2430","up":"#15803d","down":"#b91c1c","accent":"#2563eb"}`},
}

func (s *ThemeStore) initDefaultData() error {
	for _, th := range defaultThemes {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM themes WHERE id = ?`, th[0]).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.Exec(`
			INSERT INTO themes (id, user_id, name, colors, is_active, is_default, created_at)
			VALUES (?, '', ?, ?, FALSE, TRUE, ?)
		`, th[0], th[1], th[2], nowString()); err != nil {
			return fmt.Errorf("failed to seed theme %s: %w", th[0], err)
		}
	}
	return nil
}

// Create creates a user theme
func (s *ThemeStore) Create(t *Theme) error {
	if t.UserID == "" {
		return fmt.Errorf("user theme requires an owner")
	}
	t.IsDefault = false
	t.CreatedAt = nowString()
	_, err := s.db.Exec(`
		INSERT INTO themes (id, user_id, name, colors, is_active, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, FALSE, ?)
	`, t.ID, t.UserID, t.Name, t.Colors, t.IsActive, t.CreatedAt)
	return err
}

// List returns system defaults plus the user's own themes
func (s *ThemeStore) List(userID string) ([]*Theme, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, colors, is_active, is_default, created_at
		FROM themes WHERE user_id = ? OR is_default = TRUE
		ORDER BY is_default DESC, created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var themes []*Theme
	for rows.Next() {
		var t Theme
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Colors, &t.IsActive, &t.IsDefault, &t.CreatedAt); err != nil {
			return nil, err
		}
		themes = append(themes, &t)
	}
	return themes, rows.Err()
}

// Update updates name/colors of a user theme
func (s *ThemeStore) Update(t *Theme) error {
	res, err := s.db.Exec(`
		UPDATE themes SET name = ?, colors = ? WHERE id = ? AND user_id = ? AND is_default = FALSE
	`, t.Name, t.Colors, t.ID, t.UserID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Activate marks one theme active for the user. A system default may be
// activated too; the active flag is tracked per user via the user_themes row.
func (s *ThemeStore) Activate(userID, themeID string) error {
	// Verify the theme is visible to this user
	var count int
	if err := s.db.QueryRow(`
		SELECT COUNT(*) FROM themes WHERE id = ? AND (user_id = ? OR is_default = TRUE)
	`, themeID, userID).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return sql.ErrNoRows
	}

	if _, err := s.db.Exec(`
		UPDATE themes SET is_active = FALSE WHERE user_id = ?
	`, userID); err != nil {
		return err
	}
	// System defaults stay shared; persist the user's pick in system_config style
	if _, err := s.db.Exec(`
		UPDATE themes SET is_active = TRUE WHERE id = ? AND user_id = ?
	`, themeID, userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO system_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, "active_theme:"+userID, themeID)
	return err
}

// ActiveThemeID returns the user's selected theme id, empty if never set
func (s *ThemeStore) ActiveThemeID(userID string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT value FROM system_config WHERE key = ?`, "active_theme:"+userID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// Delete removes a user theme
func (s *ThemeStore) Delete(userID, themeID string) error {
	res, err := s.db.Exec(`
		DELETE FROM themes WHERE id = ? AND user_id = ? AND is_default = FALSE
	`, themeID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
