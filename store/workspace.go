package store

import (
	"database/sql"
)

// WorkspaceStore workspace/layout storage
type WorkspaceStore struct {
	db *DBDriver
}

// Workspace a named dashboard with a card-grid layout.
// Layout is an opaque JSON blob owned by the client; the server stores the
// latest write (the client debounces saves on its side).
type Workspace struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	Layout    string `json:"layout"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (s *WorkspaceStore) initTables() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			layout TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_workspaces_user ON workspaces(user_id)
	`)
	return err
}

// Create creates a workspace
func (s *WorkspaceStore) Create(w *Workspace) error {
	now := nowString()
	w.CreatedAt = now
	w.UpdatedAt = now
	if w.Layout == "" {
		w.Layout = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO workspaces (id, user_id, name, is_active, layout, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.UserID, w.Name, w.IsActive, w.Layout, now, now)
	return err
}

// Get returns a workspace owned by the user
func (s *WorkspaceStore) Get(userID, workspaceID string) (*Workspace, error) {
	var w Workspace
	err := s.db.QueryRow(`
		SELECT id, user_id, name, is_active, layout, created_at, updated_at
		FROM workspaces WHERE id = ? AND user_id = ?
	`, workspaceID, userID).Scan(&w.ID, &w.UserID, &w.Name, &w.IsActive, &w.Layout, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// List returns all of a user's workspaces
func (s *WorkspaceStore) List(userID string) ([]*Workspace, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, is_active, layout, created_at, updated_at
		FROM workspaces WHERE user_id = ? ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workspaces []*Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.IsActive, &w.Layout, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, &w)
	}
	return workspaces, rows.Err()
}

// Rename updates the workspace name
func (s *WorkspaceStore) Rename(userID, workspaceID, name string) error {
	res, err := s.db.Exec(`
		UPDATE workspaces SET name = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, name, nowString(), workspaceID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateLayout overwrites the layout blob
func (s *WorkspaceStore) UpdateLayout(userID, workspaceID, layout string) error {
	res, err := s.db.Exec(`
		UPDATE workspaces SET layout = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, layout, nowString(), workspaceID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Activate marks one workspace active and deactivates the rest
func (s *WorkspaceStore) Activate(userID, workspaceID string) error {
	if _, err := s.db.Exec(`
		UPDATE workspaces SET is_active = FALSE WHERE user_id = ?
	`, userID); err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE workspaces SET is_active = TRUE, updated_at = ? WHERE id = ? AND user_id = ?
	`, nowString(), workspaceID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a workspace
func (s *WorkspaceStore) Delete(userID, workspaceID string) error {
	res, err := s.db.Exec(`DELETE FROM workspaces WHERE id = ? AND user_id = ?`, workspaceID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
