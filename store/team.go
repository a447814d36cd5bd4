package store

import (
	"database/sql"
	"fmt"
)

// TeamStore team storage
type TeamStore struct {
	db *DBDriver
}

// Team member roles
const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// Team a group of users sharing watchlists and alerts.
// Invariant: every team has exactly one OWNER member.
type Team struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Members   []*TeamMember `json:"members,omitempty"`
	CreatedAt string        `json:"created_at"`
}

// TeamMember membership row
type TeamMember struct {
	TeamID   string `json:"team_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

func (s *TeamStore) initTables() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS team_members (
			team_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			PRIMARY KEY (team_id, user_id)
		)
	`); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_team_members_user ON team_members(user_id)
	`)
	return err
}

// Create creates a team with the creator as its OWNER
func (s *TeamStore) Create(teamID, name, ownerID string) error {
	now := nowString()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(s.db.rebind(`INSERT INTO teams (id, name, created_at) VALUES (?, ?, ?)`),
		teamID, name, now); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(s.db.rebind(`INSERT INTO team_members (team_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`),
		teamID, ownerID, RoleOwner, now); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Get returns a team with its members, provided the user is a member
func (s *TeamStore) Get(userID, teamID string) (*Team, error) {
	if _, err := s.MemberRole(teamID, userID); err != nil {
		return nil, err
	}
	var t Team
	err := s.db.QueryRow(`SELECT id, name, created_at FROM teams WHERE id = ?`, teamID).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	members, err := s.Members(teamID)
	if err != nil {
		return nil, err
	}
	t.Members = members
	return &t, nil
}

// ListForUser returns teams the user belongs to
func (s *TeamStore) ListForUser(userID string) ([]*Team, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.name, t.created_at
		FROM teams t JOIN team_members m ON m.team_id = t.id
		WHERE m.user_id = ? ORDER BY t.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, &t)
	}
	return teams, rows.Err()
}

// Members returns the member list
func (s *TeamStore) Members(teamID string) ([]*TeamMember, error) {
	rows, err := s.db.Query(`
		SELECT team_id, user_id, role, joined_at FROM team_members
		WHERE team_id = ? ORDER BY joined_at
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// MemberRole returns the user's role in the team, sql.ErrNoRows if not a member
func (s *TeamStore) MemberRole(teamID, userID string) (string, error) {
	var role string
	err := s.db.QueryRow(`
		SELECT role FROM team_members WHERE team_id = ? AND user_id = ?
	`, teamID, userID).Scan(&role)
	return role, err
}

// Rename updates the team name
func (s *TeamStore) Rename(teamID, name string) error {
	res, err := s.db.Exec(`UPDATE teams SET name = ? WHERE id = ?`, name, teamID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddMember adds a user with the given role. OWNER cannot be granted here;
// ownership only moves through TransferOwnership.
func (s *TeamStore) AddMember(teamID, userID, role string) error {
	if role == RoleOwner {
		return fmt.Errorf("ownership can only be assigned via transfer")
	}
	if role != RoleAdmin && role != RoleMember {
		return fmt.Errorf("invalid role: %s", role)
	}
	_, err := s.db.Exec(`
		INSERT INTO team_members (team_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
	`, teamID, userID, role, nowString())
	return err
}

// UpdateMemberRole changes a member's role between ADMIN and MEMBER.
// The OWNER row is untouchable here, preserving the single-owner invariant.
func (s *TeamStore) UpdateMemberRole(teamID, userID, role string) error {
	if role != RoleAdmin && role != RoleMember {
		return fmt.Errorf("invalid role: %s", role)
	}
	res, err := s.db.Exec(`
		UPDATE team_members SET role = ? WHERE team_id = ? AND user_id = ? AND role != ?
	`, role, teamID, userID, RoleOwner)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RemoveMember removes a non-owner member
func (s *TeamStore) RemoveMember(teamID, userID string) error {
	role, err := s.MemberRole(teamID, userID)
	if err != nil {
		return err
	}
	if role == RoleOwner {
		return fmt.Errorf("owner cannot be removed; transfer ownership first")
	}
	_, err = s.db.Exec(`
		DELETE FROM team_members WHERE team_id = ? AND user_id = ?
	`, teamID, userID)
	return err
}

// TransferOwnership atomically moves OWNER from one member to another.
// The previous owner becomes ADMIN.
func (s *TeamStore) TransferOwnership(teamID, fromUserID, toUserID string) error {
	fromRole, err := s.MemberRole(teamID, fromUserID)
	if err != nil {
		return err
	}
	if fromRole != RoleOwner {
		return fmt.Errorf("only the owner can transfer ownership")
	}
	if _, err := s.MemberRole(teamID, toUserID); err != nil {
		return fmt.Errorf("target user is not a team member")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(s.db.rebind(`UPDATE team_members SET role = ? WHERE team_id = ? AND user_id = ?`),
		RoleAdmin, teamID, fromUserID); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(s.db.rebind(`UPDATE team_members SET role = ? WHERE team_id = ? AND user_id = ?`),
		RoleOwner, teamID, toUserID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Delete removes a team and all memberships
func (s *TeamStore) Delete(teamID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(s.db.rebind(`DELETE FROM team_members WHERE team_id = ?`), teamID); err != nil {
		tx.Rollback()
		return err
	}
	res, err := tx.Exec(s.db.rebind(`DELETE FROM teams WHERE id = ?`), teamID)
	if err != nil {
		tx.Rollback()
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		tx.Rollback()
		return sql.ErrNoRows
	}
	return tx.Commit()
}
