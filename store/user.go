package store

import (
	"time"
)

// UserStore user storage
type UserStore struct {
	db *DBDriver
}

// User account row
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	OTPSecret    string    `json:"-"`
	OTPVerified  bool      `json:"otp_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *UserStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			otp_secret TEXT,
			otp_verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	return err
}

// Create creates a user
func (s *UserStore) Create(user *User) error {
	now := nowString()
	_, err := s.db.Exec(`
		INSERT INTO users (id, email, password_hash, otp_secret, otp_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.OTPSecret, user.OTPVerified, now, now)
	return err
}

func (s *UserStore) scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var user User
	var createdAt, updatedAt string
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.OTPSecret,
		&user.OTPVerified, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = parseTime(createdAt)
	user.UpdatedAt = parseTime(updatedAt)
	return &user, nil
}

// GetByEmail looks a user up by email
func (s *UserStore) GetByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, email, password_hash, otp_secret, otp_verified, created_at, updated_at
		FROM users WHERE email = ?
	`, email))
}

// GetByID looks a user up by ID
func (s *UserStore) GetByID(userID string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, email, password_hash, otp_secret, otp_verified, created_at, updated_at
		FROM users WHERE id = ?
	`, userID))
}

// UpdateOTPVerified updates OTP verification status
func (s *UserStore) UpdateOTPVerified(userID string, verified bool) error {
	_, err := s.db.Exec(`UPDATE users SET otp_verified = ?, updated_at = ? WHERE id = ?`,
		verified, nowString(), userID)
	return err
}

// UpdatePassword updates the password hash
func (s *UserStore) UpdatePassword(userID, passwordHash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, nowString(), userID)
	return err
}
