package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const tokenExpiry = 15 * time.Minute

// TokenStore manages magic link tokens in SQLite.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a token store.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Create generates a new magic link token for the given email.
// Returns the raw token string.
func (s *TokenStore) Create(email string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(tokenExpiry)

	if _, err := s.db.Exec(
		"INSERT INTO auth_tokens (token, email, expires_at) VALUES (?, ?, ?)",
		token, email, expiresAt,
	); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}

	return token, nil
}

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenUsed    = errors.New("token already used")
	ErrTokenExpired = errors.New("token expired")
)

// Validate consumes a token and returns the associated email. The token is
// marked used in the same statement that checks it, so it works once.
func (s *TokenStore) Validate(token string) (string, error) {
	now := time.Now().UTC()

	var email string
	err := s.db.QueryRow(
		"UPDATE auth_tokens SET used = 1 WHERE token = ? AND used = 0 AND expires_at > ? RETURNING email",
		token, now,
	).Scan(&email)
	if err == nil {
		return email, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("consuming token: %w", err)
	}

	var used int
	err = s.db.QueryRow("SELECT used FROM auth_tokens WHERE token = ?", token).Scan(&used)
	switch {
	case err == sql.ErrNoRows:
		return "", ErrTokenInvalid
	case err != nil:
		return "", fmt.Errorf("querying token: %w", err)
	case used != 0:
		return "", ErrTokenUsed
	default:
		return "", ErrTokenExpired
	}
}

// Cleanup removes expired and used tokens.
func (s *TokenStore) Cleanup() error {
	if _, err := s.db.Exec(
		"DELETE FROM auth_tokens WHERE expires_at < ? OR used = 1",
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("cleaning up tokens: %w", err)
	}
	return nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
