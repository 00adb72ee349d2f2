package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/evcraddock/showinghive/internal/apperr"
)

const (
	apiKeyBytes  = 32
	apiKeyPrefix = "hive_"
)

// ErrKeyNotFound is returned when a key does not exist or belongs to
// someone else.
var ErrKeyNotFound = apperr.New(apperr.KindNotFound, "key not found")

// APIKey is the stored representation of an API key (no raw key).
type APIKey struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	KeyPrefix  string     `json:"key_prefix"` // first 8 chars for identification
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyStore manages API keys in SQLite.
type APIKeyStore struct {
	db *sql.DB
}

// NewAPIKeyStore creates an API key store.
func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// Create generates a new API key owned by email.
// Returns the raw key (shown once to user) and the stored record.
func (s *APIKeyStore) Create(name, email string) (string, *APIKey, error) {
	raw, err := generateAPIKey()
	if err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}

	email = strings.ToLower(email)
	key := &APIKey{
		Name:      name,
		Email:     email,
		KeyPrefix: raw[:8],
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	result, err := s.db.Exec(
		"INSERT INTO api_keys (name, email, key_prefix, key_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		key.Name, key.Email, key.KeyPrefix, hashAPIKey(raw), key.CreatedAt,
	)
	if err != nil {
		return "", nil, fmt.Errorf("storing key: %w", err)
	}

	if key.ID, err = result.LastInsertId(); err != nil {
		return "", nil, fmt.Errorf("getting key id: %w", err)
	}

	return raw, key, nil
}

// List returns the keys owned by email, newest first.
func (s *APIKeyStore) List(email string) ([]APIKey, error) {
	rows, err := s.db.Query(
		`SELECT id, name, email, key_prefix, created_at, last_used_at FROM api_keys
		 WHERE email = ? ORDER BY created_at DESC, id DESC`,
		strings.ToLower(email),
	)
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	keys := []APIKey{}
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &k.Email, &k.KeyPrefix, &k.CreatedAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		if lastUsed.Valid {
			k.LastUsedAt = &lastUsed.Time
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

// Delete removes one of email's keys.
func (s *APIKeyStore) Delete(id int64, email string) error {
	result, err := s.db.Exec("DELETE FROM api_keys WHERE id = ? AND email = ?", id, strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return ErrKeyNotFound
	}

	return nil
}

// Validate checks a raw API key and returns its owner's email, or "" when
// the key is unknown. A valid key has its last_used_at bumped.
func (s *APIKeyStore) Validate(rawKey string) (string, error) {
	hash := hashAPIKey(rawKey)

	var email string
	err := s.db.QueryRow(
		"UPDATE api_keys SET last_used_at = ? WHERE key_hash = ? RETURNING email",
		time.Now().UTC(), hash,
	).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("validating key: %w", err)
	}

	return email, nil
}

func generateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}

func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
