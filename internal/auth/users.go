package auth

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/evcraddock/showinghive/internal/apperr"
)

// Role is what an authorized user does in the system.
type Role string

const (
	RoleSeller Role = "seller"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

var (
	ErrUserNotFound = apperr.New(apperr.KindNotFound, "user not found")
	ErrEmailMissing = apperr.Invalid("email is required")
	ErrBadRole      = apperr.Invalid("role must be seller or agent")
)

// User represents an authorized user.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStore manages authorized users in SQLite.
type UserStore struct {
	db         *sql.DB
	adminEmail string
}

// NewUserStore creates a user store.
func NewUserStore(db *sql.DB, adminEmail string) *UserStore {
	return &UserStore{db: db, adminEmail: strings.ToLower(adminEmail)}
}

// IsAuthorized checks if an email is allowed to log in.
// The admin email is always authorized (outside the users table).
func (s *UserStore) IsAuthorized(email string) bool {
	email = strings.ToLower(email)
	if email == "" {
		return false
	}
	if email == s.adminEmail {
		return true
	}

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM authorized_users WHERE LOWER(email) = ?", email,
	).Scan(&count)
	if err != nil {
		return false
	}

	return count > 0
}

// IsAdmin checks if an email is the admin.
func (s *UserStore) IsAdmin(email string) bool {
	return email != "" && strings.ToLower(email) == s.adminEmail
}

// RoleOf returns the caller's role. The admin email is always RoleAdmin;
// unknown emails get an empty role.
func (s *UserStore) RoleOf(email string) Role {
	if s.IsAdmin(email) {
		return RoleAdmin
	}
	email = strings.ToLower(email)

	var role string
	err := s.db.QueryRow(
		"SELECT role FROM authorized_users WHERE LOWER(email) = ?", email,
	).Scan(&role)
	if err != nil {
		return ""
	}
	return Role(role)
}

// Add creates a new authorized user. An empty role means agent.
func (s *UserStore) Add(email, name string, role Role) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" {
		return nil, ErrEmailMissing
	}
	if role == "" {
		role = RoleAgent
	}
	if role != RoleSeller && role != RoleAgent {
		return nil, ErrBadRole
	}

	result, err := s.db.Exec(
		"INSERT INTO authorized_users (email, name, role) VALUES (?, ?, ?)",
		email, name, string(role),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, apperr.Newf(apperr.KindConflict, "user already exists: %s", email)
		}
		return nil, fmt.Errorf("adding user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user ID: %w", err)
	}

	return s.GetByID(id)
}

// List returns all authorized users.
func (s *UserStore) List() ([]*User, error) {
	rows, err := s.db.Query(
		"SELECT id, email, name, role, created_at FROM authorized_users ORDER BY email",
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, &u)
	}

	return users, rows.Err()
}

// GetByID returns a user by ID.
func (s *UserStore) GetByID(id int64) (*User, error) {
	var u User
	err := s.db.QueryRow(
		"SELECT id, email, name, role, created_at FROM authorized_users WHERE id = ?", id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// Delete removes an authorized user by ID.
func (s *UserStore) Delete(id int64) error {
	result, err := s.db.Exec("DELETE FROM authorized_users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// AllEmails returns all authorized emails including the admin.
// Useful for passkey login to resolve any user.
func (s *UserStore) AllEmails() ([]string, error) {
	rows, err := s.db.Query("SELECT email FROM authorized_users")
	if err != nil {
		return nil, fmt.Errorf("listing emails: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	emails := []string{s.adminEmail}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scanning email: %w", err)
		}
		if strings.ToLower(email) != s.adminEmail {
			emails = append(emails, strings.ToLower(email))
		}
	}

	return emails, rows.Err()
}
