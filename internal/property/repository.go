package property

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/evcraddock/showinghive/internal/apperr"
)

// Repository provides CRUD operations for properties.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a property repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, name, address, owner_email, created_at`

// Create validates and stores a new property owned by ownerEmail.
func (r *Repository) Create(name, address, ownerEmail string) (*Property, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if name == "" || address == "" {
		return nil, apperr.Invalid("name and address are required")
	}

	id := uuid.NewString()
	if _, err := r.db.Exec(
		"INSERT INTO properties (id, name, address, owner_email) VALUES (?, ?, ?, ?)",
		id, name, address, strings.ToLower(strings.TrimSpace(ownerEmail)),
	); err != nil {
		return nil, fmt.Errorf("inserting property: %w", err)
	}

	return r.GetByID(id)
}

// GetByID returns a property by its ID.
func (r *Repository) GetByID(id string) (*Property, error) {
	query := fmt.Sprintf("SELECT %s FROM properties WHERE id = ?", selectColumns)

	p, err := scanProperty(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying property %s: %w", id, err)
	}

	return p, nil
}

// ListOptions controls filtering for List.
type ListOptions struct {
	OwnerEmail string // empty = all
}

// List returns properties, newest first.
func (r *Repository) List(opts ListOptions) ([]*Property, error) {
	query := fmt.Sprintf("SELECT %s FROM properties", selectColumns)
	var args []interface{}

	if opts.OwnerEmail != "" {
		query += " WHERE LOWER(owner_email) = ?"
		args = append(args, strings.ToLower(opts.OwnerEmail))
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing properties: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	properties := []*Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		properties = append(properties, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating properties: %w", err)
	}

	return properties, nil
}

// Delete removes a property by ID. Blocks, showings and feedback cascade.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM properties WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting property: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
