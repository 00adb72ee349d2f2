package showing

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Repository provides data access for showings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a showing repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, property_id, client_name, client_phone, client_email,
	scheduled_at, status, lockbox_code, code_expires_at, requested_by, reminded_at,
	created_at, updated_at`

// Insert stores a new pending showing. s.ID must be set.
func (r *Repository) Insert(s *Showing) (*Showing, error) {
	if _, err := r.db.Exec(
		`INSERT INTO showings (id, property_id, client_name, client_phone, client_email, scheduled_at, status, requested_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.PropertyID, s.ClientName, s.ClientPhone, s.ClientEmail,
		s.ScheduledAt.UTC(), string(StatusPending), s.RequestedBy,
	); err != nil {
		return nil, fmt.Errorf("inserting showing: %w", err)
	}
	return r.GetByID(s.ID)
}

// GetByID returns a showing by its ID.
func (r *Repository) GetByID(id string) (*Showing, error) {
	query := fmt.Sprintf("SELECT %s FROM showings WHERE id = ?", selectColumns)

	s, err := scanShowing(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying showing %s: %w", id, err)
	}
	return s, nil
}

// ListOptions controls filtering for List.
type ListOptions struct {
	PropertyID string // empty = all
	Status     Status // empty = all
}

// List returns showings ordered by scheduled time.
func (r *Repository) List(opts ListOptions) ([]*Showing, error) {
	query := fmt.Sprintf("SELECT %s FROM showings", selectColumns)
	var args []interface{}
	var conditions []string

	if opts.PropertyID != "" {
		conditions = append(conditions, "property_id = ?")
		args = append(args, opts.PropertyID)
	}
	if opts.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(opts.Status))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_at, created_at"

	return r.query(query, args...)
}

// ListActive returns the property's non-declined showings, which are the
// ones that hold their time slot.
func (r *Repository) ListActive(propertyID string) ([]*Showing, error) {
	query := fmt.Sprintf("SELECT %s FROM showings WHERE property_id = ? AND status != ? ORDER BY scheduled_at", selectColumns)
	return r.query(query, propertyID, string(StatusDeclined))
}

// ListUnreminded returns approved showings that have not had a reminder sent.
func (r *Repository) ListUnreminded() ([]*Showing, error) {
	query := fmt.Sprintf("SELECT %s FROM showings WHERE status = ? AND reminded_at IS NULL ORDER BY scheduled_at", selectColumns)
	return r.query(query, string(StatusApproved))
}

// ListWithCodes returns showings that still carry a lockbox code.
func (r *Repository) ListWithCodes() ([]*Showing, error) {
	query := fmt.Sprintf("SELECT %s FROM showings WHERE lockbox_code IS NOT NULL ORDER BY scheduled_at", selectColumns)
	return r.query(query)
}

// Transition moves a showing from one status to another, setting the
// lockbox code and expiry. It fails with errStale if the showing is no
// longer in status from.
func (r *Repository) Transition(id string, from, to Status, code string, expires *time.Time) error {
	var codeArg, expArg interface{}
	if code != "" {
		codeArg = code
	}
	if expires != nil {
		expArg = expires.UTC()
	}

	result, err := r.db.Exec(
		`UPDATE showings SET status = ?, lockbox_code = ?, code_expires_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), codeArg, expArg, time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("updating showing status: %w", err)
	}
	return expectOne(result, errStale)
}

// Reschedule moves a showing to start and replaces its code. The reminder
// flag is cleared so the new time gets its own reminder.
func (r *Repository) Reschedule(id string, start time.Time, code string, expires *time.Time) error {
	var codeArg, expArg interface{}
	if code != "" {
		codeArg = code
	}
	if expires != nil {
		expArg = expires.UTC()
	}

	result, err := r.db.Exec(
		`UPDATE showings SET scheduled_at = ?, lockbox_code = ?, code_expires_at = ?, reminded_at = NULL, updated_at = ?
		WHERE id = ? AND status != ?`,
		start.UTC(), codeArg, expArg, time.Now().UTC(), id, string(StatusDeclined),
	)
	if err != nil {
		return fmt.Errorf("rescheduling showing: %w", err)
	}
	return expectOne(result, errStale)
}

// MarkReminded records that a reminder went out.
func (r *Repository) MarkReminded(id string, at time.Time) error {
	result, err := r.db.Exec("UPDATE showings SET reminded_at = ? WHERE id = ?", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("marking reminder: %w", err)
	}
	return expectOne(result, ErrNotFound)
}

// ClearCode removes an expired lockbox code. The status stays approved.
func (r *Repository) ClearCode(id string) error {
	result, err := r.db.Exec(
		"UPDATE showings SET lockbox_code = NULL, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("clearing code: %w", err)
	}
	return expectOne(result, ErrNotFound)
}

// errStale means a conditional update matched nothing.
var errStale = errors.New("showing changed concurrently")

func expectOne(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func (r *Repository) query(query string, args ...interface{}) ([]*Showing, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing showings: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	showings := []*Showing{}
	for rows.Next() {
		s, err := scanShowing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning showing: %w", err)
		}
		showings = append(showings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating showings: %w", err)
	}
	return showings, nil
}
