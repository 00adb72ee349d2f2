package block

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/showinghive/internal/property"
)

// Repository stores blocked times.
type Repository struct {
	db  *sql.DB
	loc *time.Location
}

// NewRepository creates a block repository. Recurring blocks are expanded
// in loc; nil means UTC.
func NewRepository(db *sql.DB, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &Repository{db: db, loc: loc}
}

const selectColumns = `id, property_id, start_at, end_at, rrule, note, created_at`

// Input describes a block to create.
type Input struct {
	PropertyID string
	Start      time.Time
	End        time.Time
	RRule      string
	Note       string
}

// Create validates in and stores it unless it overlaps an existing block.
func (r *Repository) Create(in Input) (*Block, error) {
	b := &Block{
		ID:         uuid.NewString(),
		PropertyID: in.PropertyID,
		Start:      in.Start.UTC().Truncate(time.Second),
		End:        in.End.UTC().Truncate(time.Second),
		RRule:      strings.TrimPrefix(strings.TrimSpace(in.RRule), "RRULE:"),
		Note:       strings.TrimSpace(in.Note),
	}
	if !b.End.After(b.Start) {
		return nil, ErrInvalidRange
	}
	if b.RRule != "" {
		if _, err := parseRule(b.RRule, b.Start); err != nil {
			return nil, err
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			slog.Warn("rolling back block insert", "err", rerr)
		}
	}()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM properties WHERE id = ?", b.PropertyID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking property: %w", err)
	}
	if exists == 0 {
		return nil, property.ErrNotFound
	}

	existing, err := listBlocks(tx, b.PropertyID)
	if err != nil {
		return nil, err
	}

	if len(existing) > 0 {
		from, to := b.window()
		mine, err := expandComplete([]*Block{b}, from, to, r.loc)
		if err != nil {
			return nil, err
		}
		theirs, err := expandComplete(existing, from, to, r.loc)
		if err != nil {
			return nil, err
		}
		if anyOverlap(mine, theirs) {
			return nil, ErrOverlap
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO blocked_times (id, property_id, start_at, end_at, rrule, note) VALUES (?, ?, ?, ?, ?, ?)",
		b.ID, b.PropertyID, b.Start, b.End, b.RRule, b.Note,
	); err != nil {
		return nil, fmt.Errorf("inserting block: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing block: %w", err)
	}

	return r.GetByID(b.ID)
}

// GetByID returns a block by its ID.
func (r *Repository) GetByID(id string) (*Block, error) {
	query := fmt.Sprintf("SELECT %s FROM blocked_times WHERE id = ?", selectColumns)

	b, err := scanBlock(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying block %s: %w", id, err)
	}
	return b, nil
}

// ListByProperty returns a property's blocks ordered by start.
func (r *Repository) ListByProperty(propertyID string) ([]*Block, error) {
	return listBlocks(r.db, propertyID)
}

// Delete removes a block belonging to propertyID.
func (r *Repository) Delete(propertyID, id string) error {
	result, err := r.db.Exec("DELETE FROM blocked_times WHERE id = ? AND property_id = ?", id, propertyID)
	if err != nil {
		return fmt.Errorf("deleting block: %w", err)
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

// Overlaps reports whether any block occurrence of the property
// intersects [start, end).
func (r *Repository) Overlaps(propertyID string, start, end time.Time) (bool, error) {
	blocks, err := r.ListByProperty(propertyID)
	if err != nil {
		return false, err
	}
	occ, err := expandAll(blocks, start, end, r.loc)
	if err != nil {
		return false, err
	}
	return len(occ) > 0, nil
}

// Occurrences expands a property's blocks over [from, to).
func (r *Repository) Occurrences(propertyID string, from, to time.Time) ([]Occurrence, error) {
	blocks, err := r.ListByProperty(propertyID)
	if err != nil {
		return nil, err
	}
	return expandAll(blocks, from, to, r.loc)
}

type querier interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

func listBlocks(q querier, propertyID string) ([]*Block, error) {
	query := fmt.Sprintf("SELECT %s FROM blocked_times WHERE property_id = ? ORDER BY start_at", selectColumns)

	rows, err := q.Query(query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("listing blocks: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	blocks := []*Block{}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning block: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blocks: %w", err)
	}
	return blocks, nil
}
