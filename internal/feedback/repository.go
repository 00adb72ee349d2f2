package feedback

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/evcraddock/showinghive/internal/showing"
)

// Repository provides data access for feedback.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a feedback repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Add records feedback on a showing.
func (r *Repository) Add(showingID string, rating int, comment, author string) (*Feedback, error) {
	comment = strings.TrimSpace(comment)
	if rating < MinRating || rating > MaxRating || comment == "" {
		return nil, ErrInvalid
	}

	var exists int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM showings WHERE id = ?", showingID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking showing: %w", err)
	}
	if exists == 0 {
		return nil, showing.ErrNotFound
	}

	id := uuid.NewString()
	if _, err := r.db.Exec(
		"INSERT INTO feedback (id, showing_id, rating, comment, author) VALUES (?, ?, ?, ?, ?)",
		id, showingID, rating, comment, author,
	); err != nil {
		return nil, fmt.Errorf("inserting feedback: %w", err)
	}

	var f Feedback
	err := r.db.QueryRow(
		"SELECT id, showing_id, rating, comment, author, created_at FROM feedback WHERE id = ?", id,
	).Scan(&f.ID, &f.ShowingID, &f.Rating, &f.Comment, &f.Author, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("reading back feedback: %w", err)
	}

	return &f, nil
}

// ListByShowing returns a showing's feedback, oldest first.
func (r *Repository) ListByShowing(showingID string) ([]*Feedback, error) {
	rows, err := r.db.Query(
		"SELECT id, showing_id, rating, comment, author, created_at FROM feedback WHERE showing_id = ? ORDER BY created_at, rowid",
		showingID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	list := []*Feedback{}
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.ShowingID, &f.Rating, &f.Comment, &f.Author, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		list = append(list, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback: %w", err)
	}

	return list, nil
}

// ListByProperty returns feedback for every showing of a property,
// grouped by showing ID.
func (r *Repository) ListByProperty(propertyID string) (map[string][]*Feedback, error) {
	rows, err := r.db.Query(
		`SELECT f.id, f.showing_id, f.rating, f.comment, f.author, f.created_at
		FROM feedback f JOIN showings s ON s.id = f.showing_id
		WHERE s.property_id = ? ORDER BY f.created_at, f.rowid`,
		propertyID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing property feedback: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	byShowing := make(map[string][]*Feedback)
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.ShowingID, &f.Rating, &f.Comment, &f.Author, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		byShowing[f.ShowingID] = append(byShowing[f.ShowingID], &f)
	}

	return byShowing, rows.Err()
}
