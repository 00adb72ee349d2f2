package tour

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/evcraddock/showinghive/internal/apperr"
	"github.com/evcraddock/showinghive/internal/metrics"
	"github.com/evcraddock/showinghive/internal/showing"
)

// Repository stores tours and their stops.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a tour repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const stopQuery = `SELECT s.id, s.property_id, p.name, p.address, s.scheduled_at, s.status
	FROM showings s JOIN properties p ON p.id = s.property_id
	WHERE s.id = ?`

// Create validates showingIDs and stores a tour visiting them in time order.
func (r *Repository) Create(buyerName, createdBy string, showingIDs []string) (*Tour, error) {
	if len(showingIDs) == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[string]bool, len(showingIDs))
	stops := make([]Stop, 0, len(showingIDs))
	for _, id := range showingIDs {
		id = strings.TrimSpace(id)
		if seen[id] {
			return nil, ErrDuplicate
		}
		seen[id] = true

		var st Stop
		var status string
		err := r.db.QueryRow(stopQuery, id).Scan(
			&st.ShowingID, &st.PropertyID, &st.PropertyName, &st.Address, &st.ScheduledAt, &status,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Newf(apperr.KindNotFound, "showing %s not found", id)
		}
		if err != nil {
			return nil, fmt.Errorf("loading showing %s: %w", id, err)
		}
		if showing.Status(status) != showing.StatusApproved {
			return nil, apperr.Newf(apperr.KindInvalid, "showing %s is not approved", id)
		}
		st.ScheduledAt = st.ScheduledAt.UTC()
		stops = append(stops, st)
	}

	sort.SliceStable(stops, func(i, j int) bool {
		return stops[i].ScheduledAt.Before(stops[j].ScheduledAt)
	})

	tourID := uuid.NewString()
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			slog.Warn("rolling back tour insert", "err", rerr)
		}
	}()

	if _, err := tx.Exec(
		"INSERT INTO tours (id, buyer_name, created_by) VALUES (?, ?, ?)",
		tourID, strings.TrimSpace(buyerName), createdBy,
	); err != nil {
		return nil, fmt.Errorf("inserting tour: %w", err)
	}
	for i, st := range stops {
		if _, err := tx.Exec(
			"INSERT INTO tour_stops (tour_id, position, showing_id, scheduled_at) VALUES (?, ?, ?, ?)",
			tourID, i, st.ShowingID, st.ScheduledAt,
		); err != nil {
			return nil, fmt.Errorf("inserting tour stop: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing tour: %w", err)
	}

	metrics.ToursCreatedTotal.Inc()
	return r.GetByID(tourID)
}

// GetByID returns a tour with its itinerary.
func (r *Repository) GetByID(id string) (*Tour, error) {
	var t Tour
	err := r.db.QueryRow(
		"SELECT id, buyer_name, created_by, created_at FROM tours WHERE id = ?", id,
	).Scan(&t.ID, &t.BuyerName, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tour %s: %w", id, err)
	}

	if err := r.loadStops(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns all tours, newest first.
func (r *Repository) List() ([]*Tour, error) {
	rows, err := r.db.Query("SELECT id, buyer_name, created_by, created_at FROM tours ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("listing tours: %w", err)
	}

	tours := []*Tour{}
	for rows.Next() {
		var t Tour
		if err := rows.Scan(&t.ID, &t.BuyerName, &t.CreatedBy, &t.CreatedAt); err != nil {
			closeRows(rows)
			return nil, fmt.Errorf("scanning tour: %w", err)
		}
		tours = append(tours, &t)
	}
	err = rows.Err()
	closeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("iterating tours: %w", err)
	}

	// Stops are loaded after the tour cursor is closed; SQLite would
	// otherwise hold two connections per tour.
	for _, t := range tours {
		if err := r.loadStops(t); err != nil {
			return nil, err
		}
	}
	return tours, nil
}

// loadStops reads a tour's itinerary. Stop times are the ones recorded when
// the tour was built; later reschedules of a showing do not move its stop.
func (r *Repository) loadStops(t *Tour) error {
	rows, err := r.db.Query(
		`SELECT s.id, s.property_id, p.name, p.address, ts.scheduled_at
		FROM tour_stops ts
		JOIN showings s ON s.id = ts.showing_id
		JOIN properties p ON p.id = s.property_id
		WHERE ts.tour_id = ? ORDER BY ts.position`,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("loading stops for tour %s: %w", t.ID, err)
	}
	defer closeRows(rows)

	t.ShowingIDs = []string{}
	t.Itinerary = []Stop{}
	for rows.Next() {
		var st Stop
		if err := rows.Scan(&st.ShowingID, &st.PropertyID, &st.PropertyName, &st.Address, &st.ScheduledAt); err != nil {
			return fmt.Errorf("scanning stop: %w", err)
		}
		st.ScheduledAt = st.ScheduledAt.UTC()
		t.ShowingIDs = append(t.ShowingIDs, st.ShowingID)
		t.Itinerary = append(t.Itinerary, st)
	}
	return rows.Err()
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Warn("closing rows", "err", err)
	}
}
