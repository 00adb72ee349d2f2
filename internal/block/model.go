// Package block manages seller blocked times, including recurring ones.
package block

import (
	"time"

	"github.com/evcraddock/showinghive/internal/apperr"
)

var (
	// ErrNotFound is returned when a block does not exist.
	ErrNotFound = apperr.New(apperr.KindNotFound, "blocked time not found")
	// ErrOverlap is returned when a new block intersects an existing one.
	ErrOverlap = apperr.New(apperr.KindConflict, "time range overlaps existing block")
	// ErrTooDense is returned when a conflict check would need more
	// occurrences than the expansion cap.
	ErrTooDense = apperr.Invalid("recurrence too dense")
	// ErrInvalidRange is returned when end is not after start.
	ErrInvalidRange = apperr.Invalid("end must be after start")
)

// Block is an interval during which a property cannot be shown.
// A non-empty RRule repeats the interval; each occurrence keeps End-Start.
type Block struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	RRule      string    `json:"rrule,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Occurrence is one concrete interval of a block.
type Occurrence struct {
	BlockID string    `json:"block_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Duration is the length of each occurrence.
func (b *Block) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// Overlaps is the half-open interval test: touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// scanBlock scans a block from a database row.
func scanBlock(row interface{ Scan(...interface{}) error }) (*Block, error) {
	var b Block
	if err := row.Scan(&b.ID, &b.PropertyID, &b.Start, &b.End, &b.RRule, &b.Note, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Start = b.Start.UTC()
	b.End = b.End.UTC()
	return &b, nil
}
