// Package feedback records buyer feedback on showings.
package feedback

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/showinghive/internal/apperr"
)

// Ratings run from MinRating to MaxRating stars.
const (
	MinRating = 1
	MaxRating = 5
)

var (
	// ErrRatingNotInt is returned when rating cannot be read as an integer.
	ErrRatingNotInt = apperr.Invalid("rating must be an integer")
	// ErrInvalid is returned when rating is out of range or comment is empty.
	ErrInvalid = apperr.Invalid("rating must be 1–5 and comment required")
)

// Feedback is a rating and comment left after a showing.
type Feedback struct {
	ID        string    `json:"id"`
	ShowingID string    `json:"showing_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ParseRating reads a rating from a decoded JSON value. Numbers and numeric
// strings are accepted; fractional numbers are truncated.
func ParseRating(v interface{}) (int, error) {
	switch r := v.(type) {
	case float64:
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, ErrRatingNotInt
		}
		return int(r), nil
	case json.Number:
		if n, err := r.Int64(); err == nil {
			return int(n), nil
		}
		f, err := r.Float64()
		if err != nil {
			return 0, ErrRatingNotInt
		}
		return int(f), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(r))
		if err != nil {
			return 0, ErrRatingNotInt
		}
		return n, nil
	case int:
		return r, nil
	default:
		return 0, ErrRatingNotInt
	}
}
