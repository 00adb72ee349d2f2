// Package tour builds buyer itineraries out of approved showings.
package tour

import (
	"time"

	"github.com/evcraddock/showinghive/internal/apperr"
)

var (
	ErrNotFound  = apperr.New(apperr.KindNotFound, "tour not found")
	ErrEmpty     = apperr.Invalid("showing_ids must be a non-empty list")
	ErrDuplicate = apperr.Invalid("showing_ids must not repeat a showing")
)

// Tour is an ordered set of approved showings for one buyer.
type Tour struct {
	ID         string    `json:"id"`
	BuyerName  string    `json:"buyer_name,omitempty"`
	ShowingIDs []string  `json:"showings"`
	Itinerary  []Stop    `json:"itinerary"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stop is one showing on a tour.
type Stop struct {
	ShowingID    string    `json:"showing_id"`
	PropertyID   string    `json:"property_id"`
	PropertyName string    `json:"property_name"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Address      string    `json:"address"`
}
