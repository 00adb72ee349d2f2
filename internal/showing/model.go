// Package showing schedules property showings and runs their approval workflow.
package showing

import (
	"database/sql"
	"time"

	"github.com/evcraddock/showinghive/internal/apperr"
)

// Duration is the fixed length of every showing.
const Duration = time.Hour

// Status is where a showing is in the approval workflow.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// IsValid checks if a status is recognized.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined:
		return true
	}
	return false
}

// Label returns a human-readable label for the status.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusDeclined:
		return "Declined"
	default:
		return string(s)
	}
}

var (
	ErrNotFound         = apperr.New(apperr.KindNotFound, "showing not found")
	ErrBadProperty      = apperr.Invalid("invalid property_id")
	ErrMissingFields    = apperr.Invalid("scheduled_at and client_name are required")
	ErrMissingTime      = apperr.Invalid("scheduled_at is required")
	ErrBadTime          = apperr.Invalid("invalid date format")
	ErrBadEmail         = apperr.Invalid("invalid client_email")
	ErrBlocked          = apperr.New(apperr.KindConflict, "requested time is blocked")
	ErrConflict         = apperr.New(apperr.KindConflict, "requested time conflicts with another showing")
	ErrCannotApprove    = apperr.Invalid("only pending showings can be approved")
	ErrCannotDecline    = apperr.Invalid("only pending showings can be declined")
	ErrCannotReschedule = apperr.Invalid("only pending or approved showings can be rescheduled")
	ErrNotApproved      = apperr.Invalid("showing is not approved")
	ErrCodeExpired      = apperr.New(apperr.KindGone, "code expired")
	ErrBadStatus        = apperr.Invalid("status must be pending, approved or declined")
)

// Showing is a buyer's appointment to view a property.
type Showing struct {
	ID            string     `json:"id"`
	PropertyID    string     `json:"property_id"`
	ClientName    string     `json:"client_name"`
	ClientPhone   string     `json:"client_phone,omitempty"`
	ClientEmail   string     `json:"client_email,omitempty"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	Status        Status     `json:"status"`
	LockboxCode   string     `json:"lockbox_code,omitempty"`
	CodeExpiresAt *time.Time `json:"code_expires_at,omitempty"`
	RequestedBy   string     `json:"requested_by,omitempty"`
	RemindedAt    *time.Time `json:"reminded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// WithoutCode returns a copy of the showing with the lockbox code and its
// expiry cleared.
func (s *Showing) WithoutCode() *Showing {
	c := *s
	c.LockboxCode = ""
	c.CodeExpiresAt = nil
	return &c
}

// End is when the showing's one-hour window closes.
func (s *Showing) End() time.Time {
	return s.ScheduledAt.Add(Duration)
}

// Code is the lockbox code response.
type Code struct {
	LockboxCode string    `json:"lockbox_code"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// scanShowing scans a showing from a database row.
func scanShowing(row interface{ Scan(...interface{}) error }) (*Showing, error) {
	var s Showing
	var status string
	var code sql.NullString
	var expires, reminded sql.NullTime

	err := row.Scan(
		&s.ID, &s.PropertyID, &s.ClientName, &s.ClientPhone, &s.ClientEmail,
		&s.ScheduledAt, &status, &code, &expires, &s.RequestedBy, &reminded,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = Status(status)
	s.ScheduledAt = s.ScheduledAt.UTC()
	if code.Valid {
		s.LockboxCode = code.String
	}
	if expires.Valid {
		t := expires.Time.UTC()
		s.CodeExpiresAt = &t
	}
	if reminded.Valid {
		t := reminded.Time.UTC()
		s.RemindedAt = &t
	}
	return &s, nil
}
