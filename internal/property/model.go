// Package property provides the property domain model and data access.
package property

import (
	"strings"
	"time"

	"github.com/evcraddock/showinghive/internal/apperr"
)

// ErrNotFound is returned when a property does not exist.
var ErrNotFound = apperr.New(apperr.KindNotFound, "property not found")

// Property is a listing a seller has opened for showings.
type Property struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	OwnerEmail string    `json:"owner_email"`
	CreatedAt  time.Time `json:"created_at"`
}

// OwnedBy reports whether email belongs to the property's seller.
func (p *Property) OwnedBy(email string) bool {
	return p.OwnerEmail != "" && strings.EqualFold(p.OwnerEmail, email)
}

// scanProperty scans a property from a database row.
func scanProperty(row interface{ Scan(...interface{}) error }) (*Property, error) {
	var p Property
	if err := row.Scan(&p.ID, &p.Name, &p.Address, &p.OwnerEmail, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
