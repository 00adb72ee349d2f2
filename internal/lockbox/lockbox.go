// Package lockbox issues the one-time access codes handed out on approval.
package lockbox

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Validity is how long a code stays usable after the showing starts.
const Validity = time.Hour + 15*time.Minute

var codeSpace = big.NewInt(1_000_000)

// Generate returns a random six-digit code, zero padded.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generating lockbox code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ExpiresAt returns when a code issued for a showing at start stops working.
func ExpiresAt(start time.Time) time.Time {
	return start.Add(Validity)
}

// Valid reports whether code is set and now is not past its expiry.
func Valid(code string, expires *time.Time, now time.Time) bool {
	if code == "" || expires == nil {
		return false
	}
	return !now.After(*expires)
}
