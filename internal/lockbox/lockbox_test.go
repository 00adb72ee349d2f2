package lockbox

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.Regexp(t, sixDigits, code)
		seen[code] = true
	}
	// 200 draws from a million values should not all collide.
	assert.Greater(t, len(seen), 150)
}

func TestExpiresAt(t *testing.T) {
	start := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 2, 15, 15, 0, 0, time.UTC), ExpiresAt(start))
}

func TestValid(t *testing.T) {
	start := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	exp := ExpiresAt(start)

	tests := []struct {
		name    string
		code    string
		expires *time.Time
		now     time.Time
		want    bool
	}{
		{"before start", "123456", &exp, start.Add(-time.Hour), true},
		{"during showing", "123456", &exp, start.Add(30 * time.Minute), true},
		{"at expiry", "123456", &exp, exp, true},
		{"after expiry", "123456", &exp, exp.Add(time.Minute), false},
		{"no code", "", &exp, start, false},
		{"no expiry", "123456", nil, start, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.code, tt.expires, tt.now))
		})
	}
}
