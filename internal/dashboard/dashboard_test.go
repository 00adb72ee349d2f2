package dashboard

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/showinghive/internal/block"
	"github.com/evcraddock/showinghive/internal/db"
	"github.com/evcraddock/showinghive/internal/feedback"
	"github.com/evcraddock/showinghive/internal/property"
	"github.com/evcraddock/showinghive/internal/showing"
)

func TestBuild(t *testing.T) {
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	props := property.NewRepository(d)
	showings := showing.NewRepository(d)
	blocks := block.NewRepository(d, time.UTC)
	fb := feedback.NewRepository(d)

	p, err := props.Create("Maple House", "1 Maple St", "seller@example.com")
	require.NoError(t, err)
	other, err := props.Create("Oak House", "2 Oak Ave", "")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"s1", "s2"} {
		_, err := showings.Insert(&showing.Showing{
			ID: id, PropertyID: p.ID, ClientName: "Dana",
			ScheduledAt: now.Add(time.Duration(i+2) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err = showings.Insert(&showing.Showing{ID: "elsewhere", PropertyID: other.ID, ClientName: "Lee", ScheduledAt: now})
	require.NoError(t, err)
	require.NoError(t, showings.Transition("s2", showing.StatusPending, showing.StatusDeclined, "", nil))

	_, err = fb.Add("s1", 5, "Great light", "")
	require.NoError(t, err)
	_, err = fb.Add("s1", 2, "Noisy street", "")
	require.NoError(t, err)

	_, err = blocks.Create(block.Input{PropertyID: p.ID, Start: now, End: now.Add(time.Hour), RRule: "FREQ=DAILY;COUNT=3"})
	require.NoError(t, err)

	b := NewBuilder(props, showings, blocks, fb)
	b.now = func() time.Time { return now }

	dash, err := b.Build(p.ID)
	require.NoError(t, err)

	assert.Equal(t, p.ID, dash.Property.ID)
	require.Len(t, dash.Showings, 2)
	assert.Len(t, dash.Showings[0].Feedback, 2)
	assert.NotNil(t, dash.Showings[1].Feedback)
	assert.Empty(t, dash.Showings[1].Feedback)
	assert.Len(t, dash.BlockedTimes, 1)
	assert.Len(t, dash.UpcomingBlock, 3)
	assert.Equal(t, 1, dash.Counts["pending"])
	assert.Equal(t, 1, dash.Counts["declined"])
	assert.Equal(t, 0, dash.Counts["approved"])
	assert.InDelta(t, 3.5, dash.AverageRating, 0.001)

	// The embedded showing's fields are flattened next to its feedback.
	raw, err := json.Marshal(dash.Showings[0])
	require.NoError(t, err)
	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Equal(t, "s1", flat["id"])
	assert.Contains(t, flat, "feedback")
}

func TestBuildUnknownProperty(t *testing.T) {
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	b := NewBuilder(property.NewRepository(d), showing.NewRepository(d), block.NewRepository(d, nil), feedback.NewRepository(d))

	_, err = b.Build("missing")
	assert.ErrorIs(t, err, property.ErrNotFound)
}
