package showing

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/showinghive/internal/apperr"
	"github.com/evcraddock/showinghive/internal/block"
	"github.com/evcraddock/showinghive/internal/db"
	"github.com/evcraddock/showinghive/internal/lock"
	"github.com/evcraddock/showinghive/internal/property"
)

type recordedEvent struct {
	ev      Event
	showing string
	status  Status
	code    string
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeNotifier) Notify(ev Event, s *Showing, p *property.Property) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{ev: ev, showing: s.ID, status: s.Status, code: s.LockboxCode})
}

func (f *fakeNotifier) last() recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

type fixture struct {
	svc    *Service
	repo   *Repository
	blocks *block.Repository
	notes  *fakeNotifier
	propID string
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	props := property.NewRepository(d)
	p, err := props.Create("Maple House", "123 Main St", "seller@example.com")
	require.NoError(t, err)

	f := &fixture{
		repo:   NewRepository(d),
		blocks: block.NewRepository(d, time.UTC),
		notes:  &fakeNotifier{},
		propID: p.ID,
		now:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(Deps{
		Repo:       f.repo,
		Properties: props,
		Blocks:     f.blocks,
		Locker:     lock.NewLocal(),
		Notifier:   f.notes,
		Now:        func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) request(t *testing.T, when string) *Showing {
	t.Helper()
	s, err := f.svc.Request(context.Background(), RequestInput{
		PropertyID:  f.propID,
		ClientName:  "Dana Buyer",
		ClientPhone: "+15555550100",
		ScheduledAt: when,
	})
	require.NoError(t, err)
	return s
}

func TestRequest(t *testing.T) {
	f := newFixture(t)

	s := f.request(t, "2026-03-01T14:00:00Z")

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC), s.ScheduledAt)
	assert.Equal(t, time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), s.End())
	assert.Empty(t, s.LockboxCode)
	assert.Nil(t, s.CodeExpiresAt)
	assert.Equal(t, EventRequested, f.notes.last().ev)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   RequestInput
		want error
	}{
		{"unknown property", RequestInput{PropertyID: "nope", ClientName: "A", ScheduledAt: "2026-03-01T14:00"}, ErrBadProperty},
		{"missing time", RequestInput{PropertyID: f.propID, ClientName: "A"}, ErrMissingFields},
		{"missing client", RequestInput{PropertyID: f.propID, ScheduledAt: "2026-03-01T14:00"}, ErrMissingFields},
		{"bad time", RequestInput{PropertyID: f.propID, ClientName: "A", ScheduledAt: "tomorrow"}, ErrBadTime},
		{"bad email", RequestInput{PropertyID: f.propID, ClientName: "A", ClientEmail: "nope", ScheduledAt: "2026-03-01T14:00"}, ErrBadEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Request(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
		})
	}
}

func TestRequestConflicts(t *testing.T) {
	f := newFixture(t)
	f.request(t, "2026-03-01T14:00")

	_, err := f.svc.Request(context.Background(), RequestInput{PropertyID: f.propID, ClientName: "B", ScheduledAt: "2026-03-01T14:30"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// Back-to-back showings touch but do not overlap.
	f.request(t, "2026-03-01T15:00")
	f.request(t, "2026-03-01T13:00")
}

func TestRequestBlocked(t *testing.T) {
	f := newFixture(t)
	_, err := f.blocks.Create(block.Input{
		PropertyID: f.propID,
		Start:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = f.svc.Request(context.Background(), RequestInput{PropertyID: f.propID, ClientName: "A", ScheduledAt: "2026-03-01T11:30"})
	assert.ErrorIs(t, err, ErrBlocked)

	// Ending exactly when the block starts is fine.
	f.request(t, "2026-03-01T11:00")
}

func TestDeclinedShowingFreesSlot(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, "2026-03-01T14:00")

	_, err := f.svc.Decline(context.Background(), s.ID)
	require.NoError(t, err)

	f.request(t, "2026-03-01T14:00")
}

func TestConcurrentRequestsOneWinner(t *testing.T) {
	f := newFixture(t)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Request(context.Background(), RequestInput{
				PropertyID:  f.propID,
				ClientName:  "Racer",
				ScheduledAt: "2026-03-01T14:00",
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, wins)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, "2026-03-01T14:00")

	approved, err := f.svc.Approve(context.Background(), s.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, approved.Status)
	assert.Regexp(t, `^\d{6}$`, approved.LockboxCode)
	require.NotNil(t, approved.CodeExpiresAt)
	assert.Equal(t, time.Date(2026, 3, 1, 15, 15, 0, 0, time.UTC), *approved.CodeExpiresAt)

	ev := f.notes.last()
	assert.Equal(t, EventApproved, ev.ev)
	assert.Equal(t, approved.LockboxCode, ev.code)

	_, err = f.svc.Approve(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrCannotApprove)
	_, err = f.svc.Decline(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrCannotDecline)
}

func TestDecline(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, "2026-03-01T14:00")

	declined, err := f.svc.Decline(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, declined.Status)
	assert.Equal(t, EventDeclined, f.notes.last().ev)

	_, err = f.svc.Approve(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrCannotApprove)
}

func TestWorkflowNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Decline(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Reschedule(ctx, "missing", "2026-03-01T10:00")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Code("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReschedulePending(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, "2026-03-01T14:00")

	// Moving within its own hour does not conflict with itself.
	moved, err := f.svc.Reschedule(context.Background(), s.ID, "2026-03-01T14:30")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, moved.Status)
	assert.Equal(t, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC), moved.ScheduledAt)
	assert.Empty(t, moved.LockboxCode)
	assert.Equal(t, EventRescheduled, f.notes.last().ev)
}

func TestRescheduleApprovedRegeneratesCode(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, "2026-03-01T14:00")
	approved, err := f.svc.Approve(context.Background(), s.ID)
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(context.Background(), s.ID, "2026-03-02T10:00")
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, moved.Status)
	assert.Regexp(t, `^\d{6}$`, moved.LockboxCode)
	require.NotNil(t, moved.CodeExpiresAt)
	assert.Equal(t, time.Date(2026, 3, 2, 11, 15, 0, 0, time.UTC), *moved.CodeExpiresAt)
	assert.NotEqual(t, approved.CodeExpiresAt, moved.CodeExpiresAt)
}

func TestRescheduleRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.request(t, "2026-03-01T14:00")
	b := f.request(t, "2026-03-01T16:00")

	_, err := f.svc.Reschedule(ctx, b.ID, "2026-03-01T14:15")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Reschedule(ctx, b.ID, "")
	assert.ErrorIs(t, err, ErrMissingTime)

	_, err = f.svc.Reschedule(ctx, b.ID, "not a date")
	assert.ErrorIs(t, err, ErrBadTime)

	_, err = f.blocks.Create(block.Input{
		PropertyID: f.propID,
		Start:      time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = f.svc.Reschedule(ctx, b.ID, "2026-03-01T19:00")
	assert.ErrorIs(t, err, ErrBlocked)

	_, err = f.svc.Decline(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.svc.Reschedule(ctx, a.ID, "2026-03-03T09:00")
	assert.ErrorIs(t, err, ErrCannotReschedule)
}

func TestCode(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, "2026-03-01T14:00")

	_, err := f.svc.Code(s.ID)
	assert.ErrorIs(t, err, ErrNotApproved)

	approved, err := f.svc.Approve(context.Background(), s.ID)
	require.NoError(t, err)

	code, err := f.svc.Code(s.ID)
	require.NoError(t, err)
	assert.Equal(t, approved.LockboxCode, code.LockboxCode)
	assert.Equal(t, *approved.CodeExpiresAt, code.ExpiresAt)

	// Still valid at the exact expiry instant.
	f.now = *approved.CodeExpiresAt
	code, err = f.svc.Code(s.ID)
	require.NoError(t, err)
	assert.Equal(t, approved.LockboxCode, code.LockboxCode)

	cleared, err := f.svc.ExpireCodes()
	require.NoError(t, err)
	assert.Equal(t, 0, cleared)

	f.now = approved.CodeExpiresAt.Add(time.Second)
	_, err = f.svc.Code(s.ID)
	assert.ErrorIs(t, err, ErrCodeExpired)
	assert.Equal(t, apperr.KindGone, apperr.KindOf(err))
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	soon := f.request(t, "2026-03-01T08:00")
	later := f.request(t, "2026-03-01T12:00")
	f.request(t, "2026-03-01T09:00") // pending, never reminded
	for _, s := range []*Showing{soon, later} {
		_, err := f.svc.Approve(ctx, s.ID)
		require.NoError(t, err)
	}

	sent, err := f.svc.SendReminders(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, EventReminder, f.notes.last().ev)
	assert.Equal(t, soon.ID, f.notes.last().showing)

	// Only once.
	sent, err = f.svc.SendReminders(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	// Rescheduling clears the reminder flag.
	_, err = f.svc.Reschedule(ctx, soon.ID, "2026-03-01T10:00")
	require.NoError(t, err)
	f.now = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	sent, err = f.svc.SendReminders(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestExpireCodes(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, "2026-03-01T14:00")
	_, err := f.svc.Approve(context.Background(), s.ID)
	require.NoError(t, err)

	cleared, err := f.svc.ExpireCodes()
	require.NoError(t, err)
	assert.Equal(t, 0, cleared)

	f.now = time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC)
	cleared, err = f.svc.ExpireCodes()
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	got, err := f.svc.Get(s.ID)
	require.NoError(t, err)
	assert.Empty(t, got.LockboxCode)
	assert.Equal(t, StatusApproved, got.Status)

	// Still reported as expired, not as unapproved.
	_, err = f.svc.Code(s.ID)
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	a := f.request(t, "2026-03-01T16:00")
	f.request(t, "2026-03-01T14:00")
	_, err := f.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)

	all, err := f.svc.List(ListOptions{PropertyID: f.propID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].ScheduledAt.Before(all[1].ScheduledAt), "expected ordering by time")

	approved, err := f.svc.List(ListOptions{Status: StatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, a.ID, approved[0].ID)

	_, err = f.svc.List(ListOptions{Status: "bogus"})
	assert.True(t, errors.Is(err, ErrBadStatus))
}

func TestParseTime(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	tests := []struct {
		in   string
		loc  *time.Location
		want time.Time
	}{
		{"2026-03-01T14:00:00Z", nil, time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)},
		{"2026-03-01T14:00:00-06:00", nil, time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)},
		{"2026-03-01T14:00", nil, time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)},
		{"2026-03-01 14:00", chicago, time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)},
		{"2026-03-01T14:00:30", chicago, time.Date(2026, 3, 1, 20, 0, 30, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in, tt.loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}

	_, err = ParseTime("03/01/2026", nil)
	assert.ErrorIs(t, err, ErrBadTime)
}
