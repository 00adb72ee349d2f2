package notify

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/evcraddock/showinghive/internal/db"
	"github.com/evcraddock/showinghive/internal/property"
	"github.com/evcraddock/showinghive/internal/showing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return NewStore(d)
}

func TestStoreDefaults(t *testing.T) {
	s := testStore(t)

	got, err := s.Load()
	require.NoError(t, err)
	assert.False(t, got.Twilio.Complete())
	assert.False(t, got.Email.Complete())
	assert.True(t, got.Email.UseTLS)
}

func TestStoreSave(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.SaveTwilio(TwilioSettings{AccountSID: " AC1 ", AuthToken: "tok", FromNumber: "+15550100"}))
	require.NoError(t, s.SaveEmail(EmailSettings{SMTPServer: "mail.example.com", SMTPPort: "587", FromEmail: "hive@example.com"}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "AC1", got.Twilio.AccountSID)
	assert.True(t, got.Twilio.Complete())
	assert.True(t, got.Email.Complete())
	assert.False(t, got.Email.UseTLS)

	// Saving again overwrites.
	require.NoError(t, s.SaveTwilio(TwilioSettings{}))
	got, err = s.Load()
	require.NoError(t, err)
	assert.False(t, got.Twilio.Complete())
}

func TestStoreRejectsBadPort(t *testing.T) {
	s := testStore(t)
	assert.ErrorIs(t, s.SaveEmail(EmailSettings{SMTPPort: "smtp"}), ErrBadPort)
}

func sample() (*showing.Showing, *property.Property) {
	exp := time.Date(2026, 5, 2, 15, 15, 0, 0, time.UTC)
	s := &showing.Showing{
		ID:            "s1",
		PropertyID:    "p1",
		ClientName:    "Dana",
		ClientPhone:   "+15550199",
		ClientEmail:   "dana@example.com",
		ScheduledAt:   time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC),
		Status:        showing.StatusApproved,
		LockboxCode:   "004217",
		CodeExpiresAt: &exp,
	}
	return s, &property.Property{ID: "p1", Name: "Maple House"}
}

func TestCompose(t *testing.T) {
	s, p := sample()

	tests := []struct {
		name    string
		ev      showing.Event
		status  showing.Status
		sms     string
		subject string
	}{
		{"requested", showing.EventRequested, showing.StatusPending,
			"Your showing request for Maple House on 2026-05-02 14:00 has been received and is pending approval.", "Showing request received"},
		{"approved", showing.EventApproved, showing.StatusApproved,
			"Your showing for Maple House at 2026-05-02 14:00 has been approved. Lockbox code: 004217 (expires 2026-05-02 15:15).", "Showing approved"},
		{"declined", showing.EventDeclined, showing.StatusDeclined,
			"Your showing request for Maple House on 2026-05-02 14:00 has been declined.", "Showing declined"},
		{"rescheduled approved", showing.EventRescheduled, showing.StatusApproved,
			"Your showing for Maple House has been rescheduled to 2026-05-02 14:00. New lockbox code: 004217 (expires 2026-05-02 15:15).", "Showing rescheduled"},
		{"rescheduled pending", showing.EventRescheduled, showing.StatusPending,
			"Your showing request for Maple House has been rescheduled to 2026-05-02 14:00 and is pending approval.", "Showing rescheduled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := *s
			cp.Status = tt.status
			m := Compose(tt.ev, &cp, p, nil)
			assert.Equal(t, tt.sms, m.SMS)
			assert.Equal(t, tt.subject, m.Subject)
			assert.True(t, strings.HasPrefix(m.Body, "Hello Dana,\n\n"))
			assert.True(t, strings.HasSuffix(m.Body, "\n\nThank you."))
		})
	}
}

func TestComposeLocationAndFallbackName(t *testing.T) {
	s, _ := sample()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	m := Compose(showing.EventDeclined, s, nil, loc)
	assert.Equal(t, "Your showing request for p1 on 2026-05-02 09:00 has been declined.", m.SMS)
}

type recorder struct {
	mu     sync.Mutex
	sms    []string
	emails []string
	done   chan struct{}
}

func newRecorder(d *Dispatcher, want int) *recorder {
	r := &recorder{done: make(chan struct{}, want)}
	d.sms = func(_ TwilioSettings, to, body string) error {
		r.mu.Lock()
		r.sms = append(r.sms, to+": "+body)
		r.mu.Unlock()
		r.done <- struct{}{}
		return nil
	}
	d.email = func(_ EmailSettings, to, subject, _ string) error {
		r.mu.Lock()
		r.emails = append(r.emails, to+": "+subject)
		r.mu.Unlock()
		r.done <- struct{}{}
		return nil
	}
	return r
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d deliveries", i, n)
		}
	}
}

func runDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errc)
	})
}

func TestDispatcherDelivers(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.SaveTwilio(TwilioSettings{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+15550100"}))
	require.NoError(t, store.SaveEmail(EmailSettings{SMTPServer: "mail.example.com", SMTPPort: "587", FromEmail: "hive@example.com"}))

	d := NewDispatcher(store, Options{Rate: 1000})
	r := newRecorder(d, 4)
	runDispatcher(t, d)

	s, p := sample()
	d.Notify(showing.EventApproved, s, p)
	d.Notify(showing.EventReminder, s, p)
	r.wait(t, 4)

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.sms, 2)
	assert.Contains(t, r.sms[0], "Lockbox code: 004217")
	assert.Equal(t, []string{"dana@example.com: Showing approved", "dana@example.com: Showing reminder"}, r.emails)
}

func TestDispatcherSkipsUnconfigured(t *testing.T) {
	store := testStore(t)
	d := NewDispatcher(store, Options{})
	r := newRecorder(d, 1)

	s, p := sample()
	d.Notify(showing.EventRequested, s, p)

	// Deliver inline; neither channel is configured so nothing is sent.
	d.deliver(<-d.queue)
	assert.Empty(t, r.sms)
	assert.Empty(t, r.emails)
}

func TestDispatcherSkipsClientWithoutContact(t *testing.T) {
	d := NewDispatcher(testStore(t), Options{Queue: 1})
	s, p := sample()
	s.ClientPhone = ""
	s.ClientEmail = ""

	d.Notify(showing.EventRequested, s, p)
	assert.Len(t, d.queue, 0)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := NewDispatcher(testStore(t), Options{Queue: 1})
	s, p := sample()

	d.Notify(showing.EventRequested, s, p)
	d.Notify(showing.EventApproved, s, p)
	assert.Len(t, d.queue, 1)
}

func TestDispatcherRunOnce(t *testing.T) {
	d := NewDispatcher(testStore(t), Options{})
	runDispatcher(t, d)

	// Wait until the first Run has claimed the dispatcher.
	require.Eventually(t, func() bool { return len(d.started) == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, d.Run(context.Background()), ErrAlreadyRunning)
}
