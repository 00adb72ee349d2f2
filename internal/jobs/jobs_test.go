package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/evcraddock/showinghive/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeShowings struct {
	reminders atomic.Int32
	expired   atomic.Int32
	lead      atomic.Int64
	err       error
}

func (f *fakeShowings) SendReminders(lead time.Duration) (int, error) {
	f.lead.Store(int64(lead))
	f.reminders.Add(1)
	return 1, f.err
}

func (f *fakeShowings) ExpireCodes() (int, error) {
	f.expired.Add(1)
	return 0, f.err
}

type fakeCleaner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCleaner) Cleanup() error {
	f.calls.Add(1)
	return f.err
}

func TestRunNow(t *testing.T) {
	sh := &fakeShowings{}
	sessions, tokens := &fakeCleaner{}, &fakeCleaner{}

	s, err := New(Specs{}, nil, sh, sessions, tokens)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Entries())

	require.NoError(t, s.RunNow("cleanup"))
	assert.EqualValues(t, 1, sessions.calls.Load())
	assert.EqualValues(t, 1, tokens.calls.Load())

	require.NoError(t, s.RunNow("reminders"))
	assert.Equal(t, int64(time.Hour), sh.lead.Load())

	require.NoError(t, s.RunNow("expire_codes"))
	assert.EqualValues(t, 1, sh.expired.Load())

	assert.Error(t, s.RunNow("vacuum"))
}

func TestRunNowRecordsFailure(t *testing.T) {
	boom := errors.New("boom")
	s, err := New(Specs{}, nil, &fakeShowings{}, &fakeCleaner{err: boom}, &fakeCleaner{})
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.JobRunsTotal.WithLabelValues("cleanup", "error"))
	assert.ErrorIs(t, s.RunNow("cleanup"), boom)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.JobRunsTotal.WithLabelValues("cleanup", "error")))
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(Specs{Reminders: "every now and then"}, nil, &fakeShowings{})
	assert.Error(t, err)
}

func TestRunSchedules(t *testing.T) {
	sh := &fakeShowings{}
	s, err := New(Specs{
		Cleanup:     "@hourly",
		Reminders:   "@every 1s",
		ExpireCodes: "@every 1s",
	}, time.UTC, sh)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Entries())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return sh.reminders.Load() > 0 && sh.expired.Load() > 0
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
