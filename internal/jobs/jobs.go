// Package jobs runs the server's periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/evcraddock/showinghive/internal/metrics"
)

// ReminderLead is how far ahead of a showing its reminder goes out.
const ReminderLead = time.Hour

// Cleaner removes expired rows.
type Cleaner interface {
	Cleanup() error
}

// Showings is the part of the showing service the jobs drive.
type Showings interface {
	SendReminders(lead time.Duration) (int, error)
	ExpireCodes() (int, error)
}

// Specs are cron expressions for each job. Empty disables the job.
type Specs struct {
	Cleanup     string
	Reminders   string
	ExpireCodes string
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]func() error
}

// New registers the jobs. Cleaners are run in order by the cleanup job.
func New(specs Specs, loc *time.Location, showings Showings, cleaners ...Cleaner) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger := slogAdapter{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		jobs: map[string]func() error{
			"cleanup": func() error {
				var errs []error
				for _, c := range cleaners {
					errs = append(errs, c.Cleanup())
				}
				return errors.Join(errs...)
			},
			"reminders": func() error {
				n, err := showings.SendReminders(ReminderLead)
				if n > 0 {
					slog.Info("sent reminders", "count", n)
				}
				return err
			},
			"expire_codes": func() error {
				n, err := showings.ExpireCodes()
				if n > 0 {
					slog.Info("cleared expired lockbox codes", "count", n)
				}
				return err
			},
		},
	}

	for name, spec := range map[string]string{
		"cleanup":      specs.Cleanup,
		"reminders":    specs.Reminders,
		"expire_codes": specs.ExpireCodes,
	} {
		if spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(spec, func() { s.RunNow(name) }); err != nil {
			return nil, fmt.Errorf("scheduling %s %q: %w", name, spec, err)
		}
	}

	return s, nil
}

// RunNow runs one job synchronously and records the outcome.
func (s *Scheduler) RunNow(name string) error {
	fn, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	err := fn()
	metrics.RecordJobRun(name, err)
	if err != nil {
		slog.Error("job failed", "job", name, "err", err)
	}
	return err
}

// Entries is the number of scheduled jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", s.Entries())
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
