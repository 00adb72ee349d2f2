package showing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/evcraddock/showinghive/internal/block"
	"github.com/evcraddock/showinghive/internal/lock"
	"github.com/evcraddock/showinghive/internal/lockbox"
	"github.com/evcraddock/showinghive/internal/metrics"
	"github.com/evcraddock/showinghive/internal/property"
)

// Event names a workflow step that clients are told about.
type Event string

const (
	EventRequested   Event = "requested"
	EventApproved    Event = "approved"
	EventDeclined    Event = "declined"
	EventRescheduled Event = "rescheduled"
	EventReminder    Event = "reminder"
)

// Notifier tells the client about a workflow event. It must not block.
type Notifier interface {
	Notify(ev Event, s *Showing, p *property.Property)
}

// BlockChecker answers whether a property is blocked over an interval.
type BlockChecker interface {
	Overlaps(propertyID string, start, end time.Time) (bool, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Repo       *Repository
	Properties *property.Repository
	Blocks     BlockChecker
	Locker     lock.Locker
	Notifier   Notifier
	// Location reads scheduled times given without an offset. Nil means UTC.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service runs the showing workflow.
type Service struct {
	repo     *Repository
	props    *property.Repository
	blocks   BlockChecker
	locker   lock.Locker
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	validate *validator.Validate
}

// NewService creates a showing service.
func NewService(d Deps) *Service {
	s := &Service{
		repo:     d.Repo,
		props:    d.Properties,
		blocks:   d.Blocks,
		locker:   d.Locker,
		notifier: d.Notifier,
		loc:      d.Location,
		now:      d.Now,
		validate: validator.New(),
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Location is the zone used for times given without an offset.
func (s *Service) Location() *time.Location { return s.loc }

// RequestInput is a buyer's showing request.
type RequestInput struct {
	PropertyID  string `json:"property_id"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	ClientEmail string `json:"client_email" validate:"omitempty,email"`
	ScheduledAt string `json:"scheduled_at"`
	RequestedBy string `json:"-"`
}

// Request books a pending showing if the hour is neither blocked nor taken.
func (s *Service) Request(ctx context.Context, in RequestInput) (*Showing, error) {
	in.PropertyID = strings.TrimSpace(in.PropertyID)
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientPhone = strings.TrimSpace(in.ClientPhone)
	in.ClientEmail = strings.TrimSpace(in.ClientEmail)

	prop, err := s.props.GetByID(in.PropertyID)
	if errors.Is(err, property.ErrNotFound) {
		return nil, ErrBadProperty
	}
	if err != nil {
		return nil, err
	}
	if in.ScheduledAt == "" || in.ClientName == "" {
		return nil, ErrMissingFields
	}
	start, err := ParseTime(in.ScheduledAt, s.loc)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, ErrBadEmail
	}

	unlock, err := s.locker.Lock(ctx, prop.ID)
	if err != nil {
		return nil, fmt.Errorf("locking property %s: %w", prop.ID, err)
	}
	defer unlock()

	if err := s.checkSlot(prop.ID, "", start); err != nil {
		return nil, err
	}

	created, err := s.repo.Insert(&Showing{
		ID:          uuid.NewString(),
		PropertyID:  prop.ID,
		ClientName:  in.ClientName,
		ClientPhone: in.ClientPhone,
		ClientEmail: in.ClientEmail,
		ScheduledAt: start.Truncate(time.Second),
		RequestedBy: in.RequestedBy,
	})
	if err != nil {
		return nil, err
	}

	s.emit(EventRequested, created, prop)
	return created, nil
}

// Approve issues a lockbox code for a pending showing.
func (s *Service) Approve(ctx context.Context, id string) (*Showing, error) {
	sh, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if sh.Status != StatusPending {
		return nil, ErrCannotApprove
	}

	code, err := lockbox.Generate()
	if err != nil {
		return nil, err
	}
	expires := lockbox.ExpiresAt(sh.ScheduledAt)

	if err := s.repo.Transition(id, StatusPending, StatusApproved, code, &expires); err != nil {
		if errors.Is(err, errStale) {
			return nil, ErrCannotApprove
		}
		return nil, err
	}
	return s.reloadAndEmit(EventApproved, id)
}

// Decline rejects a pending showing, freeing its slot.
func (s *Service) Decline(ctx context.Context, id string) (*Showing, error) {
	sh, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if sh.Status != StatusPending {
		return nil, ErrCannotDecline
	}

	if err := s.repo.Transition(id, StatusPending, StatusDeclined, "", nil); err != nil {
		if errors.Is(err, errStale) {
			return nil, ErrCannotDecline
		}
		return nil, err
	}
	return s.reloadAndEmit(EventDeclined, id)
}

// Reschedule moves a pending or approved showing. An approved showing gets
// a fresh code tied to the new time.
func (s *Service) Reschedule(ctx context.Context, id, scheduledAt string) (*Showing, error) {
	sh, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scheduledAt) == "" {
		return nil, ErrMissingTime
	}
	start, err := ParseTime(scheduledAt, s.loc)
	if err != nil {
		return nil, err
	}
	start = start.Truncate(time.Second)
	if sh.Status == StatusDeclined {
		return nil, ErrCannotReschedule
	}

	unlock, err := s.locker.Lock(ctx, sh.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("locking property %s: %w", sh.PropertyID, err)
	}
	defer unlock()

	if err := s.checkSlot(sh.PropertyID, sh.ID, start); err != nil {
		return nil, err
	}

	// Re-read under the lock; an approve may have landed meanwhile.
	sh, err = s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	var code string
	var expires *time.Time
	switch sh.Status {
	case StatusApproved:
		code, err = lockbox.Generate()
		if err != nil {
			return nil, err
		}
		exp := lockbox.ExpiresAt(start)
		expires = &exp
	case StatusDeclined:
		return nil, ErrCannotReschedule
	}

	if err := s.repo.Reschedule(id, start, code, expires); err != nil {
		if errors.Is(err, errStale) {
			return nil, ErrCannotReschedule
		}
		return nil, err
	}
	return s.reloadAndEmit(EventRescheduled, id)
}

// Code returns the lockbox code of an approved showing while it is valid.
func (s *Service) Code(id string) (*Code, error) {
	sh, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if sh.Status != StatusApproved {
		return nil, ErrNotApproved
	}
	now := s.now()
	if sh.CodeExpiresAt != nil && now.After(*sh.CodeExpiresAt) {
		return nil, ErrCodeExpired
	}
	if !lockbox.Valid(sh.LockboxCode, sh.CodeExpiresAt, now) {
		return nil, ErrNotApproved
	}
	return &Code{LockboxCode: sh.LockboxCode, ExpiresAt: *sh.CodeExpiresAt}, nil
}

// Get returns a showing by ID.
func (s *Service) Get(id string) (*Showing, error) {
	return s.repo.GetByID(id)
}

// List returns showings matching opts.
func (s *Service) List(opts ListOptions) ([]*Showing, error) {
	if opts.Status != "" && !opts.Status.IsValid() {
		return nil, ErrBadStatus
	}
	return s.repo.List(opts)
}

// SendReminders notifies clients of approved showings starting within
// lead of now. Each showing is reminded once.
func (s *Service) SendReminders(lead time.Duration) (int, error) {
	pending, err := s.repo.ListUnreminded()
	if err != nil {
		return 0, err
	}

	now := s.now()
	sent := 0
	for _, sh := range pending {
		if sh.ScheduledAt.Before(now) || sh.ScheduledAt.After(now.Add(lead)) {
			continue
		}
		prop, err := s.props.GetByID(sh.PropertyID)
		if err != nil {
			return sent, err
		}
		if err := s.repo.MarkReminded(sh.ID, now); err != nil {
			return sent, err
		}
		s.emit(EventReminder, sh, prop)
		sent++
	}
	return sent, nil
}

// ExpireCodes clears lockbox codes past their expiry.
func (s *Service) ExpireCodes() (int, error) {
	withCodes, err := s.repo.ListWithCodes()
	if err != nil {
		return 0, err
	}

	now := s.now()
	cleared := 0
	for _, sh := range withCodes {
		if sh.CodeExpiresAt == nil || !now.After(*sh.CodeExpiresAt) {
			continue
		}
		if err := s.repo.ClearCode(sh.ID); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, nil
}

// checkSlot rejects start if the property is blocked or another active
// showing (other than exclude) overlaps the hour. Callers hold the lock.
func (s *Service) checkSlot(propertyID, exclude string, start time.Time) error {
	end := start.Add(Duration)

	if s.blocks != nil {
		blocked, err := s.blocks.Overlaps(propertyID, start, end)
		if err != nil {
			return fmt.Errorf("checking blocks: %w", err)
		}
		if blocked {
			metrics.RecordBookingRejection("blocked")
			return ErrBlocked
		}
	}

	active, err := s.repo.ListActive(propertyID)
	if err != nil {
		return err
	}
	for _, other := range active {
		if other.ID == exclude {
			continue
		}
		if block.Overlaps(start, end, other.ScheduledAt, other.End()) {
			metrics.RecordBookingRejection("conflict")
			return ErrConflict
		}
	}
	return nil
}

func (s *Service) reloadAndEmit(ev Event, id string) (*Showing, error) {
	sh, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	prop, err := s.props.GetByID(sh.PropertyID)
	if err != nil {
		return nil, err
	}
	s.emit(ev, sh, prop)
	return sh, nil
}

func (s *Service) emit(ev Event, sh *Showing, prop *property.Property) {
	metrics.RecordShowingEvent(string(ev))
	slog.Info("showing "+string(ev), "showing", sh.ID, "property", sh.PropertyID, "status", sh.Status)
	s.notifier.Notify(ev, sh, prop)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event, *Showing, *property.Property) {}
