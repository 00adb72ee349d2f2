package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/evcraddock/showinghive/internal/metrics"
	"github.com/evcraddock/showinghive/internal/property"
	"github.com/evcraddock/showinghive/internal/showing"
)

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("dispatcher already running")

type job struct {
	event   showing.Event
	showing string
	phone   string
	email   string
	msg     Message
}

// Options tune a Dispatcher.
type Options struct {
	// Queue bounds the number of pending notifications. Default 100.
	Queue int
	// Rate is deliveries per second. Zero means unlimited.
	Rate float64
	// Location formats times in messages. Nil means UTC.
	Location *time.Location
}

// Dispatcher queues notifications and delivers them from one worker.
type Dispatcher struct {
	store   *Store
	queue   chan job
	limiter *rate.Limiter
	loc     *time.Location
	started chan struct{}

	sms   smsFunc
	email emailFunc
}

// NewDispatcher creates a dispatcher reading channel settings from store.
func NewDispatcher(store *Store, opts Options) *Dispatcher {
	if opts.Queue <= 0 {
		opts.Queue = 100
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	return &Dispatcher{
		store:   store,
		queue:   make(chan job, opts.Queue),
		limiter: rate.NewLimiter(limit, 1),
		loc:     opts.Location,
		started: make(chan struct{}, 1),
		sms:     sendTwilio,
		email:   SendMail,
	}
}

// Notify queues messages for the showing's client. It never blocks; when
// the queue is full the notification is dropped and logged.
func (d *Dispatcher) Notify(ev showing.Event, s *showing.Showing, p *property.Property) {
	if s.ClientPhone == "" && s.ClientEmail == "" {
		return
	}

	j := job{
		event:   ev,
		showing: s.ID,
		phone:   s.ClientPhone,
		email:   s.ClientEmail,
		msg:     Compose(ev, s, p, d.loc),
	}

	select {
	case d.queue <- j:
		metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
	default:
		metrics.RecordNotification("queue", "dropped")
		slog.Warn("notification queue full", "event", ev, "showing", s.ID)
	}
}

// Run delivers queued notifications until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	select {
	case d.started <- struct{}{}:
	default:
		return ErrAlreadyRunning
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-d.queue:
			metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
			if err := d.limiter.Wait(ctx); err != nil {
				return nil
			}
			d.deliver(j)
		}
	}
}

func (d *Dispatcher) deliver(j job) {
	settings, err := d.store.Load()
	if err != nil {
		slog.Error("loading notification settings", "err", err)
		metrics.RecordNotification("settings", "failed")
		return
	}

	if j.phone != "" {
		d.deliverSMS(settings.Twilio, j)
	}
	if j.email != "" {
		d.deliverEmail(settings.Email, j)
	}
}

func (d *Dispatcher) deliverSMS(cfg TwilioSettings, j job) {
	if !cfg.Complete() {
		slog.Info("sms not sent", "to", j.phone, "message", j.msg.SMS, "reason", "twilio config incomplete")
		metrics.RecordNotification("sms", "skipped")
		return
	}
	if err := d.sms(cfg, j.phone, j.msg.SMS); err != nil {
		slog.Error("sending sms", "showing", j.showing, "event", j.event, "err", err)
		metrics.RecordNotification("sms", "failed")
		return
	}
	metrics.RecordNotification("sms", "sent")
}

func (d *Dispatcher) deliverEmail(cfg EmailSettings, j job) {
	if !cfg.Complete() {
		slog.Info("email not sent", "to", j.email, "subject", j.msg.Subject, "reason", "email config incomplete")
		metrics.RecordNotification("email", "skipped")
		return
	}
	if err := d.email(cfg, j.email, j.msg.Subject, j.msg.Body); err != nil {
		slog.Error("sending email", "showing", j.showing, "event", j.event, "err", err)
		metrics.RecordNotification("email", "failed")
		return
	}
	metrics.RecordNotification("email", "sent")
}
