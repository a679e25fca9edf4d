package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/mailer"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/realtime"
)

const (
	defaultBatchSize   = 100
	defaultMaxAttempts = 5
	defaultLease       = 2 * time.Minute
	defaultBackoff     = 15 * time.Second
	maxBackoff         = 30 * time.Minute
	dispatchTimeout    = 30 * time.Second
)

// MailDetails is what the appointment email templates need. Only the
// notification addressed to PatientID triggers an email.
type MailDetails struct {
	PatientID uuid.UUID
	To        string
	Name      string
	Doctor    string
	Date      string
	Time      string
	Reason    string
}

// MailLookup resolves the email details for an appointment notification.
type MailLookup interface {
	AppointmentMail(ctx context.Context, appointmentID uuid.UUID) (*MailDetails, error)
}

type DispatcherConfig struct {
	// Interval is a cron schedule for the sweep, e.g. "@every 10s".
	Interval    string
	MaxAttempts int
	BatchSize   int
	// Lease is how long a claim holds before another dispatcher may take
	// the row over.
	Lease time.Duration
	// Backoff is the delay before the first retry. It doubles per attempt.
	Backoff time.Duration
}

// Dispatcher delivers pending notifications to their owners' rooms. One
// loop goroutine drains the outbox; Kick and the cron sweep only wake it.
type Dispatcher struct {
	repo    Repository
	emitter Emitter
	cfg     DispatcherConfig
	logger  zerolog.Logger
	now     func() time.Time

	sender    mailer.EmailSender
	templates *mailer.TemplateEngine
	lookup    MailLookup

	cron   *cron.Cron
	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(repo Repository, emitter Emitter, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Interval == "" {
		cfg.Interval = "@every 10s"
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaultLease
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Dispatcher{
		repo:    repo,
		emitter: emitter,
		cfg:     cfg,
		logger:  logger.With().Str("component", "outbox").Logger(),
		now:     time.Now,
		wake:    make(chan struct{}, 1),
	}
}

// UseMailer enables emails for accepted and rejected appointments.
func (d *Dispatcher) UseMailer(sender mailer.EmailSender, templates *mailer.TemplateEngine, lookup MailLookup) {
	d.sender = sender
	d.templates = templates
	d.lookup = lookup
}

// Start schedules the sweep and starts the delivery loop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.cron = cron.New()
	if _, err := d.cron.AddFunc(d.cfg.Interval, d.Kick); err != nil {
		return fmt.Errorf("schedule outbox sweep %q: %w", d.cfg.Interval, err)
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.loop(ctx)
	d.cron.Start()
	d.Kick()

	d.logger.Info().
		Str("interval", d.cfg.Interval).
		Int("max_attempts", d.cfg.MaxAttempts).
		Dur("lease", d.cfg.Lease).
		Msg("outbox dispatcher started")
	return nil
}

// Stop halts the sweep and waits for the loop to finish its current batch.
func (d *Dispatcher) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Kick asks the loop to drain the outbox. It never blocks.
func (d *Dispatcher) Kick() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
			runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
			if _, err := d.DispatchPending(runCtx); err != nil {
				d.logger.Error().Err(err).Msg("outbox sweep failed")
			}
			cancel()
		}
	}
}

// DispatchPending claims due notifications batch by batch until a batch
// comes back short, delivers them, and returns how many were delivered.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	delivered := 0
	for {
		now := d.now().UTC()
		batch, err := d.repo.ClaimPending(ctx, d.cfg.BatchSize, now, now.Add(-d.cfg.Lease))
		if err != nil {
			return delivered, fmt.Errorf("claim pending notifications: %w", err)
		}
		for _, n := range batch {
			if ctx.Err() != nil {
				return delivered, ctx.Err()
			}
			if d.deliver(ctx, n) {
				delivered++
			}
		}
		if len(batch) < d.cfg.BatchSize {
			return delivered, nil
		}
	}
}

// retryAt returns when a row that has failed attempts times may be tried again.
func (d *Dispatcher) retryAt(attempts int) time.Time {
	wait := d.cfg.Backoff
	for i := 1; i < attempts && wait < maxBackoff; i++ {
		wait *= 2
	}
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return d.now().UTC().Add(wait)
}

func (d *Dispatcher) deliver(ctx context.Context, n *Notification) bool {
	log := d.logger.With().
		Str("notification_id", n.ID.String()).
		Str("user_id", n.UserID.String()).
		Int("attempt", n.Attempts+1).
		Logger()

	room := realtime.RoomFor(n.UserID.String())
	if err := d.emitter.Emit(ctx, room, EventFor(n.Type), n.Payload()); err != nil {
		attempts := n.Attempts + 1
		status := DeliveryPending
		if attempts >= d.cfg.MaxAttempts {
			status = DeliveryFailed
		}
		next := d.retryAt(attempts)
		log.Warn().Err(err).Str("status", status).Time("next_attempt_at", next).Msg("notification delivery failed")
		if rerr := d.repo.RecordFailure(ctx, n.ID, attempts, status, err.Error(), next); rerr != nil {
			log.Error().Err(rerr).Msg("record delivery failure")
		}
		return false
	}

	if err := d.repo.MarkDelivered(ctx, n.ID, d.now().UTC()); err != nil {
		log.Error().Err(err).Msg("mark notification delivered")
		return false
	}
	log.Debug().Msg("notification delivered")

	d.sendMail(ctx, n, log)
	return true
}

func (d *Dispatcher) sendMail(ctx context.Context, n *Notification, log zerolog.Logger) {
	if d.sender == nil || d.lookup == nil || n.AppointmentID == nil {
		return
	}
	var templateID string
	switch n.Type {
	case TypeAppointmentAccepted:
		templateID = mailer.TemplateAppointmentAccepted
	case TypeAppointmentRejected:
		templateID = mailer.TemplateAppointmentRejected
	default:
		return
	}

	details, err := d.lookup.AppointmentMail(ctx, *n.AppointmentID)
	if err != nil {
		log.Warn().Err(err).Msg("resolve appointment email")
		return
	}
	if details.PatientID != n.UserID || details.To == "" {
		return
	}
	subject, body, err := d.templates.Render(templateID, map[string]string{
		"name":   details.Name,
		"doctor": details.Doctor,
		"date":   details.Date,
		"time":   details.Time,
		"reason": details.Reason,
	})
	if err != nil {
		log.Error().Err(err).Msg("render appointment email")
		return
	}
	if err := d.sender.SendEmail(ctx, details.To, subject, body); err != nil {
		log.Warn().Err(err).Str("to", details.To).Msg("send appointment email")
	}
}
