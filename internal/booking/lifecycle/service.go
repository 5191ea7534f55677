package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mechanicBack/internal/booking/earnings"
	"mechanicBack/internal/booking/events"
	"mechanicBack/internal/booking/fsm"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/notify"
	"mechanicBack/internal/booking/pay"
	"mechanicBack/internal/booking/pricing"
	"mechanicBack/internal/booking/timeutil"
)

var tracer = otel.Tracer("mechanicBack/booking/lifecycle")

// JobStore persists job requests. Conditional writes return repo.ErrConflict when
// the stored row no longer matches and repo.ErrNotFound when it is gone.
type JobStore interface {
	Create(ctx context.Context, job models.Job) error
	Get(ctx context.Context, id string) (models.Job, error)
	Accept(ctx context.Context, id string, mechanicID int64) error
	Transition(ctx context.Context, id string, from, to fsm.Status) error
	Update(ctx context.Context, job models.Job, expected fsm.Status) (models.Job, error)
	DeleteNew(ctx context.Context, id string) error
	UpdateMechanicLocation(ctx context.Context, id string, mechanicID int64, loc models.LiveLocation) error
	UpdatePayment(ctx context.Context, id string, status models.PaymentStatus, authRef string) error
	ListUncredited(ctx context.Context, limit int) ([]models.Job, error)
}

// Catalog reads service items.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.ServiceItem, error)
}

// MechanicStore updates mechanic profiles.
type MechanicStore interface {
	Get(ctx context.Context, id int64) (models.Mechanic, error)
	SetAvailability(ctx context.Context, id int64, availability models.Availability) error
	UpdatePosition(ctx context.Context, id int64, lat, lng float64) error
	IncrementCompleted(ctx context.Context, id int64) error
}

// EarningsLedger credits completed jobs at most once per job id.
type EarningsLedger interface {
	Get(ctx context.Context, mechanicID int64) (models.Earnings, error)
	Credit(ctx context.Context, mechanicID int64, jobID string, amountCents int64, now time.Time, loc *time.Location) (bool, error)
	CashOut(ctx context.Context, mechanicID int64, now time.Time, loc *time.Location) (int64, error)
}

// PaymentLog records capture attempts.
type PaymentLog interface {
	RecordCapture(ctx context.Context, jobID string, amountCents int64, state, providerTxn, failure string) (int64, error)
}

// DeclineLog keeps the audit trail of declined jobs.
type DeclineLog interface {
	Record(ctx context.Context, jobID string, mechanicID int64, archiveKey string, at time.Time) error
}

// Archive stores snapshots of removed jobs.
type Archive interface {
	Put(ctx context.Context, id string, at time.Time, v any) (string, error)
}

// Locator mirrors mechanic positions into the geo index.
type Locator interface {
	Update(ctx context.Context, mechanicID int64, lat, lng float64, set string) error
	Move(ctx context.Context, mechanicID int64, fromSet, toSet string) error
	Remove(ctx context.Context, mechanicID int64) error
}

// Directory finds mechanics around a point.
type Directory interface {
	Nearby(ctx context.Context, lat, lng float64) ([]models.Mechanic, error)
}

// PaymentGateway captures card payments.
type PaymentGateway interface {
	Capture(ctx context.Context, jobID string, amountCents int64) (pay.CaptureResult, error)
}

// Notifier delivers user notifications without blocking.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// EventPublisher forwards job events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.JobEvent) error
}

// Logger is a minimal logger interface required by the service.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Config holds the money and time policies of the lifecycle.
type Config struct {
	Rates    pricing.Rates
	Earnings earnings.Policy
	// Location is the business timezone of the earnings buckets. Nil uses timeutil.Location().
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Deps groups the collaborators of the service. Locator and Events are optional.
type Deps struct {
	Jobs      JobStore
	Catalog   Catalog
	Mechanics MechanicStore
	Earnings  EarningsLedger
	Payments  PaymentLog
	Declines  DeclineLog
	Archive   Archive
	Locator   Locator
	Directory Directory
	Gateway   PaymentGateway
	Notifier  Notifier
	Events    EventPublisher
	Logger    Logger
}

// Validate ensures required dependencies are provided.
func (d Deps) Validate() error {
	switch {
	case d.Jobs == nil:
		return errors.New("lifecycle deps: Jobs is required")
	case d.Catalog == nil:
		return errors.New("lifecycle deps: Catalog is required")
	case d.Mechanics == nil:
		return errors.New("lifecycle deps: Mechanics is required")
	case d.Earnings == nil:
		return errors.New("lifecycle deps: Earnings is required")
	case d.Payments == nil:
		return errors.New("lifecycle deps: Payments is required")
	case d.Declines == nil:
		return errors.New("lifecycle deps: Declines is required")
	case d.Archive == nil:
		return errors.New("lifecycle deps: Archive is required")
	case d.Directory == nil:
		return errors.New("lifecycle deps: Directory is required")
	case d.Gateway == nil:
		return errors.New("lifecycle deps: Gateway is required")
	case d.Notifier == nil:
		return errors.New("lifecycle deps: Notifier is required")
	case d.Logger == nil:
		return errors.New("lifecycle deps: Logger is required")
	}
	return nil
}

// Service runs the job lifecycle: booking, acceptance, visit, completion with payment
// capture and earnings, declines and live location.
type Service struct {
	cfg  Config
	deps Deps
}

// NewService constructs a Service instance.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rates == (pricing.Rates{}) {
		cfg.Rates = pricing.DefaultRates()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.Events == nil {
		deps.Events = events.Discard{}
	}
	return &Service{cfg: cfg, deps: deps}, nil
}

// Config returns copy of the service configuration.
func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) now() time.Time {
	return s.cfg.Now()
}

func (s *Service) location() *time.Location {
	if s.cfg.Location != nil {
		return s.cfg.Location
	}
	return timeutil.Location()
}

func startSpan(ctx context.Context, name, jobID string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	if jobID != "" {
		span.SetAttributes(attribute.String("job.id", jobID))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func (s *Service) notifyCustomer(ctx context.Context, job models.Job, event, title, body string) {
	s.deps.Notifier.Notify(ctx, notify.Notification{
		Event:  event,
		JobID:  job.ID,
		Role:   notify.RoleCustomer,
		UserID: job.CustomerID,
		Title:  title,
		Body:   body,
		Data:   map[string]string{"status": string(job.Status)},
	})
}

func (s *Service) publish(ctx context.Context, ev events.JobEvent) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	if err := s.deps.Events.Publish(ctx, ev); err != nil {
		s.deps.Logger.Errorf("lifecycle: publish %s for job %s: %v", ev.RoutingKey(), ev.JobID, err)
	}
}

func statusEvent(job models.Job) events.JobEvent {
	ev := events.JobEvent{
		Type:          events.TypeStatus,
		JobID:         job.ID,
		Status:        string(job.Status),
		CustomerID:    job.CustomerID,
		PaymentStatus: string(job.PaymentStatus),
		AmountCents:   job.PayoutCents,
		At:            job.UpdatedAt,
	}
	if job.MechanicID != nil {
		ev.MechanicID = *job.MechanicID
	}
	return ev
}
