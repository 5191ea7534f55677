package bookinghttp

import (
	"context"
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"mechanicBack/internal/booking/lifecycle"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/ranking"
)

// Logger captures the logging contract required by the server.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Lifecycle is implemented by *lifecycle.Service.
type Lifecycle interface {
	Create(ctx context.Context, req lifecycle.CreateRequest) (models.Job, error)
	Get(ctx context.Context, jobID string) (models.Job, error)
	Accept(ctx context.Context, jobID string, mechanicID int64) (models.Job, error)
	Arrive(ctx context.Context, jobID string, mechanicID int64) (models.Job, error)
	Start(ctx context.Context, jobID string, mechanicID int64) (models.Job, error)
	Complete(ctx context.Context, jobID string, mechanicID int64, in lifecycle.CompletionInput) (lifecycle.CompletionSummary, error)
	Decline(ctx context.Context, jobID string, mechanicID int64) error
	UpdateLocation(ctx context.Context, jobID string, mechanicID int64, lat, lng float64) (models.LiveLocation, error)
	ApplyPaymentEvent(ctx context.Context, jobID string, status models.PaymentStatus, authRef string) error
	Match(ctx context.Context, lat, lng float64, serviceNames []string) ([]ranking.Ranked, error)
	SetAvailability(ctx context.Context, mechanicID int64, availability models.Availability) error
	CashOut(ctx context.Context, mechanicID int64) (int64, error)
	Earnings(ctx context.Context, mechanicID int64) (models.Earnings, error)
}

// Catalog lists bookable services.
type Catalog interface {
	List(ctx context.Context) ([]models.ServiceItem, error)
}

// JobLister serves the job feeds.
type JobLister interface {
	ListOpen(ctx context.Context, mechanicID int64, limit int) ([]models.Job, error)
	ListByMechanic(ctx context.Context, mechanicID int64, limit, offset int) ([]models.Job, error)
	ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]models.Job, error)
}

// WebhookStore keeps raw processor callbacks.
type WebhookStore interface {
	SaveWebhook(ctx context.Context, signature string, payload []byte) error
}

// Server provides HTTP handlers for the booking domain.
type Server struct {
	logger        Logger
	svc           Lifecycle
	catalog       Catalog
	jobs          JobLister
	webhooks      WebhookStore
	webhookSecret string
	jobsWS        http.Handler
}

// NewServer constructs a Server instance. jobsWS serves /ws/jobs and may be nil.
func NewServer(logger Logger, svc Lifecycle, catalog Catalog, jobs JobLister, webhooks WebhookStore, webhookSecret string, jobsWS http.Handler) *Server {
	return &Server{
		logger:        logger,
		svc:           svc,
		catalog:       catalog,
		jobs:          jobs,
		webhooks:      webhooks,
		webhookSecret: webhookSecret,
		jobsWS:        jobsWS,
	}
}

// RegisterRoutes mounts the booking routes. public wraps unauthenticated routes,
// authed must put an auth.Principal into the request context.
func (s *Server) RegisterRoutes(mux *pat.PatternServeMux, public, authed alice.Chain) {
	mux.Get("/api/v1/services", public.ThenFunc(s.handleListServices))
	mux.Post("/api/v1/payments/webhook", public.ThenFunc(s.handlePaymentWebhook))

	mux.Post("/api/v1/mechanics/match", authed.ThenFunc(s.handleMatch))
	mux.Put("/api/v1/mechanics/:id/availability", authed.ThenFunc(s.handleSetAvailability))
	mux.Get("/api/v1/mechanics/:id/earnings", authed.ThenFunc(s.handleEarnings))
	mux.Post("/api/v1/mechanics/:id/cashout", authed.ThenFunc(s.handleCashOut))

	// literal paths before :id
	mux.Get("/api/v1/jobs/open", authed.ThenFunc(s.handleListOpen))
	mux.Get("/api/v1/jobs/mine", authed.ThenFunc(s.handleListMine))
	mux.Post("/api/v1/jobs", authed.ThenFunc(s.handleCreateJob))
	mux.Get("/api/v1/jobs/:id", authed.ThenFunc(s.handleGetJob))
	mux.Post("/api/v1/jobs/:id/accept", authed.ThenFunc(s.handleAccept))
	mux.Post("/api/v1/jobs/:id/arrive", authed.ThenFunc(s.handleArrive))
	mux.Post("/api/v1/jobs/:id/start", authed.ThenFunc(s.handleStart))
	mux.Post("/api/v1/jobs/:id/complete", authed.ThenFunc(s.handleComplete))
	mux.Post("/api/v1/jobs/:id/decline", authed.ThenFunc(s.handleDecline))
	mux.Post("/api/v1/jobs/:id/location", authed.ThenFunc(s.handleLocation))

	if s.jobsWS != nil {
		mux.Get("/ws/jobs", s.jobsWS)
	}
}
