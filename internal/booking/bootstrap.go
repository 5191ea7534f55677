package booking

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
	"github.com/redis/go-redis/v9"

	"mechanicBack/internal/booking/archive"
	"mechanicBack/internal/booking/backend"
	"mechanicBack/internal/booking/earnings"
	"mechanicBack/internal/booking/geo"
	bookinghttp "mechanicBack/internal/booking/http"
	"mechanicBack/internal/booking/lifecycle"
	"mechanicBack/internal/booking/notify"
	"mechanicBack/internal/booking/repo"
	"mechanicBack/internal/booking/subscribe"
	"mechanicBack/internal/booking/timeutil"
	"mechanicBack/internal/booking/ws"
)

type moduleState struct {
	jobsRepo     *repo.JobsRepo
	servicesRepo *repo.ServicesRepo
	paymentsRepo *repo.PaymentsRepo
	service      *lifecycle.Service
	poller       *subscribe.Poller
	jobHub       *ws.JobHub
	server       *bookinghttp.Server
	cfg          BookingConfig
	logger       Logger
}

func ensureModule(deps *BookingDeps) (*moduleState, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if deps.module != nil {
		return deps.module, nil
	}
	if err := timeutil.SetLocation(deps.Config.BusinessTZ); err != nil {
		return nil, fmt.Errorf("booking: BUSINESS_TZ: %w", err)
	}

	jobsRepo := repo.NewJobsRepo(deps.DB)
	servicesRepo := repo.NewServicesRepo(deps.DB)
	mechanicsRepo := repo.NewMechanicsRepo(deps.DB)
	earningsRepo := repo.NewEarningsRepo(deps.DB)
	paymentsRepo := repo.NewPaymentsRepo(deps.DB)
	declinesRepo := repo.NewDeclinesRepo(deps.DB)

	var jobArchive lifecycle.Archive = archive.NewMemory(deps.Config.ArchivePrefix)
	if deps.S3 != nil {
		jobArchive = archive.NewS3(deps.S3, deps.Config.ArchiveBucket, deps.Config.ArchivePrefix)
	}

	lifecycleDeps := lifecycle.Deps{
		Jobs:      jobsRepo,
		Catalog:   servicesRepo,
		Mechanics: mechanicsRepo,
		Earnings:  earningsRepo,
		Payments:  paymentsRepo,
		Declines:  declinesRepo,
		Archive:   jobArchive,
		Directory: deps.Backend.Mechanics,
		Gateway:   deps.Backend.Payments,
		Notifier:  deps.Backend.Notifications,
		Events:    deps.Events,
		Logger:    deps.Logger,
	}
	if deps.RDB != nil {
		lifecycleDeps.Locator = geo.NewMechanicLocator(deps.RDB, deps.Config.GeoRegion)
	}
	service, err := lifecycle.NewService(lifecycle.Config{
		Rates:    deps.Config.Rates,
		Earnings: earnings.Policy{IncludeParts: deps.Config.IncludeParts},
		Location: timeutil.Location(),
	}, lifecycleDeps)
	if err != nil {
		return nil, err
	}

	poller := subscribe.NewPoller(jobsRepo, deps.Config.PollInterval, deps.Logger)
	jobHub := ws.NewJobHub(poller, jobsRepo, deps.Backend.Auth, deps.Logger)
	server := bookinghttp.NewServer(deps.Logger, service, servicesRepo, jobsRepo, paymentsRepo, deps.Config.PaymentSecret, http.HandlerFunc(jobHub.ServeWS))

	deps.module = &moduleState{
		jobsRepo:     jobsRepo,
		servicesRepo: servicesRepo,
		paymentsRepo: paymentsRepo,
		service:      service,
		poller:       poller,
		jobHub:       jobHub,
		server:       server,
		cfg:          deps.Config,
		logger:       deps.Logger,
	}
	return deps.module, nil
}

// RegisterBookingRoutes wires HTTP and WebSocket routes into the provided mux.
func RegisterBookingRoutes(mux *pat.PatternServeMux, public, authed alice.Chain, deps *BookingDeps) error {
	module, err := ensureModule(deps)
	if err != nil {
		return err
	}
	module.server.RegisterRoutes(mux, public, authed)
	return nil
}

// StartBookingWorkers launches background maintenance.
func StartBookingWorkers(ctx context.Context, deps *BookingDeps) error {
	module, err := ensureModule(deps)
	if err != nil {
		return err
	}
	go module.startEarningsReconcile(ctx)
	return nil
}

func (m *moduleState) startEarningsReconcile(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.service.ReconcileEarnings(ctx, m.cfg.ReconcileBatch)
			if err != nil {
				m.logger.Errorf("booking: reconcile earnings: %v", err)
				continue
			}
			if n > 0 {
				m.logger.Infof("booking: reconciled earnings for %d jobs", n)
			}
		}
	}
}

// NewBackend builds the capability set for cfg.BackendMode. channels are the
// notification channels of the real backend and are ignored in mock mode.
func NewBackend(cfg BookingConfig, db *sql.DB, rdb *redis.Client, channels []notify.Channel, logger Logger) (backend.Backend, error) {
	if cfg.BackendMode != backend.ModeReal {
		return backend.NewMock(cfg.MockSeed, logger), nil
	}
	if db == nil || rdb == nil {
		return backend.Backend{}, fmt.Errorf("booking: real backend needs MySQL and Redis")
	}
	return backend.NewReal(backend.RealConfig{
		SearchRadiusM:   float64(cfg.SearchRadiusM),
		SearchLimit:     cfg.SearchLimit,
		PaymentBaseURL:  cfg.PaymentBaseURL,
		PaymentMerchant: cfg.PaymentMerchantID,
		PaymentSecret:   cfg.PaymentSecret,
		JWTSecret:       cfg.JWTSecret,
	}, backend.RealDeps{
		Index:     geo.NewMechanicLocator(rdb, cfg.GeoRegion),
		Mechanics: repo.NewMechanicsRepo(db),
		Contacts:  repo.NewContactsRepo(db),
		Channels:  channels,
		Logger:    logger,
		PayLogger: slog.Default().With("component", "pay"),
	})
}
