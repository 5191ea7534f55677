package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"mechanicBack/internal/booking/events"
	"mechanicBack/internal/booking/fsm"
	"mechanicBack/internal/booking/geo"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/notify"
	"mechanicBack/internal/booking/repo"
)

// CreateRequest is the customer's booking confirmation.
type CreateRequest struct {
	CustomerID          int64           `json:"customer_id"`
	RequestedMechanicID *int64          `json:"mechanic_id,omitempty"`
	Vehicle             string          `json:"vehicle"`
	Issue               string          `json:"issue"`
	ServiceIDs          []int64         `json:"service_ids"`
	Location            models.Location `json:"location"`
	ScheduledAt         *time.Time      `json:"scheduled_at,omitempty"`
	PaymentAuthRef      string          `json:"payment_auth_ref,omitempty"`
}

func (r CreateRequest) validate() error {
	if r.CustomerID <= 0 {
		return validationf("customer is required")
	}
	if strings.TrimSpace(r.Vehicle) == "" {
		return validationf("vehicle is required")
	}
	if len(r.ServiceIDs) == 0 {
		return validationf("at least one service is required")
	}
	if err := geo.ValidCoordinates(r.Location.Lat, r.Location.Lng); err != nil {
		return validationf("location: %v", err)
	}
	return nil
}

// Create books a NEW job. The mechanic stays unset until someone accepts.
func (s *Service) Create(ctx context.Context, req CreateRequest) (job models.Job, err error) {
	ctx, span := startSpan(ctx, "lifecycle.Create", "")
	defer func() { endSpan(span, err) }()

	if err := req.validate(); err != nil {
		return models.Job{}, err
	}
	ids := uniqueIDs(req.ServiceIDs)
	items, err := s.deps.Catalog.GetByIDs(ctx, ids)
	if err != nil {
		return models.Job{}, fmt.Errorf("load services: %w", err)
	}
	if len(items) != len(ids) {
		return models.Job{}, validationf("unknown service in %v", req.ServiceIDs)
	}
	if req.RequestedMechanicID != nil {
		if _, err := s.deps.Mechanics.Get(ctx, *req.RequestedMechanicID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return models.Job{}, validationf("unknown mechanic %d", *req.RequestedMechanicID)
			}
			return models.Job{}, fmt.Errorf("load mechanic: %w", err)
		}
	}

	names := make([]string, 0, len(items))
	prices := make([]int64, 0, len(items))
	urgent := false
	for _, it := range items {
		names = append(names, it.Name)
		prices = append(prices, it.PriceCents)
		if it.Category == models.CategoryRepair {
			urgent = true
		}
	}
	description := strings.Join(names, ", ")
	if issue := strings.TrimSpace(req.Issue); issue != "" {
		description += ": " + issue
	}
	breakdown := s.cfg.Rates.Calculate(prices)
	paymentStatus := models.PaymentPending
	if req.PaymentAuthRef != "" {
		paymentStatus = models.PaymentAuthorized
	}
	now := s.now()

	job = models.Job{
		ID:                  uuid.NewString(),
		CustomerID:          req.CustomerID,
		RequestedMechanicID: req.RequestedMechanicID,
		Vehicle:             strings.TrimSpace(req.Vehicle),
		Description:         description,
		Services:            names,
		Location:            req.Location,
		Status:              fsm.StatusNew,
		PayoutCents:         breakdown.MechanicPayoutCents,
		Urgent:              urgent,
		PaymentStatus:       paymentStatus,
		PaymentAuthRef:      req.PaymentAuthRef,
		PriceBreakdown:      breakdown,
		ScheduledAt:         req.ScheduledAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	span.SetAttributes(attribute.String("job.id", job.ID))
	if err := s.deps.Jobs.Create(ctx, job); err != nil {
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}

	if job.RequestedMechanicID != nil {
		s.deps.Notifier.Notify(ctx, notify.Notification{
			Event:  notify.EventJobCreated,
			JobID:  job.ID,
			Role:   notify.RoleMechanic,
			UserID: *job.RequestedMechanicID,
			Title:  "New job request",
			Body:   fmt.Sprintf("%s, %s", job.Vehicle, job.Description),
			Data:   map[string]string{"status": string(job.Status)},
		})
	} else {
		s.deps.Logger.Infof("lifecycle: job %s created for customer %d, open to nearby mechanics", job.ID, job.CustomerID)
	}
	s.publish(ctx, statusEvent(job))
	return job, nil
}

// Get returns a job by id.
func (s *Service) Get(ctx context.Context, jobID string) (models.Job, error) {
	job, err := s.deps.Jobs.Get(ctx, jobID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Job{}, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return job, nil
}

// Accept binds the mechanic to a NEW job with a conditional update. When another mechanic
// won the race, or the job was declined meanwhile, ErrJobUnavailable is returned.
func (s *Service) Accept(ctx context.Context, jobID string, mechanicID int64) (job models.Job, err error) {
	ctx, span := startSpan(ctx, "lifecycle.Accept", jobID)
	defer func() { endSpan(span, err) }()

	job, err = s.Get(ctx, jobID)
	if err != nil {
		return models.Job{}, err
	}
	if job.AssignedTo(mechanicID) {
		// repeated tap by the winner
		return job, nil
	}
	if job.Status != fsm.StatusNew {
		return models.Job{}, fmt.Errorf("job %s: %w", jobID, ErrJobUnavailable)
	}
	if job.RequestedMechanicID != nil && *job.RequestedMechanicID != mechanicID {
		return models.Job{}, fmt.Errorf("job %s offered to mechanic %d: %w", jobID, *job.RequestedMechanicID, ErrNotAssigned)
	}

	switch err := s.deps.Jobs.Accept(ctx, jobID, mechanicID); {
	case errors.Is(err, repo.ErrConflict), errors.Is(err, repo.ErrNotFound):
		return models.Job{}, fmt.Errorf("job %s: %w", jobID, ErrJobUnavailable)
	case err != nil:
		return models.Job{}, fmt.Errorf("accept job %s: %w", jobID, err)
	}

	if err := s.deps.Mechanics.SetAvailability(ctx, mechanicID, models.OnAnotherJob); err != nil {
		s.deps.Logger.Errorf("lifecycle: mark mechanic %d busy: %v", mechanicID, err)
	}
	s.moveMechanic(ctx, mechanicID, geo.SetOnline, geo.SetBusy)

	job, err = s.Get(ctx, jobID)
	if err != nil {
		return models.Job{}, err
	}
	s.notifyCustomer(ctx, job, notify.EventJobAccepted, "Mechanic on the way", "Your job was accepted and a mechanic is heading to you.")
	s.publish(ctx, statusEvent(job))
	return job, nil
}

// Arrive marks the mechanic as on site.
func (s *Service) Arrive(ctx context.Context, jobID string, mechanicID int64) (models.Job, error) {
	return s.advance(ctx, "lifecycle.Arrive", jobID, mechanicID, fsm.StatusAccepted, fsm.StatusArrived,
		notify.EventJobArrived, "Mechanic arrived", "Your mechanic has arrived.")
}

// Start begins the work.
func (s *Service) Start(ctx context.Context, jobID string, mechanicID int64) (models.Job, error) {
	return s.advance(ctx, "lifecycle.Start", jobID, mechanicID, fsm.StatusArrived, fsm.StatusInProgress,
		notify.EventJobStarted, "Work started", "Your mechanic started working on your vehicle.")
}

func (s *Service) advance(ctx context.Context, op, jobID string, mechanicID int64, from, to fsm.Status, event, title, body string) (job models.Job, err error) {
	ctx, span := startSpan(ctx, op, jobID)
	defer func() { endSpan(span, err) }()

	job, err = s.Get(ctx, jobID)
	if err != nil {
		return models.Job{}, err
	}
	if !job.AssignedTo(mechanicID) {
		return models.Job{}, fmt.Errorf("job %s: %w", jobID, ErrNotAssigned)
	}
	if job.Status == to {
		return job, nil
	}
	if job.Status != from {
		return models.Job{}, fmt.Errorf("job %s is %s, want %s: %w", jobID, job.Status, from, ErrInvalidTransition)
	}

	switch err := s.deps.Jobs.Transition(ctx, jobID, from, to); {
	case errors.Is(err, repo.ErrNotFound):
		return models.Job{}, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	case errors.Is(err, repo.ErrConflict):
		return models.Job{}, fmt.Errorf("job %s changed concurrently: %w", jobID, ErrInvalidTransition)
	case err != nil:
		return models.Job{}, fmt.Errorf("move job %s to %s: %w", jobID, to, err)
	}

	job, err = s.Get(ctx, jobID)
	if err != nil {
		return models.Job{}, err
	}
	s.notifyCustomer(ctx, job, event, title, body)
	s.publish(ctx, statusEvent(job))
	return job, nil
}

// Decline removes a NEW job. The snapshot is archived and an audit row is kept.
func (s *Service) Decline(ctx context.Context, jobID string, mechanicID int64) (err error) {
	ctx, span := startSpan(ctx, "lifecycle.Decline", jobID)
	defer func() { endSpan(span, err) }()

	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != fsm.StatusNew {
		return fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrJobUnavailable)
	}
	if job.RequestedMechanicID != nil && *job.RequestedMechanicID != mechanicID {
		return fmt.Errorf("job %s: %w", jobID, ErrNotAssigned)
	}

	now := s.now()
	key, err := s.deps.Archive.Put(ctx, job.ID, now, job)
	if err != nil {
		return fmt.Errorf("archive job %s: %w", jobID, err)
	}
	switch err := s.deps.Jobs.DeleteNew(ctx, jobID); {
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	case errors.Is(err, repo.ErrConflict):
		return fmt.Errorf("job %s: %w", jobID, ErrJobUnavailable)
	case err != nil:
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	if err := s.deps.Declines.Record(ctx, jobID, mechanicID, key, now); err != nil {
		s.deps.Logger.Errorf("lifecycle: record decline of job %s (archived at %s): %v", jobID, key, err)
	}

	s.notifyCustomer(ctx, job, notify.EventJobDeclined, "Job declined", "The mechanic could not take your job. Please pick another mechanic.")
	s.publish(ctx, events.JobEvent{Type: events.TypeDeclined, JobID: job.ID, Status: string(job.Status), CustomerID: job.CustomerID, MechanicID: mechanicID, At: now})
	return nil
}

// UpdateLocation stores the live mechanic position while the job is active.
func (s *Service) UpdateLocation(ctx context.Context, jobID string, mechanicID int64, lat, lng float64) (loc models.LiveLocation, err error) {
	ctx, span := startSpan(ctx, "lifecycle.UpdateLocation", jobID)
	defer func() { endSpan(span, err) }()

	if err := geo.ValidCoordinates(lat, lng); err != nil {
		return models.LiveLocation{}, validationf("%v", err)
	}
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return models.LiveLocation{}, err
	}
	if !job.AssignedTo(mechanicID) {
		return models.LiveLocation{}, fmt.Errorf("job %s: %w", jobID, ErrNotAssigned)
	}
	if !job.Status.Active() {
		return models.LiveLocation{}, fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrInvalidTransition)
	}

	loc = models.LiveLocation{Lat: lat, Lng: lng, UpdatedAt: s.now()}
	switch err := s.deps.Jobs.UpdateMechanicLocation(ctx, jobID, mechanicID, loc); {
	case errors.Is(err, repo.ErrNotFound):
		return models.LiveLocation{}, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	case errors.Is(err, repo.ErrConflict):
		return models.LiveLocation{}, fmt.Errorf("job %s is no longer active: %w", jobID, ErrInvalidTransition)
	case err != nil:
		return models.LiveLocation{}, fmt.Errorf("update location of job %s: %w", jobID, err)
	}
	if err := s.deps.Mechanics.UpdatePosition(ctx, mechanicID, lat, lng); err != nil {
		s.deps.Logger.Errorf("lifecycle: store position of mechanic %d: %v", mechanicID, err)
	}
	if s.deps.Locator != nil {
		if err := s.deps.Locator.Update(ctx, mechanicID, lat, lng, geo.SetBusy); err != nil {
			s.deps.Logger.Errorf("lifecycle: geo update of mechanic %d: %v", mechanicID, err)
		}
	}
	return loc, nil
}

// ApplyPaymentEvent records a processor callback for a job that is not captured yet.
// Callbacks for completed or captured jobs are ignored.
func (s *Service) ApplyPaymentEvent(ctx context.Context, jobID string, status models.PaymentStatus, authRef string) error {
	switch status {
	case models.PaymentAuthorized:
		if authRef == "" {
			return validationf("authorization reference is required")
		}
	case models.PaymentFailed:
		authRef = ""
	default:
		return validationf("unsupported payment status %q", status)
	}
	switch err := s.deps.Jobs.UpdatePayment(ctx, jobID, status, authRef); {
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	case errors.Is(err, repo.ErrConflict):
		s.deps.Logger.Infof("lifecycle: ignore %s payment event for settled job %s", status, jobID)
		return nil
	case err != nil:
		return fmt.Errorf("update payment of job %s: %w", jobID, err)
	}
	s.deps.Logger.Infof("lifecycle: job %s payment %s", jobID, status)
	return nil
}

func (s *Service) moveMechanic(ctx context.Context, mechanicID int64, from, to string) {
	if s.deps.Locator == nil {
		return
	}
	if err := s.deps.Locator.Move(ctx, mechanicID, from, to); err != nil {
		s.deps.Logger.Errorf("lifecycle: geo move of mechanic %d from %s to %s: %v", mechanicID, from, to, err)
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
