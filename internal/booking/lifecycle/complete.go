package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"mechanicBack/internal/booking/fsm"
	"mechanicBack/internal/booking/geo"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/notify"
	"mechanicBack/internal/booking/repo"
)

// CompletionInput is what the mechanic submits when finishing the job.
type CompletionInput struct {
	Description    string            `json:"description"`
	PartsUsed      string            `json:"parts_used"`
	PartsCostCents int64             `json:"parts_cost_cents"`
	Notes          string            `json:"notes"`
	Settlement     models.Settlement `json:"settlement"`
}

func (in CompletionInput) validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return validationf("work description is required")
	}
	if in.PartsCostCents < 0 {
		return validationf("parts cost must not be negative")
	}
	if !in.Settlement.Valid() {
		return validationf("settlement must be card or cash")
	}
	return nil
}

// CompletionSummary is the mechanic facing result of a completion.
type CompletionSummary struct {
	Job                models.Job `json:"job"`
	CapturedCents      int64      `json:"captured_cents"`
	CompletionFeeCents int64      `json:"completion_fee_cents"`
	NetPayoutCents     int64      `json:"net_payout_cents"`
}

// Complete finishes an IN_PROGRESS job. A card job with an authorization is captured first;
// a failed capture leaves the job untouched. Earnings are credited once per job.
func (s *Service) Complete(ctx context.Context, jobID string, mechanicID int64, in CompletionInput) (summary CompletionSummary, err error) {
	ctx, span := startSpan(ctx, "lifecycle.Complete", jobID)
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return CompletionSummary{}, err
	}
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return CompletionSummary{}, err
	}
	if !job.AssignedTo(mechanicID) {
		return CompletionSummary{}, fmt.Errorf("job %s: %w", jobID, ErrNotAssigned)
	}
	if job.Status == fsm.StatusCompleted {
		s.deps.Logger.Infof("lifecycle: duplicate completion of job %s by mechanic %d", jobID, mechanicID)
		return s.summary(job), nil
	}
	if job.Status != fsm.StatusInProgress {
		return CompletionSummary{}, fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrInvalidTransition)
	}

	var (
		captured   int64
		didCapture bool
	)
	if in.Settlement == models.SettlementCard && job.PaymentAuthRef != "" {
		amount := s.cfg.Rates.CaptureAmount(job.PayoutCents, in.PartsCostCents)
		span.SetAttributes(attribute.Int64("payment.amount_cents", amount))
		// nothing to collect on a zero total; the authorization is settled as is
		if amount > 0 {
			if err := s.capture(ctx, jobID, amount); err != nil {
				return CompletionSummary{}, err
			}
		}
		captured, didCapture = amount, true
	}

	next := job
	next.Status = fsm.StatusCompleted
	next.Completion = &models.Completion{
		Description:    strings.TrimSpace(in.Description),
		PartsUsed:      strings.TrimSpace(in.PartsUsed),
		PartsCostCents: in.PartsCostCents,
		Notes:          strings.TrimSpace(in.Notes),
		Settlement:     in.Settlement,
		CompletedAt:    s.now(),
	}
	switch {
	case didCapture:
		next.PaymentStatus = models.PaymentCaptured
	case in.Settlement == models.SettlementCash:
		next.PaymentStatus = models.PaymentPending
	}

	stored, err := s.deps.Jobs.Update(ctx, next, fsm.StatusInProgress)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return CompletionSummary{}, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	case errors.Is(err, repo.ErrConflict):
		current, getErr := s.Get(ctx, jobID)
		if getErr == nil && current.Status == fsm.StatusCompleted && current.AssignedTo(mechanicID) {
			return s.summary(current), nil
		}
		return CompletionSummary{}, fmt.Errorf("job %s changed concurrently: %w", jobID, ErrInvalidTransition)
	case err != nil:
		// a retry captures again with the same idempotency key
		return CompletionSummary{}, fmt.Errorf("complete job %s: %w", jobID, err)
	}

	s.credit(ctx, stored)
	if err := s.deps.Mechanics.SetAvailability(ctx, mechanicID, models.AvailableNow); err != nil {
		s.deps.Logger.Errorf("lifecycle: mark mechanic %d available: %v", mechanicID, err)
	}
	s.moveMechanic(ctx, mechanicID, geo.SetBusy, geo.SetOnline)

	s.notifyCustomer(ctx, stored, notify.EventJobCompleted, "Job completed", "Your vehicle service is complete. Thank you!")
	s.publish(ctx, statusEvent(stored))

	summary = s.summary(stored)
	summary.CapturedCents = captured
	return summary, nil
}

func (s *Service) capture(ctx context.Context, jobID string, amount int64) error {
	res, err := s.deps.Gateway.Capture(ctx, jobID, amount)
	if err == nil && !res.Success {
		err = errors.New("processor declined the capture")
	}
	if err != nil {
		if _, logErr := s.deps.Payments.RecordCapture(ctx, jobID, amount, repo.PaymentStateFailed, res.TransactionID, err.Error()); logErr != nil {
			s.deps.Logger.Errorf("lifecycle: record failed capture of job %s: %v", jobID, logErr)
		}
		return fmt.Errorf("%w: job %s: %v", ErrCaptureFailed, jobID, err)
	}
	if _, err := s.deps.Payments.RecordCapture(ctx, jobID, amount, repo.PaymentStateCaptured, res.TransactionID, ""); err != nil {
		s.deps.Logger.Errorf("lifecycle: record capture %s of job %s: %v", res.TransactionID, jobID, err)
	}
	return nil
}

// credit adds the job payout to the mechanic earnings. The ledger keeps it at most once per job.
// It reports whether this call applied the credit.
func (s *Service) credit(ctx context.Context, job models.Job) bool {
	if job.MechanicID == nil {
		return false
	}
	var parts int64
	if job.Completion != nil {
		parts = job.Completion.PartsCostCents
	}
	amount := s.cfg.Earnings.Increment(job.PayoutCents, parts)
	applied, err := s.deps.Earnings.Credit(ctx, *job.MechanicID, job.ID, amount, s.now(), s.location())
	if err != nil {
		s.deps.Logger.Errorf("lifecycle: credit earnings of job %s: %v", job.ID, err)
		return false
	}
	if !applied {
		return false
	}
	if err := s.deps.Mechanics.IncrementCompleted(ctx, *job.MechanicID); err != nil {
		s.deps.Logger.Errorf("lifecycle: count completed job %s: %v", job.ID, err)
	}
	return true
}

func (s *Service) summary(job models.Job) CompletionSummary {
	fee := s.cfg.Rates.CompletionFee(job.PayoutCents)
	out := CompletionSummary{
		Job:                job,
		CompletionFeeCents: fee,
		NetPayoutCents:     job.PayoutCents - fee,
	}
	if job.PaymentStatus == models.PaymentCaptured && job.Completion != nil && job.Completion.Settlement == models.SettlementCard {
		out.CapturedCents = s.cfg.Rates.CaptureAmount(job.PayoutCents, job.Completion.PartsCostCents)
	}
	return out
}
