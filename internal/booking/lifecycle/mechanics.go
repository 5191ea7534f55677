package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"mechanicBack/internal/booking/earnings"
	"mechanicBack/internal/booking/geo"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/ranking"
	"mechanicBack/internal/booking/repo"
)

// Match ranks the mechanics around the customer for the selected services.
func (s *Service) Match(ctx context.Context, lat, lng float64, serviceNames []string) (ranked []ranking.Ranked, err error) {
	ctx, span := startSpan(ctx, "lifecycle.Match", "")
	defer func() { endSpan(span, err) }()

	if err := geo.ValidCoordinates(lat, lng); err != nil {
		return nil, validationf("%v", err)
	}
	mechanics, err := s.deps.Directory.Nearby(ctx, lat, lng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return ranking.Rank(mechanics, serviceNames), nil
}

// SetAvailability stores the mechanic's online status and mirrors it into the geo index.
func (s *Service) SetAvailability(ctx context.Context, mechanicID int64, availability models.Availability) error {
	if !availability.Valid() {
		return validationf("unknown availability %q", availability)
	}
	switch err := s.deps.Mechanics.SetAvailability(ctx, mechanicID, availability); {
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("mechanic %d: %w", mechanicID, ErrNotFound)
	case err != nil:
		return fmt.Errorf("set availability of mechanic %d: %w", mechanicID, err)
	}
	if s.deps.Locator == nil {
		return nil
	}
	if err := s.deps.Locator.Remove(ctx, mechanicID); err != nil {
		s.deps.Logger.Errorf("lifecycle: geo remove of mechanic %d: %v", mechanicID, err)
	}
	if availability == models.Offline {
		return nil
	}
	m, err := s.deps.Mechanics.Get(ctx, mechanicID)
	if err != nil {
		s.deps.Logger.Errorf("lifecycle: load mechanic %d: %v", mechanicID, err)
		return nil
	}
	if m.Lat == nil || m.Lng == nil {
		return nil
	}
	set := geo.SetOnline
	if availability == models.OnAnotherJob {
		set = geo.SetBusy
	}
	if err := s.deps.Locator.Update(ctx, mechanicID, *m.Lat, *m.Lng, set); err != nil {
		s.deps.Logger.Errorf("lifecycle: geo update of mechanic %d: %v", mechanicID, err)
	}
	return nil
}

// CashOut pays out the week bucket and returns the amount.
func (s *Service) CashOut(ctx context.Context, mechanicID int64) (paid int64, err error) {
	ctx, span := startSpan(ctx, "lifecycle.CashOut", "")
	defer func() { endSpan(span, err) }()

	paid, err = s.deps.Earnings.CashOut(ctx, mechanicID, s.now(), s.location())
	if err != nil {
		return 0, fmt.Errorf("cash out mechanic %d: %w", mechanicID, err)
	}
	s.deps.Logger.Infof("lifecycle: mechanic %d cashed out %d cents", mechanicID, paid)
	return paid, nil
}

// Earnings returns the buckets as of now.
func (s *Service) Earnings(ctx context.Context, mechanicID int64) (models.Earnings, error) {
	e, err := s.deps.Earnings.Get(ctx, mechanicID)
	if err != nil {
		return models.Earnings{}, fmt.Errorf("load earnings of mechanic %d: %w", mechanicID, err)
	}
	return earnings.Roll(e, s.now(), s.location()), nil
}

// ReconcileEarnings credits completed jobs whose credit was lost, for example after a crash
// between the status update and the ledger write. It returns the number of jobs credited.
func (s *Service) ReconcileEarnings(ctx context.Context, limit int) (int, error) {
	jobs, err := s.deps.Jobs.ListUncredited(ctx, limit)
	if err != nil {
		return 0, err
	}
	credited := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return credited, ctx.Err()
		}
		if s.credit(ctx, job) {
			credited++
		}
	}
	return credited, nil
}
