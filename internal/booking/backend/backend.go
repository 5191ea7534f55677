package backend

import (
	"context"
	"fmt"

	"mechanicBack/internal/booking/auth"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/notify"
	"mechanicBack/internal/booking/pay"
)

// Backend modes selected by BACKEND_MODE.
const (
	ModeReal = "real"
	ModeMock = "mock"
)

// MechanicDirectory finds mechanics around a point.
type MechanicDirectory interface {
	Nearby(ctx context.Context, lat, lng float64) ([]models.Mechanic, error)
}

// PaymentGateway captures authorized card payments.
type PaymentGateway interface {
	Capture(ctx context.Context, jobID string, amountCents int64) (pay.CaptureResult, error)
}

// Notifier delivers notifications without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// Backend bundles the external capabilities. It is chosen once at start
// and injected everywhere; callers never look at Mode to decide behavior.
type Backend struct {
	Mode          string
	Mechanics     MechanicDirectory
	Payments      PaymentGateway
	Notifications Notifier
	Auth          auth.Authenticator
}

// Validate ensures every capability is set.
func (b Backend) Validate() error {
	switch {
	case b.Mechanics == nil:
		return fmt.Errorf("backend %s: Mechanics is required", b.Mode)
	case b.Payments == nil:
		return fmt.Errorf("backend %s: Payments is required", b.Mode)
	case b.Notifications == nil:
		return fmt.Errorf("backend %s: Notifications is required", b.Mode)
	case b.Auth == nil:
		return fmt.Errorf("backend %s: Auth is required", b.Mode)
	}
	return nil
}
