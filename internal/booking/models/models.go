package models

import (
	"time"

	"mechanicBack/internal/booking/fsm"
	"mechanicBack/internal/booking/pricing"
)

// ServiceCategory groups catalog entries.
type ServiceCategory string

const (
	CategoryMaintenance ServiceCategory = "maintenance"
	CategoryRepair      ServiceCategory = "repair"
	CategoryDiagnostic  ServiceCategory = "diagnostic"
	CategoryRoadside    ServiceCategory = "roadside"
)

// Valid reports whether c is a known category.
func (c ServiceCategory) Valid() bool {
	switch c {
	case CategoryMaintenance, CategoryRepair, CategoryDiagnostic, CategoryRoadside:
		return true
	}
	return false
}

// ServiceItem is a read-only catalog entry.
type ServiceItem struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	PriceCents      int64           `json:"price_cents"`
	DurationMinutes int             `json:"duration_minutes"`
	Category        ServiceCategory `json:"category"`
	Description     string          `json:"description"`
}

// Availability is the mechanic's own online status.
type Availability string

const (
	AvailableNow Availability = "available-now"
	OnAnotherJob Availability = "on-another-job"
	Offline      Availability = "offline"
)

// Valid reports whether a is a known availability value.
func (a Availability) Valid() bool {
	return a == AvailableNow || a == OnAnotherJob || a == Offline
}

// Mechanic is a service provider.
type Mechanic struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Rating          float64      `json:"rating"`
	ReviewCount     int          `json:"review_count"`
	CompletedJobs   int          `json:"completed_jobs"`
	Specialties     []string     `json:"specialties"`
	YearsExperience int          `json:"years_experience"`
	Availability    Availability `json:"availability"`
	Lat             *float64     `json:"lat,omitempty"`
	Lng             *float64     `json:"lng,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	Email           string       `json:"email,omitempty"`
	FCMToken        string       `json:"-"`
}

// Location is the customer's service address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// LiveLocation is the mechanic position reported during an active job.
type LiveLocation struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentStatus tracks the card payment of a job.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentCaptured   PaymentStatus = "captured"
	PaymentFailed     PaymentStatus = "failed"
)

// Settlement is how the customer pays at completion.
type Settlement string

const (
	SettlementCard Settlement = "card"
	SettlementCash Settlement = "cash"
)

// Valid reports whether s is a known settlement method.
func (s Settlement) Valid() bool {
	return s == SettlementCard || s == SettlementCash
}

// Completion holds the details submitted by the mechanic when finishing a job.
type Completion struct {
	Description    string     `json:"description"`
	PartsUsed      string     `json:"parts_used,omitempty"`
	PartsCostCents int64      `json:"parts_cost_cents"`
	Notes          string     `json:"notes,omitempty"`
	Settlement     Settlement `json:"settlement"`
	CompletedAt    time.Time  `json:"completed_at"`
}

// Job is a single customer to mechanic service request.
// RequestedMechanicID is the mechanic the customer picked from the ranked list;
// MechanicID stays nil until a mechanic accepts.
type Job struct {
	ID                  string            `json:"id"`
	CustomerID          int64             `json:"customer_id"`
	MechanicID          *int64            `json:"mechanic_id"`
	RequestedMechanicID *int64            `json:"requested_mechanic_id,omitempty"`
	Vehicle             string            `json:"vehicle"`
	Description         string            `json:"description"`
	Services            []string          `json:"services"`
	Location            Location          `json:"location"`
	MechanicLocation    *LiveLocation     `json:"mechanic_location,omitempty"`
	Status              fsm.Status        `json:"status"`
	PayoutCents         int64             `json:"payout_cents"`
	Urgent              bool              `json:"urgent"`
	Completion          *Completion       `json:"completion,omitempty"`
	PaymentStatus       PaymentStatus     `json:"payment_status"`
	PaymentAuthRef      string            `json:"payment_auth_ref,omitempty"`
	PriceBreakdown      pricing.Breakdown `json:"price_breakdown"`
	ScheduledAt         *time.Time        `json:"scheduled_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// AssignedTo reports whether the job is bound to the mechanic.
func (j Job) AssignedTo(mechanicID int64) bool {
	return j.MechanicID != nil && *j.MechanicID == mechanicID
}

// Earnings is the rolling aggregate shown to a mechanic.
type Earnings struct {
	MechanicID int64     `json:"mechanic_id"`
	TodayCents int64     `json:"today_cents"`
	WeekCents  int64     `json:"week_cents"`
	MonthCents int64     `json:"month_cents"`
	UpdatedAt  time.Time `json:"updated_at"`
}
