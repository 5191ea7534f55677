package backend

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"mechanicBack/internal/booking/auth"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/notify"
	"mechanicBack/internal/booking/pay"
)

// DefaultMockSeed is used when MOCK_SEED is not set.
const DefaultMockSeed = 42

var (
	mockNames = []string{
		"Alex Turner", "Maria Lopez", "Sam Okafor", "Priya Nair", "Dmitri Volkov",
		"Jen Park", "Luis Ortega", "Hana Sato", "Tom Reilly", "Aisha Bello",
	}
	mockSpecialties = []string{
		"Brake", "Oil", "Battery", "Diagnostic", "Engine", "Tire", "Transmission", "Electrical",
	}
)

// MockDirectory returns a deterministic fleet scattered around the query point.
// The same seed always yields the same mechanics.
type MockDirectory struct {
	Seed uint64
	Size int
}

// Nearby builds the fleet for the point.
func (d MockDirectory) Nearby(_ context.Context, lat, lng float64) ([]models.Mechanic, error) {
	size := d.Size
	if size <= 0 {
		size = 8
	}
	rng := rand.New(rand.NewSource(d.Seed))
	out := make([]models.Mechanic, 0, size)
	for i := 0; i < size; i++ {
		mLat := lat + (rng.Float64()-0.5)*0.08
		mLng := lng + (rng.Float64()-0.5)*0.08
		m := models.Mechanic{
			ID:              int64(i + 1),
			Name:            mockNames[i%len(mockNames)],
			Rating:          math.Round((4+rng.Float64())*10) / 10,
			ReviewCount:     rng.Intn(200),
			YearsExperience: 1 + rng.Intn(20),
			Specialties:     pickSpecialties(rng),
			Availability:    pickAvailability(rng),
			Lat:             &mLat,
			Lng:             &mLng,
		}
		m.CompletedJobs = m.ReviewCount + rng.Intn(50)
		out = append(out, m)
	}
	return out, nil
}

func pickSpecialties(rng *rand.Rand) []string {
	n := 1 + rng.Intn(3)
	perm := rng.Perm(len(mockSpecialties))
	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, mockSpecialties[idx])
	}
	return out
}

func pickAvailability(rng *rand.Rand) models.Availability {
	switch v := rng.Intn(10); {
	case v < 6:
		return models.AvailableNow
	case v < 9:
		return models.OnAnotherJob
	default:
		return models.Offline
	}
}

// ErrMockDeclined is returned by a MockGateway set to fail.
var ErrMockDeclined = errors.New("mock gateway: capture declined")

// MockCapture is one call seen by MockGateway.
type MockCapture struct {
	JobID         string
	AmountCents   int64
	TransactionID string
}

// MockGateway always succeeds unless told to fail.
type MockGateway struct {
	mu       sync.Mutex
	fail     bool
	captures []MockCapture
}

// SetFail switches the gateway between success and decline.
func (g *MockGateway) SetFail(fail bool) {
	g.mu.Lock()
	g.fail = fail
	g.mu.Unlock()
}

// Captures returns a copy of the calls seen so far.
func (g *MockGateway) Captures() []MockCapture {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]MockCapture(nil), g.captures...)
}

// Capture records the call and reports success.
func (g *MockGateway) Capture(_ context.Context, jobID string, amountCents int64) (pay.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		g.captures = append(g.captures, MockCapture{JobID: jobID, AmountCents: amountCents})
		return pay.CaptureResult{}, ErrMockDeclined
	}
	txn := "mock-" + uuid.NewString()
	g.captures = append(g.captures, MockCapture{JobID: jobID, AmountCents: amountCents, TransactionID: txn})
	return pay.CaptureResult{Success: true, TransactionID: txn}, nil
}

// NewMock builds the in-memory backend used for local runs and demos.
func NewMock(seed uint64, logger notify.Logger) Backend {
	if seed == 0 {
		seed = DefaultMockSeed
	}
	return Backend{
		Mode:          ModeMock,
		Mechanics:     MockDirectory{Seed: seed},
		Payments:      &MockGateway{},
		Notifications: notify.LogNotifier{Logger: logger},
		Auth:          auth.HeaderAuthenticator{},
	}
}
