package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"mechanicBack/internal/booking/auth"
	"mechanicBack/internal/booking/geo"
	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/notify"
	"mechanicBack/internal/booking/pay"
)

// GeoIndex is satisfied by *geo.MechanicLocator.
type GeoIndex interface {
	Nearby(ctx context.Context, lat, lng, radiusMeters float64, limit int, set string) ([]geo.NearbyMechanic, error)
}

// MechanicLoader is satisfied by *repo.MechanicsRepo.
type MechanicLoader interface {
	ListByIDs(ctx context.Context, ids []int64) ([]models.Mechanic, error)
}

// GeoDirectory resolves nearby mechanics from the geo index and loads their profiles.
// Both the online and the busy sets are searched. Offline mechanics are not indexed.
type GeoDirectory struct {
	index     GeoIndex
	mechanics MechanicLoader
	radius    float64
	limit     int
}

// NewGeoDirectory constructs a GeoDirectory.
func NewGeoDirectory(index GeoIndex, mechanics MechanicLoader, radiusMeters float64, limit int) *GeoDirectory {
	if radiusMeters <= 0 {
		radiusMeters = 15000
	}
	if limit <= 0 {
		limit = 25
	}
	return &GeoDirectory{index: index, mechanics: mechanics, radius: radiusMeters, limit: limit}
}

// Nearby returns mechanics ordered by distance, closest first.
func (d *GeoDirectory) Nearby(ctx context.Context, lat, lng float64) ([]models.Mechanic, error) {
	var found []geo.NearbyMechanic
	for _, set := range []string{geo.SetOnline, geo.SetBusy} {
		res, err := d.index.Nearby(ctx, lat, lng, d.radius, d.limit, set)
		if err != nil {
			return nil, fmt.Errorf("geo search %s: %w", set, err)
		}
		found = append(found, res...)
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Dist < found[j].Dist })

	seen := make(map[int64]struct{}, len(found))
	ids := make([]int64, 0, len(found))
	for _, n := range found {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		ids = append(ids, n.ID)
		if len(ids) == d.limit {
			break
		}
	}
	return d.mechanics.ListByIDs(ctx, ids)
}

// RealConfig carries the credentials of the production integrations.
type RealConfig struct {
	SearchRadiusM   float64
	SearchLimit     int
	PaymentBaseURL  string
	PaymentMerchant string
	PaymentSecret   string
	JWTSecret       string
}

// RealDeps are the clients built by the binary.
type RealDeps struct {
	Index      GeoIndex
	Mechanics  MechanicLoader
	Contacts   notify.ContactBook
	Channels   []notify.Channel
	Logger     notify.Logger
	HTTPClient *http.Client
	PayLogger  *slog.Logger
}

// NewReal wires the production backend: Redis GEO + MySQL directory, the HMAC signed
// payment client, push/SMS/e-mail fan-out and JWT authentication.
func NewReal(cfg RealConfig, deps RealDeps) (Backend, error) {
	switch {
	case deps.Index == nil || deps.Mechanics == nil:
		return Backend{}, errors.New("backend real: geo index and mechanics repo are required")
	case deps.Contacts == nil || deps.Logger == nil:
		return Backend{}, errors.New("backend real: contacts and logger are required")
	case cfg.PaymentBaseURL == "" || cfg.PaymentMerchant == "" || cfg.PaymentSecret == "":
		return Backend{}, errors.New("backend real: payment configuration incomplete")
	}
	manager, err := auth.NewManager(cfg.JWTSecret)
	if err != nil {
		return Backend{}, fmt.Errorf("backend real: %w", err)
	}

	var opts []pay.Option
	if deps.HTTPClient != nil {
		opts = append(opts, pay.WithHTTPClient(deps.HTTPClient))
	}
	if deps.PayLogger != nil {
		opts = append(opts, pay.WithLogger(deps.PayLogger))
	}

	b := Backend{
		Mode:          ModeReal,
		Mechanics:     NewGeoDirectory(deps.Index, deps.Mechanics, cfg.SearchRadiusM, cfg.SearchLimit),
		Payments:      pay.NewClient(cfg.PaymentBaseURL, cfg.PaymentMerchant, cfg.PaymentSecret, opts...),
		Notifications: notify.NewDispatcher(deps.Contacts, deps.Logger, deps.Channels...),
		Auth:          manager,
	}
	return b, b.Validate()
}
