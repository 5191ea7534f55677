package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NearbyMechanic is a mechanic returned from a Redis GEO query.
type NearbyMechanic struct {
	ID   int64
	Dist float64
	Lat  float64
	Lng  float64
}

// MechanicLocator keeps mechanic positions in Redis GEO sets, one set per region and availability.
type MechanicLocator struct {
	rdb    *redis.Client
	region string
}

// NewMechanicLocator creates a new locator for region.
func NewMechanicLocator(rdb *redis.Client, region string) *MechanicLocator {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		region = "default"
	}
	return &MechanicLocator{rdb: rdb, region: region}
}

// Geo set names.
const (
	SetOnline = "online"
	SetBusy   = "busy"
)

func (l *MechanicLocator) key(set string) string {
	return fmt.Sprintf("mechanics:%s:%s", l.region, set)
}

func memberName(mechanicID int64) string {
	return fmt.Sprintf("mechanic:%d", mechanicID)
}

func parseMember(member string) (int64, error) {
	parts := strings.Split(member, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid member %q", member)
	}
	return strconv.ParseInt(parts[1], 10, 64)
}

// ValidCoordinates rejects out-of-range and null-island positions.
func ValidCoordinates(lat, lng float64) error {
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return fmt.Errorf("invalid coords lat=%.8f lng=%.8f", lat, lng)
	}
	if math.Abs(lng) < 1e-4 && math.Abs(lat) < 1e-4 {
		return fmt.Errorf("near-zero coords lat=%.8f lng=%.8f", lat, lng)
	}
	return nil
}

// Update stores the mechanic position in the given set.
func (l *MechanicLocator) Update(ctx context.Context, mechanicID int64, lat, lng float64, set string) error {
	if err := ValidCoordinates(lat, lng); err != nil {
		return err
	}
	return l.rdb.GeoAdd(ctx, l.key(set), &redis.GeoLocation{
		Name:      memberName(mechanicID),
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// Move moves a mechanic between sets, preserving coordinates.
func (l *MechanicLocator) Move(ctx context.Context, mechanicID int64, fromSet, toSet string) error {
	if fromSet == toSet {
		return nil
	}
	src := l.key(fromSet)
	dst := l.key(toSet)
	mem := memberName(mechanicID)

	pos, err := l.rdb.GeoPos(ctx, src, mem).Result()
	if err != nil {
		return err
	}
	if len(pos) == 0 || pos[0] == nil {
		return fmt.Errorf("move mechanic: coordinates not found for %s in %s", mem, src)
	}
	if err := l.rdb.GeoAdd(ctx, dst, &redis.GeoLocation{
		Name:      mem,
		Longitude: pos[0].Longitude,
		Latitude:  pos[0].Latitude,
	}).Err(); err != nil {
		return err
	}
	return l.rdb.ZRem(ctx, src, mem).Err()
}

// Remove deletes the mechanic from every set.
func (l *MechanicLocator) Remove(ctx context.Context, mechanicID int64) error {
	mem := memberName(mechanicID)
	for _, set := range []string{SetOnline, SetBusy} {
		if err := l.rdb.ZRem(ctx, l.key(set), mem).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Nearby returns mechanics of the set within radius sorted by distance (ascending).
func (l *MechanicLocator) Nearby(ctx context.Context, lat, lng, radiusMeters float64, limit int, set string) ([]NearbyMechanic, error) {
	res, err := l.rdb.GeoSearchLocation(ctx, l.key(set), &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]NearbyMechanic, 0, len(res))
	for _, item := range res {
		id, err := parseMember(item.Name)
		if err != nil {
			continue
		}
		out = append(out, NearbyMechanic{ID: id, Dist: item.Dist, Lat: item.Latitude, Lng: item.Longitude})
	}
	return out, nil
}

// DistanceMeters returns the great-circle distance using the haversine formula.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}
