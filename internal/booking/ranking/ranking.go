package ranking

import (
	"math"
	"sort"
	"strings"

	"mechanicBack/internal/booking/models"
)

// Score weights.
const (
	RatingWeight     = 10000.0
	ExperienceWeight = 1000.0
	AvailableBonus   = 2000.0
	OfflinePenalty   = -100000.0
	SpecialtyBonus   = 500.0
)

// Match reasons that are not a specialty name.
const (
	ReasonTopRated        = "Top Rated Pro"
	ReasonMostExperienced = "Most Experienced"
	ReasonFastestArrival  = "Fastest Arrival"
)

var serviceSuffixes = map[string]struct{}{
	"replacement": {},
	"repair":      {},
	"change":      {},
	"inspection":  {},
}

// Ranked is a mechanic with its computed score.
type Ranked struct {
	Mechanic    models.Mechanic `json:"mechanic"`
	Score       float64         `json:"score"`
	MatchReason string          `json:"match_reason,omitempty"`
}

// Rank orders mechanics best first for the selected service names.
// Equal scores keep their input order. The input slice is not modified.
func Rank(mechanics []models.Mechanic, serviceNames []string) []Ranked {
	keywords := Keywords(serviceNames)
	out := make([]Ranked, 0, len(mechanics))
	for _, m := range mechanics {
		score, reason := Score(m, keywords)
		out = append(out, Ranked{Mechanic: m, Score: score, MatchReason: reason})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Score computes the ranking score and match reason for one mechanic
// against already normalized keywords.
func Score(m models.Mechanic, keywords []string) (float64, string) {
	reviews := m.ReviewCount
	if reviews < 0 {
		reviews = 0
	}
	score := m.Rating*RatingWeight + math.Log(float64(reviews)+1)*ExperienceWeight

	switch m.Availability {
	case models.AvailableNow:
		score += AvailableBonus
	case models.Offline:
		score += OfflinePenalty
	}

	specialty, matched := MatchSpecialty(m.Specialties, keywords)
	if matched {
		score += SpecialtyBonus
	}

	var reason string
	switch {
	case matched:
		reason = specialty
	case m.Rating >= 4.9 && reviews > 10:
		reason = ReasonTopRated
	case reviews > 50:
		reason = ReasonMostExperienced
	case m.Availability == models.AvailableNow:
		reason = ReasonFastestArrival
	}
	return score, reason
}

// MatchSpecialty returns the first specialty tag that overlaps any keyword.
func MatchSpecialty(specialties, keywords []string) (string, bool) {
	for _, tag := range specialties {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		for _, kw := range keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(t, kw) || strings.Contains(kw, t) {
				return tag, true
			}
		}
	}
	return "", false
}

// Keywords normalizes service names for specialty matching.
func Keywords(serviceNames []string) []string {
	out := make([]string, 0, len(serviceNames))
	for _, name := range serviceNames {
		if kw := NormalizeService(name); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// NormalizeService lowercases a service name and drops generic action words,
// e.g. "Brake Pad Replacement" becomes "brake pad".
func NormalizeService(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	kept := fields[:0]
	for _, f := range fields {
		if _, ok := serviceSuffixes[f]; ok {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
