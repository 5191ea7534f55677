package ranking

import (
	"math"
	"testing"

	"mechanicBack/internal/booking/models"
)

func mech(id int64, rating float64, reviews int, avail models.Availability, specialties ...string) models.Mechanic {
	return models.Mechanic{ID: id, Name: "m", Rating: rating, ReviewCount: reviews, Availability: avail, Specialties: specialties}
}

func TestRankScenario(t *testing.T) {
	a := mech(1, 4.9, 20, models.AvailableNow)
	b := mech(2, 5.0, 1, models.AvailableNow)

	got := Rank([]models.Mechanic{b, a}, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Mechanic.ID != 1 {
		t.Fatalf("expected mechanic A first, got %d", got[0].Mechanic.ID)
	}
	if math.Round(got[0].Score) != 54045 {
		t.Fatalf("expected A score 54045, got %f", got[0].Score)
	}
	if math.Round(got[1].Score) != 52693 {
		t.Fatalf("expected B score 52693, got %f", got[1].Score)
	}
	if got[0].MatchReason != ReasonTopRated {
		t.Fatalf("expected top rated reason, got %q", got[0].MatchReason)
	}
	if got[1].MatchReason != ReasonFastestArrival {
		t.Fatalf("expected fastest arrival reason, got %q", got[1].MatchReason)
	}
}

func TestOfflineAlwaysLast(t *testing.T) {
	offline := mech(1, 5.0, 500, models.Offline)
	busy := mech(2, 1.0, 0, models.OnAnotherJob)
	avail := mech(3, 3.0, 0, models.AvailableNow)

	got := Rank([]models.Mechanic{offline, busy, avail}, []string{"Brake Repair"})
	if got[2].Mechanic.ID != 1 {
		t.Fatalf("offline mechanic must rank last, got order %d,%d,%d", got[0].Mechanic.ID, got[1].Mechanic.ID, got[2].Mechanic.ID)
	}
	if got[0].Score != 32000 {
		t.Fatalf("expected available 3.0 score 32000, got %f", got[0].Score)
	}
}

func TestSpecialtyBonusAndReason(t *testing.T) {
	plain := mech(1, 4.5, 10, models.OnAnotherJob)
	brakes := mech(2, 4.5, 10, models.OnAnotherJob, "Brakes")

	got := Rank([]models.Mechanic{plain, brakes}, []string{"Brake Replacement"})
	if got[0].Mechanic.ID != 2 {
		t.Fatalf("expected specialist first")
	}
	if diff := got[0].Score - got[1].Score; math.Abs(diff-SpecialtyBonus) > 1e-6 {
		t.Fatalf("expected bonus %v, got %v", SpecialtyBonus, diff)
	}
	if got[0].MatchReason != "Brakes" {
		t.Fatalf("expected specialty reason, got %q", got[0].MatchReason)
	}
	if got[1].MatchReason != "" {
		t.Fatalf("expected no reason, got %q", got[1].MatchReason)
	}
}

func TestStableTies(t *testing.T) {
	in := []models.Mechanic{
		mech(1, 4.0, 5, models.AvailableNow),
		mech(2, 4.0, 5, models.AvailableNow),
		mech(3, 4.0, 5, models.AvailableNow),
	}
	got := Rank(in, nil)
	for i, r := range got {
		if r.Mechanic.ID != int64(i+1) {
			t.Fatalf("tie order changed at %d: %d", i, r.Mechanic.ID)
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	in := []models.Mechanic{mech(1, 3.0, 0, models.Offline), mech(2, 5.0, 0, models.AvailableNow)}
	_ = Rank(in, nil)
	if in[0].ID != 1 || in[1].ID != 2 {
		t.Fatal("input order was modified")
	}
}

func TestRankEmpty(t *testing.T) {
	got := Rank(nil, []string{"Oil Change"})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}

func TestMatchReasonOrder(t *testing.T) {
	cases := []struct {
		name string
		m    models.Mechanic
		want string
	}{
		{"most experienced", mech(1, 4.5, 60, models.OnAnotherJob), ReasonMostExperienced},
		{"top rated beats experience", mech(1, 4.9, 60, models.AvailableNow), ReasonTopRated},
		{"top rated needs reviews", mech(1, 4.9, 10, models.OnAnotherJob), ""},
		{"fastest arrival", mech(1, 3.0, 3, models.AvailableNow), ReasonFastestArrival},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, reason := Score(tc.m, nil)
			if reason != tc.want {
				t.Fatalf("expected %q got %q", tc.want, reason)
			}
		})
	}
}

func TestNormalizeService(t *testing.T) {
	cases := map[string]string{
		"Brake Pad Replacement": "brake pad",
		"Oil Change":            "oil",
		"  Engine Inspection ":  "engine",
		"Battery Repair":        "battery",
		"Diagnostics":           "diagnostics",
		"Repair":                "",
	}
	for in, want := range cases {
		if got := NormalizeService(in); got != want {
			t.Fatalf("NormalizeService(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatchSpecialtyEitherDirection(t *testing.T) {
	if _, ok := MatchSpecialty([]string{"Oil"}, Keywords([]string{"Synthetic Oil Change"})); !ok {
		t.Fatal("tag inside keyword should match")
	}
	if _, ok := MatchSpecialty([]string{"Electrical Systems"}, Keywords([]string{"Electrical"})); !ok {
		t.Fatal("keyword inside tag should match")
	}
	if _, ok := MatchSpecialty([]string{"Tires"}, Keywords([]string{"Repair"})); ok {
		t.Fatal("empty keyword must not match")
	}
}
