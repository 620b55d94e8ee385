package fraud

import (
	"math"
	"testing"
	"time"
)

func TestApply_RunningMean(t *testing.T) {
	profile := NewProfile("user-1")

	for _, amount := range []float64{100, 200, 300} {
		Apply(profile, txAt(amount, "US", 9))
	}

	if math.Abs(profile.AverageAmount-200) > 1e-9 {
		t.Errorf("expected running mean 200, got %f", profile.AverageAmount)
	}
	if profile.TransactionCount != 3 {
		t.Errorf("expected count 3, got %d", profile.TransactionCount)
	}
}

func TestApply_LearnsHourAndCountry(t *testing.T) {
	profile := NewProfile("user-1")

	Apply(profile, txAt(100, "FR", 3))

	if !profile.HasHour(3) {
		t.Error("hour 3 should be learned")
	}
	if !profile.HasCountry("FR") {
		t.Error("country FR should be learned")
	}
}

func TestApply_NoDuplicateSetEntries(t *testing.T) {
	profile := NewProfile("user-1")

	for i := 0; i < 5; i++ {
		Apply(profile, txAt(100, "FR", 3))
	}

	if len(profile.UsualHours) != 1 {
		t.Errorf("expected 1 learned hour, got %v", profile.UsualHours)
	}
	if len(profile.UsualCountries) != 1 {
		t.Errorf("expected 1 learned country, got %v", profile.UsualCountries)
	}
}

func TestApply_SetsOnlyGrow(t *testing.T) {
	profile := NewProfile("user-1")

	countries := []string{"FR", "DE", "US", "FR", "BR", "DE"}
	hours := []int{3, 14, 22, 3, 8, 14}

	maxCountries, maxHours := 0, 0
	for i := range countries {
		Apply(profile, txAt(float64(50*i+10), countries[i], hours[i]))
		if len(profile.UsualCountries) < maxCountries || len(profile.UsualHours) < maxHours {
			t.Fatal("learned sets must never shrink")
		}
		maxCountries = len(profile.UsualCountries)
		maxHours = len(profile.UsualHours)
	}

	if len(profile.UsualCountries) != 4 {
		t.Errorf("expected 4 learned countries, got %v", profile.UsualCountries)
	}
	if len(profile.UsualHours) != 4 {
		t.Errorf("expected 4 learned hours, got %v", profile.UsualHours)
	}
}

func TestApply_CountMonotonic(t *testing.T) {
	profile := NewProfile("user-1")
	var prev int64

	for i := 0; i < 20; i++ {
		Apply(profile, txAt(float64(i), "US", i%24))
		if profile.TransactionCount <= prev {
			t.Fatal("transaction count must strictly increase per application")
		}
		prev = profile.TransactionCount
	}
}

func TestApply_HourFromTimestamp(t *testing.T) {
	profile := NewProfile("user-1")
	tx := &Transaction{
		UserID:    "user-1",
		Amount:    10,
		Country:   "US",
		Timestamp: time.Date(2026, 6, 1, 23, 59, 59, 0, time.UTC),
	}

	Apply(profile, tx)

	if !profile.HasHour(23) {
		t.Errorf("expected hour 23 learned, got %v", profile.UsualHours)
	}
}
