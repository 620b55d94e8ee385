package validation

import (
	"math"
	"testing"
)

func TestRequired(t *testing.T) {
	if err := Required("userId", "user-1")(); err != nil {
		t.Errorf("non-empty value should pass: %v", err)
	}
	if err := Required("userId", "")(); err == nil {
		t.Error("empty value should fail")
	}
	if err := Required("userId", "   ")(); err == nil {
		t.Error("whitespace-only value should fail")
	}
}

func TestMaxLength(t *testing.T) {
	if err := MaxLength("country", "FR", 8)(); err != nil {
		t.Errorf("short value should pass: %v", err)
	}
	if err := MaxLength("country", "toolongvalue", 8)(); err == nil {
		t.Error("long value should fail")
	}
}

func TestFiniteNonNegative(t *testing.T) {
	cases := []struct {
		name  string
		value float64
		ok    bool
	}{
		{"zero", 0, true},
		{"positive", 149.99, true},
		{"negative", -1, false},
		{"nan", math.NaN(), false},
		{"positive inf", math.Inf(1), false},
		{"negative inf", math.Inf(-1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := FiniteNonNegative("amount", tc.value)()
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPositiveNumber(t *testing.T) {
	if err := PositiveNumber("highAmountThreshold", 500)(); err != nil {
		t.Errorf("positive value should pass: %v", err)
	}
	for _, v := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if err := PositiveNumber("highAmountThreshold", v)(); err == nil {
			t.Errorf("value %f should fail", v)
		}
	}
}

func TestPositiveInt(t *testing.T) {
	if err := PositiveInt("count", 3)(); err != nil {
		t.Errorf("positive value should pass: %v", err)
	}
	if err := PositiveInt("count", 0)(); err == nil {
		t.Error("zero should fail")
	}
}

func TestValidateCollectsAll(t *testing.T) {
	errs := Validate(
		Required("userId", ""),
		Required("country", ""),
		FiniteNonNegative("amount", -5),
	)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(errs))
	}
	if errs.Error() != "userId: is required" {
		t.Errorf("unexpected Error() string: %q", errs.Error())
	}
}

func TestValidateEmpty(t *testing.T) {
	errs := Validate(Required("userId", "user-1"))
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if ValidationErrors(nil).Error() != "validation failed" {
		t.Error("empty errors should have generic message")
	}
}
