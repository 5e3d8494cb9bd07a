package jitter

import (
	"math/rand"
	"testing"
	"time"
)

func TestApplyBounds(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(42))

	tests := []struct {
		bias     Bias
		min, max int
	}{
		{bias: BiasEarly, min: -15, max: 0},
		{bias: BiasLate, min: 0, max: 15},
		{bias: BiasNone, min: -15, max: 15},
	}
	for _, tt := range tests {
		sawNonZero := false
		for i := 0; i < 500; i++ {
			got, off := Apply(base, 15, tt.bias, rng)
			if off < tt.min || off > tt.max {
				t.Fatalf("bias %s: offset %d outside [%d,%d]", tt.bias, off, tt.min, tt.max)
			}
			if got.Sub(base) != time.Duration(off)*time.Minute {
				t.Fatalf("bias %s: returned time disagrees with offset %d", tt.bias, off)
			}
			if off != 0 {
				sawNonZero = true
			}
		}
		if !sawNonZero {
			t.Fatalf("bias %s: never produced a non-zero offset", tt.bias)
		}
	}
}

func TestApplyZeroIsNoop(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	got, off := Apply(base, 0, BiasLate, nil)
	if !got.Equal(base) || off != 0 {
		t.Fatalf("Apply with max=0 changed time: %v (%d)", got, off)
	}
}

func TestParseBias(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Bias{"": BiasNone, "none": BiasNone, "Early": BiasEarly, " late ": BiasLate} {
		got, err := ParseBias(in)
		if err != nil {
			t.Fatalf("ParseBias(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseBias(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseBias("sideways"); err == nil {
		t.Fatal("expected error for unknown bias")
	}
}
