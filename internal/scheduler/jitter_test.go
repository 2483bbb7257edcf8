package scheduler

import (
	"testing"
	"time"
)

func TestJitteredIntervalWithinBounds(t *testing.T) {
	base := 60 * time.Second
	for i := 0; i < 200; i++ {
		got := jitteredInterval(base, 0.10)
		min := time.Duration(float64(base) * 0.90)
		max := time.Duration(float64(base) * 1.10)
		if got < min || got > max {
			t.Fatalf("jitteredInterval out of bounds: %v not in [%v, %v]", got, min, max)
		}
	}
}

func TestRandFractionInUnitInterval(t *testing.T) {
	for i := 0; i < 200; i++ {
		f := randFraction()
		if f < 0 || f >= 1 {
			t.Fatalf("randFraction out of [0,1): %v", f)
		}
	}
}
