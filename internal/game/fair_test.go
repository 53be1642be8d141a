package game

import (
	"math"
	"testing"
)

func TestCrashPoint_Deterministic(t *testing.T) {
	seed := "deterministic-seed"

	for seq := 1; seq <= 10; seq++ {
		first := CrashPoint(seed, seq, DEFAULT_MAX_MULTIPLIER)
		second := CrashPoint(seed, seq, DEFAULT_MAX_MULTIPLIER)
		third := CrashPoint(seed, seq, DEFAULT_MAX_MULTIPLIER)

		if first != second || second != third {
			t.Errorf("CrashPoint(seq=%d) not deterministic: %v, %v, %v", seq, first, second, third)
		}
	}
}

func TestCrashPoint_KnownValues(t *testing.T) {
	tests := []struct {
		seed     string
		sequence int
		want     float64
	}{
		{"crash-server-seed", 1, 3.99},
		{"test-seed", 1, 53.70},
		{"test-seed", 2, 68.79},
		{"test-seed", 42, 20.66},
		{"seed", 1, 110.24},
	}

	for _, tt := range tests {
		got := CrashPoint(tt.seed, tt.sequence, DEFAULT_MAX_MULTIPLIER)
		if math.Abs(got-tt.want) > 0.001 {
			t.Errorf("CrashPoint(%q, %d) = %v, want %v", tt.seed, tt.sequence, got, tt.want)
		}
	}
}

func TestCrashPoint_Range(t *testing.T) {
	seeds := []string{"a", "b", "range-seed", "another seed"}

	for _, seed := range seeds {
		for seq := 1; seq <= 500; seq++ {
			got := CrashPoint(seed, seq, DEFAULT_MAX_MULTIPLIER)
			if got < MIN_MULTIPLIER {
				t.Fatalf("CrashPoint(%q, %d) = %v, below %v", seed, seq, got, MIN_MULTIPLIER)
			}
			if got >= DEFAULT_MAX_MULTIPLIER+1 {
				t.Fatalf("CrashPoint(%q, %d) = %v, out of range", seed, seq, got)
			}
		}
	}
}

func TestCrashPoint_DifferentSequences(t *testing.T) {
	seed := "variance-seed"

	first := CrashPoint(seed, 1, DEFAULT_MAX_MULTIPLIER)
	second := CrashPoint(seed, 2, DEFAULT_MAX_MULTIPLIER)
	third := CrashPoint(seed, 3, DEFAULT_MAX_MULTIPLIER)

	if first == second && second == third {
		t.Error("CrashPoint produced identical values for three sequences (unlikely)")
	}
}

func TestMultiplierAt_StartsNearOne(t *testing.T) {
	got := MultiplierAt(0)
	if got < 1.00 || got > 1.02 {
		t.Errorf("MultiplierAt(0) = %v, want ~1.01", got)
	}
}

func TestMultiplierAt_Increasing(t *testing.T) {
	prev := MultiplierAt(0)
	for i := 1; i <= 200; i++ {
		elapsed := float64(i) * 0.5
		got := MultiplierAt(elapsed)
		if got < prev {
			t.Fatalf("MultiplierAt(%v) = %v, decreased from %v", elapsed, got, prev)
		}
		prev = got
	}

	// Over coarse steps the rounded value must grow strictly.
	if MultiplierAt(60) <= MultiplierAt(30) {
		t.Error("MultiplierAt not strictly increasing over coarse steps")
	}
}

func TestMultiplierAt_TwoDecimalPlaces(t *testing.T) {
	for _, elapsed := range []float64{0, 1.234, 17.9, 55.5} {
		got := MultiplierAt(elapsed)
		if got != math.Round(got*100)/100 {
			t.Errorf("MultiplierAt(%v) = %v, not rounded to 2dp", elapsed, got)
		}
	}
}
