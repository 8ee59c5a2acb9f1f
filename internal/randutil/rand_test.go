package randutil

import "testing"

func TestNewIsDeterministic(t *testing.T) {
	t.Parallel()
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		if x, y := a.IntN(52), b.IntN(52); x != y {
			t.Fatalf("draw %d differs: %d != %d", i, x, y)
		}
	}
}

func TestNewSeedNonNegative(t *testing.T) {
	t.Parallel()
	for i := 0; i < 50; i++ {
		if s := NewSeed(); s < 0 {
			t.Fatalf("seed %d is negative", s)
		}
	}
}
