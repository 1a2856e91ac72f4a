package mathx

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 3, 0) != 2 {
		t.Fatal("int clamp wrong")
	}
	if Clamp(1.5, 0.0, 1.0) != 1.0 {
		t.Fatal("float clamp wrong")
	}
	if !Between(2, 3, 1) || Between(4, 1, 3) {
		t.Fatal("Between wrong")
	}
}

func TestRoundTo(t *testing.T) {
	cases := []struct {
		v    float64
		d    int
		want float64
	}{
		{123.456, 1, 123.5},
		{123.456, 0, 123},
		{-0.125, 2, -0.13},
		{3.14159, 3, 3.142},
		{7, -2, 7},
	}
	for _, c := range cases {
		if got := RoundTo(c.v, c.d); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("RoundTo(%v, %d) = %v, want %v", c.v, c.d, got, c.want)
		}
	}
	if !math.IsNaN(RoundTo(math.NaN(), 2)) {
		t.Fatal("NaN not passed through")
	}
}
