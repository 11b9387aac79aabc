package utils

import (
	"math"
	"testing"
)

func TestIntsToDenseRoundTrip(t *testing.T) {
	in := []int{1, 2, 3, -100, 5, 6}
	d := IntsToDense(2, 3, in)
	if d.At(1, 0) != -100 {
		t.Fatalf("At(1,0) = %v", d.At(1, 0))
	}
	r, c, out := DenseToInts(d)
	if r != 2 || c != 3 {
		t.Fatalf("dims = %dx%d", r, c)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestIntsToDenseBadLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	IntsToDense(2, 2, []int{1, 2, 3})
}

func TestLengthStats(t *testing.T) {
	if m, s := LengthStats(nil); m != 0 || s != 0 {
		t.Fatalf("empty: %v %v", m, s)
	}
	if m, s := LengthStats([]int{7}); m != 7 || s != 0 {
		t.Fatalf("single: %v %v", m, s)
	}
	m, s := LengthStats([]int{2, 4, 4, 4, 5, 5, 7, 9})
	if m != 5 {
		t.Fatalf("mean = %v", m)
	}
	// sample std of the classic example: sqrt(32/7)
	if math.Abs(s-math.Sqrt(32.0/7.0)) > 1e-9 {
		t.Fatalf("std = %v", s)
	}
}
