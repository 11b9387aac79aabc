package dataset

import (
	"errors"
	"sort"
	"testing"

	"github.com/manningwu07/MidiGPT/params"
)

func tenSamples(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New([][]int{seq(0, 20)}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestRandomSplitPartitions(t *testing.T) {
	ds := tenSamples(t)
	train, val, err := RandomSplit(ds, 0.3, 444)
	if err != nil {
		t.Fatalf("RandomSplit: %v", err)
	}
	if train.Len() != 7 || val.Len() != 3 {
		t.Fatalf("train=%d val=%d", train.Len(), val.Len())
	}
	var firsts []int
	for _, sub := range []*Subset{train, val} {
		for i := 0; i < sub.Len(); i++ {
			s, err := sub.Get(i)
			if err != nil {
				t.Fatal(err)
			}
			firsts = append(firsts, s.InputIDs[0])
		}
	}
	sort.Ints(firsts)
	for i, f := range firsts {
		if f != 2*i {
			t.Fatalf("split lost or duplicated samples: %v", firsts)
		}
	}
}

func TestRandomSplitDeterministic(t *testing.T) {
	ds := tenSamples(t)
	_, a, _ := RandomSplit(ds, 0.3, 7)
	_, b, _ := RandomSplit(ds, 0.3, 7)
	for i := 0; i < a.Len(); i++ {
		x, _ := a.Get(i)
		y, _ := b.Get(i)
		if x.InputIDs[0] != y.InputIDs[0] {
			t.Fatalf("same seed produced different splits")
		}
	}
}

func TestRandomSplitErrors(t *testing.T) {
	empty, _ := New(nil, 1, 1)
	if _, _, err := RandomSplit(empty, 0.3, 1); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("empty: got %v", err)
	}
	one, _ := New([][]int{{1}}, 1, 1)
	if _, _, err := RandomSplit(one, 0.5, 1); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("no train left: got %v", err)
	}
	if _, _, err := RandomSplit(one, 1.5, 1); !errors.Is(err, params.ErrInvalidConfig) {
		t.Fatalf("bad frac: got %v", err)
	}
	train, val, err := RandomSplit(tenSamples(t), 0.01, 1)
	if err != nil || val.Len() != 1 || train.Len() != 9 {
		t.Fatalf("small frac should hold out one sample: %v", err)
	}
}

func TestBatches(t *testing.T) {
	ds := tenSamples(t)
	bs, err := Batches(ds, 4, false, 0)
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if len(bs) != 3 || len(bs[0]) != 4 || len(bs[2]) != 2 {
		t.Fatalf("unexpected batch layout: %d batches", len(bs))
	}
	if bs[1][0].InputIDs[0] != 8 {
		t.Fatalf("ordered batches out of order")
	}
	shuf, err := Batches(ds, 3, true, 9)
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, b := range shuf {
		total += len(b)
	}
	if total != 10 {
		t.Fatalf("shuffled batches hold %d samples", total)
	}
}

func TestBatchesFailsFast(t *testing.T) {
	empty, _ := New([][]int{{1, 2}}, 3, 4)
	if _, err := Batches(empty, 2, false, 0); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
	if _, err := Batches(tenSamples(t), 0, false, 0); !errors.Is(err, params.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	sub := NewSubset(tenSamples(t), nil)
	if _, err := Batches(sub, 2, false, 0); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("empty subset: got %v", err)
	}
}
