package collate

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/manningwu07/MidiGPT/dataset"
)

func sample(ids ...int) dataset.Sample {
	return dataset.Sample{InputIDs: ids, Labels: append([]int(nil), ids...)}
}

func TestTrainCollatorSameLength(t *testing.T) {
	c := NewTrainCollator(0)
	b, err := c.Collate([]dataset.Sample{sample(1, 2, 3), sample(4, 5, 6)})
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}
	want := [][]int{{1, 2, 3}, {4, 5, 6}}
	if got := b.InputIDs.ToRows(); !reflect.DeepEqual(got, want) {
		t.Fatalf("inputs = %v", got)
	}
	if got := b.Labels.ToRows(); !reflect.DeepEqual(got, want) {
		t.Fatalf("labels = %v", got)
	}
}

func TestTrainCollatorPads(t *testing.T) {
	c := TrainCollator{PadID: 0, IgnoreIndex: -100}
	samples := []dataset.Sample{sample(7, 8, 9, 10), sample(11), sample(12, 13)}
	b, err := c.Collate(samples)
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}
	if b.InputIDs.Rows != 3 || b.InputIDs.Cols != 4 || !SameShape(b.InputIDs, b.Labels) {
		t.Fatalf("shape = %dx%d", b.InputIDs.Rows, b.InputIDs.Cols)
	}
	for i, s := range samples {
		for j := 0; j < b.InputIDs.Cols; j++ {
			in, lab := b.InputIDs.At(i, j), b.Labels.At(i, j)
			if j < len(s.InputIDs) {
				if in != s.InputIDs[j] || lab != s.Labels[j] {
					t.Fatalf("row %d col %d changed: in=%d lab=%d", i, j, in, lab)
				}
				continue
			}
			if in != 0 {
				t.Fatalf("row %d col %d input pad = %d", i, j, in)
			}
			if lab != -100 {
				t.Fatalf("row %d col %d label pad = %d", i, j, lab)
			}
		}
	}
}

func TestTrainCollatorRejects(t *testing.T) {
	c := NewTrainCollator(0)
	if _, err := c.Collate(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("nil: expected ErrEmptyBatch, got %v", err)
	}
	bad := dataset.Sample{InputIDs: []int{1, 2}, Labels: []int{1}}
	if _, err := c.Collate([]dataset.Sample{bad}); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestTrainCollatorDoesNotMutateSamples(t *testing.T) {
	s := sample(1, 2)
	b, _ := NewTrainCollator(0).Collate([]dataset.Sample{s, sample(3, 4, 5)})
	b.InputIDs.Row(0)[0] = 99
	if s.InputIDs[0] != 1 {
		t.Fatalf("batch aliases sample")
	}
}

func TestGenCollatorRightAligned(t *testing.T) {
	c := GenCollator{BOSID: 1, PadID: 0}
	prompts := [][]int{{10, 11, 12}, {20}, {30, 31}}
	m, err := c.Collate(prompts)
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}
	want := [][]int{
		{1, 10, 11, 12},
		{0, 0, 1, 20},
		{0, 1, 30, 31},
	}
	if got := m.ToRows(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, p := range prompts {
		if last := m.At(i, m.Cols-1); last != p[len(p)-1] {
			t.Fatalf("row %d ends with %d, want %d", i, last, p[len(p)-1])
		}
	}
}

func TestGenCollatorEmptyPrompt(t *testing.T) {
	m, err := GenCollator{BOSID: 1, PadID: 0}.Collate([][]int{{}, {5}})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.ToRows(); !reflect.DeepEqual(got, [][]int{{0, 1}, {1, 5}}) {
		t.Fatalf("got %v", got)
	}
}

func TestGenCollatorEmptyBatch(t *testing.T) {
	if _, err := (GenCollator{}).Collate(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestCollatorsConcurrentUse(t *testing.T) {
	tc := NewTrainCollator(0)
	gc := GenCollator{BOSID: 1, PadID: 0}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids := make([]int, n+1)
			if _, err := tc.Collate([]dataset.Sample{sample(ids...), sample(1)}); err != nil {
				t.Error(err)
			}
			if _, err := gc.Collate([][]int{ids, {2}}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
}

func TestPromptsTruncates(t *testing.T) {
	got := Prompts([]dataset.Sample{sample(1, 2, 3, 4), sample(5)}, 2)
	if !reflect.DeepEqual(got, [][]int{{3, 4}, {5}}) {
		t.Fatalf("got %v", got)
	}
}

func TestMatrixDense(t *testing.T) {
	m, err := FromRows([][]int{{1, 2}, {3, -100}})
	if err != nil {
		t.Fatal(err)
	}
	d := m.Dense()
	if r, c := d.Dims(); r != 2 || c != 2 || d.At(1, 1) != -100 {
		t.Fatalf("dense mismatch")
	}
	if _, err := FromRows([][]int{{1}, {1, 2}}); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}
