package metrics

import (
	"math"
	"testing"

	"github.com/manningwu07/MidiGPT/collate"
)

func mustRows(t *testing.T, rows [][]int) collate.Matrix {
	t.Helper()
	m, err := collate.FromRows(rows)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestAccuracyShiftsAndIgnores(t *testing.T) {
	labels := mustRows(t, [][]int{
		{5, 6, 7, 8},
		{9, 10, -100, -100},
	})
	// predictions at t target labels at t+1
	preds := mustRows(t, [][]int{
		{6, 7, 0, 99},
		{10, 3, 3, 3},
	})
	m, err := Accuracy{IgnoreIndex: -100}.Evaluate(preds, labels)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// row 0: 6✓ 7✓ 0✗ ; row 1: 10✓ (rest ignored)
	if m["tokens"] != 4 {
		t.Fatalf("tokens = %v", m["tokens"])
	}
	if math.Abs(m["accuracy"]-0.75) > 1e-12 {
		t.Fatalf("accuracy = %v", m["accuracy"])
	}
}

func TestAccuracyShapeMismatch(t *testing.T) {
	a := mustRows(t, [][]int{{1, 2}})
	b := mustRows(t, [][]int{{1, 2, 3}})
	if _, err := (Accuracy{}).Evaluate(a, b); err == nil {
		t.Fatal("expected error")
	}
}

type constEval Metrics

func (c constEval) Evaluate(_, _ collate.Matrix) (Metrics, error) { return Metrics(c), nil }

func TestCompose(t *testing.T) {
	m := mustRows(t, [][]int{{1, 2}})
	ev := Compose(Accuracy{IgnoreIndex: -100}, constEval{"loss": 1.5})
	got, err := ev.Evaluate(m, m)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if _, ok := got["accuracy"]; !ok || got["loss"] != 1.5 {
		t.Fatalf("got %v", got)
	}
	dup := Compose(constEval{"loss": 1}, constEval{"loss": 2})
	if _, err := dup.Evaluate(m, m); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestAccumulatorWeightsByTokens(t *testing.T) {
	var acc Accumulator
	acc.Add(Metrics{"accuracy": 1.0, "tokens": 1})
	acc.Add(Metrics{"accuracy": 0.0, "tokens": 3})
	r := acc.Result()
	if r["accuracy"] != 0.25 || r["tokens"] != 4 || r["batches"] != 2 {
		t.Fatalf("got %v", r)
	}
}
