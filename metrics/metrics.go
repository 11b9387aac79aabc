// Package metrics scores model predictions against collated labels.
package metrics

import (
	"fmt"
	"maps"
	"slices"

	"github.com/manningwu07/MidiGPT/collate"
)

type Metrics map[string]float64

// Evaluator scores one batch of predictions.
type Evaluator interface {
	Evaluate(predictions, labels collate.Matrix) (Metrics, error)
}

// Accuracy is next-token accuracy: predictions[:, t] is compared with
// labels[:, t+1]. Labels equal to IgnoreIndex are skipped.
type Accuracy struct {
	IgnoreIndex int
}

func (a Accuracy) Evaluate(predictions, labels collate.Matrix) (Metrics, error) {
	if !collate.SameShape(predictions, labels) {
		return nil, fmt.Errorf("%w: predictions %dx%d, labels %dx%d", collate.ErrShape,
			predictions.Rows, predictions.Cols, labels.Rows, labels.Cols)
	}
	correct, total := 0, 0
	for i := 0; i < labels.Rows; i++ {
		for t := 0; t+1 < labels.Cols; t++ {
			gold := labels.At(i, t+1)
			if gold == a.IgnoreIndex {
				continue
			}
			total++
			if predictions.At(i, t) == gold {
				correct++
			}
		}
	}
	acc := 0.0
	if total > 0 {
		acc = float64(correct) / float64(total)
	}
	return Metrics{"accuracy": acc, "tokens": float64(total)}, nil
}

type composite []Evaluator

// Compose runs every evaluator and merges their metrics. Two evaluators
// reporting the same key is an error.
func Compose(evs ...Evaluator) Evaluator { return composite(evs) }

func (c composite) Evaluate(predictions, labels collate.Matrix) (Metrics, error) {
	out := Metrics{}
	for _, ev := range c {
		m, err := ev.Evaluate(predictions, labels)
		if err != nil {
			return nil, err
		}
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if _, dup := out[k]; dup {
				return nil, fmt.Errorf("metrics: duplicate key %q", k)
			}
			out[k] = m[k]
		}
	}
	return out, nil
}

// Accumulator averages metrics over batches, weighting by the "tokens"
// entry when present.
type Accumulator struct {
	sums    Metrics
	weights float64
	batches int
}

func (a *Accumulator) Add(m Metrics) {
	if a.sums == nil {
		a.sums = Metrics{}
	}
	w, ok := m["tokens"]
	if !ok {
		w = 1
	}
	for k, v := range m {
		if k == "tokens" {
			a.sums[k] += v
			continue
		}
		a.sums[k] += v * w
	}
	a.weights += w
	a.batches++
}

// Result returns the weighted means; "tokens" stays a total.
func (a *Accumulator) Result() Metrics {
	out := Metrics{"batches": float64(a.batches)}
	for k, v := range a.sums {
		switch {
		case k == "tokens":
			out[k] = v
		case a.weights > 0:
			out[k] = v / a.weights
		}
	}
	return out
}
