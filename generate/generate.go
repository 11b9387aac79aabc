package generate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/manningwu07/MidiGPT/IO"
	"github.com/manningwu07/MidiGPT/collate"
	"github.com/manningwu07/MidiGPT/dataset"
	"github.com/manningwu07/MidiGPT/metrics"
	"github.com/manningwu07/MidiGPT/params"
)

// Result is one generated continuation with the prompt it extends.
type Result struct {
	Prompt       []int
	Continuation []int
}

// Full is prompt followed by continuation.
func (r Result) Full() []int {
	return append(slices.Clone(r.Prompt), r.Continuation...)
}

// Sink receives each result with its sequence number.
type Sink interface {
	Write(idx int, r Result) error
}

// ResultWriter renders results to <Dir>/<idx>.mid and <Dir>/<idx>.json.
type ResultWriter struct {
	Dir             string
	Tokenizer       IO.Tokenizer
	TicksPerQuarter int
	Tempo           float64
}

var trackNames = [3]string{"continuation", "original", "original + continuation"}

func (w ResultWriter) Write(idx int, r Result) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}
	seqs := [3][]int{r.Continuation, r.Prompt, r.Full()}
	sc := IO.Score{TicksPerQuarter: w.TicksPerQuarter, Tempo: w.Tempo}
	for i, ids := range seqs {
		tr, err := w.Tokenizer.DecodeTrack(ids, w.TicksPerQuarter)
		if err != nil {
			return fmt.Errorf("result %d track %q: %w", idx, trackNames[i], err)
		}
		tr.Name = trackNames[i]
		sc.Tracks = append(sc.Tracks, tr)
	}
	base := filepath.Join(w.Dir, strconv.Itoa(idx))
	if err := IO.WriteMIDI(base+".mid", sc); err != nil {
		return err
	}
	return IO.WriteTokensJSON(base+".json", seqs[:])
}

// Generator runs prompts through a Model in batches.
type Generator struct {
	Model    Model
	Collator collate.GenCollator
	Config   params.GenerationConfig
	Sink     Sink
	Logger   *slog.Logger
}

// Run generates a continuation for every prompt and writes them with
// sequence numbers starting at next. It returns the first unused number.
func (g Generator) Run(ctx context.Context, prompts [][]int, next int) (int, error) {
	if len(prompts) == 0 {
		return next, fmt.Errorf("%w: no prompts to generate from", dataset.ErrEmptyDataset)
	}
	log := g.Logger
	if log == nil {
		log = slog.Default()
	}
	bs := max(g.Config.BatchSize, 1)
	for lo := 0; lo < len(prompts); lo += bs {
		if err := ctx.Err(); err != nil {
			return next, err
		}
		batch := prompts[lo:min(lo+bs, len(prompts))]
		m, err := g.Collator.Collate(batch)
		if err != nil {
			return next, err
		}
		out, err := g.Model.Generate(ctx, m, g.Config)
		if err != nil {
			return next, fmt.Errorf("generate batch at %d: %w", lo, err)
		}
		if len(out) != len(batch) {
			return next, fmt.Errorf("%w: model returned %d rows for %d prompts", collate.ErrShape, len(out), len(batch))
		}
		for i, cont := range out {
			if err := g.Sink.Write(next, Result{Prompt: batch[i], Continuation: cont}); err != nil {
				return next, err
			}
			next++
		}
		log.Debug("generated batch", "from", lo, "rows", len(batch), "next", next)
	}
	return next, nil
}

// Evaluate collates every batch, asks p for predictions and averages ev
// over the batches.
func Evaluate(ctx context.Context, p Predictor, batches [][]dataset.Sample, c collate.TrainCollator, ev metrics.Evaluator) (metrics.Metrics, error) {
	if len(batches) == 0 {
		return nil, fmt.Errorf("%w: nothing to evaluate", dataset.ErrEmptyDataset)
	}
	var acc metrics.Accumulator
	for i, samples := range batches {
		b, err := c.Collate(samples)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		preds, err := p.Predict(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		m, err := ev.Evaluate(preds, b.Labels)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		acc.Add(m)
	}
	return acc.Result(), nil
}
