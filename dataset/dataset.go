package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/manningwu07/MidiGPT/utils"
)

var (
	// ErrMalformedInput: a source does not decode to a token sequence.
	ErrMalformedInput = errors.New("malformed input")
	// ErrEmptyDataset: no windows to sample from.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrIndexOutOfRange: positional access outside [0, Len).
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Sample is one training example. Labels equal InputIDs; the model
// applies the next-token shift itself.
type Sample struct {
	InputIDs []int
	Labels   []int
}

// Source is positional access to samples, implemented by Dataset and Subset.
type Source interface {
	Len() int
	Get(i int) (Sample, error)
}

// Loader turns one source file into its token sequence.
type Loader interface {
	Load(path string) ([]int, error)
}

// BuildOptions configures Build.
type BuildOptions struct {
	MinSeqLen     int
	MaxSeqLen     int
	SkipMalformed bool         // log and skip instead of aborting
	Logger        *slog.Logger // nil uses slog.Default()
}

// BuildStats summarizes the sources and windows behind a Dataset.
type BuildStats struct {
	Files       int
	Skipped     int
	Windows     int
	MeanLen     float64
	StdLen      float64
	DroppedToks int // ids lost to short tails
}

// Dataset is an immutable, flat list of samples.
type Dataset struct {
	samples []Sample
	stats   BuildStats
}

// Build loads every path through loader and windows it. Any malformed
// source aborts the build unless opts.SkipMalformed is set.
func Build(paths []string, loader Loader, opts BuildOptions) (*Dataset, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	d := &Dataset{}
	for _, p := range paths {
		ids, err := loader.Load(p)
		if err == nil {
			err = checkIDs(ids)
		}
		if err != nil {
			if opts.SkipMalformed {
				log.Warn("skipping source", "path", p, "err", err)
				d.stats.Skipped++
				continue
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, p, err)
		}
		if err := d.add(ids, opts.MinSeqLen, opts.MaxSeqLen); err != nil {
			return nil, err
		}
		d.stats.Files++
	}
	d.finish()
	log.Debug("dataset built", "files", d.stats.Files, "skipped", d.stats.Skipped,
		"windows", d.stats.Windows, "dropped_tokens", d.stats.DroppedToks)
	return d, nil
}

// New builds a dataset from in-memory token sequences.
func New(sequences [][]int, minSeqLen, maxSeqLen int) (*Dataset, error) {
	d := &Dataset{}
	for i, ids := range sequences {
		if err := checkIDs(ids); err != nil {
			return nil, fmt.Errorf("%w: sequence %d: %v", ErrMalformedInput, i, err)
		}
		if err := d.add(ids, minSeqLen, maxSeqLen); err != nil {
			return nil, err
		}
		d.stats.Files++
	}
	d.finish()
	return d, nil
}

// FromWindows wraps already windowed sequences, e.g. read back from shards.
func FromWindows(windows [][]int) (*Dataset, error) {
	d := &Dataset{samples: make([]Sample, 0, len(windows))}
	for i, w := range windows {
		if err := checkIDs(w); err != nil {
			return nil, fmt.Errorf("%w: window %d: %v", ErrMalformedInput, i, err)
		}
		d.samples = append(d.samples, newSample(w))
	}
	d.stats.Files = len(windows)
	d.finish()
	return d, nil
}

func (d *Dataset) add(ids []int, minSeqLen, maxSeqLen int) error {
	windows, err := Window(ids, minSeqLen, maxSeqLen)
	if err != nil {
		return err
	}
	used := 0
	for _, w := range windows {
		d.samples = append(d.samples, newSample(w))
		used += len(w)
	}
	d.stats.DroppedToks += len(ids) - used
	return nil
}

func (d *Dataset) finish() {
	lengths := make([]int, len(d.samples))
	for i, s := range d.samples {
		lengths[i] = len(s.InputIDs)
	}
	d.stats.Windows = len(d.samples)
	d.stats.MeanLen, d.stats.StdLen = utils.LengthStats(lengths)
}

func newSample(w []int) Sample {
	ids := slices.Clone(w)
	return Sample{InputIDs: ids, Labels: slices.Clone(ids)}
}

func checkIDs(ids []int) error {
	for i, id := range ids {
		if id < 0 {
			return fmt.Errorf("negative token id %d at position %d", id, i)
		}
	}
	return nil
}

func (d *Dataset) Len() int { return len(d.samples) }

// Get returns the i-th sample. The returned slices must not be modified.
func (d *Dataset) Get(i int) (Sample, error) {
	if i < 0 || i >= len(d.samples) {
		return Sample{}, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(d.samples))
	}
	return d.samples[i], nil
}

func (d *Dataset) Stats() BuildStats { return d.stats }
