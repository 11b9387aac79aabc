package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/manningwu07/MidiGPT/params"
)

// Subset is an index view over another Source.
type Subset struct {
	src     Source
	indices []int
}

func NewSubset(src Source, indices []int) *Subset {
	return &Subset{src: src, indices: indices}
}

func (s *Subset) Len() int { return len(s.indices) }

func (s *Subset) Get(i int) (Sample, error) {
	if i < 0 || i >= len(s.indices) {
		return Sample{}, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(s.indices))
	}
	return s.src.Get(s.indices[i])
}

// RandomSplit shuffles src with seed and holds out round(n*valFrac)
// samples, at least one when valFrac > 0.
func RandomSplit(src Source, valFrac float64, seed uint64) (train, val *Subset, err error) {
	n := src.Len()
	if n == 0 {
		return nil, nil, fmt.Errorf("%w: cannot split 0 samples (all sources shorter than min_seq_len or none found)", ErrEmptyDataset)
	}
	if valFrac < 0 || valFrac >= 1 {
		return nil, nil, fmt.Errorf("%w: val fraction %g not in [0,1)", params.ErrInvalidConfig, valFrac)
	}
	nVal := int(math.Round(float64(n) * valFrac))
	if valFrac > 0 && nVal == 0 {
		nVal = 1
	}
	if nVal >= n {
		return nil, nil, fmt.Errorf("%w: %d samples leave no training data at val fraction %g", ErrEmptyDataset, n, valFrac)
	}
	perm := shuffled(n, seed)
	return NewSubset(src, perm[nVal:]), NewSubset(src, perm[:nVal]), nil
}

// Batches groups src into batches of at most batchSize samples, in
// order or shuffled with seed.
func Batches(src Source, batchSize int, shuffle bool, seed uint64) ([][]Sample, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be > 0, got %d", params.ErrInvalidConfig, batchSize)
	}
	n := src.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: sampler needs at least 1 sample", ErrEmptyDataset)
	}
	var order []int
	if shuffle {
		order = shuffled(n, seed)
	} else {
		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
	}
	out := make([][]Sample, 0, (n+batchSize-1)/batchSize)
	for lo := 0; lo < n; lo += batchSize {
		hi := min(lo+batchSize, n)
		batch := make([]Sample, 0, hi-lo)
		for _, i := range order[lo:hi] {
			s, err := src.Get(i)
			if err != nil {
				return nil, err
			}
			batch = append(batch, s)
		}
		out = append(out, batch)
	}
	return out, nil
}

func shuffled(n int, seed uint64) []int {
	rng := rand.New(rand.NewPCG(seed, 0))
	return rng.Perm(n)
}
