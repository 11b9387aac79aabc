package collate

import (
	"fmt"

	"github.com/manningwu07/MidiGPT/dataset"
	"github.com/manningwu07/MidiGPT/params"
)

// TrainBatch holds aligned inputs and labels of shape (batch, maxLen).
type TrainBatch struct {
	InputIDs Matrix
	Labels   Matrix
}

// TrainCollator right-pads samples for training. Input padding uses
// PadID and label padding uses IgnoreIndex so padded positions carry no
// loss. The next-token shift is left to the model.
type TrainCollator struct {
	PadID       int
	IgnoreIndex int
}

func NewTrainCollator(padID int) TrainCollator {
	return TrainCollator{PadID: padID, IgnoreIndex: params.IgnoreIndex}
}

func (c TrainCollator) Collate(samples []dataset.Sample) (TrainBatch, error) {
	if len(samples) == 0 {
		return TrainBatch{}, fmt.Errorf("%w: train collator got 0 samples", ErrEmptyBatch)
	}
	maxLen, uniform := 0, true
	first := len(samples[0].InputIDs)
	for i, s := range samples {
		if len(s.Labels) != len(s.InputIDs) {
			return TrainBatch{}, fmt.Errorf("%w: sample %d has %d inputs and %d labels",
				ErrShape, i, len(s.InputIDs), len(s.Labels))
		}
		if len(s.InputIDs) != first {
			uniform = false
		}
		maxLen = max(maxLen, len(s.InputIDs))
	}
	if maxLen == 0 {
		return TrainBatch{}, fmt.Errorf("%w: all samples are empty", ErrEmptyBatch)
	}

	in := NewMatrix(len(samples), maxLen)
	lab := NewMatrix(len(samples), maxLen)
	if uniform {
		// stack as is
		for i, s := range samples {
			copy(in.Row(i), s.InputIDs)
			copy(lab.Row(i), s.Labels)
		}
		return TrainBatch{InputIDs: in, Labels: lab}, nil
	}
	for i, s := range samples {
		rowIn, rowLab := in.Row(i), lab.Row(i)
		n := copy(rowIn, s.InputIDs)
		copy(rowLab, s.Labels)
		for j := n; j < maxLen; j++ {
			rowIn[j] = c.PadID
			rowLab[j] = c.IgnoreIndex
		}
	}
	return TrainBatch{InputIDs: in, Labels: lab}, nil
}

// GenCollator left-pads prompts behind a BOS id so every row ends in
// the same column and generated ids can be appended at a fixed offset.
type GenCollator struct {
	BOSID int
	PadID int
}

// Collate returns a (len(prompts), maxPromptLen+1) matrix. Each row is
// [pad ... pad, BOS, prompt...].
func (c GenCollator) Collate(prompts [][]int) (Matrix, error) {
	if len(prompts) == 0 {
		return Matrix{}, fmt.Errorf("%w: generation collator got 0 prompts", ErrEmptyBatch)
	}
	maxLen := 0
	for _, p := range prompts {
		maxLen = max(maxLen, len(p))
	}
	m := NewMatrix(len(prompts), maxLen+1)
	for i, p := range prompts {
		row := m.Row(i)
		lead := m.Cols - len(p) - 1
		for j := 0; j < lead; j++ {
			row[j] = c.PadID
		}
		row[lead] = c.BOSID
		copy(row[lead+1:], p)
	}
	return m, nil
}

// Prompts extracts the input ids of samples, keeping at most the last
// maxLen of each (0 keeps everything).
func Prompts(samples []dataset.Sample, maxLen int) [][]int {
	out := make([][]int, len(samples))
	for i, s := range samples {
		p := s.InputIDs
		if maxLen > 0 && len(p) > maxLen {
			p = p[len(p)-maxLen:]
		}
		out[i] = p
	}
	return out
}
