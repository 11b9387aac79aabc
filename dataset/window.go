package dataset

import (
	"fmt"

	"github.com/manningwu07/MidiGPT/params"
)

// Window cuts tokens into consecutive, non-overlapping windows of
// maxSeqLen ids. The final window may be shorter but never below
// minSeqLen; a shorter tail is dropped. Windows alias tokens.
func Window(tokens []int, minSeqLen, maxSeqLen int) ([][]int, error) {
	if minSeqLen <= 0 || maxSeqLen < minSeqLen {
		return nil, fmt.Errorf("%w: window bounds min=%d max=%d", params.ErrInvalidConfig, minSeqLen, maxSeqLen)
	}
	var out [][]int
	off := 0
	for len(tokens)-off >= minSeqLen {
		n := min(maxSeqLen, len(tokens)-off)
		out = append(out, tokens[off:off+n:off+n])
		off += n
	}
	return out, nil
}
