package IO

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/bpe"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/manningwu07/MidiGPT/params"
)

// CharOffset maps base id i to the rune CharOffset+i before BPE. The
// tokenizer.json must be trained on text produced with the same mapping
// and without a ByteLevel pre-tokenizer.
const CharOffset = 0x4E00

// BPE compresses MIDILike ids with a pretrained or trained byte-pair tokenizer.
type BPE struct {
	base          *MIDILike
	tok           *tk.Tokenizer
	pieces        [][]int // BPE id -> base ids
	pad, bos, eos int
}

// Files written by TrainBPE inside its directory.
const (
	bpeVocabFile  = "vocab.json"
	bpeMergesFile = "merges.txt"
	bpeCorpusFile = "corpus.txt"
)

// corpus lines hold at most this many base tokens.
const bpeLineTokens = 2048

// LoadBPE loads a tokenizer on top of base. path is either a
// tokenizer.json or a directory written by TrainBPE.
func LoadBPE(path string, base *MIDILike) (*BPE, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		t, err := pretrained.FromFile(path)
		if err != nil {
			return nil, err
		}
		return newBPE(t, base)
	}
	model, err := bpe.NewBpeFromFiles(filepath.Join(path, bpeVocabFile), filepath.Join(path, bpeMergesFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFile, path, err)
	}
	t := tk.NewTokenizer(model)
	t.WithPreTokenizer(pretokenizer.NewWhitespaceSplit())
	return newBPE(t, base)
}

// TrainBPE learns a BPE vocabulary of vocabSize pieces over the base
// token sequences in seqs and saves it to dir. Every base token is part
// of the alphabet, so ids never seen in seqs still encode.
func TrainBPE(seqs [][]int, base *MIDILike, vocabSize int, dir string) (*BPE, error) {
	if vocabSize < base.VocabSize() {
		return nil, fmt.Errorf("bpe vocab size %d below base vocabulary %d", vocabSize, base.VocabSize())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	corpus := filepath.Join(dir, bpeCorpusFile)
	if err := writeBPECorpus(corpus, seqs, base.VocabSize()); err != nil {
		return nil, err
	}

	t := tk.NewTokenizer(bpe.NewBPE(map[string]int{}, map[bpe.Pair]bpe.PairVal{}))
	t.WithPreTokenizer(pretokenizer.NewWhitespaceSplit())

	trainer := bpe.NewBpeTrainer(2, vocabSize)
	for _, id := range []int{base.PadID(), base.BOSID(), base.EOSID()} {
		trainer.SpecialTokens = append(trainer.SpecialTokens, tk.NewAddedToken(string(rune(CharOffset+id)), true))
	}
	if err := t.Train(trainer, []string{corpus}); err != nil {
		return nil, fmt.Errorf("train bpe: %w", err)
	}
	if err := t.GetModel().Save(dir); err != nil {
		return nil, err
	}
	return newBPE(t, base)
}

// writeBPECorpus writes one line with every base token, then each
// sequence in chunks of bpeLineTokens.
func writeBPECorpus(path string, seqs [][]int, vocabSize int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for id := 0; id < vocabSize; id++ {
		if id > 0 {
			w.WriteByte(' ')
		}
		w.WriteRune(rune(CharOffset + id))
	}
	w.WriteByte('\n')
	for _, seq := range seqs {
		for lo := 0; lo < len(seq); lo += bpeLineTokens {
			chunk := seq[lo:min(lo+bpeLineTokens, len(seq))]
			for _, id := range chunk {
				if id < 0 || id >= vocabSize {
					return fmt.Errorf("%w: base id %d outside vocabulary", ErrMalformedFile, id)
				}
			}
			w.WriteString(toChars(chunk))
			w.WriteByte('\n')
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func newBPE(t *tk.Tokenizer, base *MIDILike) (*BPE, error) {
	vocab := t.GetVocab(true)
	b := &BPE{base: base, tok: t}
	size := 0
	for _, id := range vocab {
		size = max(size, id+1)
	}
	b.pieces = make([][]int, size)
	for piece, id := range vocab {
		ids, err := baseIDs(piece, base.VocabSize())
		if err != nil {
			return nil, fmt.Errorf("%w: bpe token %q: %v", ErrMalformedFile, piece, err)
		}
		b.pieces[id] = ids
	}
	for _, sp := range []struct {
		dst  *int
		base int
	}{{&b.pad, base.PadID()}, {&b.bos, base.BOSID()}, {&b.eos, base.EOSID()}} {
		id, ok := vocab[string(rune(CharOffset+sp.base))]
		if !ok {
			return nil, fmt.Errorf("%w: bpe vocabulary lacks special %q", ErrMalformedFile, base.Token(sp.base))
		}
		*sp.dst = id
	}
	return b, nil
}

func baseIDs(piece string, vocabSize int) ([]int, error) {
	out := make([]int, 0, len(piece))
	for _, r := range piece {
		id := int(r) - CharOffset
		if id < 0 || id >= vocabSize {
			return nil, fmt.Errorf("rune %U outside base vocabulary", r)
		}
		out = append(out, id)
	}
	return out, nil
}

func toChars(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteRune(rune(CharOffset + id))
	}
	return sb.String()
}

func (b *BPE) VocabSize() int { return len(b.pieces) }
func (b *BPE) PadID() int     { return b.pad }
func (b *BPE) BOSID() int     { return b.bos }
func (b *BPE) EOSID() int     { return b.eos }

func (b *BPE) EncodeTrack(tr Track, tpq int) ([]int, error) {
	ids, err := b.base.EncodeTrack(tr, tpq)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	enc, err := b.tok.EncodeSingle(toChars(ids), false)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(enc.Ids))
	copy(out, enc.Ids)
	return out, nil
}

func (b *BPE) DecodeTrack(ids []int, tpq int) (Track, error) {
	base := make([]int, 0, 2*len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(b.pieces) || b.pieces[id] == nil {
			return Track{}, fmt.Errorf("%w: bpe token %d at %d outside vocabulary", ErrMalformedFile, id, i)
		}
		base = append(base, b.pieces[id]...)
	}
	return b.base.DecodeTrack(base, tpq)
}

// BPEExists reports whether path holds a tokenizer LoadBPE can read.
func BPEExists(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !fi.IsDir() || fileExists(filepath.Join(path, bpeVocabFile))
}

// LoadTokenizer returns BPE when cfg.BPEPath exists and the base
// MIDILike vocabulary otherwise.
func LoadTokenizer(cfg params.TokenizerConfig) (Tokenizer, error) {
	base, err := NewMIDILike(cfg)
	if err != nil {
		return nil, err
	}
	if !BPEExists(cfg.BPEPath) {
		return base, nil
	}
	return LoadBPE(cfg.BPEPath, base)
}
