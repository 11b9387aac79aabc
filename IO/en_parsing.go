package IO

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yargevad/filepathx"
)

// FindSources expands patterns (which may use **) under root and
// returns the matching regular files sorted and deduplicated.
func FindSources(root string, patterns []string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}
	var out []string
	for _, pat := range patterns {
		matches, err := filepathx.Glob(filepath.Join(root, pat))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pat, err)
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() && isSource(m) {
				out = append(out, m)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func isSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi", ".json":
		base := filepath.Base(path)
		return base != "manifest.json" && base != "vocab.json"
	}
	return false
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// FileLoader reads MIDI or token JSON files into one token sequence.
// MIDI files keep only their first track with notes; token files keep
// their first id list.
type FileLoader struct {
	Tokenizer Tokenizer
}

func (l FileLoader) Load(path string) ([]int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		sc, err := ReadMIDI(path)
		if err != nil {
			return nil, err
		}
		tr, ok := sc.FirstTrack()
		if !ok {
			return nil, nil
		}
		return l.Tokenizer.EncodeTrack(tr, sc.TicksPerQuarter)
	case ".json":
		tracks, err := ReadTokensJSON(path)
		if err != nil {
			return nil, err
		}
		ids := tracks[0]
		for i, id := range ids {
			if id >= l.Tokenizer.VocabSize() {
				return nil, fmt.Errorf("%w: %s: id %d at %d outside vocabulary of %d", ErrMalformedFile, path, id, i, l.Tokenizer.VocabSize())
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("%w: %s: unsupported extension", ErrMalformedFile, path)
	}
}
