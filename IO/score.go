package IO

import (
	"errors"
	"sort"
)

// ErrMalformedFile: file content does not match the expected MIDI or token schema.
var ErrMalformedFile = errors.New("malformed file")

// Note times are in MIDI ticks.
type Note struct {
	Start    int
	Duration int
	Pitch    int
	Velocity int
}

func (n Note) End() int { return n.Start + n.Duration }

type Track struct {
	Name    string
	Program int
	Notes   []Note
}

// Score is the decoded content of one MIDI file.
type Score struct {
	TicksPerQuarter int
	Tempo           float64 // BPM
	Tracks          []Track
}

// FirstTrack returns the first track holding notes; the rest of the
// score is dropped before tokenizing.
func (s Score) FirstTrack() (Track, bool) {
	for _, tr := range s.Tracks {
		if len(tr.Notes) > 0 {
			return tr, true
		}
	}
	return Track{}, false
}

func sortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Start != notes[j].Start {
			return notes[i].Start < notes[j].Start
		}
		return notes[i].Pitch < notes[j].Pitch
	})
}
