package IO

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteReadMIDI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0.mid")
	in := Score{
		TicksPerQuarter: 480,
		Tempo:           120,
		Tracks: []Track{
			{Name: "continuation", Notes: []Note{
				{Start: 0, Duration: 240, Pitch: 60, Velocity: 100},
				{Start: 0, Duration: 480, Pitch: 64, Velocity: 90},
				{Start: 480, Duration: 480, Pitch: 60, Velocity: 80},
			}},
			{Name: "original", Program: 40, Notes: []Note{
				{Start: 120, Duration: 60, Pitch: 72, Velocity: 70},
			}},
		},
	}
	if err := WriteMIDI(path, in); err != nil {
		t.Fatalf("WriteMIDI: %v", err)
	}
	out, err := ReadMIDI(path)
	if err != nil {
		t.Fatalf("ReadMIDI: %v", err)
	}
	if out.TicksPerQuarter != 480 {
		t.Fatalf("tpq = %d", out.TicksPerQuarter)
	}
	if len(out.Tracks) != 2 {
		t.Fatalf("tracks = %d", len(out.Tracks))
	}
	for i := range in.Tracks {
		if out.Tracks[i].Name != in.Tracks[i].Name || out.Tracks[i].Program != in.Tracks[i].Program {
			t.Fatalf("track %d header = %+v", i, out.Tracks[i])
		}
		if !reflect.DeepEqual(out.Tracks[i].Notes, in.Tracks[i].Notes) {
			t.Fatalf("track %d notes:\n got %+v\nwant %+v", i, out.Tracks[i].Notes, in.Tracks[i].Notes)
		}
	}
	first, ok := out.FirstTrack()
	if !ok || first.Name != "continuation" {
		t.Fatalf("FirstTrack = %+v", first)
	}
}

func TestWriteMIDIRejectsBadNote(t *testing.T) {
	sc := Score{TicksPerQuarter: 480, Tracks: []Track{{Notes: []Note{{Pitch: 200, Velocity: 10, Duration: 1}}}}}
	err := WriteMIDI(filepath.Join(t.TempDir(), "x.mid"), sc)
	if !errors.Is(err, ErrMalformedFile) {
		t.Fatalf("expected ErrMalformedFile, got %v", err)
	}
}

func TestReadMIDIGarbage(t *testing.T) {
	path := writeFile(t, "bad.mid", "not a midi file")
	if _, err := ReadMIDI(path); !errors.Is(err, ErrMalformedFile) {
		t.Fatalf("expected ErrMalformedFile, got %v", err)
	}
}
