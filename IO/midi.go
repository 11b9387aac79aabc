package IO

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	defaultTPQ   = 480
	defaultTempo = 120.0
)

// ReadMIDI decodes an SMF file. Notes on all channels of a track are
// merged; notes that are never released are dropped.
func ReadMIDI(path string) (Score, error) {
	f, err := smf.ReadFile(path)
	if err != nil {
		return Score{}, fmt.Errorf("%w: %s: %v", ErrMalformedFile, path, err)
	}
	sc := Score{TicksPerQuarter: defaultTPQ}
	if mt, ok := f.TimeFormat.(smf.MetricTicks); ok && mt.Ticks4th() > 0 {
		sc.TicksPerQuarter = int(mt.Ticks4th())
	}

	type key struct{ ch, pitch uint8 }
	for _, events := range f.Tracks {
		tr := Track{Program: -1}
		open := map[key][]Note{}
		tick := 0
		for _, ev := range events {
			tick += int(ev.Delta)
			var (
				ch, k, vel, prog uint8
				bpm              float64
				name             string
			)
			msg := midi.Message(ev.Message)
			switch {
			case msg.GetNoteStart(&ch, &k, &vel):
				id := key{ch, k}
				open[id] = append(open[id], Note{Start: tick, Pitch: int(k), Velocity: int(vel)})
			case msg.GetNoteEnd(&ch, &k):
				id := key{ch, k}
				if q := open[id]; len(q) > 0 {
					n := q[0]
					n.Duration = tick - n.Start
					open[id] = q[1:]
					if n.Duration > 0 {
						tr.Notes = append(tr.Notes, n)
					}
				}
			case msg.GetProgramChange(&ch, &prog):
				if tr.Program < 0 {
					tr.Program = int(prog)
				}
			case ev.Message.GetMetaTempo(&bpm):
				if sc.Tempo == 0 {
					sc.Tempo = bpm
				}
			case ev.Message.GetMetaTrackName(&name):
				tr.Name = name
			}
		}
		if tr.Program < 0 {
			tr.Program = 0
		}
		sortNotes(tr.Notes)
		sc.Tracks = append(sc.Tracks, tr)
	}
	if sc.Tempo == 0 {
		sc.Tempo = defaultTempo
	}
	return sc, nil
}

type timed struct {
	tick int
	off  bool
	msg  midi.Message
}

// WriteMIDI encodes sc as a format 1 SMF with one named track per Track.
// Channel 9 (drums) is skipped when assigning channels.
func WriteMIDI(path string, sc Score) error {
	tpq := sc.TicksPerQuarter
	if tpq <= 0 || tpq > 0x7FFF {
		return fmt.Errorf("%w: ticks per quarter %d", ErrMalformedFile, tpq)
	}
	if len(sc.Tracks) > 15 {
		return fmt.Errorf("%w: %d tracks exceed the available channels", ErrMalformedFile, len(sc.Tracks))
	}
	tempo := sc.Tempo
	if tempo <= 0 {
		tempo = defaultTempo
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(tpq)
	for i, t := range sc.Tracks {
		ch := uint8(i)
		if ch >= 9 {
			ch++
		}
		if t.Program < 0 || t.Program > 127 {
			return fmt.Errorf("%w: track %q program %d", ErrMalformedFile, t.Name, t.Program)
		}
		evs := make([]timed, 0, 2*len(t.Notes))
		for _, n := range t.Notes {
			if n.Pitch < 0 || n.Pitch > 127 || n.Velocity < 1 || n.Velocity > 127 || n.Start < 0 || n.Duration <= 0 {
				return fmt.Errorf("%w: track %q has invalid note %+v", ErrMalformedFile, t.Name, n)
			}
			evs = append(evs,
				timed{tick: n.Start, msg: midi.NoteOn(ch, uint8(n.Pitch), uint8(n.Velocity))},
				timed{tick: n.End(), off: true, msg: midi.NoteOff(ch, uint8(n.Pitch))},
			)
		}
		// releases before attacks on the same tick
		sort.SliceStable(evs, func(a, b int) bool {
			if evs[a].tick != evs[b].tick {
				return evs[a].tick < evs[b].tick
			}
			return evs[a].off && !evs[b].off
		})

		var tr smf.Track
		tr.Add(0, smf.MetaTrackSequenceName(t.Name))
		if i == 0 {
			tr.Add(0, smf.MetaTempo(tempo))
		}
		tr.Add(0, midi.ProgramChange(ch, uint8(t.Program)))
		last := 0
		for _, e := range evs {
			tr.Add(uint32(e.tick-last), e.msg)
			last = e.tick
		}
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			return err
		}
	}
	return s.WriteFile(path)
}
