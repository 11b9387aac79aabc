package IO

import (
	"fmt"
	"math"
	"sort"

	"github.com/manningwu07/MidiGPT/params"
)

// Tokenizer converts one track to token ids and back.
type Tokenizer interface {
	EncodeTrack(tr Track, tpq int) ([]int, error)
	DecodeTrack(ids []int, tpq int) (Track, error)
	Token(id int) string
	VocabSize() int
	PadID() int
	BOSID() int
	EOSID() int
}

// MIDILike is the base event vocabulary:
//
//	[specials][NoteOn pitch][NoteOff pitch][Velocity bin][TimeShift 1..maxShift]
//
// Time is quantized to cfg.BeatRes steps per quarter note.
type MIDILike struct {
	cfg        params.TokenizerConfig
	nPitch     int
	noteOn     int
	noteOff    int
	velocity   int
	timeShift  int
	maxShift   int
	size       int
	velocities []int // bin -> MIDI velocity
}

func NewMIDILike(cfg params.TokenizerConfig) (*MIDILike, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &MIDILike{cfg: cfg, nPitch: cfg.PitchHigh - cfg.PitchLow, maxShift: cfg.MaxShiftBeats * cfg.BeatRes}
	m.noteOn = len(cfg.SpecialTokens)
	m.noteOff = m.noteOn + m.nPitch
	m.velocity = m.noteOff + m.nPitch
	m.timeShift = m.velocity + cfg.NumVelocities
	m.size = m.timeShift + m.maxShift
	m.velocities = make([]int, cfg.NumVelocities)
	for b := range m.velocities {
		m.velocities[b] = int(math.Round(float64(b+1) * 127 / float64(cfg.NumVelocities)))
	}
	return m, nil
}

func (m *MIDILike) VocabSize() int { return m.size }
func (m *MIDILike) PadID() int     { return 0 }
func (m *MIDILike) BOSID() int     { return 1 }
func (m *MIDILike) EOSID() int     { return 2 }

// Token returns a readable name for id, e.g. "NoteOn_60" or "TimeShift_4".
func (m *MIDILike) Token(id int) string {
	switch {
	case id < 0 || id >= m.size:
		return fmt.Sprintf("<unk:%d>", id)
	case id < m.noteOn:
		return m.cfg.SpecialTokens[id]
	case id < m.noteOff:
		return fmt.Sprintf("NoteOn_%d", m.cfg.PitchLow+id-m.noteOn)
	case id < m.velocity:
		return fmt.Sprintf("NoteOff_%d", m.cfg.PitchLow+id-m.noteOff)
	case id < m.timeShift:
		return fmt.Sprintf("Velocity_%d", m.velocities[id-m.velocity])
	default:
		return fmt.Sprintf("TimeShift_%d", id-m.timeShift+1)
	}
}

func (m *MIDILike) velocityBin(v int) int {
	b := int(math.Round(float64(v)*float64(m.cfg.NumVelocities)/127)) - 1
	return min(max(b, 0), m.cfg.NumVelocities-1)
}

func (m *MIDILike) toStep(tick, tpq int) int {
	return int(math.Round(float64(tick) * float64(m.cfg.BeatRes) / float64(tpq)))
}

func (m *MIDILike) toTick(step, tpq int) int {
	return step * tpq / m.cfg.BeatRes
}

type event struct {
	step  int
	off   bool
	pitch int
	vel   int
}

// EncodeTrack tokenizes the notes of tr. Pitches outside the configured
// range are dropped.
func (m *MIDILike) EncodeTrack(tr Track, tpq int) ([]int, error) {
	if tpq <= 0 {
		return nil, fmt.Errorf("%w: ticks per quarter %d", ErrMalformedFile, tpq)
	}
	evs := make([]event, 0, 2*len(tr.Notes))
	for _, n := range tr.Notes {
		if n.Pitch < m.cfg.PitchLow || n.Pitch >= m.cfg.PitchHigh {
			continue
		}
		on := m.toStep(n.Start, tpq)
		off := max(m.toStep(n.End(), tpq), on+1)
		evs = append(evs,
			event{step: on, pitch: n.Pitch, vel: n.Velocity},
			event{step: off, off: true, pitch: n.Pitch},
		)
	}
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if a.step != b.step {
			return a.step < b.step
		}
		if a.off != b.off {
			return a.off
		}
		return a.pitch < b.pitch
	})

	ids := make([]int, 0, 3*len(evs)/2)
	cur := 0
	for _, e := range evs {
		for d := e.step - cur; d > 0; {
			k := min(d, m.maxShift)
			ids = append(ids, m.timeShift+k-1)
			d -= k
		}
		cur = e.step
		p := e.pitch - m.cfg.PitchLow
		if e.off {
			ids = append(ids, m.noteOff+p)
			continue
		}
		ids = append(ids, m.velocity+m.velocityBin(e.vel), m.noteOn+p)
	}
	return ids, nil
}

type pending struct {
	step int
	vel  int
}

// DecodeTrack rebuilds notes from ids. Special tokens are skipped and a
// NoteOff releases the oldest sounding note of that pitch; notes still
// sounding at the end last one step past the final time.
func (m *MIDILike) DecodeTrack(ids []int, tpq int) (Track, error) {
	if tpq <= 0 {
		return Track{}, fmt.Errorf("%w: ticks per quarter %d", ErrMalformedFile, tpq)
	}
	var tr Track
	open := map[int][]pending{}
	vel := m.velocities[m.velocityBin(100)]
	step := 0
	emit := func(pitch int, p pending, end int) {
		tr.Notes = append(tr.Notes, Note{
			Start:    m.toTick(p.step, tpq),
			Duration: max(m.toTick(end, tpq)-m.toTick(p.step, tpq), 1),
			Pitch:    pitch,
			Velocity: p.vel,
		})
	}
	for i, id := range ids {
		switch {
		case id < 0 || id >= m.size:
			return Track{}, fmt.Errorf("%w: token %d at %d outside vocabulary of %d", ErrMalformedFile, id, i, m.size)
		case id < m.noteOn:
			// special
		case id < m.noteOff:
			pitch := m.cfg.PitchLow + id - m.noteOn
			open[pitch] = append(open[pitch], pending{step: step, vel: vel})
		case id < m.velocity:
			pitch := m.cfg.PitchLow + id - m.noteOff
			if q := open[pitch]; len(q) > 0 {
				emit(pitch, q[0], max(step, q[0].step+1))
				open[pitch] = q[1:]
			}
		case id < m.timeShift:
			vel = m.velocities[id-m.velocity]
		default:
			step += id - m.timeShift + 1
		}
	}
	pitches := make([]int, 0, len(open))
	for p := range open {
		pitches = append(pitches, p)
	}
	sort.Ints(pitches)
	for _, p := range pitches {
		for _, q := range open[p] {
			emit(p, q, max(step, q.step)+1)
		}
	}
	sortNotes(tr.Notes)
	return tr, nil
}
