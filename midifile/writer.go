// Package midifile writes transcribed notes as Standard MIDI Files and
// reads them back.
package midifile

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/sonido-midi/transcribe"
)

// Defaults for Writer
const (
	DefaultTicksPerQuarter = 1024
	DefaultVelocity        = 100
)

// Writer serializes timed notes into a single-track SMF with one tempo
// event and constant velocity.
type Writer struct {
	TicksPerQuarter uint16 `json:"ticks_per_quarter"`
	Velocity        uint8  `json:"velocity"`
	Channel         uint8  `json:"channel"`
	TrackName       string `json:"track_name,omitempty"`
}

// NewWriter creates a writer with default resolution and velocity.
func NewWriter() *Writer {
	return &Writer{
		TicksPerQuarter: DefaultTicksPerQuarter,
		Velocity:        DefaultVelocity,
	}
}

// Validate checks the writer settings.
func (w *Writer) Validate() error {
	if w.TicksPerQuarter == 0 || w.TicksPerQuarter > 0x7FFF {
		return fmt.Errorf("%w: ticks per quarter must be in [1, 32767], got %d", transcribe.ErrConfiguration, w.TicksPerQuarter)
	}
	if w.Velocity == 0 || w.Velocity > 127 {
		return fmt.Errorf("%w: velocity must be in [1, 127], got %d", transcribe.ErrConfiguration, w.Velocity)
	}
	if w.Channel > 15 {
		return fmt.Errorf("%w: channel must be in [0, 15], got %d", transcribe.ErrConfiguration, w.Channel)
	}
	return nil
}

type noteEvent struct {
	tick uint32
	off  bool
	key  uint8
}

// Build assembles the SMF for notes at bpm.
func (w *Writer) Build(bpm float64, notes []transcribe.TimedNote) (*smf.SMF, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return nil, fmt.Errorf("%w: tempo must be positive and finite, got %v", transcribe.ErrConfiguration, bpm)
	}

	events, err := w.noteEvents(notes)
	if err != nil {
		return nil, err
	}

	var track smf.Track
	if w.TrackName != "" {
		track.Add(0, smf.MetaTrackSequenceName(w.TrackName))
	}
	track.Add(0, smf.MetaTempo(bpm))

	var last uint32
	for _, ev := range events {
		delta := ev.tick - last
		if ev.off {
			track.Add(delta, midi.NoteOff(w.Channel, ev.key))
		} else {
			track.Add(delta, midi.NoteOn(w.Channel, ev.key, w.Velocity))
		}
		last = ev.tick
	}
	track.Close(0)

	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(w.TicksPerQuarter)
	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	return s, nil
}

// Write serializes notes at bpm to out.
func (w *Writer) Write(out io.Writer, bpm float64, notes []transcribe.TimedNote) error {
	s, err := w.Build(bpm, notes)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write midi: %w", err)
	}
	return nil
}

// noteEvents converts notes to absolute-tick events sorted by time, with
// note-offs ahead of note-ons on the same tick. Every note lasts at least
// one tick.
func (w *Writer) noteEvents(notes []transcribe.TimedNote) ([]noteEvent, error) {
	tpq := float64(w.TicksPerQuarter)
	events := make([]noteEvent, 0, 2*len(notes))

	for i, n := range notes {
		if n.MIDI < 0 || n.MIDI > 127 {
			return nil, fmt.Errorf("%w: note %d has MIDI number %d", transcribe.ErrInvalidInput, i, n.MIDI)
		}
		if n.OnsetBeats < 0 || n.DurationBeats < 0 || math.IsNaN(n.OnsetBeats) || math.IsNaN(n.DurationBeats) {
			return nil, fmt.Errorf("%w: note %d has onset %v and duration %v beats",
				transcribe.ErrInvalidInput, i, n.OnsetBeats, n.DurationBeats)
		}

		on := math.Round(n.OnsetBeats * tpq)
		off := math.Round((n.OnsetBeats + n.DurationBeats) * tpq)
		if off > math.MaxUint32 {
			return nil, fmt.Errorf("%w: note %d ends beyond the representable tick range", transcribe.ErrInvalidInput, i)
		}
		if off <= on {
			off = on + 1
		}

		key := uint8(n.MIDI)
		events = append(events,
			noteEvent{tick: uint32(on), key: key},
			noteEvent{tick: uint32(off), off: true, key: key},
		)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})
	return events, nil
}
