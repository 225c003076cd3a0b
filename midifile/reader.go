package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// NoteEvent is a note read back from a MIDI file, in ticks.
type NoteEvent struct {
	Key       uint8  `json:"key"`
	Velocity  uint8  `json:"velocity"`
	Channel   uint8  `json:"channel"`
	StartTick uint64 `json:"start_tick"`
	EndTick   uint64 `json:"end_tick"`
}

// FileSummary is the content of a MIDI file relevant to transcriptions.
type FileSummary struct {
	Format          uint16      `json:"format"`
	TicksPerQuarter uint16      `json:"ticks_per_quarter"`
	Tempo           float64     `json:"tempo"` // first tempo event, 0 if none
	Tracks          int         `json:"tracks"`
	Notes           []NoteEvent `json:"notes"`
}

// ReadNotes parses a MIDI file and pairs note-on/note-off events. Notes are
// returned ordered by start tick. A note-on with velocity zero ends a note.
func ReadNotes(r io.Reader) (summary *FileSummary, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading midi file: %w", err)
	}

	// the smf reader can panic on malformed input
	defer func() {
		if rec := recover(); rec != nil {
			summary = nil
			err = fmt.Errorf("error parsing midi file: %v", rec)
		}
	}()

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing midi file: %w", err)
	}

	summary = &FileSummary{
		Format: s.Format(),
		Tracks: len(s.Tracks),
		Notes:  []NoteEvent{},
	}
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		summary.TicksPerQuarter = uint16(mt)
	} else {
		return nil, errors.New("error parsing midi file: only metric time format is supported")
	}

	type openKey struct{ channel, key uint8 }

	for _, track := range s.Tracks {
		open := make(map[openKey]NoteEvent)
		var absTicks uint64

		for _, ev := range track {
			absTicks += uint64(ev.Delta)

			var channel, key, velocity uint8
			var bpm float64
			switch {
			case ev.Message.GetMetaTempo(&bpm):
				if summary.Tempo == 0 {
					summary.Tempo = bpm
				}
			case ev.Message.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
				k := openKey{channel, key}
				if prev, ok := open[k]; ok {
					prev.EndTick = absTicks
					summary.Notes = append(summary.Notes, prev)
				}
				open[k] = NoteEvent{Key: key, Velocity: velocity, Channel: channel, StartTick: absTicks}
			case ev.Message.GetNoteOn(&channel, &key, &velocity),
				ev.Message.GetNoteOff(&channel, &key, &velocity):
				k := openKey{channel, key}
				if n, ok := open[k]; ok {
					n.EndTick = absTicks
					summary.Notes = append(summary.Notes, n)
					delete(open, k)
				}
			}
		}

		// unterminated notes end with the track
		for _, n := range open {
			n.EndTick = absTicks
			summary.Notes = append(summary.Notes, n)
		}
	}

	sort.SliceStable(summary.Notes, func(i, j int) bool {
		if summary.Notes[i].StartTick != summary.Notes[j].StartTick {
			return summary.Notes[i].StartTick < summary.Notes[j].StartTick
		}
		return summary.Notes[i].Key < summary.Notes[j].Key
	})

	return summary, nil
}
