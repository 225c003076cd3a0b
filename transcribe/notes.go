package transcribe

// Note is a note event on the frame grid. EndFrame is inclusive.
type Note struct {
	StartFrame int `json:"start_frame"`
	EndFrame   int `json:"end_frame"`
	PitchIndex int `json:"pitch_index"`
	MIDI       int `json:"midi"`
}

// Frames returns the number of frames the note covers.
func (n Note) Frames() int {
	return n.EndFrame - n.StartFrame + 1
}

// Name returns the note name, e.g. "A#4".
func (n Note) Name() string {
	return NoteName(n.MIDI)
}

// ExtractNotes turns a decoded state sequence into note events.
//
// A note starts on every entry into Onset(p), including a re-articulation
// straight out of Sustain(p), and on a Sustain(p) frame that does not
// continue an open note of pitch p (a path may begin in Sustain). Sustain
// frames of the open pitch extend the note; Silence or another pitch closes it.
func ExtractNotes(space *StateSpace, states []int) ([]Note, error) {
	n := space.NumStates()
	notes := make([]Note, 0)

	var current *Note
	prev := -1

	closeNote := func(end int) {
		if current != nil {
			current.EndFrame = end
			notes = append(notes, *current)
			current = nil
		}
	}
	openNote := func(t, pitch int) {
		current = &Note{
			StartFrame: t,
			PitchIndex: pitch,
			MIDI:       space.MIDINote(pitch),
		}
	}

	for t, idx := range states {
		if idx < 0 || idx >= n {
			return nil, shapeError("state index %d at frame %d outside 0..%d", idx, t, n-1)
		}
		st := space.State(idx)

		switch st.Kind {
		case Silence:
			closeNote(t - 1)

		case Onset:
			if current != nil && idx == prev {
				// consecutive onset frames of one pitch belong to one attack
				break
			}
			closeNote(t - 1)
			openNote(t, st.Pitch)

		case Sustain:
			if current != nil && current.PitchIndex == st.Pitch {
				break
			}
			closeNote(t - 1)
			openNote(t, st.Pitch)
		}

		prev = idx
	}
	closeNote(len(states) - 1)

	return notes, nil
}
