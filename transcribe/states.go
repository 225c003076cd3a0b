package transcribe

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// StateKind tags a hidden state.
type StateKind uint8

const (
	Silence StateKind = iota
	Onset
	Sustain
)

func (k StateKind) String() string {
	switch k {
	case Silence:
		return "silence"
	case Onset:
		return "onset"
	case Sustain:
		return "sustain"
	default:
		return "unknown"
	}
}

// State is one hidden state of the note model. Pitch is the pitch index and
// is ignored for Silence.
type State struct {
	Kind  StateKind
	Pitch int
}

func (s State) String() string {
	if s.Kind == Silence {
		return "Silence"
	}
	if s.Kind == Onset {
		return fmt.Sprintf("Onset(%d)", s.Pitch)
	}
	return fmt.Sprintf("Sustain(%d)", s.Pitch)
}

// StateSpace enumerates the 2P+1 states for a pitch range.
//
// Index layout:
//
//	0       Silence
//	2p + 1  Onset(p)
//	2p + 2  Sustain(p)
type StateSpace struct {
	noteMin    int
	numPitches int
	states     []State
}

// NewStateSpace builds the state set for MIDI notes noteMin..noteMax.
func NewStateSpace(noteMin, noteMax int) (*StateSpace, error) {
	numPitches := noteMax - noteMin + 1
	if numPitches < 1 {
		return nil, configError("pitch range %d..%d has no pitches", noteMin, noteMax)
	}

	states := make([]State, 2*numPitches+1)
	states[0] = State{Kind: Silence}
	for p := range numPitches {
		states[2*p+1] = State{Kind: Onset, Pitch: p}
		states[2*p+2] = State{Kind: Sustain, Pitch: p}
	}

	return &StateSpace{
		noteMin:    noteMin,
		numPitches: numPitches,
		states:     states,
	}, nil
}

// NumStates returns N = 2P + 1.
func (ss *StateSpace) NumStates() int {
	return len(ss.states)
}

// NumPitches returns P.
func (ss *StateSpace) NumPitches() int {
	return ss.numPitches
}

// State returns the state at index i.
func (ss *StateSpace) State(i int) State {
	return ss.states[i]
}

// Index returns the matrix index of a state.
func (ss *StateSpace) Index(s State) int {
	switch s.Kind {
	case Onset:
		return 2*s.Pitch + 1
	case Sustain:
		return 2*s.Pitch + 2
	default:
		return 0
	}
}

// MIDINote maps a pitch index to its MIDI note number.
func (ss *StateSpace) MIDINote(p int) int {
	return ss.noteMin + p
}

// Frequency maps a pitch index to its equal-tempered frequency in Hz.
func (ss *StateSpace) Frequency(p int) float64 {
	return MIDIToHz(float64(ss.MIDINote(p)))
}

// BuildTransitionMatrix builds the row-stochastic transition matrix mixing
// the two-state acoustic model (onset, sustain) with a uniform
// note-to-note model.
//
// Sustain rows spread 1-sustain evenly over every onset and silence, so a
// sustained note may be re-articulated at the same pitch. The silence row
// keeps its own self-transition and spreads the rest over the onsets.
func BuildTransitionMatrix(ss *StateSpace, sustain, silence float64) (*mat.Dense, error) {
	if ss == nil || ss.numPitches < 1 {
		return nil, configError("state space needs at least one pitch")
	}
	if !openUnit(sustain) {
		return nil, configError("sustain probability must be in (0,1), got %v", sustain)
	}
	if !openUnit(silence) {
		return nil, configError("silence probability must be in (0,1), got %v", silence)
	}

	n := ss.NumStates()
	p := ss.numPitches
	t := mat.NewDense(n, n, nil)

	silenceToOnset := (1 - silence) / float64(p)
	sustainToOther := (1 - sustain) / float64(p+1)

	t.Set(0, 0, silence)
	for q := range p {
		t.Set(0, ss.Index(State{Kind: Onset, Pitch: q}), silenceToOnset)
	}

	for i := range p {
		onset := ss.Index(State{Kind: Onset, Pitch: i})
		sus := ss.Index(State{Kind: Sustain, Pitch: i})

		t.Set(onset, sus, 1)

		t.Set(sus, 0, sustainToOther)
		for q := range p {
			t.Set(sus, ss.Index(State{Kind: Onset, Pitch: q}), sustainToOther)
		}
		t.Set(sus, sus, sustain)
	}

	return t, nil
}

// CheckStochastic verifies every row of m is a probability distribution
// within tol.
func CheckStochastic(m mat.Matrix, tol float64) error {
	rows, cols := m.Dims()
	if rows != cols {
		return shapeError("transition matrix is %dx%d, want square", rows, cols)
	}

	row := make([]float64, cols)
	for i := range rows {
		mat.Row(row, i, m)
		for j, v := range row {
			if v < 0 {
				return shapeError("transition[%d][%d] = %v is negative", i, j, v)
			}
		}
		if sum := floats.Sum(row); !scalar.EqualWithinAbs(sum, 1, tol) {
			return shapeError("transition row %d sums to %v", i, sum)
		}
	}
	return nil
}
