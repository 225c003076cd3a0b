package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestStateSpaceLayout(t *testing.T) {
	ss, err := NewStateSpace(60, 62)
	require.NoError(t, err)

	assert.Equal(t, 7, ss.NumStates())
	assert.Equal(t, 3, ss.NumPitches())
	assert.Equal(t, State{Kind: Silence}, ss.State(0))
	assert.Equal(t, State{Kind: Onset, Pitch: 0}, ss.State(1))
	assert.Equal(t, State{Kind: Sustain, Pitch: 0}, ss.State(2))
	assert.Equal(t, State{Kind: Sustain, Pitch: 2}, ss.State(6))

	for i := range ss.NumStates() {
		assert.Equal(t, i, ss.Index(ss.State(i)))
	}

	assert.Equal(t, 61, ss.MIDINote(1))
	assert.InDelta(t, 261.6256, ss.Frequency(0), 1e-3)
	assert.Equal(t, "Onset(1)", ss.State(3).String())
}

func TestNewStateSpaceRejectsEmptyRange(t *testing.T) {
	_, err := NewStateSpace(70, 60)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestBuildTransitionMatrix(t *testing.T) {
	ss, err := NewStateSpace(45, 76)
	require.NoError(t, err)

	const sustain, silence = 0.9, 0.7
	tm, err := BuildTransitionMatrix(ss, sustain, silence)
	require.NoError(t, err)

	n := ss.NumStates()
	p := float64(ss.NumPitches())

	t.Run("rows are distributions", func(t *testing.T) {
		assert.NoError(t, CheckStochastic(tm, 1e-9))
		row := make([]float64, n)
		for i := range n {
			mat.Row(row, i, tm)
			assert.InDelta(t, 1.0, floats.Sum(row), 1e-9, "row %d", i)
		}
	})

	t.Run("onset always moves to its sustain", func(t *testing.T) {
		for q := range ss.NumPitches() {
			onset := ss.Index(State{Kind: Onset, Pitch: q})
			sus := ss.Index(State{Kind: Sustain, Pitch: q})
			for j := range n {
				want := 0.0
				if j == sus {
					want = 1
				}
				assert.Equal(t, want, tm.At(onset, j))
			}
		}
	})

	t.Run("sustain row", func(t *testing.T) {
		sus := ss.Index(State{Kind: Sustain, Pitch: 4})
		other := (1 - sustain) / (p + 1)

		assert.InDelta(t, sustain, tm.At(sus, sus), 1e-12)
		assert.InDelta(t, other, tm.At(sus, 0), 1e-12)
		assert.InDelta(t, other, tm.At(sus, ss.Index(State{Kind: Onset, Pitch: 4})), 1e-12)
		assert.InDelta(t, other, tm.At(sus, ss.Index(State{Kind: Onset, Pitch: 0})), 1e-12)
		assert.Zero(t, tm.At(sus, ss.Index(State{Kind: Sustain, Pitch: 5})))
	})

	t.Run("silence row", func(t *testing.T) {
		assert.InDelta(t, silence, tm.At(0, 0), 1e-12)
		for q := range ss.NumPitches() {
			assert.InDelta(t, (1-silence)/p, tm.At(0, ss.Index(State{Kind: Onset, Pitch: q})), 1e-12)
			assert.Zero(t, tm.At(0, ss.Index(State{Kind: Sustain, Pitch: q})))
		}
	})
}

func TestBuildTransitionMatrixSinglePitch(t *testing.T) {
	ss, err := NewStateSpace(69, 69)
	require.NoError(t, err)

	tm, err := BuildTransitionMatrix(ss, 0.5, 0.5)
	require.NoError(t, err)
	assert.NoError(t, CheckStochastic(tm, 1e-9))
	assert.Equal(t, 1.0, tm.At(1, 2))
}

func TestBuildTransitionMatrixRejectsProbabilities(t *testing.T) {
	ss, err := NewStateSpace(60, 61)
	require.NoError(t, err)

	tests := []struct {
		name             string
		sustain, silence float64
	}{
		{"sustain zero", 0, 0.5},
		{"sustain one", 1, 0.5},
		{"silence zero", 0.5, 0},
		{"silence above one", 0.5, 1.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTransitionMatrix(ss, tt.sustain, tt.silence)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestCheckStochastic(t *testing.T) {
	assert.ErrorIs(t, CheckStochastic(mat.NewDense(2, 3, nil), 1e-9), ErrInputShape)
	assert.ErrorIs(t, CheckStochastic(mat.NewDense(2, 2, []float64{0.5, 0.4, 0, 1}), 1e-9), ErrInputShape)
	assert.ErrorIs(t, CheckStochastic(mat.NewDense(2, 2, []float64{1.5, -0.5, 0, 1}), 1e-9), ErrInputShape)
	assert.NoError(t, CheckStochastic(mat.NewDense(2, 2, []float64{0.5, 0.5, 0, 1}), 1e-9))
}
