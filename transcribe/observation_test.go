package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, tuning float64) (*ObservationModel, *StateSpace) {
	t.Helper()
	cfg := DefaultConfig()
	ss, err := NewStateSpace(cfg.NoteMin, cfg.NoteMax)
	require.NoError(t, err)
	om, err := NewObservationModel(cfg, ss, tuning)
	require.NoError(t, err)
	return om, ss
}

func TestScoreUnvoiced(t *testing.T) {
	om, ss := newTestModel(t, 0)

	scores, err := om.Score(Observation{F0: 0, Voiced: false, VoicedProb: 0.05}, nil)
	require.NoError(t, err)
	require.Len(t, scores, ss.NumStates())

	assert.Equal(t, DefaultConfig().VoicingAccuracy, scores[0])
	for _, s := range scores[1:] {
		assert.Equal(t, ScoreFloor, s)
	}
}

func TestScoreVoicedFavoursMatchingPitch(t *testing.T) {
	om, ss := newTestModel(t, 0)
	a4 := State{Pitch: 69 - 45}

	t.Run("onset frame", func(t *testing.T) {
		scores, err := om.Score(Observation{F0: 440, Voiced: true, VoicedProb: 1, Onset: true}, nil)
		require.NoError(t, err)

		onset := scores[ss.Index(State{Kind: Onset, Pitch: a4.Pitch})]
		sustain := scores[ss.Index(State{Kind: Sustain, Pitch: a4.Pitch})]
		assert.Greater(t, onset, sustain)
		assert.Greater(t, onset, scores[0])
		assert.Greater(t, onset, scores[ss.Index(State{Kind: Onset, Pitch: a4.Pitch + 1})])
	})

	t.Run("sustain frame", func(t *testing.T) {
		scores, err := om.Score(Observation{F0: 440, Voiced: true, VoicedProb: 1}, nil)
		require.NoError(t, err)

		onset := scores[ss.Index(State{Kind: Onset, Pitch: a4.Pitch})]
		sustain := scores[ss.Index(State{Kind: Sustain, Pitch: a4.Pitch})]
		assert.Greater(t, sustain, onset)
	})

	t.Run("pitch outside detune window", func(t *testing.T) {
		scores, err := om.Score(Observation{F0: 440, Voiced: true, VoicedProb: 1}, nil)
		require.NoError(t, err)

		far := scores[ss.Index(State{Kind: Sustain, Pitch: a4.Pitch + 3})]
		assert.Equal(t, ScoreFloor, far)
	})
}

func TestScoreVoicedSilence(t *testing.T) {
	om, ss := newTestModel(t, 0)
	cfg := DefaultConfig()
	a4 := ss.Index(State{Kind: Sustain, Pitch: 69 - 45})

	tests := []struct {
		prob    float64
		silence float64
	}{
		{1, ScoreFloor},
		{0.5, 0.5 * (1 - cfg.VoicingAccuracy)},
		{0.2, 0.8 * (1 - cfg.VoicingAccuracy)},
	}

	for _, tt := range tests {
		scores, err := om.Score(Observation{F0: 440, Voiced: true, VoicedProb: tt.prob}, nil)
		require.NoError(t, err)
		assert.InDelta(t, tt.silence, scores[0], 1e-12, "v=%v", tt.prob)
		// a voiced frame above the threshold favours the sounding pitch
		assert.Greater(t, scores[a4], scores[0], "v=%v", tt.prob)
	}
}

func TestScoreNeverBelowFloor(t *testing.T) {
	om, _ := newTestModel(t, 0)

	for _, obs := range []Observation{
		{F0: 440, Voiced: true, VoicedProb: 1, Onset: true},
		{F0: 110, Voiced: true, VoicedProb: 0.5},
		{F0: 5000, Voiced: true, VoicedProb: 0.9},
		{F0: 0, Voiced: false, VoicedProb: 0},
	} {
		scores, err := om.Score(obs, nil)
		require.NoError(t, err)
		for i, s := range scores {
			assert.GreaterOrEqual(t, s, ScoreFloor, "state %d", i)
		}
	}
}

func TestScoreTuningShiftsEstimate(t *testing.T) {
	om, ss := newTestModel(t, 0.4)

	// 440 Hz with +0.4 tuning reads as MIDI 68.6, nearest candidate 69
	// still wins but G#4 scores higher than without the offset.
	scores, err := om.Score(Observation{F0: 440, Voiced: true, VoicedProb: 1}, nil)
	require.NoError(t, err)

	plain, _ := newTestModel(t, 0)
	plainScores, err := plain.Score(Observation{F0: 440, Voiced: true, VoicedProb: 1}, nil)
	require.NoError(t, err)

	gs4 := ss.Index(State{Kind: Sustain, Pitch: 68 - 45})
	assert.Greater(t, scores[gs4], plainScores[gs4])
}

func TestPitchWeightIsMonotone(t *testing.T) {
	om, _ := newTestModel(t, 0)
	cfg := DefaultConfig()

	prev := om.PitchWeight(0)
	assert.InDelta(t, cfg.PitchAccuracy, prev, 1e-12)

	for d := 0.05; d <= 3; d += 0.05 {
		w := om.PitchWeight(d)
		assert.LessOrEqual(t, w, prev, "distance %v", d)
		if d > cfg.DetuneTolerance+0.5 {
			assert.Zero(t, w, "distance %v", d)
		}
		prev = w
	}
}

func TestScoreRejectsInvalidObservations(t *testing.T) {
	om, ss := newTestModel(t, 0)

	_, err := om.Score(Observation{F0: 440, Voiced: true, VoicedProb: 1.5}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = om.Score(Observation{F0: -10, Voiced: true, VoicedProb: 0.9}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = om.Score(Observation{F0: 440, Voiced: true, VoicedProb: 0.9}, make([]float64, ss.NumStates()-1))
	assert.ErrorIs(t, err, ErrInputShape)
}

func TestNewObservationModelRejectsTuning(t *testing.T) {
	cfg := DefaultConfig()
	ss, err := NewStateSpace(cfg.NoteMin, cfg.NoteMax)
	require.NoError(t, err)

	_, err = NewObservationModel(cfg, ss, 0.7)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLikelihoodsShape(t *testing.T) {
	om, ss := newTestModel(t, 0)

	frames := &FrameSeries{
		F0:         []float64{0, 440, 440},
		Voiced:     []bool{false, true, true},
		VoicedProb: []float64{0, 1, 1},
		Onset:      []bool{false, true, false},
	}
	m, err := om.Likelihoods(frames)
	require.NoError(t, err)

	rows, cols := m.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, ss.NumStates(), cols)

	frames.Onset = frames.Onset[:2]
	_, err = om.Likelihoods(frames)
	assert.ErrorIs(t, err, ErrInputShape)
}
