package estimate

import (
	"github.com/RyanBlaney/sonido-midi/algorithms/temporal"
)

// OnsetTempoEstimator estimates tempo from onset intervals with an
// envelope autocorrelation fallback.
type OnsetTempoEstimator struct {
	tempo *temporal.TempoEstimation
}

// NewTempoEstimator creates a tempo estimator on the given frame grid.
func NewTempoEstimator(frameLength, hopLength int) *OnsetTempoEstimator {
	te := temporal.NewTempoEstimation()
	if frameLength > 0 {
		te.FrameLength = frameLength
	}
	if hopLength > 0 {
		te.HopLength = hopLength
	}
	return &OnsetTempoEstimator{tempo: te}
}

func (o *OnsetTempoEstimator) EstimateTempo(samples []float64, sampleRate int) (float64, error) {
	return o.tempo.EstimateTempo(samples, sampleRate)
}

// FixedTempo is a TempoEstimator that always reports the same tempo.
type FixedTempo float64

func (f FixedTempo) EstimateTempo(samples []float64, sampleRate int) (float64, error) {
	return float64(f), nil
}
