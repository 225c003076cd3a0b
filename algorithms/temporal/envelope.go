package temporal

import (
	"github.com/RyanBlaney/sonido-midi/algorithms/common"
)

// Envelope provides amplitude envelope extraction
type Envelope struct{}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// ComputeRMS computes the RMS envelope over frames of frameSize samples
// taken every hopSize samples. Trailing samples that do not fill a frame
// are ignored.
func (e *Envelope) ComputeRMS(signal []float64, frameSize, hopSize int) []float64 {
	if len(signal) < frameSize || frameSize <= 0 || hopSize <= 0 {
		return []float64{}
	}

	numFrames := (len(signal)-frameSize)/hopSize + 1
	envelope := make([]float64, numFrames)

	for i := range numFrames {
		startIdx := i * hopSize
		envelope[i] = common.RMS(signal[startIdx : startIdx+frameSize])
	}

	return envelope
}

// ComputeCenteredRMS computes one RMS value per centred frame, on the same
// grid as the STFT and the pitch tracker.
func (e *Envelope) ComputeCenteredRMS(signal []float64, frameSize, hopSize int) []float64 {
	numFrames := common.NumFrames(len(signal), hopSize)
	envelope := make([]float64, numFrames)

	var frame []float64
	for t := range numFrames {
		frame = common.CenteredFrame(signal, t*hopSize, frameSize, frame)
		envelope[t] = common.RMS(frame)
	}

	return envelope
}
