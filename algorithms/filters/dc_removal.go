package filters

import (
	"math"
)

// DCRemoval is a one-pole DC blocking filter:
//
//	y[n] = x[n] - x[n-1] + R * y[n-1]
//
// See Julius O. Smith III, "Introduction to Digital Filters with Audio
// Applications", DC Blocker.
type DCRemoval struct {
	poleLocation float64 // R, 0 < R < 1

	x1 float64
	y1 float64
}

// NewDCRemoval creates a DC blocker with R = 0.995 (about 8 Hz at 44.1 kHz).
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff creates a DC blocker whose -3dB point sits near
// cutoffFreq, using R ≈ 1 - 2π·fc/fs.
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	dc := NewDCRemoval()
	if sampleRate > 0 && cutoffFreq > 0 {
		r := 1.0 - (2.0 * math.Pi * cutoffFreq / float64(sampleRate))
		dc.poleLocation = math.Min(math.Max(r, 0.001), 0.999)
	}
	return dc
}

// Process filters a single sample.
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.poleLocation*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessBuffer filters a whole buffer, continuing from the current state.
func (dc *DCRemoval) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = dc.Process(sample)
	}
	return output
}

// Reset clears the filter state between unrelated signals.
func (dc *DCRemoval) Reset() {
	dc.x1 = 0.0
	dc.y1 = 0.0
}

// PoleLocation returns R.
func (dc *DCRemoval) PoleLocation() float64 {
	return dc.poleLocation
}
