package transcribe

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// tuningResolution is the histogram bin width in semitones.
const tuningResolution = 0.01

// EstimateTuning estimates how far, in semitones, the voiced frames sit from
// the A4 = 440 Hz grid. It histograms the deviation of every voiced pitch
// from its nearest semitone and returns the centre of the fullest bin.
// Returns 0 when there are no voiced frames.
func EstimateTuning(frames *FrameSeries) float64 {
	if frames == nil {
		return 0
	}

	residuals := make([]float64, 0, frames.Len())
	for t, f0 := range frames.F0 {
		if t >= len(frames.Voiced) || !frames.Voiced[t] || !(f0 > 0) || math.IsInf(f0, 0) {
			continue
		}
		m := HzToMIDI(f0)
		r := m - math.Round(m)
		// keep inside the histogram's half-open range
		r = math.Min(math.Max(r, -0.5), 0.5-1e-9)
		residuals = append(residuals, r)
	}

	if len(residuals) == 0 {
		return 0
	}
	sort.Float64s(residuals)

	// bins are centred on multiples of the resolution, so an in-tune
	// recording lands in the bin centred on zero
	numBins := int(math.Round(1/tuningResolution)) + 1
	dividers := make([]float64, numBins+1)
	floats.Span(dividers, -0.5-tuningResolution/2, 0.5+tuningResolution/2)

	counts := stat.Histogram(nil, dividers, residuals, nil)
	best := floats.MaxIdx(counts)

	return math.Round((-0.5+float64(best)*tuningResolution)/tuningResolution) * tuningResolution
}
