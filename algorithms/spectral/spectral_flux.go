package spectral

import (
	"math"
)

// SpectralFlux computes the half-wave rectified change between consecutive
// spectrogram frames.
type SpectralFlux struct {
	// Compression is the gain inside log(1 + C·|X|). Zero disables
	// log compression.
	Compression float64
}

// NewSpectralFlux creates a flux calculator with log compression, which
// keeps quiet notes from being masked by loud ones.
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{Compression: 100}
}

// Compute returns one flux value per spectrogram frame. Frame 0 has no
// predecessor and is zero, so the output is aligned with the input frames.
func (sf *SpectralFlux) Compute(spectrogram [][]float64) []float64 {
	flux := make([]float64, len(spectrogram))
	if len(spectrogram) < 2 {
		return flux
	}

	prev := sf.compress(spectrogram[0])
	for t := 1; t < len(spectrogram); t++ {
		cur := sf.compress(spectrogram[t])
		sum := 0.0
		for f := 0; f < len(cur) && f < len(prev); f++ {
			if diff := cur[f] - prev[f]; diff > 0 {
				sum += diff
			}
		}
		flux[t] = sum
		prev = cur
	}

	return flux
}

func (sf *SpectralFlux) compress(frame []float64) []float64 {
	if sf.Compression <= 0 {
		return frame
	}
	out := make([]float64, len(frame))
	for i, v := range frame {
		out[i] = math.Log1p(sf.Compression * v)
	}
	return out
}
