package spectral

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-midi/logging"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestFFTPeakBin(t *testing.T) {
	// 8 cycles in 256 samples lands exactly on bin 8
	x := sine(8, 256, 256)
	in := append([]float64(nil), x...)

	spectrum := NewFFT().Compute(x)
	require.Len(t, spectrum, 256)

	mags := make([]float64, 129)
	for i := range mags {
		mags[i] = cmplx.Abs(spectrum[i])
	}
	assert.Equal(t, 8, floats.MaxIdx(mags))
	assert.Equal(t, in, x, "input must not be modified")

	back := NewFFT().ComputeInverseReal(spectrum)
	for i := range x {
		assert.InDelta(t, x[i], back[i], 1e-9)
	}
}

func TestSTFTGrid(t *testing.T) {
	const sr = 22050
	signal := sine(1000, sr, sr)

	result, err := NewSTFT().Compute(signal, 2048, 512, sr)
	require.NoError(t, err)

	assert.Equal(t, 1+sr/512, result.TimeFrames)
	assert.Len(t, result.Magnitude, result.TimeFrames)
	assert.Equal(t, 1025, result.FreqBins)
	assert.InDelta(t, float64(sr)/2048, result.FreqResolution, 1e-9)
	assert.InDelta(t, 512.0/sr, result.TimeResolution, 1e-12)

	mid := result.Magnitude[result.TimeFrames/2]
	require.Len(t, mid, 1025)
	peak := floats.MaxIdx(mid)
	assert.InDelta(t, 1000/result.FreqResolution, float64(peak), 1)
}

func TestSTFTRejectsBadInput(t *testing.T) {
	s := NewSTFT()

	_, err := s.Compute(nil, 2048, 512, 22050)
	assert.Error(t, err)
	_, err = s.Compute(make([]float64, 10), 0, 512, 22050)
	assert.Error(t, err)
	_, err = s.Compute(make([]float64, 10), 2048, 0, 22050)
	assert.Error(t, err)
	_, err = s.Compute(make([]float64, 10), 2048, 512, 0)
	assert.Error(t, err)
}

func TestSpectralFlux(t *testing.T) {
	spectrogram := [][]float64{
		{0, 0, 0},
		{0, 0, 0},
		{1, 0, 2},
		{1, 0, 2},
		{0, 0, 0},
	}

	flux := (&SpectralFlux{}).Compute(spectrogram)
	assert.Equal(t, []float64{0, 0, 3, 0, 0}, flux)

	compressed := NewSpectralFlux().Compute(spectrogram)
	require.Len(t, compressed, len(spectrogram))
	assert.InDelta(t, math.Log1p(100)+math.Log1p(200), compressed[2], 1e-12)
	assert.Zero(t, compressed[4], "energy decrease is rectified away")

	assert.Equal(t, []float64{0}, NewSpectralFlux().Compute([][]float64{{1, 2}}))
	assert.Empty(t, NewSpectralFlux().Compute(nil))
}
