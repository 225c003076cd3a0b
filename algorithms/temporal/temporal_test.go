package temporal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/logging"
)

const testRate = 22050

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

// toneBursts places a 440 Hz burst of the given length at each start sample.
func toneBursts(n int, starts []int, length int) []float64 {
	signal := make([]float64, n)
	for _, s := range starts {
		for i := 0; i < length && s+i < n; i++ {
			signal[s+i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/testRate)
		}
	}
	return signal
}

func TestDetectOnsetFramesFindsBursts(t *testing.T) {
	starts := []int{testRate / 2, testRate, 3 * testRate / 2}
	signal := toneBursts(2*testRate, starts, testRate/5)

	od := NewOnsetDetection()
	frames, err := od.DetectOnsetFrames(signal, testRate, 2048, 512)
	require.NoError(t, err)
	require.NotEmpty(t, frames)

	for _, s := range starts {
		want := s / 512
		found := false
		for _, f := range frames {
			if f >= want-3 && f <= want+3 {
				found = true
			}
		}
		assert.True(t, found, "no onset near frame %d in %v", want, frames)
	}

	// nothing before the first burst reaches into the window
	assert.GreaterOrEqual(t, frames[0], starts[0]/512-3)

	for i := 1; i < len(frames); i++ {
		assert.Greater(t, frames[i], frames[i-1])
	}

	samples, err := od.DetectOnsets(signal, testRate, 2048, 512)
	require.NoError(t, err)
	require.Len(t, samples, len(frames))
	assert.Equal(t, frames[0]*512, samples[0])
}

func TestOnsetMaskGrid(t *testing.T) {
	signal := toneBursts(testRate, []int{testRate / 2}, testRate/4)

	od := NewOnsetDetection()
	mask, err := od.OnsetMask(signal, testRate, 2048, 512)
	require.NoError(t, err)
	assert.Len(t, mask, common.NumFrames(len(signal), 512))

	strength, err := od.OnsetStrength(signal, testRate, 2048, 512)
	require.NoError(t, err)
	assert.Len(t, strength, len(mask))
	assert.Zero(t, strength[0])
}

func TestOnsetsInSilence(t *testing.T) {
	od := NewOnsetDetection()

	frames, err := od.DetectOnsetFrames(make([]float64, testRate), testRate, 2048, 512)
	require.NoError(t, err)
	assert.Empty(t, frames)

	mask, err := od.OnsetMask(nil, testRate, 2048, 512)
	require.NoError(t, err)
	assert.Empty(t, mask)
}

func TestAdaptiveThreshold(t *testing.T) {
	od := NewOnsetDetection()

	assert.True(t, math.IsInf(od.AdaptiveThreshold([]float64{1, 1, 1}), 1))
	assert.True(t, math.IsInf(od.AdaptiveThreshold(nil), 1))
	// mean 2, std 1
	assert.InDelta(t, 4.0, od.AdaptiveThreshold([]float64{1, 3, 1, 3}), 1e-12)
}

func TestFindFluxPeaksMinInterval(t *testing.T) {
	od := NewOnsetDetection()
	flux := []float64{0, 5, 0, 5, 0, 0, 0, 0, 5, 0}

	// 0.05 s at 22050/512 is 3 frames
	peaks := od.findFluxPeaks(flux, 1, 0.05, 512, testRate)
	assert.Equal(t, []int{1, 8}, peaks)

	peaks = od.findFluxPeaks(flux, 1, 0, 512, testRate)
	assert.Equal(t, []int{1, 3, 8}, peaks)
}

func TestEstimateTempoClickTrain(t *testing.T) {
	// clicks every 24 hops, so every inter-onset interval is identical
	const period = 24 * 512
	var starts []int
	for s := period; s < 10*testRate; s += period {
		starts = append(starts, s)
	}
	signal := toneBursts(10*testRate, starts, 256)

	te := NewTempoEstimation()
	tempo, err := te.EstimateTempo(signal, testRate)
	require.NoError(t, err)

	want := 60 / (float64(period) / testRate)
	assert.InDelta(t, want, tempo, 0.5)
}

func TestEstimateTempoFallsBackToDefault(t *testing.T) {
	te := NewTempoEstimation()

	tempo, err := te.EstimateTempo(make([]float64, 2*testRate), testRate)
	require.NoError(t, err)
	assert.Equal(t, DefaultTempo, tempo)

	tempo, err = te.EstimateTempo(nil, testRate)
	require.NoError(t, err)
	assert.Equal(t, DefaultTempo, tempo)

	_, err = te.EstimateTempo(make([]float64, 10), 0)
	assert.Error(t, err)
}

func TestFoldTempo(t *testing.T) {
	te := NewTempoEstimation()

	assert.Equal(t, 120.0, te.foldTempo(240))
	assert.Equal(t, 100.0, te.foldTempo(50))
	assert.Equal(t, 90.0, te.foldTempo(180))
	assert.Equal(t, 60.0, te.foldTempo(60))
}

func TestFindTempoFromIntervals(t *testing.T) {
	te := NewTempoEstimation()

	assert.InDelta(t, 120, te.findTempoFromIntervals([]float64{0.5, 0.5, 0.5, 1.0}), 1e-9)
	assert.Zero(t, te.findTempoFromIntervals([]float64{0.5}))
	assert.Zero(t, te.findTempoFromIntervals([]float64{0.1, 0.1, 3}))
}

func TestCenteredRMS(t *testing.T) {
	e := NewEnvelope()
	signal := make([]float64, 2048)
	for i := range signal {
		signal[i] = 1
	}

	rms := e.ComputeCenteredRMS(signal, 512, 256)
	require.Len(t, rms, common.NumFrames(len(signal), 256))
	assert.InDelta(t, 1.0, rms[4], 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), rms[0], 1e-12)

	assert.Len(t, e.ComputeRMS(signal, 512, 256), 7)
	assert.Empty(t, e.ComputeRMS(signal[:100], 512, 256))
}
