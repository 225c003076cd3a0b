package temporal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/logging"
)

// DefaultTempo is returned when no tempo can be determined.
const DefaultTempo = 120.0

// TempoEstimation estimates a single global tempo for a signal.
type TempoEstimation struct {
	FrameLength int     `json:"frame_length"`
	HopLength   int     `json:"hop_length"`
	MinBPM      float64 `json:"min_bpm"`
	MaxBPM      float64 `json:"max_bpm"`

	onsetDetector     *OnsetDetection
	envelopeExtractor *Envelope
	logger            logging.Logger
}

// NewTempoEstimation creates a new tempo estimator
func NewTempoEstimation() *TempoEstimation {
	return &TempoEstimation{
		FrameLength:       2048,
		HopLength:         512,
		MinBPM:            60,
		MaxBPM:            180,
		onsetDetector:     NewOnsetDetection(),
		envelopeExtractor: NewEnvelope(),
		logger: logging.WithFields(logging.Fields{
			"component": "tempo_estimation",
		}),
	}
}

// EstimateTempo estimates tempo in BPM. It histograms inter-onset
// intervals first, falls back to the autocorrelation of the RMS envelope,
// and returns DefaultTempo when neither gives an answer.
func (te *TempoEstimation) EstimateTempo(signal []float64, sampleRate int) (float64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if len(signal) == 0 {
		return DefaultTempo, nil
	}

	logger := te.logger.WithFields(logging.Fields{
		"function": "EstimateTempo",
	})

	onsets, err := te.onsetDetector.DetectOnsets(signal, sampleRate, te.FrameLength, te.HopLength)
	if err != nil {
		return 0, err
	}

	if len(onsets) >= 3 {
		intervals := make([]float64, len(onsets)-1)
		for i := range intervals {
			intervals[i] = float64(onsets[i+1]-onsets[i]) / float64(sampleRate)
		}
		if tempo := te.findTempoFromIntervals(intervals); tempo > 0 {
			logger.Debug("Tempo from onset intervals", logging.Fields{
				"onsets": len(onsets),
				"bpm":    tempo,
			})
			return tempo, nil
		}
	}

	if tempo := te.EstimateTempoAutocorrelation(signal, sampleRate); tempo > 0 {
		logger.Debug("Tempo from envelope autocorrelation", logging.Fields{
			"bpm": tempo,
		})
		return tempo, nil
	}

	logger.Debug("Tempo undetermined, using default", logging.Fields{
		"bpm": DefaultTempo,
	})
	return DefaultTempo, nil
}

// EstimateTempoAutocorrelation estimates tempo from the periodicity of the
// RMS envelope. Returns 0 when no periodicity is found.
func (te *TempoEstimation) EstimateTempoAutocorrelation(signal []float64, sampleRate int) float64 {
	if len(signal) == 0 || sampleRate <= 0 {
		return 0.0
	}

	// 100ms frames, 75% overlap
	frameSize := int(0.1 * float64(sampleRate))
	hopSize := max(frameSize/4, 1)

	envelope := te.envelopeExtractor.ComputeRMS(signal, frameSize, hopSize)
	if len(envelope) < 10 {
		return 0.0
	}

	// periodicity lives in the envelope's fluctuation, not its level
	mean := common.Mean(envelope)
	centered := make([]float64, len(envelope))
	for i, v := range envelope {
		centered[i] = v - mean
	}

	autocorr := te.calculateAutocorrelation(centered, len(centered)/2)
	return te.findTempoFromAutocorrelation(autocorr, hopSize, sampleRate)
}

// findTempoFromIntervals folds each interval into [MinBPM, MaxBPM) by
// octave, votes into 2 BPM bins and averages the tempos in the winning
// bin. Returns 0 without a clear winner.
func (te *TempoEstimation) findTempoFromIntervals(intervals []float64) float64 {
	const binWidth = 2.0

	numBins := int(math.Ceil((te.MaxBPM - te.MinBPM) / binWidth))
	if numBins <= 0 {
		return 0.0
	}
	votes := make([][]float64, numBins)

	for _, interval := range intervals {
		// 30-300 BPM
		if interval <= 0.2 || interval >= 2.0 {
			continue
		}
		tempo := te.foldTempo(60.0 / interval)
		bin := min(int((tempo-te.MinBPM)/binWidth), numBins-1)
		votes[bin] = append(votes[bin], tempo)
	}

	best := -1
	for i, v := range votes {
		if best < 0 || len(v) > len(votes[best]) {
			best = i
		}
	}
	if best < 0 || len(votes[best]) < 2 {
		return 0.0
	}

	return common.Mean(votes[best])
}

// foldTempo doubles or halves tempo until it lies in [MinBPM, MaxBPM).
func (te *TempoEstimation) foldTempo(tempo float64) float64 {
	for tempo < te.MinBPM {
		tempo *= 2
	}
	for tempo >= te.MaxBPM {
		tempo /= 2
	}
	return tempo
}

// calculateAutocorrelation calculates the normalized autocorrelation
func (te *TempoEstimation) calculateAutocorrelation(signal []float64, maxLag int) []float64 {
	maxLag = min(maxLag, len(signal))
	autocorr := make([]float64, maxLag)

	for lag := range maxLag {
		sum := 0.0
		for i := 0; i < len(signal)-lag; i++ {
			sum += signal[i] * signal[i+lag]
		}
		autocorr[lag] = sum / float64(len(signal)-lag)
	}

	if len(autocorr) > 0 && autocorr[0] > 0 {
		scale := autocorr[0]
		for i := range autocorr {
			autocorr[i] /= scale
		}
	}

	return autocorr
}

// findTempoFromAutocorrelation picks the highest autocorrelation peak whose
// lag corresponds to a tempo in [MinBPM, MaxBPM].
func (te *TempoEstimation) findTempoFromAutocorrelation(autocorr []float64, hopSize, sampleRate int) float64 {
	if len(autocorr) < 10 {
		return 0.0
	}

	timePerFrame := float64(hopSize) / float64(sampleRate)
	minLag := max(int(60.0/te.MaxBPM/timePerFrame), 1)
	maxLag := min(int(60.0/te.MinBPM/timePerFrame), len(autocorr)-2)

	maxVal := 0.0
	bestLag := 0
	for lag := minLag; lag <= maxLag; lag++ {
		if autocorr[lag] > autocorr[lag-1] &&
			autocorr[lag] > autocorr[lag+1] &&
			autocorr[lag] > maxVal {
			maxVal = autocorr[lag]
			bestLag = lag
		}
	}

	if bestLag == 0 {
		return 0.0
	}

	period := common.ParabolicPeak(autocorr, bestLag) * timePerFrame
	return 60.0 / period
}
