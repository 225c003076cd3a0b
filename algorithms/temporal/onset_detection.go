package temporal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/algorithms/spectral"
	"github.com/RyanBlaney/sonido-midi/logging"
)

// OnsetDetection detects note onsets from the spectral flux of a signal.
type OnsetDetection struct {
	// ThresholdScale is k in the adaptive threshold mean + k·std.
	ThresholdScale float64 `json:"threshold_scale"`

	// MinInterval is the minimum spacing between two onsets, in seconds.
	MinInterval float64 `json:"min_interval"`

	spectralFlux *spectral.SpectralFlux
	stft         *spectral.STFT
	logger       logging.Logger
}

// NewOnsetDetection creates a new onset detector
func NewOnsetDetection() *OnsetDetection {
	return &OnsetDetection{
		ThresholdScale: 2.0,
		MinInterval:    0.05,
		spectralFlux:   spectral.NewSpectralFlux(),
		stft:           spectral.NewSTFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "onset_detection",
		}),
	}
}

// OnsetStrength returns the spectral flux envelope, one value per centred
// frame of the hop grid.
func (od *OnsetDetection) OnsetStrength(signal []float64, sampleRate, frameLength, hopLength int) ([]float64, error) {
	if len(signal) == 0 {
		return []float64{}, nil
	}

	stftResult, err := od.stft.Compute(signal, frameLength, hopLength, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("onset strength: %w", err)
	}

	return od.spectralFlux.Compute(stftResult.Magnitude), nil
}

// DetectOnsetFrames returns the frame indices of detected onsets in
// increasing order.
func (od *OnsetDetection) DetectOnsetFrames(signal []float64, sampleRate, frameLength, hopLength int) ([]int, error) {
	flux, err := od.OnsetStrength(signal, sampleRate, frameLength, hopLength)
	if err != nil {
		return nil, err
	}
	if len(flux) == 0 {
		return []int{}, nil
	}

	threshold := od.AdaptiveThreshold(flux)
	onsets := od.findFluxPeaks(flux, threshold, od.MinInterval, hopLength, sampleRate)

	od.logger.Debug("Onsets detected", logging.Fields{
		"function":  "DetectOnsetFrames",
		"frames":    len(flux),
		"onsets":    len(onsets),
		"threshold": threshold,
	})

	return onsets, nil
}

// DetectOnsets returns onset positions in samples.
func (od *OnsetDetection) DetectOnsets(signal []float64, sampleRate, frameLength, hopLength int) ([]int, error) {
	frames, err := od.DetectOnsetFrames(signal, sampleRate, frameLength, hopLength)
	if err != nil {
		return nil, err
	}

	onsetSamples := make([]int, len(frames))
	for i, frameIdx := range frames {
		onsetSamples[i] = frameIdx * hopLength
	}
	return onsetSamples, nil
}

// OnsetMask returns a per-frame onset flag on the same grid as
// OnsetStrength.
func (od *OnsetDetection) OnsetMask(signal []float64, sampleRate, frameLength, hopLength int) ([]bool, error) {
	mask := make([]bool, common.NumFrames(len(signal), hopLength))

	frames, err := od.DetectOnsetFrames(signal, sampleRate, frameLength, hopLength)
	if err != nil {
		return nil, err
	}
	for _, t := range frames {
		if t < len(mask) {
			mask[t] = true
		}
	}
	return mask, nil
}

// findFluxPeaks picks local maxima of flux above threshold, at least
// minInterval seconds apart. A flat-topped peak is reported at its first
// frame.
func (od *OnsetDetection) findFluxPeaks(flux []float64, threshold, minInterval float64, hopSize, sampleRate int) []int {
	if len(flux) < 2 {
		return []int{}
	}

	minIntervalFrames := int(math.Ceil(minInterval * float64(sampleRate) / float64(hopSize)))
	peaks := []int{}
	lastPeakFrame := -minIntervalFrames - 1

	for i := 1; i < len(flux); i++ {
		next := 0.0
		if i+1 < len(flux) {
			next = flux[i+1]
		}

		if flux[i] > flux[i-1] &&
			flux[i] >= next &&
			flux[i] > threshold &&
			i-lastPeakFrame >= minIntervalFrames {
			peaks = append(peaks, i)
			lastPeakFrame = i
		}
	}

	return peaks
}

// AdaptiveThreshold is mean + k·std of flux. A constant flux, including
// digital silence, yields +Inf so nothing is picked.
func (od *OnsetDetection) AdaptiveThreshold(flux []float64) float64 {
	if len(flux) == 0 {
		return math.Inf(1)
	}

	std := common.StandardDeviation(flux)
	if std == 0 {
		return math.Inf(1)
	}

	return common.Mean(flux) + od.ThresholdScale*std
}
