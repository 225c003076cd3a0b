package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/logging"
)

// STFT provides Short-Time Fourier Transform functionality. Frames are
// centred on multiples of the hop so frame t lines up with every other
// per-frame stream computed on the same grid.
type STFT struct {
	logger logging.Logger
}

// STFTResult holds the magnitude spectrogram of a signal
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // FFT window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Hz per bin
	TimeResolution float64     `json:"time_resolution"` // Seconds per frame
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
}

// Compute computes the Hann-windowed magnitude STFT with parallel workers.
func (s *STFT) Compute(signal []float64, windowSize, hopSize, sampleRate int) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}

	numFrames := common.NumFrames(len(signal), hopSize)
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// each worker owns its window and frame buffer
			transform := NewHannFFT(windowSize)
			frameBuffer := make([]float64, windowSize)

			for frameIdx := range jobs {
				frameBuffer = common.CenteredFrame(signal, frameIdx*hopSize, windowSize, frameBuffer)
				spectrum := transform.Compute(frameBuffer)
				for i := range freqBins {
					magnitude[frameIdx][i] = cmplx.Abs(spectrum[i])
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)
	wg.Wait()

	s.logger.Debug("STFT computed", logging.Fields{
		"frames":  numFrames,
		"bins":    freqBins,
		"workers": numWorkers,
	})

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// getOptimalWorkerCount determines the number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// small workloads don't pay for many goroutines
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return max(1, min(numCPU, 8))
	}

	return numCPU
}
