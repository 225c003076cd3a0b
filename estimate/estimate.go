// Package estimate turns mono audio into the frame-aligned pitch, voicing
// and onset streams consumed by the transcriber, and into a tempo.
package estimate

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/algorithms/filters"
	"github.com/RyanBlaney/sonido-midi/algorithms/temporal"
	"github.com/RyanBlaney/sonido-midi/algorithms/tonal"
	"github.com/RyanBlaney/sonido-midi/logging"
	"github.com/RyanBlaney/sonido-midi/transcribe"
)

// FrameEstimator produces per-frame evidence for a signal. Every stream of
// the returned series covers the same frames.
type FrameEstimator interface {
	Estimate(samples []float64, sampleRate int) (*transcribe.FrameSeries, error)
}

// TempoEstimator produces one tempo, in BPM, for a signal.
type TempoEstimator interface {
	EstimateTempo(samples []float64, sampleRate int) (float64, error)
}

// Params configures the default FrameEstimator.
type Params struct {
	FrameLength int `json:"frame_length"`
	HopLength   int `json:"hop_length"`

	// Pitch search range in Hz
	MinFreq float64 `json:"min_freq"`
	MaxFreq float64 `json:"max_freq"`

	DCCutoff            float64 `json:"dc_cutoff"` // Hz, 0 disables
	SilenceRMS          float64 `json:"silence_rms"`
	MedianFilter        int     `json:"median_filter"`
	OnsetThresholdScale float64 `json:"onset_threshold_scale"`
	OnsetMinInterval    float64 `json:"onset_min_interval"` // seconds

	// OnsetSnapFrames is how far an onset may move to reach the
	// frame where the pitch track starts the note. 0 disables snapping.
	OnsetSnapFrames int `json:"onset_snap_frames"`
}

// ParamsFromConfig derives estimator parameters from a transcriber
// configuration. The pitch search range extends one semitone past the
// configured note range on either side.
func ParamsFromConfig(cfg *transcribe.Config) Params {
	if cfg == nil {
		cfg = transcribe.DefaultConfig()
	}
	return Params{
		FrameLength:         cfg.FrameLength,
		HopLength:           cfg.HopLength,
		MinFreq:             transcribe.MIDIToHz(float64(cfg.NoteMin) - 1),
		MaxFreq:             transcribe.MIDIToHz(float64(cfg.NoteMax) + 1),
		DCCutoff:            20,
		SilenceRMS:          1e-3,
		MedianFilter:        3,
		OnsetThresholdScale: 2.0,
		OnsetMinInterval:    0.05,
		OnsetSnapFrames:     3,
	}
}

// AudioEstimator is the default FrameEstimator: DC blocking, a pYIN pitch
// tracker and a spectral flux onset detector on one centred frame grid.
type AudioEstimator struct {
	params Params
	logger logging.Logger
}

// NewAudioEstimator creates a frame estimator.
func NewAudioEstimator(params Params) *AudioEstimator {
	return &AudioEstimator{
		params: params,
		logger: logging.WithFields(logging.Fields{
			"component": "frame_estimator",
		}),
	}
}

// Params returns the estimator parameters.
func (e *AudioEstimator) Params() Params {
	return e.params
}

// Estimate runs pitch and onset estimation over samples.
func (e *AudioEstimator) Estimate(samples []float64, sampleRate int) (*transcribe.FrameSeries, error) {
	logger := e.logger.WithFields(logging.Fields{
		"function":    "Estimate",
		"samples":     len(samples),
		"sample_rate": sampleRate,
	})

	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", transcribe.ErrConfiguration, sampleRate)
	}
	if e.params.HopLength <= 0 || e.params.FrameLength < 16 {
		return nil, fmt.Errorf("%w: frame length %d must be at least 16 and hop length %d positive",
			transcribe.ErrConfiguration, e.params.FrameLength, e.params.HopLength)
	}

	series := &transcribe.FrameSeries{
		F0:         []float64{},
		Voiced:     []bool{},
		VoicedProb: []float64{},
		Onset:      []bool{},
		SampleRate: sampleRate,
		HopLength:  e.params.HopLength,
	}
	if len(samples) == 0 {
		return series, nil
	}

	signal := samples
	if e.params.DCCutoff > 0 {
		signal = filters.NewDCRemovalWithCutoff(sampleRate, e.params.DCCutoff).ProcessBuffer(samples)
	}

	tracker, err := tonal.NewPitchTracker(e.pitchParams(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transcribe.ErrConfiguration, err)
	}
	track, err := tracker.Track(signal)
	if err != nil {
		return nil, fmt.Errorf("pitch tracking: %w", err)
	}

	detector := temporal.NewOnsetDetection()
	detector.ThresholdScale = e.params.OnsetThresholdScale
	detector.MinInterval = e.params.OnsetMinInterval
	onsets, err := detector.OnsetMask(signal, sampleRate, e.params.FrameLength, e.params.HopLength)
	if err != nil {
		return nil, fmt.Errorf("onset detection: %w", err)
	}

	if len(onsets) != track.Len() {
		return nil, fmt.Errorf("%w: onset stream has %d frames, pitch stream has %d",
			transcribe.ErrInputShape, len(onsets), track.Len())
	}

	series.F0 = track.F0
	series.Voiced = track.Voiced
	series.VoicedProb = track.VoicedProb
	series.Onset = alignOnsets(onsets, track.F0, track.Voiced, e.params.OnsetSnapFrames)

	logger.Debug("Frame estimation completed", logging.Fields{
		"frames": series.Len(),
	})

	return series, nil
}

// pitchParams fits the tracker range to what the frame length and sample
// rate can resolve.
func (e *AudioEstimator) pitchParams(sampleRate int) tonal.PitchDetectionParams {
	p := tonal.DefaultPitchDetectionParams(sampleRate)
	p.FrameLength = e.params.FrameLength
	p.HopLength = e.params.HopLength
	p.SilenceRMS = e.params.SilenceRMS
	p.MedianFilter = e.params.MedianFilter

	lowest := float64(sampleRate) / float64(e.params.FrameLength/2-2)
	p.MinFreq = max(e.params.MinFreq, lowest)
	p.MaxFreq = common.Clamp(e.params.MaxFreq, p.MinFreq*2, 0.45*float64(sampleRate))
	return p
}

// alignOnsets moves every onset flag, by at most window frames, onto a frame
// where the pitch track starts a note. The flux detector sees new energy
// before the pitch tracker does, so flags are first moved forward; a flag
// with no start ahead of it joins a start just behind it.
//
// An onset already on a note start stays put, as does one with no note
// start within reach (a repeated pitch).
func alignOnsets(onsets []bool, f0 []float64, voiced []bool, window int) []bool {
	if window <= 0 {
		return onsets
	}

	n := len(onsets)
	isVoiced := func(i int) bool {
		return voiced[i] && f0[i] > 0
	}
	jumps := func(a, b int) bool {
		return math.Abs(transcribe.HzToMIDI(f0[a])-transcribe.HzToMIDI(f0[b])) >= 0.5
	}
	// a pitch change only starts a note once the new pitch holds for a
	// second frame
	startsNote := func(i int) bool {
		if !isVoiced(i) {
			return false
		}
		if i == 0 || !isVoiced(i-1) {
			return true
		}
		if !jumps(i, i-1) {
			return false
		}
		return i+1 >= len(f0) || !isVoiced(i+1) || !jumps(i+1, i)
	}

	aligned := make([]bool, n)
	for i, on := range onsets {
		if !on {
			continue
		}
		target := i
		if !startsNote(i) {
			for j := i + 1; j <= i+window && j < n; j++ {
				if startsNote(j) {
					target = j
					break
				}
			}
		}
		if target == i && !startsNote(i) {
			for j := i - 1; j >= i-window && j >= 0; j-- {
				if startsNote(j) {
					target = j
					break
				}
			}
		}
		aligned[target] = true
	}
	return aligned
}
