package tonal

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/logging"
)

// PitchCandidate is one trough of the YIN difference function.
type PitchCandidate struct {
	Frequency   float64 `json:"frequency"`   // Hz
	Probability float64 `json:"probability"` // share of the threshold prior claimed by this trough
}

// PitchDetectionResult is the pitch estimate for a single frame.
type PitchDetectionResult struct {
	Pitch      float64          `json:"pitch"`   // best candidate in Hz, 0 when unvoiced
	Voicing    float64          `json:"voicing"` // voicing probability in [0,1]
	Voiced     bool             `json:"voiced"`
	RMS        float64          `json:"rms"`
	Candidates []PitchCandidate `json:"candidates"`
}

// PitchTrack is the frame-wise output of a PitchTracker. Frame t is centred
// on sample t*HopLength.
type PitchTrack struct {
	F0         []float64 `json:"f0"`
	Voiced     []bool    `json:"voiced"`
	VoicedProb []float64 `json:"voiced_prob"`
	SampleRate int       `json:"sample_rate"`
	HopLength  int       `json:"hop_length"`
}

// Len returns the number of frames.
func (pt *PitchTrack) Len() int {
	return len(pt.F0)
}

// PitchDetectionParams contains parameters for pitch tracking
type PitchDetectionParams struct {
	SampleRate  int `json:"sample_rate"`
	FrameLength int `json:"frame_length"`
	HopLength   int `json:"hop_length"`

	// Frequency range constraints
	MinFreq float64 `json:"min_freq"`
	MaxFreq float64 `json:"max_freq"`

	// Threshold prior. Every threshold in (0,1] is tried; its weight comes
	// from a Beta(BetaAlpha, BetaBeta) distribution.
	NumThresholds int     `json:"num_thresholds"`
	BetaAlpha     float64 `json:"beta_alpha"`
	BetaBeta      float64 `json:"beta_beta"`
	NoTroughProb  float64 `json:"no_trough_prob"`

	// VoicingThreshold is the voicing probability at which a frame counts
	// as voiced.
	VoicingThreshold float64 `json:"voicing_threshold"`

	// SilenceRMS gates frames whose RMS falls below it to unvoiced.
	SilenceRMS float64 `json:"silence_rms"`

	// MedianFilter smooths F0 inside voiced runs. 0 or 1 disables.
	MedianFilter int `json:"median_filter"`
}

// DefaultPitchDetectionParams returns tracker defaults for sampleRate.
func DefaultPitchDetectionParams(sampleRate int) PitchDetectionParams {
	return PitchDetectionParams{
		SampleRate:       sampleRate,
		FrameLength:      2048,
		HopLength:        512,
		MinFreq:          65.0,
		MaxFreq:          2093.0,
		NumThresholds:    100,
		BetaAlpha:        2.0,
		BetaBeta:         11.0 + 1.0/3.0,
		NoTroughProb:     0.01,
		VoicingThreshold: 0.5,
		SilenceRMS:       1e-3,
		MedianFilter:     3,
	}
}

// Validate checks the parameters for consistency.
func (p PitchDetectionParams) Validate() error {
	switch {
	case p.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", p.SampleRate)
	case p.FrameLength < 4:
		return fmt.Errorf("frame length must be at least 4, got %d", p.FrameLength)
	case p.HopLength <= 0:
		return fmt.Errorf("hop length must be positive, got %d", p.HopLength)
	case !(p.MinFreq > 0) || !(p.MaxFreq > p.MinFreq):
		return fmt.Errorf("invalid frequency range [%v, %v]", p.MinFreq, p.MaxFreq)
	case p.MaxFreq >= float64(p.SampleRate)/2:
		return fmt.Errorf("max frequency %v must be below Nyquist (%v)", p.MaxFreq, float64(p.SampleRate)/2)
	case float64(p.SampleRate)/p.MinFreq >= float64(p.FrameLength/2-1):
		return fmt.Errorf("frame length %d too short for min frequency %v", p.FrameLength, p.MinFreq)
	case p.NumThresholds <= 0:
		return fmt.Errorf("number of thresholds must be positive, got %d", p.NumThresholds)
	case p.BetaAlpha <= 0 || p.BetaBeta <= 0:
		return fmt.Errorf("beta parameters must be positive")
	case p.NoTroughProb < 0 || p.NoTroughProb > 1:
		return fmt.Errorf("no-trough probability %v outside [0,1]", p.NoTroughProb)
	case p.VoicingThreshold < 0 || p.VoicingThreshold > 1:
		return fmt.Errorf("voicing threshold %v outside [0,1]", p.VoicingThreshold)
	}
	return nil
}

// PitchTracker is a probabilistic YIN (pYIN) frame analyser. It reports the
// F0, a voicing probability and a voicing decision for every frame of the
// hop grid. Temporal smoothing across frames is left to the caller beyond
// an optional median filter.
//
// References:
//   - de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental frequency
//     estimator for speech and music"
//   - Mauch, M., Dixon, S. (2014). "pYIN: A fundamental frequency estimator
//     using probabilistic threshold distributions"
type PitchTracker struct {
	params PitchDetectionParams
	prior  []float64 // threshold prior, index i is threshold (i+1)/N
	logger logging.Logger
}

// NewPitchTracker creates a tracker with validated parameters.
func NewPitchTracker(params PitchDetectionParams) (*PitchTracker, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("pitch tracker: %w", err)
	}

	return &PitchTracker{
		params: params,
		prior:  betaPrior(params.NumThresholds, params.BetaAlpha, params.BetaBeta),
		logger: logging.WithFields(logging.Fields{
			"component": "pitch_tracker",
		}),
	}, nil
}

// Params returns the tracker parameters.
func (pt *PitchTracker) Params() PitchDetectionParams {
	return pt.params
}

func betaPrior(n int, alpha, beta float64) []float64 {
	prior := make([]float64, n)
	sum := 0.0
	for i := range prior {
		x := float64(i+1) / float64(n)
		prior[i] = math.Pow(x, alpha-1) * math.Pow(1-x, beta-1)
		sum += prior[i]
	}
	for i := range prior {
		prior[i] /= sum
	}
	return prior
}

// Track analyses every centred frame of signal in parallel.
func (pt *PitchTracker) Track(signal []float64) (*PitchTrack, error) {
	p := pt.params
	numFrames := common.NumFrames(len(signal), p.HopLength)

	track := &PitchTrack{
		F0:         make([]float64, numFrames),
		Voiced:     make([]bool, numFrames),
		VoicedProb: make([]float64, numFrames),
		SampleRate: p.SampleRate,
		HopLength:  p.HopLength,
	}
	if numFrames == 0 {
		return track, nil
	}

	numWorkers := max(1, min(runtime.NumCPU(), numFrames))
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			an := pt.newAnalyzer()
			var frame []float64
			for t := range jobs {
				frame = common.CenteredFrame(signal, t*p.HopLength, p.FrameLength, frame)
				res := an.analyze(frame)
				track.F0[t] = res.Pitch
				track.Voiced[t] = res.Voiced
				track.VoicedProb[t] = res.Voicing
			}
		}()
	}

	for t := range numFrames {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	if p.MedianFilter > 1 {
		smoothVoicedRuns(track, p.MedianFilter)
	}

	voiced := 0
	for _, v := range track.Voiced {
		if v {
			voiced++
		}
	}
	pt.logger.Debug("Pitch tracked", logging.Fields{
		"function":      "Track",
		"frames":        numFrames,
		"voiced_frames": voiced,
	})

	return track, nil
}

// DetectPitch analyses a single frame of exactly FrameLength samples.
func (pt *PitchTracker) DetectPitch(frame []float64) (*PitchDetectionResult, error) {
	if len(frame) != pt.params.FrameLength {
		return nil, fmt.Errorf("audio frame size (%d) doesn't match frame length (%d)", len(frame), pt.params.FrameLength)
	}
	res := pt.newAnalyzer().analyze(frame)
	return &res, nil
}

// smoothVoicedRuns median-filters F0 inside each run of voiced frames so
// filtering never mixes in unvoiced zeros.
func smoothVoicedRuns(track *PitchTrack, window int) {
	n := track.Len()
	for start := 0; start < n; {
		if !track.Voiced[start] {
			start++
			continue
		}
		end := start
		for end < n && track.Voiced[end] {
			end++
		}
		copy(track.F0[start:end], common.MedianFilter(track.F0[start:end], window))
		start = end
	}
}

// analyzer owns the per-worker FFT buffers.
type analyzer struct {
	tracker *PitchTracker
	fftSize int
	a, b    []complex128
	diff    []float64
	cmndf   []float64
	energy  []float64
}

func (pt *PitchTracker) newAnalyzer() *analyzer {
	n := pt.params.FrameLength
	w := n / 2
	fftSize := common.NextPowerOfTwo(n + w)
	return &analyzer{
		tracker: pt,
		fftSize: fftSize,
		a:       make([]complex128, fftSize),
		b:       make([]complex128, fftSize),
		diff:    make([]float64, w),
		cmndf:   make([]float64, w),
		energy:  make([]float64, n+1),
	}
}

func (an *analyzer) analyze(frame []float64) PitchDetectionResult {
	p := an.tracker.params
	res := PitchDetectionResult{RMS: common.RMS(frame)}
	if res.RMS < p.SilenceRMS || res.RMS == 0 {
		return res
	}

	an.difference(frame)
	an.cumulativeMeanNormalize()
	res.Candidates = an.findTroughs()

	best := -1
	for i, c := range res.Candidates {
		res.Voicing += c.Probability
		if best < 0 || c.Probability > res.Candidates[best].Probability {
			best = i
		}
	}
	res.Voicing = common.Clamp(res.Voicing, 0, 1)

	if best >= 0 {
		res.Pitch = res.Candidates[best].Frequency
	}
	res.Voiced = res.Pitch > 0 && res.Voicing >= p.VoicingThreshold
	if !res.Voiced {
		res.Pitch = 0
	}
	return res
}

// difference computes the YIN difference function
//
//	d(τ) = Σ_{j<W} (x_j - x_{j+τ})²,  W = len(frame)/2
//
// through an FFT cross-correlation of the first half against the frame.
func (an *analyzer) difference(frame []float64) {
	w := len(frame) / 2

	for i := range an.a {
		an.a[i] = 0
		an.b[i] = 0
	}
	for i, v := range frame {
		an.b[i] = complex(v, 0)
		if i < w {
			an.a[i] = complex(v, 0)
		}
	}

	fa := fft.FFT(an.a)
	fb := fft.FFT(an.b)
	for i := range fa {
		fa[i] = complex(real(fa[i]), -imag(fa[i])) * fb[i]
	}
	corr := fft.IFFT(fa)

	an.energy[0] = 0
	for i, v := range frame {
		an.energy[i+1] = an.energy[i] + v*v
	}
	head := an.energy[w]

	for tau := range w {
		shifted := an.energy[tau+w] - an.energy[tau]
		d := head + shifted - 2*real(corr[tau])
		// FFT rounding can dip slightly below zero
		an.diff[tau] = math.Max(d, 0)
	}
}

func (an *analyzer) cumulativeMeanNormalize() {
	an.cmndf[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau < len(an.diff); tau++ {
		runningSum += an.diff[tau]
		if runningSum <= 0 {
			an.cmndf[tau] = 1.0
			continue
		}
		an.cmndf[tau] = an.diff[tau] * float64(tau) / runningSum
	}
}

// findTroughs lists local minima of the normalized difference inside the
// period range. Each threshold of the prior is claimed by the first trough
// falling below it; thresholds nobody claims go, scaled by NoTroughProb, to
// the global minimum.
func (an *analyzer) findTroughs() []PitchCandidate {
	p := an.tracker.params
	prior := an.tracker.prior
	numThresholds := len(prior)

	minPeriod := max(int(float64(p.SampleRate)/p.MaxFreq), 2)
	maxPeriod := min(int(math.Ceil(float64(p.SampleRate)/p.MinFreq)), len(an.cmndf)-2)

	candidates := []PitchCandidate{}
	thres := numThresholds
	globalMin := math.Inf(1)
	globalFreq := 0.0

	for tau := minPeriod; tau <= maxPeriod; tau++ {
		d := an.cmndf[tau]
		if !(d < an.cmndf[tau-1] && d <= an.cmndf[tau+1]) {
			continue
		}

		period := common.ParabolicPeak(an.cmndf, tau)
		freq := float64(p.SampleRate) / period
		if d < globalMin {
			globalMin = d
			globalFreq = freq
		}

		prob := 0.0
		for thres > 0 && d < float64(thres)/float64(numThresholds) {
			prob += prior[thres-1]
			thres--
		}
		if prob > 0 {
			candidates = append(candidates, PitchCandidate{Frequency: freq, Probability: prob})
		}
	}

	if globalFreq > 0 {
		rest := 0.0
		for i := 0; i < thres; i++ {
			rest += prior[i]
		}
		rest *= p.NoTroughProb
		if rest > 0 {
			merged := false
			for i := range candidates {
				if candidates[i].Frequency == globalFreq {
					candidates[i].Probability += rest
					merged = true
					break
				}
			}
			if !merged {
				candidates = append(candidates, PitchCandidate{Frequency: globalFreq, Probability: rest})
			}
		}
	}

	return candidates
}
