package transcribe

import (
	"math"
)

// Config holds every tuning constant consumed by the transcription core.
// It is passed explicitly to the state space, the observation model and the
// decoder so conversions stay independent of each other.
type Config struct {
	// Pitch range (inclusive MIDI note numbers)
	NoteMin int `json:"note_min"`
	NoteMax int `json:"note_max"`

	// Transition model
	SustainProbability float64 `json:"sustain_probability"` // s: Sustain(p) -> Sustain(p)
	SilenceProbability float64 `json:"silence_probability"` // Silence -> Silence

	// Detuning model
	DetuneTolerance float64 `json:"detune_tolerance"` // d, semitones
	DetuneWidth     float64 `json:"detune_width"`     // Gaussian sigma, semitones; 0 derives it from d

	// Estimator reliabilities used as observation scores
	PitchAccuracy    float64 `json:"pitch_accuracy"`
	VoicingAccuracy  float64 `json:"voicing_accuracy"`
	OnsetAccuracy    float64 `json:"onset_accuracy"`
	VoicingThreshold float64 `json:"voicing_threshold"` // below this a voiced frame is treated as silent

	// Decoder prior
	InitialSilenceWeight float64 `json:"initial_silence_weight"`

	// Global tuning correction
	EstimateTuning bool `json:"estimate_tuning"`

	// Frame grid
	SampleRate  int `json:"sample_rate"`
	FrameLength int `json:"frame_length"`
	HopLength   int `json:"hop_length"`
}

// ScoreFloor is the smallest score any state receives for any frame.
const ScoreFloor = 1e-6

// MinDetuneWeight is the smallest relative pitch weight allowed at the
// detune tolerance boundary.
const MinDetuneWeight = 0.05

// DefaultConfig returns the default transcription configuration: A2..E5,
// 22.05 kHz analysis with 2048-sample frames and a 512-sample hop.
func DefaultConfig() *Config {
	return &Config{
		NoteMin:              45, // A2
		NoteMax:              76, // E5
		SustainProbability:   0.9,
		SilenceProbability:   0.7,
		DetuneTolerance:      1.0,
		DetuneWidth:          0,
		PitchAccuracy:        0.9,
		VoicingAccuracy:      0.9,
		OnsetAccuracy:        0.999,
		VoicingThreshold:     0.1,
		InitialSilenceWeight: 0.5,
		EstimateTuning:       true,
		SampleRate:           22050,
		FrameLength:          2048,
		HopLength:            512,
	}
}

// Validate rejects configurations the core cannot work with.
func (c *Config) Validate() error {
	if c == nil {
		return configError("nil config")
	}

	if c.NoteMin < 0 || c.NoteMax > 127 {
		return configError("pitch range %d..%d outside MIDI range 0..127", c.NoteMin, c.NoteMax)
	}
	if c.NoteMax < c.NoteMin {
		return configError("empty pitch range %d..%d", c.NoteMin, c.NoteMax)
	}

	if !openUnit(c.SustainProbability) {
		return configError("sustain probability must be in (0,1), got %v", c.SustainProbability)
	}
	if !openUnit(c.SilenceProbability) {
		return configError("silence probability must be in (0,1), got %v", c.SilenceProbability)
	}

	if c.DetuneTolerance < 0 || math.IsNaN(c.DetuneTolerance) || math.IsInf(c.DetuneTolerance, 0) {
		return configError("detune tolerance must be >= 0, got %v", c.DetuneTolerance)
	}
	if c.DetuneWidth < 0 || math.IsNaN(c.DetuneWidth) || math.IsInf(c.DetuneWidth, 0) {
		return configError("detune width must be >= 0, got %v", c.DetuneWidth)
	}
	if w := detuneEdgeWeight(c.DetuneTolerance, c.DetuneSigma()); w < MinDetuneWeight {
		return configError("detune width %v leaves weight %.2g at tolerance %v, want >= %v",
			c.DetuneSigma(), w, c.DetuneTolerance, MinDetuneWeight)
	}

	accuracies := []struct {
		name  string
		value float64
	}{
		{"pitch accuracy", c.PitchAccuracy},
		{"voicing accuracy", c.VoicingAccuracy},
		{"onset accuracy", c.OnsetAccuracy},
	}
	for _, acc := range accuracies {
		if !openUnit(acc.value) {
			return configError("%s must be in (0,1), got %v", acc.name, acc.value)
		}
	}

	if c.VoicingThreshold < 0 || c.VoicingThreshold > 1 || math.IsNaN(c.VoicingThreshold) {
		return configError("voicing threshold must be in [0,1], got %v", c.VoicingThreshold)
	}
	if !openUnit(c.InitialSilenceWeight) {
		return configError("initial silence weight must be in (0,1), got %v", c.InitialSilenceWeight)
	}

	if c.SampleRate <= 0 {
		return configError("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameLength < 16 {
		return configError("frame length must be at least 16, got %d", c.FrameLength)
	}
	if c.HopLength <= 0 {
		return configError("hop length must be positive, got %d", c.HopLength)
	}

	return nil
}

// NumPitches returns P, the number of candidate pitches.
func (c *Config) NumPitches() int {
	return c.NoteMax - c.NoteMin + 1
}

// DetuneSigma returns the Gaussian width of the pitch weight. A zero
// DetuneWidth derives it from the tolerance, so the weight at d semitones
// is 1/e of the peak.
func (c *Config) DetuneSigma() float64 {
	if c.DetuneWidth > 0 {
		return c.DetuneWidth
	}
	return math.Max(c.DetuneTolerance, 0.5) / math.Sqrt2
}

func detuneEdgeWeight(d, sigma float64) float64 {
	return math.Exp(-(d * d) / (2 * sigma * sigma))
}

// HopSeconds is the duration of one hop on the configured grid.
func (c *Config) HopSeconds() float64 {
	return float64(c.HopLength) / float64(c.SampleRate)
}

func openUnit(v float64) bool {
	return v > 0 && v < 1
}
