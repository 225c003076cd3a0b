package transcribe

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Observation is the estimator evidence for a single frame.
type Observation struct {
	F0         float64 // Hz
	Voiced     bool
	VoicedProb float64
	Onset      bool
}

// ObservationModel turns per-frame estimates into a score for every state.
type ObservationModel struct {
	config *Config
	space  *StateSpace
	tuning float64 // semitones subtracted from every pitch estimate
}

// NewObservationModel creates an observation model for a state space.
// tuning is the global deviation, in semitones, of the recording from
// A4 = 440 Hz.
func NewObservationModel(config *Config, space *StateSpace, tuning float64) (*ObservationModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if space == nil {
		return nil, configError("nil state space")
	}
	if math.IsNaN(tuning) || math.Abs(tuning) > 0.5 {
		return nil, configError("tuning offset must be within half a semitone, got %v", tuning)
	}

	return &ObservationModel{
		config: config,
		space:  space,
		tuning: tuning,
	}, nil
}

// Score fills dst (length N) with the score of every state for one frame.
// If dst is nil a new slice is allocated.
func (om *ObservationModel) Score(obs Observation, dst []float64) ([]float64, error) {
	n := om.space.NumStates()
	if dst == nil {
		dst = make([]float64, n)
	}
	if len(dst) != n {
		return nil, shapeError("score vector has length %d, want %d", len(dst), n)
	}

	v := obs.VoicedProb
	if math.IsNaN(v) || v < 0 || v > 1 {
		return nil, inputError("voicing probability %v outside [0,1]", v)
	}
	if obs.Voiced && (obs.F0 < 0 || math.IsNaN(obs.F0) || math.IsInf(obs.F0, 0)) {
		return nil, inputError("voiced frame with frequency %v", obs.F0)
	}

	cfg := om.config

	// Unvoiced: silence is likely, notes sit on the floor
	if !obs.Voiced || obs.F0 == 0 || v < cfg.VoicingThreshold {
		dst[0] = cfg.VoicingAccuracy
		for i := 1; i < n; i++ {
			dst[i] = ScoreFloor
		}
		return dst, nil
	}

	// Voiced: silence only keeps the estimator's miss rate on the unvoiced
	// share, so the note states overtake it close to VoicingThreshold.
	dst[0] = math.Max((1-v)*(1-cfg.VoicingAccuracy), ScoreFloor)

	onsetWeight, sustainWeight := 1-cfg.OnsetAccuracy, cfg.OnsetAccuracy
	if obs.Onset {
		onsetWeight, sustainWeight = sustainWeight, onsetWeight
	}

	estimate := HzToMIDI(obs.F0) - om.tuning
	for p := range om.space.NumPitches() {
		g := om.PitchWeight(math.Abs(estimate - float64(om.space.MIDINote(p))))
		pitchScore := v * g

		dst[om.space.Index(State{Kind: Onset, Pitch: p})] = math.Max(pitchScore*onsetWeight, ScoreFloor)
		dst[om.space.Index(State{Kind: Sustain, Pitch: p})] = math.Max(pitchScore*sustainWeight, ScoreFloor)
	}

	return dst, nil
}

// PitchWeight is the pitch likelihood of a candidate that lies distance
// semitones away from the estimate. It is a Gaussian inside the detuning
// window (distance <= d + 0.5) and zero outside it.
func (om *ObservationModel) PitchWeight(distance float64) float64 {
	if distance > om.config.DetuneTolerance+0.5 {
		return 0
	}
	sigma := om.config.DetuneSigma()
	return om.config.PitchAccuracy * math.Exp(-(distance*distance)/(2*sigma*sigma))
}

// Likelihoods builds the T_frames x N likelihood matrix for a frame series.
// An empty series yields a nil matrix, which Decode accepts as zero frames.
func (om *ObservationModel) Likelihoods(frames *FrameSeries) (*mat.Dense, error) {
	if err := frames.Validate(); err != nil {
		return nil, err
	}

	numFrames := frames.Len()
	n := om.space.NumStates()
	if numFrames == 0 {
		return nil, nil
	}

	data := make([]float64, numFrames*n)
	for t := range numFrames {
		obs := Observation{
			F0:         frames.F0[t],
			Voiced:     frames.Voiced[t],
			VoicedProb: frames.VoicedProb[t],
			Onset:      frames.Onset[t],
		}
		if _, err := om.Score(obs, data[t*n:(t+1)*n]); err != nil {
			return nil, err
		}
	}

	return mat.NewDense(numFrames, n, data), nil
}
