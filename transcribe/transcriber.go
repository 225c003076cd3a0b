package transcribe

import (
	"github.com/RyanBlaney/sonido-midi/logging"
)

// Result is the output of one transcription.
type Result struct {
	Path       *Path   `json:"path"`
	Notes      []Note  `json:"notes"`
	Tuning     float64 `json:"tuning"`      // semitones
	HopSeconds float64 `json:"hop_seconds"` // seconds per frame
	NumFrames  int     `json:"num_frames"`
}

// Transcriber segments frame series into notes. It holds no mutable state,
// so one Transcriber may serve concurrent calls.
type Transcriber struct {
	config *Config
	space  *StateSpace
	logger logging.Logger
}

// NewTranscriber validates config and prepares the state space.
func NewTranscriber(config *Config) (*Transcriber, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	space, err := NewStateSpace(config.NoteMin, config.NoteMax)
	if err != nil {
		return nil, err
	}

	return &Transcriber{
		config: config,
		space:  space,
		logger: logging.WithFields(logging.Fields{
			"component": "transcriber",
		}),
	}, nil
}

// Config returns the transcriber configuration.
func (tr *Transcriber) Config() *Config {
	return tr.config
}

// StateSpace returns the state space shared by every call.
func (tr *Transcriber) StateSpace() *StateSpace {
	return tr.space
}

// Transcribe builds the transition and likelihood matrices for frames,
// decodes the most likely state path and extracts the notes.
func (tr *Transcriber) Transcribe(frames *FrameSeries) (*Result, error) {
	logger := tr.logger.WithFields(logging.Fields{
		"function": "Transcribe",
	})

	if err := frames.Validate(); err != nil {
		return nil, err
	}

	hop := frames.HopSeconds()
	if hop <= 0 {
		hop = tr.config.HopSeconds()
	}

	result := &Result{
		Path:       &Path{States: []int{}},
		Notes:      []Note{},
		HopSeconds: hop,
		NumFrames:  frames.Len(),
	}
	if frames.Len() == 0 {
		logger.Debug("Empty frame series, nothing to decode")
		return result, nil
	}

	if tr.config.EstimateTuning {
		result.Tuning = EstimateTuning(frames)
	}

	transitions, err := BuildTransitionMatrix(tr.space, tr.config.SustainProbability, tr.config.SilenceProbability)
	if err != nil {
		return nil, err
	}

	model, err := NewObservationModel(tr.config, tr.space, result.Tuning)
	if err != nil {
		return nil, err
	}
	likelihoods, err := model.Likelihoods(frames)
	if err != nil {
		return nil, err
	}

	prior := InitialPrior(tr.space.NumStates(), tr.config.InitialSilenceWeight)
	path, err := Decode(transitions, likelihoods, prior)
	if err != nil {
		logger.Error(err, "Path decoding failed")
		return nil, err
	}
	result.Path = path

	notes, err := ExtractNotes(tr.space, path.States)
	if err != nil {
		return nil, err
	}
	result.Notes = notes

	logger.Debug("Transcription completed", logging.Fields{
		"frames":         frames.Len(),
		"states":         tr.space.NumStates(),
		"notes":          len(notes),
		"tuning":         result.Tuning,
		"log_likelihood": path.LogLikelihood,
	})

	return result, nil
}
