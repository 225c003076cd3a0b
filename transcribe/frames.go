package transcribe

// FrameSeries is the frame-aligned output of the pitch, voicing and onset
// estimators. All slices share one frame grid.
type FrameSeries struct {
	F0         []float64 `json:"f0"`          // Hz; ignored when Voiced is false
	Voiced     []bool    `json:"voiced"`      // voicing decision
	VoicedProb []float64 `json:"voiced_prob"` // voicing probability in [0,1]
	Onset      []bool    `json:"onset"`       // onset indicator

	SampleRate int `json:"sample_rate"`
	HopLength  int `json:"hop_length"`
}

// Len returns the number of frames, taken from the pitch stream.
func (fs *FrameSeries) Len() int {
	return len(fs.F0)
}

// HopSeconds returns the time between two frames.
func (fs *FrameSeries) HopSeconds() float64 {
	if fs.SampleRate <= 0 {
		return 0
	}
	return float64(fs.HopLength) / float64(fs.SampleRate)
}

// Validate checks that every stream has the same frame count.
func (fs *FrameSeries) Validate() error {
	if fs == nil {
		return shapeError("nil frame series")
	}
	n := len(fs.F0)
	if len(fs.Voiced) != n {
		return shapeError("voicing stream has %d frames, pitch stream has %d", len(fs.Voiced), n)
	}
	if len(fs.VoicedProb) != n {
		return shapeError("voicing probability stream has %d frames, pitch stream has %d", len(fs.VoicedProb), n)
	}
	if len(fs.Onset) != n {
		return shapeError("onset stream has %d frames, pitch stream has %d", len(fs.Onset), n)
	}
	return nil
}
