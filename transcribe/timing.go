package transcribe

import (
	"math"
)

// TimedNote is a note with wall-clock and tempo-relative timing.
type TimedNote struct {
	Note

	OnsetSeconds  float64 `json:"onset_seconds"`
	OffsetSeconds float64 `json:"offset_seconds"`
	OnsetBeats    float64 `json:"onset_beats"`    // quarter notes from the start
	DurationBeats float64 `json:"duration_beats"` // quarter notes
}

// QuarterNoteSeconds returns the length of one beat at bpm.
func QuarterNoteSeconds(bpm float64) float64 {
	return 60.0 / bpm
}

// ConvertTiming maps frame-grid notes to seconds and quarter-note units.
// The output keeps the input order.
func ConvertTiming(notes []Note, hopSeconds, bpm float64) ([]TimedNote, error) {
	if !(hopSeconds > 0) || math.IsInf(hopSeconds, 0) {
		return nil, configError("hop duration must be positive, got %v", hopSeconds)
	}
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return nil, configError("tempo must be positive, got %v bpm", bpm)
	}

	quarter := QuarterNoteSeconds(bpm)
	timed := make([]TimedNote, len(notes))

	for i, n := range notes {
		onset := float64(n.StartFrame) * hopSeconds
		offset := float64(n.EndFrame+1) * hopSeconds

		timed[i] = TimedNote{
			Note:          n,
			OnsetSeconds:  onset,
			OffsetSeconds: offset,
			OnsetBeats:    onset / quarter,
			DurationBeats: (offset - onset) / quarter,
		}
	}

	return timed, nil
}
