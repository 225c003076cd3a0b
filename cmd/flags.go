package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-midi/converter"
	"github.com/RyanBlaney/sonido-midi/transcribe"
)

// conversionFlags are the options shared by every converting command.
// Only flags set on the command line override the options file.
type conversionFlags struct {
	noteMin          string
	noteMax          string
	sustainProb      float64
	silenceProb      float64
	detune           float64
	detuneWidth      float64
	pitchAcc         float64
	voicingAcc       float64
	onsetAcc         float64
	voicingThreshold float64
	noTuning         bool
	sampleRate       int
	frameLength      int
	hopLength        int
	bpm              float64
	velocity         uint8
	ticksPerQuarter  uint16
	workers          int
}

func addConversionFlags(cmd *cobra.Command, f *conversionFlags) {
	defaults := converter.DefaultOptions()
	cfg := defaults.Transcribe

	fs := cmd.Flags()
	fs.StringVar(&f.noteMin, "note-min", transcribe.NoteName(cfg.NoteMin), "lowest note (name like A2 or MIDI number)")
	fs.StringVar(&f.noteMax, "note-max", transcribe.NoteName(cfg.NoteMax), "highest note (name like E5 or MIDI number)")
	fs.Float64Var(&f.sustainProb, "sustain-prob", cfg.SustainProbability, "probability of holding a note for another frame")
	fs.Float64Var(&f.silenceProb, "silence-prob", cfg.SilenceProbability, "probability of staying silent for another frame")
	fs.Float64Var(&f.detune, "detune", cfg.DetuneTolerance, "pitch tolerance in semitones")
	fs.Float64Var(&f.detuneWidth, "detune-width", cfg.DetuneWidth, "pitch weight width in semitones (0 derives it from --detune)")
	fs.Float64Var(&f.pitchAcc, "pitch-acc", cfg.PitchAccuracy, "pitch estimator accuracy")
	fs.Float64Var(&f.voicingAcc, "voicing-acc", cfg.VoicingAccuracy, "voicing estimator accuracy")
	fs.Float64Var(&f.onsetAcc, "onset-acc", cfg.OnsetAccuracy, "onset detector accuracy")
	fs.Float64Var(&f.voicingThreshold, "voicing-threshold", cfg.VoicingThreshold, "minimum voicing probability of a note frame")
	fs.BoolVar(&f.noTuning, "no-tuning", false, "disable tuning estimation")
	fs.IntVar(&f.sampleRate, "sample-rate", cfg.SampleRate, "analysis sample rate in Hz")
	fs.IntVar(&f.frameLength, "frame-length", cfg.FrameLength, "analysis frame length in samples")
	fs.IntVar(&f.hopLength, "hop-length", cfg.HopLength, "hop between frames in samples")
	fs.Float64Var(&f.bpm, "bpm", 0, "tempo in BPM (0 estimates it)")
	fs.Uint8Var(&f.velocity, "velocity", defaults.MIDI.Velocity, "note velocity")
	fs.Uint16Var(&f.ticksPerQuarter, "ticks-per-quarter", defaults.MIDI.TicksPerQuarter, "MIDI resolution")
	fs.IntVar(&f.workers, "workers", 0, "parallel conversions (0 uses every CPU)")
}

// buildOptions layers defaults, the --config file and changed flags.
func buildOptions(cmd *cobra.Command, f *conversionFlags) (*converter.Options, error) {
	opts := converter.DefaultOptions()
	if configPath != "" {
		loaded, err := converter.LoadOptionsFile(configPath)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}

	fs := cmd.Flags()
	cfg := opts.Transcribe

	if fs.Changed("note-min") {
		n, err := transcribe.ParseNoteName(f.noteMin)
		if err != nil {
			return nil, err
		}
		cfg.NoteMin = n
	}
	if fs.Changed("note-max") {
		n, err := transcribe.ParseNoteName(f.noteMax)
		if err != nil {
			return nil, err
		}
		cfg.NoteMax = n
	}

	setFloat := func(name string, dst *float64, v float64) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	setInt := func(name string, dst *int, v int) {
		if fs.Changed(name) {
			*dst = v
		}
	}

	setFloat("sustain-prob", &cfg.SustainProbability, f.sustainProb)
	setFloat("silence-prob", &cfg.SilenceProbability, f.silenceProb)
	setFloat("detune", &cfg.DetuneTolerance, f.detune)
	setFloat("detune-width", &cfg.DetuneWidth, f.detuneWidth)
	setFloat("pitch-acc", &cfg.PitchAccuracy, f.pitchAcc)
	setFloat("voicing-acc", &cfg.VoicingAccuracy, f.voicingAcc)
	setFloat("onset-acc", &cfg.OnsetAccuracy, f.onsetAcc)
	setFloat("voicing-threshold", &cfg.VoicingThreshold, f.voicingThreshold)
	setInt("sample-rate", &cfg.SampleRate, f.sampleRate)
	setInt("frame-length", &cfg.FrameLength, f.frameLength)
	setInt("hop-length", &cfg.HopLength, f.hopLength)
	setFloat("bpm", &opts.TempoBPM, f.bpm)
	setInt("workers", &opts.Workers, f.workers)

	if f.noTuning {
		cfg.EstimateTuning = false
	}
	if fs.Changed("velocity") {
		opts.MIDI.Velocity = f.velocity
	}
	if fs.Changed("ticks-per-quarter") {
		opts.MIDI.TicksPerQuarter = f.ticksPerQuarter
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
