package converter

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/RyanBlaney/sonido-midi/midifile"
	"github.com/RyanBlaney/sonido-midi/transcode"
	"github.com/RyanBlaney/sonido-midi/transcribe"
)

// Options bundles every setting of an audio-to-MIDI conversion.
type Options struct {
	Transcribe *transcribe.Config       `json:"transcribe"`
	Decoder    *transcode.DecoderConfig `json:"decoder"`
	MIDI       *midifile.Writer         `json:"midi"`

	// TempoBPM overrides tempo estimation when positive.
	TempoBPM float64 `json:"tempo_bpm"`

	// Workers bounds ConvertBatch parallelism. Zero means one per CPU.
	Workers int `json:"workers"`
}

// DefaultOptions returns the default conversion options.
func DefaultOptions() *Options {
	return &Options{
		Transcribe: transcribe.DefaultConfig(),
		Decoder:    transcode.DefaultDecoderConfig(),
		MIDI:       midifile.NewWriter(),
	}
}

// LoadOptionsFile reads JSON overrides from path on top of DefaultOptions.
// Fields missing from the file keep their defaults.
func LoadOptionsFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	opts := DefaultOptions()
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("%w: failed to parse options file %s: %v", transcribe.ErrConfiguration, path, err)
	}
	opts.fillDefaults()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// fillDefaults restores sections an options file explicitly nulled.
func (o *Options) fillDefaults() {
	if o.Transcribe == nil {
		o.Transcribe = transcribe.DefaultConfig()
	}
	if o.Decoder == nil {
		o.Decoder = transcode.DefaultDecoderConfig()
	}
	if o.MIDI == nil {
		o.MIDI = midifile.NewWriter()
	}
}

// Validate checks every section of the options.
func (o *Options) Validate() error {
	o.fillDefaults()

	if err := o.Transcribe.Validate(); err != nil {
		return err
	}
	if err := o.Decoder.Validate(); err != nil {
		return fmt.Errorf("%w: %v", transcribe.ErrConfiguration, err)
	}
	if err := o.MIDI.Validate(); err != nil {
		return err
	}
	if o.TempoBPM < 0 || math.IsNaN(o.TempoBPM) || math.IsInf(o.TempoBPM, 0) {
		return fmt.Errorf("%w: tempo override must be a non-negative finite number, got %v", transcribe.ErrConfiguration, o.TempoBPM)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", transcribe.ErrConfiguration, o.Workers)
	}
	return nil
}
