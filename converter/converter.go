// Package converter wires decoding, estimation, transcription and MIDI
// writing into one audio-to-MIDI conversion.
package converter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-midi/estimate"
	"github.com/RyanBlaney/sonido-midi/logging"
	"github.com/RyanBlaney/sonido-midi/midifile"
	"github.com/RyanBlaney/sonido-midi/transcode"
	"github.com/RyanBlaney/sonido-midi/transcribe"
)

// Decoder turns encoded audio into mono PCM.
type Decoder interface {
	DecodeFile(ctx context.Context, filename string) (*transcode.AudioData, error)
	DecodeBytes(ctx context.Context, data []byte) (*transcode.AudioData, error)
}

// Result describes one finished conversion.
type Result struct {
	RunID      string                 `json:"run_id"`
	Source     string                 `json:"source,omitempty"`
	BPM        float64                `json:"bpm"`
	Tuning     float64                `json:"tuning"`
	NumFrames  int                    `json:"num_frames"`
	HopSeconds float64                `json:"hop_seconds"`
	Duration   time.Duration          `json:"duration"` // audio length
	Elapsed    time.Duration          `json:"elapsed"`
	Notes      []transcribe.TimedNote `json:"notes"`
}

// Converter runs audio-to-MIDI conversions. It holds no per-conversion
// state, so one Converter may serve concurrent calls.
type Converter struct {
	options     *Options
	decoder     Decoder
	frames      estimate.FrameEstimator
	tempo       estimate.TempoEstimator
	transcriber *transcribe.Transcriber
	writer      *midifile.Writer
	logger      logging.Logger
}

// Option customizes a Converter.
type Option func(*Converter)

// WithDecoder replaces the audio decoder.
func WithDecoder(d Decoder) Option {
	return func(c *Converter) {
		c.decoder = d
	}
}

// WithFrameEstimator replaces the pitch/voicing/onset estimator.
func WithFrameEstimator(fe estimate.FrameEstimator) Option {
	return func(c *Converter) {
		c.frames = fe
	}
}

// WithTempoEstimator replaces the tempo estimator. A positive TempoBPM in
// the options still takes precedence.
func WithTempoEstimator(te estimate.TempoEstimator) Option {
	return func(c *Converter) {
		c.tempo = te
	}
}

// NewConverter validates options and assembles the pipeline.
func NewConverter(options *Options, opts ...Option) (*Converter, error) {
	if options == nil {
		options = DefaultOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	cfg := options.Transcribe
	// decoded audio must land on the transcriber's frame grid
	decoderConfig := *options.Decoder
	decoderConfig.TargetSampleRate = cfg.SampleRate

	transcriber, err := transcribe.NewTranscriber(cfg)
	if err != nil {
		return nil, err
	}

	c := &Converter{
		options:     options,
		decoder:     transcode.NewDecoder(&decoderConfig),
		frames:      estimate.NewAudioEstimator(estimate.ParamsFromConfig(cfg)),
		tempo:       estimate.NewTempoEstimator(cfg.FrameLength, cfg.HopLength),
		transcriber: transcriber,
		writer:      options.MIDI,
		logger: logging.WithFields(logging.Fields{
			"component": "converter",
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if options.TempoBPM > 0 {
		c.tempo = estimate.FixedTempo(options.TempoBPM)
	}

	return c, nil
}

// Options returns the converter options.
func (c *Converter) Options() *Options {
	return c.options
}

// ConvertFile converts the audio file at inputPath and writes MIDI to out.
func (c *Converter) ConvertFile(ctx context.Context, inputPath string, out io.Writer) (*Result, error) {
	ctx = withRunID(ctx)
	logger := c.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "ConvertFile",
		"input":    inputPath,
	})

	audio, err := c.decoder.DecodeFile(ctx, inputPath)
	if err != nil {
		logger.Error(err, "Failed to decode audio")
		return nil, fmt.Errorf("decode %s: %w", inputPath, err)
	}

	result, err := c.convertAudio(ctx, audio, out)
	if err != nil {
		return nil, err
	}
	result.Source = inputPath
	return result, nil
}

// ConvertBytes converts encoded audio held in memory.
func (c *Converter) ConvertBytes(ctx context.Context, data []byte, out io.Writer) (*Result, error) {
	ctx = withRunID(ctx)

	audio, err := c.decoder.DecodeBytes(ctx, data)
	if err != nil {
		c.logger.WithContext(ctx).Error(err, "Failed to decode audio", logging.Fields{
			"function": "ConvertBytes",
		})
		return nil, fmt.Errorf("decode: %w", err)
	}

	return c.convertAudio(ctx, audio, out)
}

// ConvertFileToPath converts inputPath and writes the MIDI file to
// outputPath. A partially written output is removed on failure.
func (c *Converter) ConvertFileToPath(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	var buf bytes.Buffer
	result, err := c.ConvertFile(ctx, inputPath, &buf)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("write %s: %w", outputPath, err)
	}
	return result, nil
}

func (c *Converter) convertAudio(ctx context.Context, audio *transcode.AudioData, out io.Writer) (*Result, error) {
	if audio == nil {
		return nil, fmt.Errorf("decode: %w: no audio", transcribe.ErrInvalidInput)
	}

	result, err := c.ConvertSamples(ctx, audio.PCM, audio.SampleRate)
	if err != nil {
		return nil, err
	}
	result.Duration = audio.Duration
	result.Source = audio.Source

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.writer.Write(out, result.BPM, result.Notes); err != nil {
		return nil, fmt.Errorf("write midi: %w", err)
	}
	return result, nil
}

// ConvertSamples runs estimation, transcription and timing conversion over
// mono samples. It does not write MIDI.
func (c *Converter) ConvertSamples(ctx context.Context, samples []float64, sampleRate int) (*Result, error) {
	ctx = withRunID(ctx)
	start := time.Now()
	fields, _ := logging.FieldsFromContext(ctx)

	logger := c.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "ConvertSamples",
	})

	if sampleRate != c.options.Transcribe.SampleRate {
		return nil, fmt.Errorf("%w: audio sample rate %d differs from configured %d",
			transcribe.ErrConfiguration, sampleRate, c.options.Transcribe.SampleRate)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frames, err := c.frames.Estimate(samples, sampleRate)
	if err != nil {
		logger.Error(err, "Frame estimation failed")
		return nil, fmt.Errorf("estimate frames: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bpm, err := c.tempo.EstimateTempo(samples, sampleRate)
	if err != nil {
		logger.Error(err, "Tempo estimation failed")
		return nil, fmt.Errorf("estimate tempo: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	transcription, err := c.transcriber.Transcribe(frames)
	if err != nil {
		logger.Error(err, "Transcription failed")
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	timed, err := transcribe.ConvertTiming(transcription.Notes, transcription.HopSeconds, bpm)
	if err != nil {
		return nil, fmt.Errorf("convert timing: %w", err)
	}

	result := &Result{
		RunID:      fmt.Sprint(fields["run_id"]),
		BPM:        bpm,
		Tuning:     transcription.Tuning,
		NumFrames:  transcription.NumFrames,
		HopSeconds: transcription.HopSeconds,
		Duration:   samplesDuration(len(samples), sampleRate),
		Elapsed:    time.Since(start),
		Notes:      timed,
	}

	logger.Info("Conversion completed", logging.Fields{
		"frames":  result.NumFrames,
		"notes":   len(result.Notes),
		"bpm":     result.BPM,
		"tuning":  result.Tuning,
		"elapsed": result.Elapsed.Seconds(),
	})

	return result, nil
}

// withRunID tags ctx with a fresh run id unless it already carries one.
func withRunID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if fields, ok := logging.FieldsFromContext(ctx); ok {
		if _, ok := fields["run_id"]; ok {
			return ctx
		}
	}
	return logging.ContextWithFields(ctx, logging.Fields{
		"run_id": uuid.NewString(),
	})
}

func samplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
