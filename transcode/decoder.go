package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-midi/logging"
)

// AudioData represents decoded mono audio
type AudioData struct {
	PCM        []float64     `json:"-"` // samples in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source,omitempty"`
	Codec      string        `json:"codec,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration"`
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"` // per ffmpeg/ffprobe invocation

	// NativeWAV decodes PCM WAV input in-process instead of through ffmpeg.
	NativeWAV bool `json:"native_wav"`

	// Normalization options, applied by ffmpeg only
	EnableNormalization bool    `json:"enable_normalization"`
	NormalizationMethod string  `json:"normalization_method"` // "loudnorm", "dynaudnorm"
	TargetLUFS          float64 `json:"target_lufs"`
	TargetPeak          float64 `json:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate:    22050,
		MaxDuration:         0, // No limit
		ResampleQuality:     "medium",
		FFmpegPath:          "ffmpeg",  // Assume in PATH
		FFprobePath:         "ffprobe", // Assume in PATH
		Timeout:             60 * time.Second,
		NativeWAV:           true,
		EnableNormalization: false,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -16.0,
		TargetPeak:          -1.0,
		LoudnessRange:       8.0,
	}
}

// Validate checks the configuration without touching the filesystem.
func (c *DecoderConfig) Validate() error {
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", c.TargetSampleRate)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", c.Timeout)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative: %v", c.MaxDuration)
	}
	switch c.ResampleQuality {
	case "", "fast", "medium", "high":
	default:
		return fmt.Errorf("unknown resample quality %q", c.ResampleQuality)
	}
	return nil
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// Decoder turns audio files into mono PCM at the target sample rate
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// Config returns the decoder configuration.
func (d *Decoder) Config() *DecoderConfig {
	return d.config
}

// DecodeFile decodes an audio file and returns mono PCM data
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	if d.config.NativeWAV && strings.EqualFold(filepath.Ext(filename), ".wav") {
		audio, err := d.decodeWAVFile(filename)
		if err == nil {
			logger.Debug("Decoded WAV natively", logging.Fields{
				"samples":     len(audio.PCM),
				"sample_rate": audio.SampleRate,
			})
			return audio, nil
		}
		if !errors.Is(err, errUnsupportedWAV) {
			return nil, err
		}
		logger.Debug("WAV encoding not handled natively, falling back to ffmpeg", logging.Fields{
			"reason": err.Error(),
		})
	}

	metadata, err := d.probe(ctx, filename, nil)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	args := append([]string{"-i", filename}, d.buildFFmpegArgs(metadata)...)
	output, err := d.runFFmpeg(ctx, args, nil)
	if err != nil {
		return nil, err
	}

	return d.processFFmpegOutput(output, metadata, filename, logger)
}

// DecodeBytes decodes audio held in memory
func (d *Decoder) DecodeBytes(ctx context.Context, data []byte) (*AudioData, error) {
	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":  "DecodeBytes",
		"data_size": len(data),
	})

	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}

	if d.config.NativeWAV && isWAV(data) {
		audio, err := d.decodeWAV(bytes.NewReader(data), "")
		if err == nil {
			return audio, nil
		}
		if !errors.Is(err, errUnsupportedWAV) {
			return nil, err
		}
		logger.Debug("WAV encoding not handled natively, falling back to ffmpeg", logging.Fields{
			"reason": err.Error(),
		})
	}

	metadata, err := d.probe(ctx, "pipe:0", data)
	if err != nil {
		logger.Error(err, "Failed to probe audio metadata")
		return nil, err
	}

	args := append([]string{"-i", "pipe:0"}, d.buildFFmpegArgs(metadata)...)
	output, err := d.runFFmpeg(ctx, args, data)
	if err != nil {
		return nil, err
	}

	return d.processFFmpegOutput(output, metadata, "", logger)
}

// DecodeReader decodes audio from an io.Reader
func (d *Decoder) DecodeReader(ctx context.Context, reader io.Reader) (*AudioData, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	return d.DecodeBytes(ctx, data)
}

// withTimeout bounds a single subprocess by the configured timeout
func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// probe runs ffprobe on input, reading stdin when input is "pipe:0"
func (d *Decoder) probe(ctx context.Context, input string, stdin []byte) (*AudioMetadata, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0", // first audio stream only
		input,
	}

	cmd := exec.CommandContext(ctx, d.config.FFprobePath, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

func (d *Decoder) runFFmpeg(ctx context.Context, args []string, stdin []byte) ([]byte, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	d.logger.Debug("Running ffmpeg command", logging.Fields{
		"function": "runFFmpeg",
		"args":     strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}
	return output, nil
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	// missing fields are left at zero
	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildFFmpegArgs builds the output arguments: mono f64le at the target
// rate on stdout.
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	args := []string{
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}

	var filters []string
	if metadata != nil && metadata.SampleRate != d.config.TargetSampleRate {
		switch d.config.ResampleQuality {
		case "fast":
			filters = append(filters, "aresample=resampler=soxr:precision=16")
		case "medium":
			filters = append(filters, "aresample=resampler=soxr:precision=20")
		case "high":
			filters = append(filters, "aresample=resampler=soxr:precision=28")
		}
	}
	if d.config.EnableNormalization {
		if norm := d.buildNormalizationFilter(); norm != "" {
			filters = append(filters, norm)
		}
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	return append(args, "-v", "error", "pipe:1")
}

// buildNormalizationFilter returns the ffmpeg filter for the configured
// normalization method, or "" when none applies.
func (d *Decoder) buildNormalizationFilter() string {
	switch d.config.NormalizationMethod {
	case "loudnorm":
		// EBU R128 loudness normalization
		return fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f",
			d.config.TargetLUFS,
			d.config.TargetPeak,
			d.config.LoudnessRange)
	case "dynaudnorm":
		return "dynaudnorm=p=0.95:m=10:s=12"
	default:
		return ""
	}
}

// processFFmpegOutput converts the raw ffmpeg output into AudioData
func (d *Decoder) processFFmpegOutput(output []byte, metadata *AudioMetadata, source string, logger logging.Logger) (*AudioData, error) {
	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	audio := &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   1,
		Duration:   samplesDuration(len(samples), d.config.TargetSampleRate),
		Source:     source,
		Codec:      metadata.Codec,
	}

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"input_sample_rate":  metadata.SampleRate,
		"input_channels":     metadata.Channels,
		"output_samples":     len(samples),
		"output_sample_rate": audio.SampleRate,
		"output_duration":    audio.Duration.Seconds(),
	})

	return audio, nil
}

func samplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}

// bytesToFloat64 converts raw little-endian float64 bytes, dropping a
// trailing partial sample.
func bytesToFloat64(data []byte) []float64 {
	data = data[:len(data)-(len(data)%8)]
	if len(data) == 0 {
		return nil
	}

	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}

// CheckFFmpeg verifies that ffmpeg and ffprobe can be executed
func (d *Decoder) CheckFFmpeg(ctx context.Context) error {
	for _, bin := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if err := exec.CommandContext(ctx, bin, "-version").Run(); err != nil {
			return fmt.Errorf("%s not available: %w", bin, err)
		}
	}
	return nil
}
