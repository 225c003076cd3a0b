package transcode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
)

// errUnsupportedWAV marks WAV input the native path does not decode. The
// decoder falls back to ffmpeg for it.
var errUnsupportedWAV = errors.New("unsupported wav encoding")

const wavFormatPCM = 1

// isWAV reports whether data starts with a RIFF/WAVE header.
func isWAV(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WAVE"))
}

func (d *Decoder) decodeWAVFile(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	return d.decodeWAV(f, filename)
}

// decodeWAV reads integer PCM WAV, downmixes to mono, scales to [-1, 1] and
// resamples to the target rate.
func (d *Decoder) decodeWAV(r io.ReadSeeker, source string) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav header", errUnsupportedWAV)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: audio format %d", errUnsupportedWAV, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}

	channels := int(dec.NumChans)
	sampleRate := int(dec.SampleRate)
	bitDepth := int(dec.BitDepth)
	if channels <= 0 || sampleRate <= 0 || bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d channels, %d Hz, %d bits", errUnsupportedWAV, channels, sampleRate, bitDepth)
	}

	mono := downmix(buf.Data, channels, fullScale(bitDepth))
	if maxDuration := d.config.MaxDuration; maxDuration > 0 {
		limit := int(maxDuration.Seconds() * float64(sampleRate))
		if limit < len(mono) {
			mono = mono[:limit]
		}
	}
	pcm := common.Resample(mono, sampleRate, d.config.TargetSampleRate)

	return &AudioData{
		PCM:        pcm,
		SampleRate: d.config.TargetSampleRate,
		Channels:   1,
		Duration:   samplesDuration(len(pcm), d.config.TargetSampleRate),
		Source:     source,
		Codec:      fmt.Sprintf("pcm_s%dle", bitDepth),
	}, nil
}

// fullScale is the magnitude of the most negative sample at bitDepth.
// 8-bit WAV is unsigned; go-audio leaves it offset by 128, handled in
// downmix.
func fullScale(bitDepth int) float64 {
	return float64(int64(1) << (bitDepth - 1))
}

// downmix averages interleaved channels into one normalized stream.
func downmix(data []int, channels int, scale float64) []float64 {
	frames := len(data) / channels
	mono := make([]float64, frames)
	offset := 0.0
	if scale == 128 {
		offset = 128
	}

	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += float64(data[i*channels+c]) - offset
		}
		mono[i] = sum / float64(channels) / scale
	}
	return mono
}
