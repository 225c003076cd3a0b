package converter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-midi/logging"
	"github.com/RyanBlaney/sonido-midi/midifile"
	"github.com/RyanBlaney/sonido-midi/transcode"
	"github.com/RyanBlaney/sonido-midi/transcribe"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

type fakeDecoder struct {
	sampleRate int
	fail       map[string]bool
}

func (f *fakeDecoder) audio(source string) *transcode.AudioData {
	return &transcode.AudioData{
		PCM:        make([]float64, 20*512),
		SampleRate: f.sampleRate,
		Channels:   1,
		Source:     source,
	}
}

func (f *fakeDecoder) DecodeFile(ctx context.Context, filename string) (*transcode.AudioData, error) {
	if f.fail[filename] {
		return nil, errors.New("unreadable")
	}
	return f.audio(filename), nil
}

func (f *fakeDecoder) DecodeBytes(ctx context.Context, data []byte) (*transcode.AudioData, error) {
	if len(data) == 0 {
		return nil, errors.New("empty")
	}
	return f.audio(""), nil
}

// fakeFrames reports a held A4 for every call.
type fakeFrames struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeFrames) Estimate(samples []float64, sampleRate int) (*transcribe.FrameSeries, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	n := 20
	fs := &transcribe.FrameSeries{
		F0:         make([]float64, n),
		Voiced:     make([]bool, n),
		VoicedProb: make([]float64, n),
		Onset:      make([]bool, n),
		SampleRate: sampleRate,
		HopLength:  512,
	}
	for i := range n {
		fs.F0[i] = 440
		fs.Voiced[i] = true
		fs.VoicedProb[i] = 1
	}
	fs.Onset[0] = true
	return fs, nil
}

type fakeTempo float64

func (f fakeTempo) EstimateTempo(samples []float64, sampleRate int) (float64, error) {
	return float64(f), nil
}

func newTestConverter(t *testing.T, options *Options) (*Converter, *fakeFrames) {
	t.Helper()
	if options == nil {
		options = DefaultOptions()
	}
	frames := &fakeFrames{}
	c, err := NewConverter(options,
		WithDecoder(&fakeDecoder{sampleRate: options.Transcribe.SampleRate, fail: map[string]bool{"bad.wav": true}}),
		WithFrameEstimator(frames),
		WithTempoEstimator(fakeTempo(120)),
	)
	require.NoError(t, err)
	return c, frames
}

func TestConvertBytesWritesMIDI(t *testing.T) {
	c, frames := newTestConverter(t, nil)

	var out bytes.Buffer
	result, err := c.ConvertBytes(context.Background(), []byte("audio"), &out)
	require.NoError(t, err)

	assert.Equal(t, 1, frames.calls)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 120.0, result.BPM)
	assert.Equal(t, 20, result.NumFrames)
	require.Len(t, result.Notes, 1)
	assert.Equal(t, 69, result.Notes[0].MIDI)
	assert.InDelta(t, 20*512.0/22050*2, result.Notes[0].DurationBeats, 1e-9)

	summary, err := midifile.ReadNotes(&out)
	require.NoError(t, err)
	assert.InDelta(t, 120, summary.Tempo, 0.01)
	require.Len(t, summary.Notes, 1)
	assert.Equal(t, midifile.NoteEvent{Key: 69, Velocity: 100, StartTick: 0, EndTick: 951}, summary.Notes[0])
}

func TestTempoOverrideWins(t *testing.T) {
	opts := DefaultOptions()
	opts.TempoBPM = 60
	c, _ := newTestConverter(t, opts)

	result, err := c.ConvertSamples(context.Background(), make([]float64, 1024), 22050)
	require.NoError(t, err)
	assert.Equal(t, 60.0, result.BPM)
}

func TestConvertSamplesRejectsSampleRate(t *testing.T) {
	c, frames := newTestConverter(t, nil)

	_, err := c.ConvertSamples(context.Background(), make([]float64, 1024), 44100)
	assert.ErrorIs(t, err, transcribe.ErrConfiguration)
	assert.Zero(t, frames.calls)
}

func TestConvertSamplesCancelled(t *testing.T) {
	c, frames := newTestConverter(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ConvertSamples(ctx, make([]float64, 1024), 22050)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, frames.calls)
}

func TestRunIDIsKept(t *testing.T) {
	c, _ := newTestConverter(t, nil)

	ctx := logging.ContextWithFields(context.Background(), logging.Fields{"run_id": "fixed"})
	result, err := c.ConvertSamples(ctx, make([]float64, 1024), 22050)
	require.NoError(t, err)
	assert.Equal(t, "fixed", result.RunID)
}

func TestConvertFileErrors(t *testing.T) {
	c, _ := newTestConverter(t, nil)

	var out bytes.Buffer
	_, err := c.ConvertFile(context.Background(), "bad.wav", &out)
	assert.Error(t, err)
	assert.Zero(t, out.Len())

	_, err = c.ConvertBytes(context.Background(), nil, &out)
	assert.Error(t, err)
}

func TestConvertFileToPath(t *testing.T) {
	c, _ := newTestConverter(t, nil)
	outPath := filepath.Join(t.TempDir(), "out.mid")

	result, err := c.ConvertFileToPath(context.Background(), "song.wav", outPath)
	require.NoError(t, err)
	assert.Equal(t, "song.wav", result.Source)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	summary, err := midifile.ReadNotes(f)
	require.NoError(t, err)
	assert.Len(t, summary.Notes, 1)
}

func TestConvertBatch(t *testing.T) {
	opts := DefaultOptions()
	opts.Workers = 3
	c, _ := newTestConverter(t, opts)

	dir := t.TempDir()
	jobs := []Job{
		{Input: "a.wav", Output: filepath.Join(dir, "a.mid")},
		{Input: "bad.wav", Output: filepath.Join(dir, "bad.mid")},
		{Input: "c.wav", Output: filepath.Join(dir, "c.mid")},
		{Input: "d.wav", Output: filepath.Join(dir, "d.mid")},
	}

	var mu sync.Mutex
	reported := 0
	results := c.ConvertBatch(context.Background(), jobs, func(BatchResult) {
		mu.Lock()
		reported++
		mu.Unlock()
	})

	require.Len(t, results, len(jobs))
	assert.Equal(t, len(jobs), reported)
	for i, r := range results {
		assert.Equal(t, jobs[i], r.Job)
		if r.Job.Input == "bad.wav" {
			assert.Error(t, r.Err)
			assert.NoFileExists(t, r.Job.Output)
			continue
		}
		require.NoError(t, r.Err)
		assert.Equal(t, r.Job.Input, r.Result.Source)
		assert.FileExists(t, r.Job.Output)
	}

	assert.Empty(t, c.ConvertBatch(context.Background(), nil, nil))
}

func TestConvertBatchCancelled(t *testing.T) {
	c, _ := newTestConverter(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := c.ConvertBatch(ctx, []Job{{Input: "a.wav", Output: filepath.Join(t.TempDir(), "a.mid")}}, nil)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestNewConverterValidates(t *testing.T) {
	opts := DefaultOptions()
	opts.MIDI.Velocity = 0
	_, err := NewConverter(opts)
	assert.ErrorIs(t, err, transcribe.ErrConfiguration)

	opts = DefaultOptions()
	opts.TempoBPM = -1
	_, err = NewConverter(opts)
	assert.ErrorIs(t, err, transcribe.ErrConfiguration)

	c, err := NewConverter(nil)
	require.NoError(t, err)
	assert.NotNil(t, c.Options())
}
