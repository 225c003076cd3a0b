package converter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-midi/transcribe"
)

func writeOptions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOptionsFile(t *testing.T) {
	path := writeOptions(t, `{
		"transcribe": {"note_min": 40, "sustain_probability": 0.8},
		"midi": {"velocity": 90},
		"tempo_bpm": 100,
		"workers": 2
	}`)

	opts, err := LoadOptionsFile(path)
	require.NoError(t, err)

	defaults := transcribe.DefaultConfig()
	assert.Equal(t, 40, opts.Transcribe.NoteMin)
	assert.Equal(t, defaults.NoteMax, opts.Transcribe.NoteMax)
	assert.Equal(t, 0.8, opts.Transcribe.SustainProbability)
	assert.Equal(t, defaults.OnsetAccuracy, opts.Transcribe.OnsetAccuracy)
	assert.Equal(t, uint8(90), opts.MIDI.Velocity)
	assert.Equal(t, uint16(1024), opts.MIDI.TicksPerQuarter)
	assert.Equal(t, 100.0, opts.TempoBPM)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, 22050, opts.Decoder.TargetSampleRate)
}

func TestLoadOptionsFileNullSection(t *testing.T) {
	opts, err := LoadOptionsFile(writeOptions(t, `{"decoder": null}`))
	require.NoError(t, err)
	assert.NotNil(t, opts.Decoder)
}

func TestLoadOptionsFileErrors(t *testing.T) {
	_, err := LoadOptionsFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadOptionsFile(writeOptions(t, `{not json`))
	assert.ErrorIs(t, err, transcribe.ErrConfiguration)

	_, err = LoadOptionsFile(writeOptions(t, `{"transcribe": {"note_min": 80, "note_max": 60}}`))
	assert.ErrorIs(t, err, transcribe.ErrConfiguration)

	_, err = LoadOptionsFile(writeOptions(t, `{"decoder": {"target_sample_rate": -1}}`))
	assert.ErrorIs(t, err, transcribe.ErrConfiguration)

	_, err = LoadOptionsFile(writeOptions(t, `{"workers": -2}`))
	assert.ErrorIs(t, err, transcribe.ErrConfiguration)
}
