package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMIDIConversions(t *testing.T) {
	assert.InDelta(t, 440.0, MIDIToHz(69), 1e-9)
	assert.InDelta(t, 880.0, MIDIToHz(81), 1e-9)
	assert.InDelta(t, 69.0, HzToMIDI(440), 1e-9)
	assert.InDelta(t, 57.0, HzToMIDI(220), 1e-9)
	assert.True(t, HzToMIDI(0) != HzToMIDI(0), "expected NaN for 0 Hz")
}

func TestNoteName(t *testing.T) {
	assert.Equal(t, "A4", NoteName(69))
	assert.Equal(t, "C4", NoteName(60))
	assert.Equal(t, "A2", NoteName(45))
	assert.Equal(t, "E5", NoteName(76))
	assert.Equal(t, "C-1", NoteName(0))
}

func TestParseNoteName(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"A4", 69},
		{"a4", 69},
		{"C#3", 49},
		{"Bb2", 46},
		{"E5", 76},
		{" 60 ", 60},
		{"C-1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNoteName(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "H4", "A", "C#x", "128", "G9#"} {
		_, err := ParseNoteName(bad)
		assert.ErrorIs(t, err, ErrConfiguration, bad)
	}
}

func TestNoteNameRoundTrip(t *testing.T) {
	for midi := 0; midi < 128; midi++ {
		got, err := ParseNoteName(NoteName(midi))
		require.NoError(t, err)
		assert.Equal(t, midi, got)
	}
}
