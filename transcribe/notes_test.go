package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNotes(t *testing.T) {
	ss, err := NewStateSpace(60, 62)
	require.NoError(t, err)

	// 0 Silence, 1/2 Onset/Sustain(60), 3/4 (61), 5/6 (62)
	tests := []struct {
		name   string
		states []int
		want   []Note
	}{
		{
			name:   "empty path",
			states: []int{},
			want:   []Note{},
		},
		{
			name:   "silence only",
			states: []int{0, 0, 0},
			want:   []Note{},
		},
		{
			name:   "single note",
			states: []int{0, 1, 2, 2, 0},
			want:   []Note{{StartFrame: 1, EndFrame: 3, PitchIndex: 0, MIDI: 60}},
		},
		{
			name:   "note runs to the end",
			states: []int{3, 4, 4},
			want:   []Note{{StartFrame: 0, EndFrame: 2, PitchIndex: 1, MIDI: 61}},
		},
		{
			name:   "pitch change without silence",
			states: []int{1, 2, 5, 6},
			want: []Note{
				{StartFrame: 0, EndFrame: 1, PitchIndex: 0, MIDI: 60},
				{StartFrame: 2, EndFrame: 3, PitchIndex: 2, MIDI: 62},
			},
		},
		{
			name:   "re-articulation of the same pitch",
			states: []int{1, 2, 2, 1, 2},
			want: []Note{
				{StartFrame: 0, EndFrame: 2, PitchIndex: 0, MIDI: 60},
				{StartFrame: 3, EndFrame: 4, PitchIndex: 0, MIDI: 60},
			},
		},
		{
			name:   "path starts in sustain",
			states: []int{2, 2, 0, 0},
			want:   []Note{{StartFrame: 0, EndFrame: 1, PitchIndex: 0, MIDI: 60}},
		},
		{
			name:   "sustain of another pitch opens a note",
			states: []int{1, 2, 4, 4},
			want: []Note{
				{StartFrame: 0, EndFrame: 1, PitchIndex: 0, MIDI: 60},
				{StartFrame: 2, EndFrame: 3, PitchIndex: 1, MIDI: 61},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes, err := ExtractNotes(ss, tt.states)
			require.NoError(t, err)
			assert.Equal(t, tt.want, notes)
		})
	}
}

func TestExtractNotesRejectsBadIndex(t *testing.T) {
	ss, err := NewStateSpace(60, 60)
	require.NoError(t, err)

	_, err = ExtractNotes(ss, []int{0, 3})
	assert.ErrorIs(t, err, ErrInputShape)
}

func TestNoteHelpers(t *testing.T) {
	n := Note{StartFrame: 4, EndFrame: 9, MIDI: 70}
	assert.Equal(t, 6, n.Frames())
	assert.Equal(t, "A#4", n.Name())
}
