package transcribe

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Equal temperament reference: A4 = 440 Hz = MIDI 69
const (
	referenceHz   = 440.0
	referenceMIDI = 69
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var noteOffsets = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// MIDIToHz converts a (possibly fractional) MIDI note number to Hz.
func MIDIToHz(midi float64) float64 {
	return referenceHz * math.Pow(2, (midi-referenceMIDI)/12.0)
}

// HzToMIDI converts a frequency to a fractional MIDI note number.
// Returns NaN for non-positive frequencies.
func HzToMIDI(hz float64) float64 {
	if hz <= 0 {
		return math.NaN()
	}
	return referenceMIDI + 12*math.Log2(hz/referenceHz)
}

// NoteName renders a MIDI note number in "A#4" form.
func NoteName(midi int) string {
	octave := midi/12 - 1
	return fmt.Sprintf("%s%d", noteNames[((midi%12)+12)%12], octave)
}

// ParseNoteName parses "A4", "C#3", "Bb2" or a bare MIDI number.
func ParseNoteName(name string) (int, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, configError("empty note name")
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 127 {
			return 0, configError("MIDI note %d out of range", n)
		}
		return n, nil
	}

	letter := strings.ToUpper(s[:1])
	offset, ok := noteOffsets[letter]
	if !ok {
		return 0, configError("invalid note name %q", name)
	}

	rest := s[1:]
	for len(rest) > 0 && (rest[0] == '#' || rest[0] == 'b') {
		if rest[0] == '#' {
			offset++
		} else {
			offset--
		}
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, configError("invalid octave in note name %q", name)
	}

	midi := (octave+1)*12 + offset
	if midi < 0 || midi > 127 {
		return 0, configError("note %q out of MIDI range", name)
	}
	return midi, nil
}
