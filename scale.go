package main

import (
	"fmt"
	"sort"
	"strings"
)

const (
	NumLocal    = 11 // touch pads read directly by this controller
	NumRemote   = 6  // touch bits reported by the secondary controller
	NumChannels = NumLocal + NumRemote

	Octave = 12
)

// ScaleTable holds one pitch per channel, index-aligned with the keyboard.
type ScaleTable [NumChannels]uint8

// Step patterns in semitones. Each repeats until the table is full.
var scalePatterns = map[string][]uint8{
	"major":            {2, 2, 1, 2, 2, 2, 1},
	"minor":            {2, 1, 2, 2, 1, 2, 2},
	"pentatonic":       {2, 2, 3, 2, 3},
	"minor-pentatonic": {3, 2, 2, 3, 2},
	"minor-blues":      {3, 2, 1, 1, 3, 2},
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// BuildScale fills a table starting at tonic, walking the step pattern and
// wrapping around it. steps must not be empty.
func BuildScale(tonic uint8, steps []uint8) ScaleTable {
	var t ScaleTable
	t[0] = tonic
	for i := 1; i < NumChannels; i++ {
		t[i] = t[i-1] + steps[(i-1)%len(steps)]
	}
	return t
}

// ScaleByName returns the step pattern registered under name.
func ScaleByName(name string) ([]uint8, error) {
	steps, ok := scalePatterns[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown scale %q (have %s)", name, strings.Join(scaleNames(), ", "))
	}
	return steps, nil
}

func scaleNames() []string {
	names := make([]string, 0, len(scalePatterns))
	for n := range scalePatterns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// KeyOffset maps a key name such as "G" or "c#" to its semitone offset from C.
func KeyOffset(name string) (int, error) {
	for i, n := range noteNames {
		if strings.EqualFold(n, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

// Transposition is the fixed offset added to every table pitch on emission.
func Transposition(key, octave int) int {
	return key + octave*Octave
}

func pitchName(pitch int) string {
	if pitch < 0 {
		return fmt.Sprintf("?\"%d\"", pitch)
	}
	return fmt.Sprintf("%s%d", noteNames[pitch%12], (pitch/12)-1)
}
