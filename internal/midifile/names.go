package midifile

import "fmt"

var pitchClasses = [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// General MIDI instrument families, eight programs each
var instrumentFamilies = [...]string{
	"piano", "chromatic percussion", "organ", "guitar",
	"bass", "strings", "ensemble", "brass",
	"reed", "pipe", "synth lead", "synth pad",
	"synth effects", "world", "percussive", "sound effects",
}

const (
	drumChannel     = 9
	drumFamily      = "drums"
	programsPerFam  = 8
	semitonesPerOct = 12
)

// PitchName returns scientific pitch notation for a MIDI note number (60 = C4)
func PitchName(midi int) string {
	return fmt.Sprintf("%s%d", pitchClasses[midi%semitonesPerOct], midi/semitonesPerOct-1)
}

// InstrumentFamily returns the GM family for a program, or "drums" on the
// percussion channel
func InstrumentFamily(channel, program int) string {
	if channel == drumChannel {
		return drumFamily
	}
	if program < 0 || program/programsPerFam >= len(instrumentFamilies) {
		return ""
	}
	return instrumentFamilies[program/programsPerFam]
}
