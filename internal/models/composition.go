package models

// Composition is the decoded form of a MIDI file, laid out like the Tone.js
// MIDI JSON the completion prompts are written against.
type Composition struct {
	Header Header  `json:"header"`
	Tracks []Track `json:"tracks"`
}

// Header holds file-level timing metadata. Every field is optional.
type Header struct {
	Name           string               `json:"name"`
	PPQ            int                  `json:"ppq,omitempty"`
	Tempos         []TempoEvent         `json:"tempos"`
	TimeSignatures []TimeSignatureEvent `json:"timeSignatures"`
	KeySignatures  []KeySignatureEvent  `json:"keySignatures"`
	Meta           []MetaEvent          `json:"meta"`
}

// TempoEvent sets the tempo from Ticks onwards
type TempoEvent struct {
	BPM   float64 `json:"bpm"`
	Ticks int     `json:"ticks"`
	Time  float64 `json:"time,omitempty"`
}

// TimeSignatureEvent holds [numerator, denominator]
type TimeSignatureEvent struct {
	Ticks         int     `json:"ticks"`
	TimeSignature []int   `json:"timeSignature"`
	Measures      float64 `json:"measures,omitempty"`
}

// KeySignatureEvent represents a key change, e.g. {"key": "C", "scale": "major"}
type KeySignatureEvent struct {
	Key   string `json:"key"`
	Scale string `json:"scale"`
	Ticks int    `json:"ticks"`
}

// MetaEvent is a text meta event (copyright, marker, lyrics...)
type MetaEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Ticks int    `json:"ticks"`
}

// Track is one instrument part
type Track struct {
	Name           string                    `json:"name"`
	Channel        int                       `json:"channel"`
	Instrument     Instrument                `json:"instrument"`
	Notes          []Note                    `json:"notes"`
	ControlChanges map[string][]ControlEvent `json:"controlChanges,omitempty"`
	EndOfTrackTick int                       `json:"endOfTrackTicks,omitempty"`
}

// Instrument is the General MIDI program of a track
type Instrument struct {
	Number int    `json:"number"`
	Family string `json:"family,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Note is a single note. Time and Duration are in seconds, Ticks and
// DurationTicks in pulses at Header.PPQ. Velocity is normalised to 0..1.
type Note struct {
	Midi          int     `json:"midi"`
	Name          string  `json:"name,omitempty"`
	Ticks         int     `json:"ticks"`
	Time          float64 `json:"time"`
	Velocity      float64 `json:"velocity"`
	Duration      float64 `json:"duration"`
	DurationTicks int     `json:"durationTicks"`
}

// ControlEvent is a controller value change
type ControlEvent struct {
	Number int     `json:"number"`
	Ticks  int     `json:"ticks"`
	Time   float64 `json:"time,omitempty"`
	Value  float64 `json:"value"`
}

// NoteCount returns the total number of notes across all tracks
func (c *Composition) NoteCount() int {
	total := 0
	for _, track := range c.Tracks {
		total += len(track.Notes)
	}
	return total
}
