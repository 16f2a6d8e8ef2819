package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Limits of what a Standard MIDI File can carry
const (
	MaxPPQ     = 0x7FFF          // metric timing keeps the top bit clear
	MaxTick    = math.MaxUint32  // absolute event tick
	MaxBPM     = 60e6            // one microsecond per quarter note
	MinBPM     = 60e6 / 0xFFFFFF // 24-bit microseconds per quarter note
	MaxSeconds = 24 * 60 * 60
)

const (
	maxMidiValue   = 127
	maxChannel     = 15
	maxVelocity    = 1.0
	maxSafeInteger = 1 << 53
	timeSigLen     = 2
	rootPath       = "$"
	fieldTracks    = "tracks"
	fieldTimeSigs  = "header.timeSignatures"
	fieldTempos    = "header.tempos"
	fieldPPQ       = "header.ppq"
)

var (
	reasonTicks   = fmt.Sprintf("must be between 0 and %d", uint32(MaxTick))
	reasonSeconds = fmt.Sprintf("must be between 0 and %d seconds", MaxSeconds)
)

// ValidationError pinpoints the field of a composition payload that failed
// to decode or validate.
type ValidationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DecodeComposition parses and validates a composition payload. The only
// required field is "tracks", which may be empty. Integral floats such as
// 480.0 are accepted for integer fields.
func DecodeComposition(data []byte) (*Composition, error) {
	tree, err := decodeTree(data)
	if err != nil {
		return nil, jsonError(err, nil)
	}
	object, ok := tree.(map[string]any)
	if !ok {
		return nil, &ValidationError{Path: rootPath, Reason: "must be a JSON object"}
	}
	if object[fieldTracks] == nil {
		return nil, &ValidationError{Path: fieldTracks, Reason: "is required"}
	}

	normalized, err := json.Marshal(normalizeNumbers(tree))
	if err != nil {
		return nil, jsonError(err, tree)
	}

	var composition Composition
	if err := json.Unmarshal(normalized, &composition); err != nil {
		return nil, jsonError(err, tree)
	}
	if composition.Tracks == nil {
		composition.Tracks = []Track{}
	}

	if err := composition.Validate(); err != nil {
		return nil, err
	}
	return &composition, nil
}

// decodeTree parses exactly one JSON value, keeping numbers as written
func decodeTree(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after offset %d", dec.InputOffset())
	}
	return tree, nil
}

// normalizeNumbers rewrites integral floats (480.0, 4.8e2) as integers
func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			v[k] = normalizeNumbers(child)
		}
	case []any:
		for i, child := range v {
			v[i] = normalizeNumbers(child)
		}
	case json.Number:
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			return v
		}
		f, err := v.Float64()
		if err == nil && f == math.Trunc(f) && math.Abs(f) < maxSafeInteger {
			return json.Number(strconv.FormatInt(int64(f), 10))
		}
	}
	return v
}

func jsonError(err error, tree any) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		path := typeErr.Field
		if path == "" {
			path = rootPath
		} else if indexed, ok := locate(tree, strings.Split(path, "."), valueKind(typeErr.Value), ""); ok {
			path = indexed
		}
		return &ValidationError{
			Path:   path,
			Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
			Err:    err,
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ValidationError{
			Path:   rootPath,
			Reason: fmt.Sprintf("malformed JSON at offset %d: %v", syntaxErr.Offset, err),
			Err:    err,
		}
	}

	return &ValidationError{Path: rootPath, Reason: err.Error(), Err: err}
}

// locate finds the first value of the given JSON kind along a dotted field
// path, adding the array indices the decoder leaves out
func locate(node any, segments []string, kind, prefix string) (string, bool) {
	if len(segments) == 0 && jsonKind(node) == kind {
		return prefix, true
	}

	switch v := node.(type) {
	case []any:
		for i, elem := range v {
			if path, ok := locate(elem, segments, kind, fmt.Sprintf("%s[%d]", prefix, i)); ok {
				return path, true
			}
		}
	case map[string]any:
		if len(segments) == 0 {
			return "", false
		}
		child, ok := v[segments[0]]
		if !ok {
			return "", false
		}
		next := segments[0]
		if prefix != "" {
			next = prefix + "." + next
		}
		return locate(child, segments[1:], kind, next)
	}
	return "", false
}

func jsonKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "null"
	}
}

// valueKind reduces an UnmarshalTypeError value ("number 480.5") to its kind
func valueKind(value string) string {
	if kind, _, found := strings.Cut(value, " "); found {
		return kind
	}
	return value
}

// Validate checks value ranges and returns the first violation found
func (c *Composition) Validate() error {
	// zero means the encoder default
	if c.Header.PPQ < 0 || c.Header.PPQ > MaxPPQ {
		return &ValidationError{Path: fieldPPQ, Reason: fmt.Sprintf("must be between 1 and %d", MaxPPQ)}
	}

	for i, tempo := range c.Header.Tempos {
		if tempo.BPM < MinBPM || tempo.BPM > MaxBPM {
			return &ValidationError{
				Path:   fmt.Sprintf("%s[%d].bpm", fieldTempos, i),
				Reason: fmt.Sprintf("must be between %.2f and %.0f", MinBPM, MaxBPM),
			}
		}
		if !tickInRange(tempo.Ticks) {
			return &ValidationError{Path: fmt.Sprintf("%s[%d].ticks", fieldTempos, i), Reason: reasonTicks}
		}
	}

	for i, ts := range c.Header.TimeSignatures {
		if !tickInRange(ts.Ticks) {
			return &ValidationError{Path: fmt.Sprintf("%s[%d].ticks", fieldTimeSigs, i), Reason: reasonTicks}
		}
		path := fmt.Sprintf("%s[%d].timeSignature", fieldTimeSigs, i)
		if len(ts.TimeSignature) != timeSigLen {
			return &ValidationError{Path: path, Reason: "must be [numerator, denominator]"}
		}
		if ts.TimeSignature[0] <= 0 || ts.TimeSignature[0] > maxMidiValue {
			return &ValidationError{Path: path + "[0]", Reason: "numerator out of range"}
		}
		if den := ts.TimeSignature[1]; den <= 0 || bits.OnesCount(uint(den)) != 1 {
			return &ValidationError{Path: path + "[1]", Reason: "denominator must be a power of two"}
		}
	}

	for i := range c.Tracks {
		if err := c.Tracks[i].validate(fmt.Sprintf("%s[%d]", fieldTracks, i)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Track) validate(path string) error {
	if t.Channel < 0 || t.Channel > maxChannel {
		return &ValidationError{Path: path + ".channel", Reason: "must be between 0 and 15"}
	}
	if t.Instrument.Number < 0 || t.Instrument.Number > maxMidiValue {
		return &ValidationError{Path: path + ".instrument.number", Reason: "must be between 0 and 127"}
	}

	for i, note := range t.Notes {
		notePath := fmt.Sprintf("%s.notes[%d]", path, i)
		switch {
		case note.Midi < 0 || note.Midi > maxMidiValue:
			return &ValidationError{Path: notePath + ".midi", Reason: "must be between 0 and 127"}
		case note.Velocity < 0 || note.Velocity > maxVelocity:
			return &ValidationError{Path: notePath + ".velocity", Reason: "must be between 0 and 1"}
		case note.Time < 0 || note.Time > MaxSeconds:
			return &ValidationError{Path: notePath + ".time", Reason: reasonSeconds}
		case note.Duration < 0 || note.Time+note.Duration > MaxSeconds:
			return &ValidationError{Path: notePath + ".duration", Reason: reasonSeconds}
		case !tickInRange(note.Ticks):
			return &ValidationError{Path: notePath + ".ticks", Reason: reasonTicks}
		case note.DurationTicks < 0 || int64(note.Ticks)+int64(note.DurationTicks) > MaxTick:
			return &ValidationError{Path: notePath + ".durationTicks", Reason: fmt.Sprintf("note must end by tick %d", uint32(MaxTick))}
		}
	}

	for controller, events := range t.ControlChanges {
		for i, event := range events {
			eventPath := fmt.Sprintf("%s.controlChanges[%s][%d]", path, controller, i)
			if event.Number < 0 || event.Number > maxMidiValue {
				return &ValidationError{Path: eventPath + ".number", Reason: "must be between 0 and 127"}
			}
			if event.Value < 0 || event.Value > maxVelocity {
				return &ValidationError{Path: eventPath + ".value", Reason: "must be between 0 and 1"}
			}
			if !tickInRange(event.Ticks) {
				return &ValidationError{Path: eventPath + ".ticks", Reason: reasonTicks}
			}
			if event.Time < 0 || event.Time > MaxSeconds {
				return &ValidationError{Path: eventPath + ".time", Reason: reasonSeconds}
			}
		}
	}
	return nil
}

func tickInRange(tick int) bool {
	return tick >= 0 && int64(tick) <= MaxTick
}
