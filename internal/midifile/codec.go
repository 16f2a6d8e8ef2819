// Package midifile converts compositions to and from Standard MIDI Files.
package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/Conceptual-Machines/sparkle-api/internal/models"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	// DefaultPPQ is used when a composition carries no resolution
	DefaultPPQ = 480

	defaultVelocity = 100
	maxDataByte     = 127

	metaPrefix      = 0xFF
	metaTrackName   = 0x03
	metaTimeSig     = 0x58
	timeSigDataLen  = 0x04
	clocksPerClick  = 24
	thirtySecondsPQ = 8
)

// ordering of events that share a tick
const (
	orderMeta = iota
	orderProgram
	orderControl
	orderNoteOff
	orderNoteOn
)

// ErrUnsupportedTiming is returned for SMPTE-timed files
var ErrUnsupportedTiming = errors.New("only metric (ticks per quarter) MIDI files are supported")

// ErrTimingRange is returned when a composition's timing cannot be written
// into an SMF: resolution above 15 bits, a tempo outside the 24-bit
// microseconds-per-quarter field, or an event past the 32-bit tick range.
var ErrTimingRange = errors.New("timing out of MIDI file range")

// Codec encodes and decodes Standard MIDI Files
type Codec struct {
	PPQ int
}

// NewCodec creates a codec writing files at DefaultPPQ when the composition
// does not specify a resolution
func NewCodec() *Codec {
	return &Codec{PPQ: DefaultPPQ}
}

type timedMessage struct {
	tick  int
	order int
	msg   []byte
}

// Encode writes the composition as a format 1 SMF. The first track carries
// tempo and time signature; each composition track follows with its name,
// program and notes.
func (c *Codec) Encode(composition *models.Composition) ([]byte, error) {
	if composition == nil {
		return nil, fmt.Errorf("composition is nil")
	}

	ppq := composition.Header.PPQ
	if ppq <= 0 {
		ppq = c.PPQ
	}
	if ppq <= 0 {
		ppq = DefaultPPQ
	}
	if ppq > models.MaxPPQ {
		return nil, fmt.Errorf("%w: ppq %d", ErrTimingRange, ppq)
	}
	tempos := newTempoMap(ppq, composition.Header.Tempos)
	for _, point := range tempos.points {
		if point.bpm < models.MinBPM || point.bpm > models.MaxBPM {
			return nil, fmt.Errorf("%w: tempo %g bpm", ErrTimingRange, point.bpm)
		}
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ppq)

	conductor, err := buildTrack(conductorMessages(composition, tempos))
	if err != nil {
		return nil, fmt.Errorf("conductor track: %w", err)
	}
	if err := s.Add(conductor); err != nil {
		return nil, fmt.Errorf("failed to add conductor track: %w", err)
	}

	for i := range composition.Tracks {
		track, err := buildTrack(trackMessages(&composition.Tracks[i], tempos))
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i, err)
		}
		if err := s.Add(track); err != nil {
			return nil, fmt.Errorf("failed to add track %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI file: %w", err)
	}
	return buf.Bytes(), nil
}

func conductorMessages(composition *models.Composition, tempos *tempoMap) []timedMessage {
	var messages []timedMessage
	if composition.Header.Name != "" {
		messages = append(messages, timedMessage{msg: smf.MetaTrackSequenceName(composition.Header.Name)})
	}

	for _, point := range tempos.points {
		messages = append(messages, timedMessage{tick: point.tick, msg: smf.MetaTempo(point.bpm)})
	}

	for _, ts := range composition.Header.TimeSignatures {
		if len(ts.TimeSignature) != 2 {
			continue
		}
		messages = append(messages, timedMessage{
			tick: ts.Ticks,
			msg:  timeSignatureMessage(ts.TimeSignature[0], ts.TimeSignature[1]),
		})
	}
	return messages
}

func timeSignatureMessage(numerator, denominator int) []byte {
	power := uint8(0)
	for d := denominator; d > 1; d /= 2 {
		power++
	}
	return smf.Message([]byte{metaPrefix, metaTimeSig, timeSigDataLen, uint8(numerator), power, clocksPerClick, thirtySecondsPQ})
}

func trackMessages(track *models.Track, tempos *tempoMap) []timedMessage {
	channel := uint8(track.Channel)
	messages := []timedMessage{
		{order: orderProgram, msg: midi.ProgramChange(channel, uint8(track.Instrument.Number))},
	}
	if track.Name != "" {
		messages = append(messages, timedMessage{order: orderMeta, msg: smf.MetaTrackSequenceName(track.Name)})
	}

	for key, events := range track.ControlChanges {
		for _, event := range events {
			controller := event.Number
			if n, err := strconv.Atoi(key); err == nil && controller == 0 {
				controller = n
			}
			tick := event.Ticks
			if tick == 0 && event.Time > 0 {
				tick = tempos.ticksAt(event.Time)
			}
			messages = append(messages, timedMessage{
				tick:  tick,
				order: orderControl,
				msg:   midi.ControlChange(channel, uint8(controller), scaleUnit(event.Value)),
			})
		}
	}

	for _, note := range track.Notes {
		start, end := noteSpan(note, tempos)
		velocity := scaleUnit(note.Velocity)
		if velocity == 0 {
			velocity = defaultVelocity
		}
		messages = append(messages,
			timedMessage{tick: start, order: orderNoteOn, msg: midi.NoteOn(channel, uint8(note.Midi), velocity)},
			timedMessage{tick: end, order: orderNoteOff, msg: midi.NoteOff(channel, uint8(note.Midi))},
		)
	}
	return messages
}

// noteSpan resolves a note to absolute ticks, preferring explicit ticks over
// seconds. A note always lasts at least one tick.
func noteSpan(note models.Note, tempos *tempoMap) (int, int) {
	start := note.Ticks
	if start == 0 && note.Time > 0 {
		start = tempos.ticksAt(note.Time)
	}

	length := note.DurationTicks
	if length == 0 && note.Duration > 0 {
		startSeconds := tempos.secondsAt(start)
		length = tempos.ticksAt(startSeconds+note.Duration) - start
	}
	if length < 1 {
		length = 1
	}
	return start, start + length
}

func scaleUnit(v float64) uint8 {
	scaled := math.Round(v * maxDataByte)
	switch {
	case scaled < 0:
		return 0
	case scaled > maxDataByte:
		return maxDataByte
	default:
		return uint8(scaled)
	}
}

func buildTrack(messages []timedMessage) (smf.Track, error) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].tick != messages[j].tick {
			return messages[i].tick < messages[j].tick
		}
		return messages[i].order < messages[j].order
	})

	var track smf.Track
	lastTick := 0
	for _, m := range messages {
		if m.tick < 0 || int64(m.tick) > models.MaxTick {
			return nil, fmt.Errorf("%w: event at tick %d", ErrTimingRange, m.tick)
		}
		track.Add(uint32(m.tick-lastTick), m.msg)
		lastTick = m.tick
	}
	track.Close(0)
	return track, nil
}

type pendingNote struct {
	tick     int
	velocity uint8
}

// Decode reads an SMF into a composition. Tracks without channel events
// (tempo or conductor tracks) are folded into the header.
func (c *Codec) Decode(data []byte) (*models.Composition, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI file: %w", err)
	}

	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrUnsupportedTiming
	}
	ppq := int(mt.Resolution())

	composition := &models.Composition{
		Header: models.Header{PPQ: ppq},
		Tracks: []models.Track{},
	}

	// tempo and time signature may live on any track
	for _, track := range s.Tracks {
		tick := 0
		for _, ev := range track {
			tick += int(ev.Delta)

			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				composition.Header.Tempos = append(composition.Header.Tempos, models.TempoEvent{BPM: bpm, Ticks: tick})
			}
			if num, den, ok := parseTimeSignature(ev.Message); ok {
				composition.Header.TimeSignatures = append(composition.Header.TimeSignatures, models.TimeSignatureEvent{
					Ticks:         tick,
					TimeSignature: []int{num, den},
				})
			}
		}
	}

	tempos := newTempoMap(ppq, composition.Header.Tempos)
	if len(composition.Header.Tempos) == 0 {
		composition.Header.Tempos = []models.TempoEvent{{BPM: tempos.initialBPM()}}
	}
	for i := range composition.Header.Tempos {
		composition.Header.Tempos[i].Time = tempos.secondsAt(composition.Header.Tempos[i].Ticks)
	}

	for _, track := range s.Tracks {
		decoded, hasChannelEvents := decodeTrack(track, tempos)
		if !hasChannelEvents {
			if composition.Header.Name == "" {
				composition.Header.Name = decoded.Name
			}
			continue
		}
		composition.Tracks = append(composition.Tracks, decoded)
	}

	return composition, nil
}

func decodeTrack(track smf.Track, tempos *tempoMap) (models.Track, bool) {
	decoded := models.Track{Notes: []models.Note{}}
	pending := make(map[[2]uint8][]pendingNote)
	hasChannelEvents := false
	channelSet := false
	tick := 0

	closeNote := func(channel, key uint8, endTick int) {
		id := [2]uint8{channel, key}
		queue := pending[id]
		if len(queue) == 0 {
			return
		}
		start := queue[0]
		pending[id] = queue[1:]
		decoded.Notes = append(decoded.Notes, models.Note{
			Midi:          int(key),
			Name:          PitchName(int(key)),
			Ticks:         start.tick,
			Time:          tempos.secondsAt(start.tick),
			Velocity:      float64(start.velocity) / maxDataByte,
			Duration:      tempos.secondsAt(endTick) - tempos.secondsAt(start.tick),
			DurationTicks: endTick - start.tick,
		})
	}

	for _, ev := range track {
		tick += int(ev.Delta)
		msg := midi.Message(ev.Message)

		if name, ok := parseTrackName(ev.Message); ok && decoded.Name == "" {
			decoded.Name = name
			continue
		}

		var channel, key, velocity, controller, value, program uint8
		isChannelEvent := true
		switch {
		case msg.GetNoteStart(&channel, &key, &velocity):
			id := [2]uint8{channel, key}
			pending[id] = append(pending[id], pendingNote{tick: tick, velocity: velocity})
		case msg.GetNoteEnd(&channel, &key):
			// includes note-on with zero velocity
			closeNote(channel, key, tick)
		case msg.GetProgramChange(&channel, &program):
			decoded.Instrument.Number = int(program)
		case msg.GetControlChange(&channel, &controller, &value):
			if decoded.ControlChanges == nil {
				decoded.ControlChanges = make(map[string][]models.ControlEvent)
			}
			ccKey := strconv.Itoa(int(controller))
			decoded.ControlChanges[ccKey] = append(decoded.ControlChanges[ccKey], models.ControlEvent{
				Number: int(controller),
				Ticks:  tick,
				Time:   tempos.secondsAt(tick),
				Value:  float64(value) / maxDataByte,
			})
		default:
			isChannelEvent = false
		}

		if isChannelEvent {
			hasChannelEvents = true
			if !channelSet {
				decoded.Channel = int(channel)
				channelSet = true
			}
		}
	}

	// notes still sounding at the end of the track end there
	for id, queue := range pending {
		for range queue {
			closeNote(id[0], id[1], tick)
		}
	}
	decoded.EndOfTrackTick = tick

	sort.SliceStable(decoded.Notes, func(i, j int) bool {
		if decoded.Notes[i].Ticks != decoded.Notes[j].Ticks {
			return decoded.Notes[i].Ticks < decoded.Notes[j].Ticks
		}
		return decoded.Notes[i].Midi < decoded.Notes[j].Midi
	})

	decoded.Instrument.Family = InstrumentFamily(decoded.Channel, decoded.Instrument.Number)
	return decoded, hasChannelEvents
}

func parseTimeSignature(msg smf.Message) (int, int, bool) {
	if len(msg) < 5 || msg[0] != metaPrefix || msg[1] != metaTimeSig {
		return 0, 0, false
	}
	return int(msg[3]), 1 << msg[4], true
}

func parseTrackName(msg smf.Message) (string, bool) {
	if len(msg) < 3 || msg[0] != metaPrefix || msg[1] != metaTrackName {
		return "", false
	}
	length, offset := 0, 2
	for offset < len(msg) {
		b := msg[offset]
		offset++
		length = length<<7 | int(b&0x7F)
		if b&0x80 == 0 {
			break
		}
	}
	if offset+length > len(msg) {
		return "", false
	}
	return string(msg[offset : offset+length]), true
}
