// Package audio renders MIDI files to WAV through a SoundFont synthesizer.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sinshu/go-meltysynth/meltysynth"
)

const (
	SampleRate = 44100
	bitDepth   = 16
	channels   = 2
	wavPCM     = 1

	blockFrames = 1024
	releaseTail = 2 * time.Second
	maxLength   = 10 * time.Minute
)

var (
	ErrSoundFontNotFound = errors.New("soundfont not found")
	ErrTooLong           = errors.New("MIDI file too long to render")
)

// Renderer synthesizes MIDI files with one loaded SoundFont. It is safe for
// concurrent use; every Render call builds its own synthesizer.
type Renderer struct {
	soundFont *meltysynth.SoundFont
}

// LoadSoundFont reads and parses an .sf2 file
func LoadSoundFont(path string) (*Renderer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSoundFontNotFound, path)
		}
		return nil, fmt.Errorf("failed to read SoundFont file: %w", err)
	}

	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}
	return &Renderer{soundFont: soundFont}, nil
}

// Render writes the MIDI file as 16-bit stereo PCM WAV at SampleRate. The
// output covers the file length plus a short release tail.
func (r *Renderer) Render(ctx context.Context, midiData []byte, w io.WriteSeeker) error {
	midiFile, err := meltysynth.NewMidiFile(bytes.NewReader(midiData))
	if err != nil {
		return fmt.Errorf("failed to parse MIDI file: %w", err)
	}

	length := midiFile.GetLength()
	if length > maxLength {
		return fmt.Errorf("%w: %v (limit %v)", ErrTooLong, length, maxLength)
	}

	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synthesizer, err := meltysynth.NewSynthesizer(r.soundFont, settings)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}
	sequencer := meltysynth.NewMidiFileSequencer(synthesizer)
	sequencer.Play(midiFile, false)

	encoder := wav.NewEncoder(w, SampleRate, bitDepth, channels, wavPCM)
	format := &audio.Format{SampleRate: SampleRate, NumChannels: channels}

	totalFrames := framesFor(length + releaseTail)
	left := make([]float32, blockFrames)
	right := make([]float32, blockFrames)
	buf := &audio.IntBuffer{Format: format, SourceBitDepth: bitDepth, Data: make([]int, blockFrames*channels)}

	for rendered := 0; rendered < totalFrames; rendered += blockFrames {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := min(blockFrames, totalFrames-rendered)
		sequencer.Render(left[:n], right[:n])
		buf.Data = interleave(buf.Data[:0], left[:n], right[:n])
		if err := encoder.Write(buf); err != nil {
			return fmt.Errorf("failed to write WAV samples: %w", err)
		}
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return nil
}

func framesFor(d time.Duration) int {
	return int(math.Ceil(d.Seconds() * SampleRate))
}

// interleave converts float samples in [-1, 1] to 16-bit PCM, clipping
func interleave(dst []int, left, right []float32) []int {
	for i := range left {
		dst = append(dst, toPCM16(left[i]), toPCM16(right[i]))
	}
	return dst
}

func toPCM16(v float32) int {
	scaled := math.Round(float64(v) * math.MaxInt16)
	switch {
	case scaled > math.MaxInt16:
		return math.MaxInt16
	case scaled < math.MinInt16:
		return math.MinInt16
	default:
		return int(scaled)
	}
}
