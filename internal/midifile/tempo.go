package midifile

import (
	"math"
	"sort"

	"github.com/Conceptual-Machines/sparkle-api/internal/models"
)

const (
	defaultBPM       = 120.0
	secondsPerMinute = 60.0
)

type tempoPoint struct {
	tick    int
	bpm     float64
	seconds float64
}

// tempoMap converts between ticks and seconds across tempo changes
type tempoMap struct {
	ppq    int
	points []tempoPoint
}

func newTempoMap(ppq int, tempos []models.TempoEvent) *tempoMap {
	sorted := make([]models.TempoEvent, 0, len(tempos))
	for _, t := range tempos {
		if t.BPM > 0 && t.Ticks >= 0 {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ticks < sorted[j].Ticks })

	if len(sorted) == 0 || sorted[0].Ticks > 0 {
		sorted = append([]models.TempoEvent{{BPM: defaultBPM}}, sorted...)
	}

	m := &tempoMap{ppq: ppq, points: make([]tempoPoint, 0, len(sorted))}
	for i, t := range sorted {
		p := tempoPoint{tick: t.Ticks, bpm: t.BPM}
		if i > 0 {
			prev := m.points[len(m.points)-1]
			if prev.tick == t.Ticks {
				// later event at the same tick wins
				m.points[len(m.points)-1].bpm = t.BPM
				continue
			}
			p.seconds = prev.seconds + m.span(t.Ticks-prev.tick, prev.bpm)
		}
		m.points = append(m.points, p)
	}
	return m
}

func (m *tempoMap) span(ticks int, bpm float64) float64 {
	return float64(ticks) / float64(m.ppq) * secondsPerMinute / bpm
}

func (m *tempoMap) secondsAt(tick int) float64 {
	i := sort.Search(len(m.points), func(i int) bool { return m.points[i].tick > tick }) - 1
	if i < 0 {
		i = 0
	}
	p := m.points[i]
	return p.seconds + m.span(tick-p.tick, p.bpm)
}

func (m *tempoMap) ticksAt(seconds float64) int {
	i := sort.Search(len(m.points), func(i int) bool { return m.points[i].seconds > seconds }) - 1
	if i < 0 {
		i = 0
	}
	p := m.points[i]
	return p.tick + int(math.Round((seconds-p.seconds)*p.bpm/secondsPerMinute*float64(m.ppq)))
}

// initialBPM returns the tempo in effect at tick 0
func (m *tempoMap) initialBPM() float64 {
	return m.points[0].bpm
}
