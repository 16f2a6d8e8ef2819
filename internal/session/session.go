// Package session keeps per-client composition state in memory.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Conceptual-Machines/sparkle-api/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned for an unknown or expired session ID
var ErrNotFound = errors.New("session not found")

// Session holds the baseline and generated compositions of one client
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	baseline  *models.Composition
	sparkles  *models.Composition
	midi      []byte
	touchedAt time.Time

	// generation advances whenever the baseline is replaced or cleared
	generation uint64
}

// Snapshot is a consistent copy of a session's state
type Snapshot struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Baseline  *models.Composition `json:"baseline"`
	Sparkles  *models.Composition `json:"sparkles"`
	HasMIDI   bool                `json:"has_midi"`
}

// Baseline returns the current baseline composition, or nil
func (s *Session) Baseline() *models.Composition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Composition returns the composition stored under role
func (s *Session) Composition(role string) *models.Composition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role == models.RoleSparkles {
		return s.sparkles
	}
	return s.baseline
}

// SetComposition stores a composition under role. Replacing the sparkles
// slot drops any previously generated MIDI.
func (s *Session) SetComposition(role string, composition *models.Composition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role == models.RoleSparkles {
		s.sparkles = composition
		s.midi = nil
	} else {
		s.baseline = composition
		s.generation++
	}
	s.touchedAt = time.Now()
}

// SetPair stores baseline and sparkles together
func (s *Session) SetPair(baseline, sparkles *models.Composition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = baseline
	s.sparkles = sparkles
	s.midi = nil
	s.generation++
	s.touchedAt = time.Now()
}

// Generation identifies the current baseline. Pass it to
// SetGeneratedIfCurrent to drop results composed from a baseline that has
// since been replaced or reset.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// SetGeneratedIfCurrent stores a generated composition only if the session
// is still at generation. It reports whether the result was stored.
func (s *Session) SetGeneratedIfCurrent(generation uint64, composition *models.Composition, midi []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.sparkles = composition
	s.midi = midi
	s.touchedAt = time.Now()
	return true
}

// MIDI returns the last generated MIDI file, or nil
func (s *Session) MIDI() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.midi
}

// Reset discards baseline, sparkles and generated MIDI
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = nil
	s.sparkles = nil
	s.midi = nil
	s.generation++
	s.touchedAt = time.Now()
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.touchedAt,
		Baseline:  s.baseline,
		Sparkles:  s.sparkles,
		HasMIDI:   len(s.midi) > 0,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.touchedAt = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.touchedAt)
}

// Store is an in-memory session registry
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create registers a new empty session
func (st *Store) Create() *Session {
	now := st.now()
	s := &Session{ID: uuid.New().String(), CreatedAt: now, touchedAt: now}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session and marks it as used
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(st.now())
	return s, nil
}

// Delete removes a session
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(st.sessions, id)
	return nil
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than maxIdle and returns how many
// were removed
func (st *Store) Sweep(maxIdle time.Duration) int {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.idleSince(now) > maxIdle {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps idle sessions every interval until ctx is done
func (st *Store) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := st.Sweep(maxIdle); removed > 0 {
				log.Printf("🧹 Swept %d idle sessions (%d live)", removed, st.Len())
			}
		}
	}
}
