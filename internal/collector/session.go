// Package collector maintains the running telemetry for a writing
// session and freezes it into immutable records for the encoder.
//
// The session is an explicit state object rather than process-global
// counters: input events and focus changes arrive from the tracking
// boundary, a periodic tick accrues active time, and Snapshot hands the
// encoder an atomic copy so the canonical hash never observes a
// half-updated session.
//
// Active time accrues only while the session is focused AND the last
// input event is within the idle threshold. Losing focus always pauses
// accrual; sitting idle while focused pauses it after the threshold.
package collector

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"bluebook/internal/record"
)

// DefaultIdleThreshold is how long the session may go without input
// before active time stops accruing.
const DefaultIdleThreshold = 10 * time.Second

// DefaultTickInterval is the active-time accrual resolution.
const DefaultTickInterval = time.Second

// Session tracks one document-editing session. All methods are safe for
// concurrent use; counters never decrease.
type Session struct {
	mu sync.Mutex

	id            string
	startedAt     time.Time
	idleThreshold time.Duration

	keystrokes int
	active     time.Duration
	lastInput  time.Time
	lastTick   time.Time
	focused    bool
	ended      bool
}

// NewSession starts a session with a fresh identifier. A non-positive
// idle threshold falls back to the default.
func NewSession(idleThreshold time.Duration) *Session {
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	now := time.Now()
	return &Session{
		id:            uuid.NewString(),
		startedAt:     now,
		idleThreshold: idleThreshold,
		lastTick:      now,
		focused:       true,
	}
}

// ID returns the session identifier, stable for the session's lifetime.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// RecordInput registers n accepted text-input events. Non-positive n is
// ignored.
func (s *Session) RecordInput(n int) {
	s.recordInputAt(n, time.Now())
}

func (s *Session) recordInputAt(n int, now time.Time) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.keystrokes += n
	s.lastInput = now
}

// SetFocused updates the focus gate. While unfocused, ticks do not
// accrue active time.
func (s *Session) SetFocused(focused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused = focused
}

// Tick advances the active-time accumulator to now. Callers drive it
// from a ticker at DefaultTickInterval.
func (s *Session) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	if s.focused && !s.lastInput.IsZero() && now.Sub(s.lastInput) < s.idleThreshold {
		if d := now.Sub(s.lastTick); d > 0 {
			s.active += d
		}
	}
	s.lastTick = now
}

// Keystrokes returns the current keystroke count.
func (s *Session) Keystrokes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keystrokes
}

// ActiveDuration returns the accrued active time.
func (s *Session) ActiveDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// End stops the session. Further input and ticks are ignored.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

// Snapshot freezes the session together with the current document text
// into a sealed TelemetryRecord. The returned record is a copy; later
// session activity does not affect it.
func (s *Session) Snapshot(essay, title, name string) (*record.TelemetryRecord, error) {
	s.mu.Lock()
	id := s.id
	keystrokes := s.keystrokes
	active := s.active
	s.mu.Unlock()

	activeMinutes := int(active.Round(time.Minute) / time.Minute)
	density, err := record.TypingDensity(keystrokes, active.Minutes())
	if err != nil {
		return nil, err
	}

	rec := &record.TelemetryRecord{
		SessionID:     id,
		Title:         title,
		Name:          name,
		WordCount:     record.WordCount(essay),
		CharCount:     record.CharCount(essay),
		Keystrokes:    keystrokes,
		ActiveMinutes: activeMinutes,
		TypingDensity: density,
		Timestamp:     time.Now().UTC(),
	}
	rec.Seal()

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}
