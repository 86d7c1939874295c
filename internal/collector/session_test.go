package collector

import (
	"testing"
	"time"

	"bluebook/internal/record"
)

var testEpoch = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

// newTestSession returns a session with deterministic internal clocks.
func newTestSession(idle time.Duration) *Session {
	s := NewSession(idle)
	s.mu.Lock()
	s.startedAt = testEpoch
	s.lastTick = testEpoch
	s.mu.Unlock()
	return s
}

// typeFor simulates steady input for a span: one input event and one
// tick per second.
func typeFor(s *Session, start time.Time, span time.Duration) time.Time {
	now := start
	for elapsed := time.Duration(0); elapsed < span; elapsed += time.Second {
		now = start.Add(elapsed + time.Second)
		s.recordInputAt(1, now)
		s.Tick(now)
	}
	return now
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := NewSession(0)
	b := NewSession(0)
	if a.ID() == "" {
		t.Fatal("empty session id")
	}
	if a.ID() == b.ID() {
		t.Fatal("two sessions share an id")
	}
}

func TestActiveTimeAccruesWhileTyping(t *testing.T) {
	s := newTestSession(10 * time.Second)
	typeFor(s, testEpoch, 2*time.Minute)

	if got := s.ActiveDuration(); got != 2*time.Minute {
		t.Errorf("active = %v, want 2m", got)
	}
	if got := s.Keystrokes(); got != 120 {
		t.Errorf("keystrokes = %d, want 120", got)
	}
}

func TestIdlePausesAccrual(t *testing.T) {
	s := newTestSession(10 * time.Second)
	now := typeFor(s, testEpoch, time.Minute)

	// A 5-minute gap with no input: ticks keep arriving but nothing
	// accrues past the idle threshold.
	for i := 1; i <= 300; i++ {
		s.Tick(now.Add(time.Duration(i) * time.Second))
	}

	active := s.ActiveDuration()
	// One minute of typing plus at most the idle threshold of tail.
	if active < time.Minute || active > time.Minute+10*time.Second {
		t.Errorf("active = %v, want about 1m (+ <=10s idle tail)", active)
	}
}

func TestFocusLossPausesAccrual(t *testing.T) {
	s := newTestSession(10 * time.Second)
	now := typeFor(s, testEpoch, time.Minute)

	// Window loses focus while input keeps arriving (e.g. another
	// program is typing into the file): no accrual.
	s.SetFocused(false)
	for i := 1; i <= 60; i++ {
		tick := now.Add(time.Duration(i) * time.Second)
		s.recordInputAt(1, tick)
		s.Tick(tick)
	}

	if got := s.ActiveDuration(); got != time.Minute {
		t.Errorf("active = %v, want exactly 1m while unfocused", got)
	}

	// Focus returns: accrual resumes.
	s.SetFocused(true)
	typeFor(s, now.Add(time.Minute), 30*time.Second)
	if got := s.ActiveDuration(); got != 90*time.Second {
		t.Errorf("active = %v, want 1m30s after refocus", got)
	}
}

func TestCountersNeverDecrease(t *testing.T) {
	s := newTestSession(0)
	s.recordInputAt(5, testEpoch)
	s.recordInputAt(-3, testEpoch)
	s.recordInputAt(0, testEpoch)

	if got := s.Keystrokes(); got != 5 {
		t.Errorf("keystrokes = %d, want 5", got)
	}
}

func TestEndFreezesSession(t *testing.T) {
	s := newTestSession(10 * time.Second)
	now := typeFor(s, testEpoch, time.Minute)

	s.End()
	s.recordInputAt(100, now.Add(time.Second))
	s.Tick(now.Add(2 * time.Second))

	if got := s.Keystrokes(); got != 60 {
		t.Errorf("keystrokes = %d after End, want 60", got)
	}
	if got := s.ActiveDuration(); got != time.Minute {
		t.Errorf("active = %v after End, want 1m", got)
	}
}

func TestSnapshotSealsRecord(t *testing.T) {
	s := newTestSession(10 * time.Second)
	typeFor(s, testEpoch, 10*time.Minute)

	essay := "one two three four five"
	rec, err := s.Snapshot(essay, "Essay", "Writer")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if rec.SessionID != s.ID() {
		t.Errorf("session id %q, want %q", rec.SessionID, s.ID())
	}
	if rec.WordCount != 5 {
		t.Errorf("word count = %d, want 5", rec.WordCount)
	}
	if rec.CharCount != len(essay) {
		t.Errorf("char count = %d, want %d", rec.CharCount, len(essay))
	}
	if rec.Keystrokes != 600 {
		t.Errorf("keystrokes = %d, want 600", rec.Keystrokes)
	}
	if rec.ActiveMinutes != 10 {
		t.Errorf("active minutes = %d, want 10", rec.ActiveMinutes)
	}
	if rec.TypingDensity != 60 {
		t.Errorf("density = %d, want 60", rec.TypingDensity)
	}

	want := record.CanonicalHash(rec.SessionID, rec.Keystrokes, rec.ActiveMinutes, rec.WordCount)
	if rec.Hash != want {
		t.Errorf("hash = %s, want %s", rec.Hash, want)
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("snapshot failed validation: %v", err)
	}
}

func TestSnapshotIsFrozen(t *testing.T) {
	s := newTestSession(10 * time.Second)
	now := typeFor(s, testEpoch, 5*time.Minute)

	rec, err := s.Snapshot("a b c", "T", "N")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	before := *rec

	// Session keeps running; the earlier snapshot must not move.
	typeFor(s, now, 5*time.Minute)

	if *rec != before {
		t.Error("snapshot mutated by later session activity")
	}
	if s.Keystrokes() == before.Keystrokes {
		t.Error("session did not advance past snapshot")
	}
}
