// Package record defines the telemetry record embedded in exported
// documents and the canonical integrity hash computed over its core fields.
//
// A record is a frozen snapshot of one writing session: behavioral counters
// (keystrokes, active minutes), derived document statistics (word and
// character counts), free-text identity fields, and a hex SHA-256 digest
// binding the counters together. The digest is a pure function of four
// fields, so any party holding the record can re-derive it.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Errors returned by record validation.
var (
	ErrMissingSessionID = errors.New("record: session id is empty")
	ErrNegativeCounter  = errors.New("record: counter is negative")
	ErrNonFinite        = errors.New("record: derived value is not finite")
)

// Placeholder values substituted for absent identity fields.
const (
	DefaultTitle = "Untitled"
	DefaultName  = "Anonymous"
)

// TelemetryRecord is the metadata payload carried invisibly inside an
// exported document. JSON field names are part of the wire format and
// must not change.
type TelemetryRecord struct {
	SessionID     string    `json:"sessionId"`
	Title         string    `json:"title,omitempty"`
	Name          string    `json:"name,omitempty"`
	WordCount     int       `json:"wordCount"`
	CharCount     int       `json:"charCount"`
	Keystrokes    int       `json:"keystrokes"`
	ActiveMinutes int       `json:"activeMinutes"`
	TypingDensity int       `json:"typingDensity"`
	Timestamp     time.Time `json:"timestamp"`
	Hash          string    `json:"hash"`
}

// CanonicalHash computes the integrity digest over the canonical field
// subset. The input is the ordered concatenation
// "sessionId|keystrokes|activeMinutes|wordCount"; the output is lowercase
// hex SHA-256.
func CanonicalHash(sessionID string, keystrokes, activeMinutes, wordCount int) string {
	source := fmt.Sprintf("%s|%d|%d|%d", sessionID, keystrokes, activeMinutes, wordCount)
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Seal computes and stores the integrity hash from the record's own
// canonical fields.
func (r *TelemetryRecord) Seal() {
	r.Hash = CanonicalHash(r.SessionID, r.Keystrokes, r.ActiveMinutes, r.WordCount)
}

// Validate checks that the record is well-formed enough to encode.
// Encoding a record that fails validation would produce an artifact the
// verifier can only flag, so the encoder fails fast instead.
func (r *TelemetryRecord) Validate() error {
	if r.SessionID == "" {
		return ErrMissingSessionID
	}
	for _, c := range []struct {
		name  string
		value int
	}{
		{"wordCount", r.WordCount},
		{"charCount", r.CharCount},
		{"keystrokes", r.Keystrokes},
		{"activeMinutes", r.ActiveMinutes},
		{"typingDensity", r.TypingDensity},
	} {
		if c.value < 0 {
			return fmt.Errorf("%w: %s = %d", ErrNegativeCounter, c.name, c.value)
		}
	}
	return nil
}

// ApplyDefaults fills absent identity fields with placeholder values.
// Called on the decode path so downstream consumers never see empty
// title or author fields.
func (r *TelemetryRecord) ApplyDefaults() {
	if strings.TrimSpace(r.Title) == "" {
		r.Title = DefaultTitle
	}
	if strings.TrimSpace(r.Name) == "" {
		r.Name = DefaultName
	}
}

// WordCount counts whitespace-delimited tokens in text. Runs of
// whitespace collapse, leading and trailing whitespace is ignored, and
// blank text counts zero words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// CharCount counts the runes in text.
func CharCount(text string) int {
	return utf8.RuneCountInString(text)
}

// TypingDensity derives keystrokes per active minute with a floor of one
// minute on the denominator, so very short sessions do not produce
// inflated rates. It returns an error for non-finite intermediate values.
func TypingDensity(keystrokes int, activeMinutes float64) (int, error) {
	minutes := math.Max(activeMinutes, 1)
	density := float64(keystrokes) / minutes
	if math.IsNaN(density) || math.IsInf(density, 0) {
		return 0, fmt.Errorf("%w: keystrokes=%d activeMinutes=%v", ErrNonFinite, keystrokes, activeMinutes)
	}
	return int(math.Round(density)), nil
}
