// Package verifier implements the integrity and plausibility checks run
// against a decoded telemetry record and the recovered document text.
//
// Verification is a pure function: it recomputes the canonical hash and
// the word count independently, derives typing-speed signals, classifies
// the speed into a policy band, and reports every signal whether or not
// the overall verdict fails. Thresholds and band cut points are carried
// in a Config so policy changes never touch the check logic.
package verifier

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"bluebook/internal/record"
)

// Errors returned by config validation.
var (
	ErrNoBands      = errors.New("verifier: at least one speed band required")
	ErrBandOrder    = errors.New("verifier: band cut points must be strictly increasing")
	ErrBandLabel    = errors.New("verifier: band label is empty")
	ErrBadThreshold = errors.New("verifier: threshold must be positive")
)

// Verdict is the overall outcome of verification.
type Verdict string

const (
	VerdictVerified Verdict = "verified"
	VerdictFailed   Verdict = "failed"
)

// Band maps a words-per-minute range to an interpretation label. A band
// applies when the measured WPM is strictly below MaxWPM; bands are
// evaluated in order.
type Band struct {
	MaxWPM int    `json:"max_wpm" toml:"max_wpm" yaml:"max_wpm"`
	Label  string `json:"label" toml:"label" yaml:"label"`
}

// Config holds the classification policy.
type Config struct {
	// Bands in ascending cut-point order. WPM values at or above the
	// last cut point take FallbackLabel.
	Bands []Band `json:"bands" toml:"bands" yaml:"bands"`

	// FallbackLabel applies above the last band.
	FallbackLabel string `json:"fallback_label" toml:"fallback_label" yaml:"fallback_label"`

	// SuspiciousWPM is the speed at or above which the verdict fails
	// regardless of other signals.
	SuspiciousWPM int `json:"suspicious_wpm" toml:"suspicious_wpm" yaml:"suspicious_wpm"`

	// DensityThreshold is the keystrokes-per-minute rate above which a
	// density warning is raised.
	DensityThreshold int `json:"density_threshold" toml:"density_threshold" yaml:"density_threshold"`
}

// DefaultConfig returns the standard band layout and thresholds.
func DefaultConfig() Config {
	return Config{
		Bands: []Band{
			{MaxWPM: 20, Label: "Very Slow - Possible Pauses"},
			{MaxWPM: 40, Label: "Normal for Careful Typing"},
			{MaxWPM: 60, Label: "Average Speed"},
			{MaxWPM: 80, Label: "Fast but Plausible"},
			{MaxWPM: 200, Label: "Extremely Fast - Review Recommended"},
		},
		FallbackLabel:    "Suspiciously Fast",
		SuspiciousWPM:    200,
		DensityThreshold: 400,
	}
}

// Validate checks the policy for internal consistency.
func (c Config) Validate() error {
	if len(c.Bands) == 0 {
		return ErrNoBands
	}
	prev := 0
	for i, b := range c.Bands {
		if b.MaxWPM <= prev {
			return fmt.Errorf("%w: band %d cut point %d", ErrBandOrder, i, b.MaxWPM)
		}
		if strings.TrimSpace(b.Label) == "" {
			return fmt.Errorf("%w: band %d", ErrBandLabel, i)
		}
		prev = b.MaxWPM
	}
	if strings.TrimSpace(c.FallbackLabel) == "" {
		return fmt.Errorf("%w: fallback", ErrBandLabel)
	}
	if c.SuspiciousWPM <= 0 {
		return fmt.Errorf("%w: suspicious_wpm", ErrBadThreshold)
	}
	if c.DensityThreshold <= 0 {
		return fmt.Errorf("%w: density_threshold", ErrBadThreshold)
	}
	return nil
}

// Result is the full verification report for one artifact. Every signal
// is populated even when the verdict fails, so a reviewer always sees the
// recorded versus actual numbers behind a failure.
type Result struct {
	Verdict           Verdict `json:"verdict"`
	TamperFlag        bool    `json:"tamperFlag"`
	WordCountMismatch bool    `json:"wordCountMismatch"`
	DensityWarning    bool    `json:"densityWarning"`
	SuspiciousSpeed   bool    `json:"suspiciousSpeed"`

	RecordedWordCount int    `json:"recordedWordCount"`
	ActualWordCount   int    `json:"actualWordCount"`
	WordsPerMinute    int    `json:"wordsPerMinute"`
	KeystrokeRate     int    `json:"keystrokeRate"`
	Interpretation    string `json:"interpretationLabel"`

	RecordedHash string `json:"recordedHash"`
	ComputedHash string `json:"computedHash"`

	// Display fields passed through from the record unmodified.
	Title         string    `json:"title"`
	Name          string    `json:"name"`
	Timestamp     time.Time `json:"timestamp"`
	CharCount     int       `json:"charCount"`
	Keystrokes    int       `json:"keystrokes"`
	ActiveMinutes int       `json:"activeMinutes"`
}

// Verifier runs the verification protocol under a fixed policy.
type Verifier struct {
	cfg Config
}

// New creates a verifier. The config must validate.
func New(cfg Config) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{cfg: cfg}, nil
}

// Default returns a verifier over DefaultConfig.
func Default() *Verifier {
	v, err := New(DefaultConfig())
	if err != nil {
		panic(err) // unreachable: default config validates
	}
	return v
}

// Verify cross-checks a decoded record against the recovered visible
// text. It has no side effects and tolerates hostile field values:
// negative or absent counters are clamped rather than propagated.
func (v *Verifier) Verify(rec *record.TelemetryRecord, essay string) Result {
	computed := record.CanonicalHash(rec.SessionID, rec.Keystrokes, rec.ActiveMinutes, rec.WordCount)
	tampered := !strings.EqualFold(computed, rec.Hash)

	actual := record.WordCount(essay)
	mismatch := actual != rec.WordCount

	// A mismatched recorded count is untrusted, so speed metrics run on
	// the count measured from the text itself.
	effectiveWords := rec.WordCount
	if mismatch {
		effectiveWords = actual
	}
	if effectiveWords < 0 {
		effectiveWords = 0
	}

	minutes := rec.ActiveMinutes
	if minutes < 1 {
		minutes = 1
	}
	keystrokes := rec.Keystrokes
	if keystrokes < 0 {
		keystrokes = 0
	}

	wpm := int(math.Round(float64(effectiveWords) / float64(minutes)))
	rate := int(math.Round(float64(keystrokes) / float64(minutes)))

	suspicious := wpm >= v.cfg.SuspiciousWPM
	dense := rate > v.cfg.DensityThreshold

	verdict := VerdictVerified
	if tampered || mismatch || suspicious || dense {
		verdict = VerdictFailed
	}

	return Result{
		Verdict:           verdict,
		TamperFlag:        tampered,
		WordCountMismatch: mismatch,
		DensityWarning:    dense,
		SuspiciousSpeed:   suspicious,
		RecordedWordCount: rec.WordCount,
		ActualWordCount:   actual,
		WordsPerMinute:    wpm,
		KeystrokeRate:     rate,
		Interpretation:    v.classify(wpm),
		RecordedHash:      rec.Hash,
		ComputedHash:      computed,
		Title:             rec.Title,
		Name:              rec.Name,
		Timestamp:         rec.Timestamp,
		CharCount:         rec.CharCount,
		Keystrokes:        rec.Keystrokes,
		ActiveMinutes:     rec.ActiveMinutes,
	}
}

// classify maps a WPM value onto its interpretation band.
func (v *Verifier) classify(wpm int) string {
	for _, b := range v.cfg.Bands {
		if wpm < b.MaxWPM {
			return b.Label
		}
	}
	return v.cfg.FallbackLabel
}
