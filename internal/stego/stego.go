// Package stego implements the covert metadata codec.
//
// A telemetry record is serialized to compact JSON, transcoded to base64,
// and the base64 text's bytes are spread across a four-symbol alphabet of
// invisible code points, two bits per symbol. The resulting marker run is
// appended to the visible document with no separator; to a reader the
// exported file looks like plain text.
//
// Boundary policy: the decoder uses whole-text marker filtering. Every
// marker rune anywhere in the input is extracted (in order) and removed
// from the visible text. The encoder never emits markers mid-document, so
// for well-formed artifacts this is equivalent to trailing-run detection,
// and it additionally survives editors that reflow or pad the tail of the
// file.
package stego

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"bluebook/internal/record"
)

// Errors returned by codec construction and encoding.
var (
	ErrBadAlphabet   = errors.New("stego: alphabet must be 4 distinct runes")
	ErrInvalidRecord = errors.New("stego: record failed validation")
)

// Alphabet is the ordered four-symbol marker alphabet. Index position is
// the 2-bit value a symbol encodes, so encoder and decoder must share the
// same ordering.
type Alphabet [4]rune

// DefaultAlphabet returns the zero-width marker set used by the original
// Blue Book format: ZWSP, ZWNJ, ZWJ, BOM.
func DefaultAlphabet() Alphabet {
	return Alphabet{'\u200B', '\u200C', '\u200D', '\uFEFF'}
}

// Codec encodes and decodes telemetry records as invisible marker runs.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	alphabet Alphabet
	index    map[rune]byte
}

// NewCodec builds a codec over the given alphabet. The four symbols must
// be distinct.
func NewCodec(alphabet Alphabet) (*Codec, error) {
	index := make(map[rune]byte, 4)
	for i, sym := range alphabet {
		if _, dup := index[sym]; dup {
			return nil, fmt.Errorf("%w: %U repeated", ErrBadAlphabet, sym)
		}
		index[sym] = byte(i)
	}
	return &Codec{alphabet: alphabet, index: index}, nil
}

// Default returns a codec over the default alphabet.
func Default() *Codec {
	c, err := NewCodec(DefaultAlphabet())
	if err != nil {
		panic(err) // unreachable: default alphabet is distinct
	}
	return c
}

// Encode serializes the record and returns its invisible marker run.
// Records that fail validation are rejected before serialization.
func (c *Codec) Encode(r *record.TelemetryRecord) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("stego: marshal record: %w", err)
	}

	b64 := base64.StdEncoding.EncodeToString(payload)

	// Each base64 byte contributes four 2-bit groups, most significant
	// first. The bit stream is always a multiple of two so no padding
	// group is ever needed here.
	var out strings.Builder
	out.Grow(len(b64) * 4 * 3) // zero-width runes are up to 3 bytes in UTF-8
	for i := 0; i < len(b64); i++ {
		b := b64[i]
		for shift := 6; shift >= 0; shift -= 2 {
			out.WriteRune(c.alphabet[(b>>shift)&0x03])
		}
	}
	return out.String(), nil
}

// Result is the outcome of decoding a full document.
type Result struct {
	// Meta is the recovered telemetry record, or nil when the input
	// carried no readable metadata. Absence of metadata is a valid
	// state, not an error.
	Meta *record.TelemetryRecord

	// Text is the visible document text. When Meta is nil the input is
	// returned unchanged; otherwise markers are removed and trailing
	// whitespace left by their removal is trimmed.
	Text string
}

// HasMetadata reports whether a record was recovered.
func (r Result) HasMetadata() bool { return r.Meta != nil }

// Decode partitions a full document into visible text and hidden
// metadata. It never fails: malformed marker runs, invalid base64,
// schema violations, and JSON parse errors all degrade to a Result with
// no metadata and the input text untouched. Decode is a pure function of
// its input.
func (c *Codec) Decode(fullText string) Result {
	var markers []byte // 2-bit values in stream order
	var visible strings.Builder
	visible.Grow(len(fullText))

	for _, r := range fullText {
		if v, ok := c.index[r]; ok {
			markers = append(markers, v)
		} else {
			visible.WriteRune(r)
		}
	}

	if len(markers) == 0 {
		return Result{Text: fullText}
	}

	rec, ok := c.decodeMarkers(markers)
	if !ok {
		return Result{Text: fullText}
	}

	text := strings.TrimRightFunc(visible.String(), unicode.IsSpace)
	return Result{Meta: rec, Text: text}
}

// decodeMarkers reverses the bit-level transform and parses the payload.
func (c *Codec) decodeMarkers(markers []byte) (*record.TelemetryRecord, bool) {
	// Four markers regroup into one byte; a short trailing group is an
	// encoding padding artifact and is discarded.
	raw := make([]byte, 0, len(markers)/4)
	for i := 0; i+4 <= len(markers); i += 4 {
		raw = append(raw, markers[i]<<6|markers[i+1]<<4|markers[i+2]<<2|markers[i+3])
	}

	payload, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, false
	}

	if err := record.ValidatePayload(payload); err != nil {
		return nil, false
	}

	var rec record.TelemetryRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, false
	}

	rec.ApplyDefaults()
	return &rec, true
}

// Compose assembles the exported document: visible essay followed by the
// marker run on its own line, matching the original export format.
func Compose(essay, markerRun string) string {
	return essay + "\n" + markerRun
}
