// Verification report generation.
package verifier

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ReportFormat specifies the output format for verification reports.
type ReportFormat string

const (
	FormatJSON ReportFormat = "json"
	FormatText ReportFormat = "text"
)

// ParseFormat converts a CLI string into a ReportFormat.
func ParseFormat(s string) (ReportFormat, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "text", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

// ReportGenerator renders verification results.
type ReportGenerator struct {
	format ReportFormat
}

// NewReportGenerator creates a report generator for the given format.
func NewReportGenerator(format ReportFormat) *ReportGenerator {
	return &ReportGenerator{format: format}
}

// Generate writes the result in the configured format.
func (g *ReportGenerator) Generate(res *Result, w io.Writer) error {
	switch g.format {
	case FormatJSON:
		return g.generateJSON(res, w)
	case FormatText:
		return g.generateText(res, w)
	default:
		return fmt.Errorf("unknown format: %s", g.format)
	}
}

func (g *ReportGenerator) generateJSON(res *Result, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(res)
}

func (g *ReportGenerator) generateText(res *Result, w io.Writer) error {
	fmt.Fprintln(w, "================================================================")
	fmt.Fprintln(w, "              BLUE BOOK SUBMISSION VERIFICATION")
	fmt.Fprintln(w, "================================================================")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Result:          %s\n", verdictString(res.Verdict))
	fmt.Fprintf(w, "Title:           %s\n", res.Title)
	fmt.Fprintf(w, "Author:          %s\n", res.Name)
	if !res.Timestamp.IsZero() {
		fmt.Fprintf(w, "Submitted:       %s\n", res.Timestamp.Format(time.RFC1123))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Integrity ---")
	if res.TamperFlag {
		fmt.Fprintln(w, "[FAIL] Integrity hash mismatch: recorded counters were altered")
		fmt.Fprintf(w, "       recorded: %s\n", res.RecordedHash)
		fmt.Fprintf(w, "       computed: %s\n", res.ComputedHash)
	} else {
		fmt.Fprintln(w, "[ OK ] Integrity hash matches recorded counters")
	}
	if res.WordCountMismatch {
		fmt.Fprintf(w, "[FAIL] Word count mismatch: recorded %d, document has %d\n",
			res.RecordedWordCount, res.ActualWordCount)
	} else {
		fmt.Fprintf(w, "[ OK ] Word count matches (%d words)\n", res.RecordedWordCount)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Typing Metrics ---")
	fmt.Fprintf(w, "Character Count: %d\n", res.CharCount)
	fmt.Fprintf(w, "Keystrokes:      %d\n", res.Keystrokes)
	fmt.Fprintf(w, "Active Minutes:  %d\n", res.ActiveMinutes)
	fmt.Fprintf(w, "Typing Speed:    %d WPM (%s)\n", res.WordsPerMinute, res.Interpretation)
	fmt.Fprintf(w, "Keystroke Rate:  %d/min\n", res.KeystrokeRate)
	if res.SuspiciousSpeed {
		fmt.Fprintf(w, "[FAIL] Typing speed %d WPM is at or above the suspicious threshold\n", res.WordsPerMinute)
	}
	if res.DensityWarning {
		fmt.Fprintf(w, "[FAIL] Keystroke rate %d/min exceeds the density threshold (bulk input likely)\n", res.KeystrokeRate)
	}
	fmt.Fprintln(w)

	return nil
}

func verdictString(v Verdict) string {
	if v == VerdictVerified {
		return "VERIFICATION PASSED"
	}
	return "VERIFICATION FAILED"
}
