package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bluebook/internal/stego"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	alphabet, err := cfg.Alphabet()
	if err != nil {
		t.Fatalf("Alphabet: %v", err)
	}
	if alphabet != stego.DefaultAlphabet() {
		t.Errorf("default alphabet = %v", alphabet)
	}
	if cfg.Collector.IdleThreshold() != 10*time.Second {
		t.Errorf("idle threshold = %v", cfg.Collector.IdleThreshold())
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
version = 1

[collector]
idle_threshold_sec = 30

[verify]
fallback_label = "too fast"
suspicious_wpm = 150
density_threshold = 500

[[verify.bands]]
max_wpm = 50
label = "slow"

[[verify.bands]]
max_wpm = 150
label = "normal"

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Collector.IdleThresholdSec != 30 {
		t.Errorf("idle_threshold_sec = %d", cfg.Collector.IdleThresholdSec)
	}
	if cfg.Verify.SuspiciousWPM != 150 {
		t.Errorf("suspicious_wpm = %d", cfg.Verify.SuspiciousWPM)
	}
	if len(cfg.Verify.Bands) != 2 || cfg.Verify.Bands[1].Label != "normal" {
		t.Errorf("bands = %+v", cfg.Verify.Bands)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}

	// Unspecified sections keep defaults.
	alphabet, err := cfg.Alphabet()
	if err != nil {
		t.Fatalf("Alphabet: %v", err)
	}
	if alphabet != stego.DefaultAlphabet() {
		t.Errorf("alphabet overridden unexpectedly: %v", alphabet)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
version: 1
codec:
  symbols: [8288, 6158, 8203, 8291]
collector:
  idle_threshold_sec: 15
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	alphabet, err := cfg.Alphabet()
	if err != nil {
		t.Fatalf("Alphabet: %v", err)
	}
	want := stego.Alphabet{'\u2060', '\u180E', '\u200B', '\u2063'}
	if alphabet != want {
		t.Errorf("alphabet = %v, want %v", alphabet, want)
	}
	if cfg.Collector.IdleThresholdSec != 15 {
		t.Errorf("idle_threshold_sec = %d", cfg.Collector.IdleThresholdSec)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "config.ini", "version = 1")
	if _, err := Load(path); err == nil {
		t.Fatal("ini config accepted")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"short alphabet", "[codec]\nsymbols = [8203, 8204]\n"},
		{"duplicate symbols", "[codec]\nsymbols = [8203, 8203, 8205, 65279]\n"},
		{"zero idle threshold", "[collector]\nidle_threshold_sec = 0\n"},
		{"bad log level", "[logging]\nlevel = \"loud\"\n"},
		{"bad log format", "[logging]\nformat = \"xml\"\n"},
		{"unordered bands", `
[verify]
fallback_label = "x"
suspicious_wpm = 200
density_threshold = 400

[[verify.bands]]
max_wpm = 100
label = "a"

[[verify.bands]]
max_wpm = 50
label = "b"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.toml", tt.content)
			if _, err := Load(path); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault(\"\"): %v", err)
	}
	if cfg.Version != Version {
		t.Errorf("version = %d", cfg.Version)
	}

	cfg, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault(missing): %v", err)
	}
	if cfg.Collector.IdleThresholdSec != 10 {
		t.Errorf("missing path did not fall back to defaults")
	}
}
