// Package config handles configuration loading and validation for the
// Blue Book tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"bluebook/internal/stego"
	"bluebook/internal/verifier"
)

// Version is the current configuration schema version.
const Version = 1

// Errors returned by loading and validation.
var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrBadAlphabet       = errors.New("config: marker alphabet must list 4 distinct code points")
	ErrBadIdleThreshold  = errors.New("config: idle threshold must be positive")
)

// Config holds the complete tool configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Codec configuration for the invisible marker alphabet.
	Codec CodecConfig `toml:"codec" json:"codec" yaml:"codec"`

	// Verify holds the classification policy.
	Verify verifier.Config `toml:"verify" json:"verify" yaml:"verify"`

	// Collector configuration for session tracking.
	Collector CollectorConfig `toml:"collector" json:"collector" yaml:"collector"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// CodecConfig selects the marker alphabet. Symbols are code point
// values; index order is the 2-bit value each symbol encodes.
type CodecConfig struct {
	Symbols []rune `toml:"symbols" json:"symbols" yaml:"symbols"`
}

// CollectorConfig holds session tracking settings.
type CollectorConfig struct {
	// IdleThresholdSec is how many seconds without input pause
	// active-time accrual.
	IdleThresholdSec int `toml:"idle_threshold_sec" json:"idle_threshold_sec" yaml:"idle_threshold_sec"`
}

// IdleThreshold returns the idle threshold as a duration.
func (c CollectorConfig) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdSec) * time.Second
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the output format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	alphabet := stego.DefaultAlphabet()
	return &Config{
		Version: Version,
		Codec:   CodecConfig{Symbols: alphabet[:]},
		Verify:  verifier.DefaultConfig(),
		Collector: CollectorConfig{
			IdleThresholdSec: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Alphabet converts the configured symbols into a codec alphabet.
func (c *Config) Alphabet() (stego.Alphabet, error) {
	var a stego.Alphabet
	if len(c.Codec.Symbols) != len(a) {
		return a, fmt.Errorf("%w: got %d", ErrBadAlphabet, len(c.Codec.Symbols))
	}
	copy(a[:], c.Codec.Symbols)
	return a, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	alphabet, err := c.Alphabet()
	if err != nil {
		return err
	}
	if _, err := stego.NewCodec(alphabet); err != nil {
		return fmt.Errorf("%w: %v", ErrBadAlphabet, err)
	}
	if err := c.Verify.Validate(); err != nil {
		return err
	}
	if c.Collector.IdleThresholdSec <= 0 {
		return ErrBadIdleThreshold
	}
	if err := checkLevel(c.Logging.Level); err != nil {
		return err
	}
	if f := c.Logging.Format; f != "text" && f != "json" {
		return fmt.Errorf("config: unknown log format %q", f)
	}
	return nil
}

// Load reads configuration from path, keyed on the file extension.
// Supported formats are TOML (.toml) and YAML (.yaml, .yml). Values not
// present in the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it is non-empty and exists, and falls
// back to the built-in defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// DefaultPath returns the platform-specific default config location.
func DefaultPath() string {
	switch runtime.GOOS {
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Application Support", "bluebook", "config.toml")
	case "windows":
		appData := os.Getenv("APPDATA")
		return filepath.Join(appData, "bluebook", "config.toml")
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			homeDir, _ := os.UserHomeDir()
			configHome = filepath.Join(homeDir, ".config")
		}
		return filepath.Join(configHome, "bluebook", "config.toml")
	}
}

// checkLevel mirrors the logging package's level names so validation can
// reject unknown levels without importing it.
func checkLevel(s string) error {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("config: unknown log level %q", s)
	}
}
