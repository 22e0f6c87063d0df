package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"repeatscan/internal/bucket"
	"repeatscan/internal/engine"
	"repeatscan/internal/ingest"
	"repeatscan/internal/report"
)

type Config struct {
	Input     Input     `yaml:"input"`
	Detect    Detect    `yaml:"detect"`
	Normalize Normalize `yaml:"normalize"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
}

type Input struct {
	Header bool `yaml:"header"`
	// Columns are addressed by name when set, by 0-based position otherwise.
	LabelColumn int      `yaml:"label_column"`
	TextColumn  int      `yaml:"text_column"`
	LabelName   string   `yaml:"label_name"`
	TextName    string   `yaml:"text_name"`
	NullMarkers []string `yaml:"null_markers"`
	Comma       string   `yaml:"comma"`
}

type Detect struct {
	Mode       string        `yaml:"mode"`
	MinLength  int           `yaml:"min_length"`
	Thresholds []int         `yaml:"thresholds"`
	Shards     int           `yaml:"shards"`
	Workers    int           `yaml:"workers"`
	MaxRunes   int           `yaml:"max_runes"`
	Timeout    time.Duration `yaml:"timeout"`
}

type Normalize struct {
	NFC bool `yaml:"nfc"`
}

type Output struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
	Sort    string   `yaml:"sort"`
	BOM     bool     `yaml:"bom"`
	Console bool     `yaml:"console"`
	Color   bool     `yaml:"color"`
}

type Logging struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

func Default() Config {
	csv := ingest.DefaultCSVOptions()
	return Config{
		Input: Input{
			Header:      csv.Header,
			LabelColumn: csv.LabelColumn,
			TextColumn:  csv.TextColumn,
			NullMarkers: csv.NullMarkers,
			Comma:       string(csv.Comma),
		},
		Detect: Detect{
			Mode:       string(engine.ModeMaximal),
			MinLength:  0,
			Thresholds: []int{15},
			Shards:     1,
			Workers:    runtime.NumCPU(),
			MaxRunes:   5_000_000,
		},
		Normalize: Normalize{NFC: true},
		Output: Output{
			Dir:     "repeatscan-reports",
			Formats: []string{"csv"},
			Sort:    string(report.BySequence),
			BOM:     true,
			Console: true,
			Color:   true,
		},
		Logging: Logging{Mode: "dev", Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults (unknown keys are rejected)
// and then applies REPEATSCAN_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Detect.Mode = getenvString("REPEATSCAN_MODE", cfg.Detect.Mode)
	cfg.Detect.MinLength = getenvInt("REPEATSCAN_MIN_LENGTH", cfg.Detect.MinLength)
	cfg.Detect.Shards = getenvInt("REPEATSCAN_SHARDS", cfg.Detect.Shards)
	cfg.Detect.Workers = getenvInt("REPEATSCAN_WORKERS", cfg.Detect.Workers)
	cfg.Detect.MaxRunes = getenvInt("REPEATSCAN_MAX_RUNES", cfg.Detect.MaxRunes)
	cfg.Detect.Timeout = getenvDuration("REPEATSCAN_TIMEOUT", cfg.Detect.Timeout)
	cfg.Normalize.NFC = getenvBool("REPEATSCAN_NFC", cfg.Normalize.NFC)
	cfg.Output.Dir = getenvString("REPEATSCAN_OUTPUT_DIR", cfg.Output.Dir)
	cfg.Logging.Mode = getenvString("REPEATSCAN_LOG_MODE", cfg.Logging.Mode)
	cfg.Logging.Level = getenvString("REPEATSCAN_LOG_LEVEL", cfg.Logging.Level)
	if raw := strings.TrimSpace(os.Getenv("REPEATSCAN_THRESHOLDS")); raw != "" {
		set, err := bucket.Parse(raw)
		if err != nil {
			return fmt.Errorf("REPEATSCAN_THRESHOLDS: %w", err)
		}
		cfg.Detect.Thresholds = set
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if _, err := engine.ParseMode(c.Detect.Mode); err != nil {
		return err
	}
	if len(c.Detect.Thresholds) > 0 {
		if _, err := bucket.New(c.Detect.Thresholds); err != nil {
			return err
		}
	} else if c.Detect.MinLength < 1 {
		return fmt.Errorf("%w: set min_length or thresholds", engine.ErrInvalidThreshold)
	}
	if c.Detect.MinLength < 0 {
		return fmt.Errorf("%w: min_length %d < 0", engine.ErrInvalidThreshold, c.Detect.MinLength)
	}
	if c.Detect.MaxRunes < 0 {
		return fmt.Errorf("max_runes must be >= 0, got %d", c.Detect.MaxRunes)
	}
	if c.Input.LabelName == "" && c.Input.TextName == "" && c.Input.LabelColumn == c.Input.TextColumn {
		return fmt.Errorf("label and text column are both %d", c.Input.TextColumn)
	}
	if c.Input.LabelColumn < 0 || c.Input.TextColumn < 0 {
		return fmt.Errorf("column positions must be >= 0")
	}
	if len([]rune(c.Input.Comma)) != 1 {
		return fmt.Errorf("comma must be a single character, got %q", c.Input.Comma)
	}
	if _, err := report.ParseSortKey(c.Output.Sort); err != nil {
		return err
	}
	for _, f := range c.Output.Formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "csv", "json", "sqlite":
		default:
			return fmt.Errorf("unknown output format %q", f)
		}
	}
	return nil
}

func getenvString(name, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func getenvInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getenvBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	return raw == "1" || raw == "true" || raw == "yes" || raw == "on"
}

func getenvDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
