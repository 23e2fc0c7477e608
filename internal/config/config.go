// Package config loads the profiler's INI-style configuration file
// (gravwell/gcfg, the same library the teacher's ingest/config package
// uses), recognizing exactly the options named in the external-interfaces
// section: a [parameters] section for home_network/time_window_width/
// analysis_direction, and a [timestamp] section for the CSV/TSV time
// format. Environment variables override file values, mirroring the
// teacher's GRAVWELL_* override convention.
package config

import (
	"fmt"
	"os"

	"github.com/gravwell/gcfg"

	"github.com/flowprofiler/flowprofiler/internal/homenet"
	"github.com/flowprofiler/flowprofiler/internal/timefmt"
	"github.com/flowprofiler/flowprofiler/internal/timewindow"
)

const (
	defaultTimeWindowWidth = 300.0
	onlyOneTWLiteral       = "only_one_tw"

	envHomeNetwork      = "FLOWPROFILER_HOME_NETWORK"
	envTimeWindowWidth  = "FLOWPROFILER_TW_WIDTH"
	envAnalysisDirection = "FLOWPROFILER_DIRECTION"
	envTimestampFormat  = "FLOWPROFILER_TS_FORMAT"
)

// fileConfig is the raw gcfg-decoded shape of the config file.
type fileConfig struct {
	Parameters struct {
		Home_Network       string
		Time_Window_Width  string
		Analysis_Direction string
	}
	Timestamp struct {
		Format string
	}
}

// Config is the resolved, validated configuration the rest of the
// profiler is built against.
type Config struct {
	HomeNetwork       string // CIDR, or "" if unset
	TimeWindowWidth   float64
	AnalysisDirection homenet.Direction
	TimestampFormat   string
}

// Load reads and validates the config file at path, then applies any
// FLOWPROFILER_* environment variable overrides.
func Load(path string) (Config, error) {
	var fc fileConfig
	if err := gcfg.ReadFileInto(&fc, path); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return resolve(fc)
}

// LoadString is Load's in-memory counterpart, used by tests and by
// callers that already have the INI text in hand.
func LoadString(ini string) (Config, error) {
	var fc fileConfig
	if err := gcfg.ReadStringInto(&fc, ini); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return resolve(fc)
}

func resolve(fc fileConfig) (Config, error) {
	applyEnvOverrides(&fc)

	var cfg Config
	cfg.HomeNetwork = fc.Parameters.Home_Network

	width, err := parseWidth(fc.Parameters.Time_Window_Width)
	if err != nil {
		return Config{}, err
	}
	cfg.TimeWindowWidth = width

	direction, err := homenet.ParseDirection(fc.Parameters.Analysis_Direction)
	if err != nil {
		return Config{}, err
	}
	cfg.AnalysisDirection = direction

	cfg.TimestampFormat = fc.Timestamp.Format
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = defaultTimestampFormat
	}
	return cfg, nil
}

const defaultTimestampFormat = timefmt.DefaultFormat

// parseWidth implements §6's time_window_width rule: the literal
// "only_one_tw" selects the sentinel width; an empty value defaults to
// 300; a non-positive numeric value also defaults to 300.
func parseWidth(s string) (float64, error) {
	if s == "" {
		return defaultTimeWindowWidth, nil
	}
	if s == onlyOneTWLiteral {
		return timewindow.OnlyOneWindowWidth, nil
	}
	var width float64
	if _, err := fmt.Sscanf(s, "%g", &width); err != nil {
		return 0, fmt.Errorf("config: invalid time_window_width %q: %w", s, err)
	}
	if width <= 0 {
		return defaultTimeWindowWidth, nil
	}
	return width, nil
}

func applyEnvOverrides(fc *fileConfig) {
	if v := os.Getenv(envHomeNetwork); v != "" {
		fc.Parameters.Home_Network = v
	}
	if v := os.Getenv(envTimeWindowWidth); v != "" {
		fc.Parameters.Time_Window_Width = v
	}
	if v := os.Getenv(envAnalysisDirection); v != "" {
		fc.Parameters.Analysis_Direction = v
	}
	if v := os.Getenv(envTimestampFormat); v != "" {
		fc.Timestamp.Format = v
	}
}
