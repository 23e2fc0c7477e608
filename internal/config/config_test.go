package config

import (
	"os"
	"testing"

	"github.com/flowprofiler/flowprofiler/internal/homenet"
	"github.com/flowprofiler/flowprofiler/internal/timewindow"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadString("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TimeWindowWidth != 300 {
		t.Errorf("TimeWindowWidth = %v, want 300", cfg.TimeWindowWidth)
	}
	if cfg.AnalysisDirection != homenet.DirectionAll {
		t.Errorf("AnalysisDirection = %v, want DirectionAll", cfg.AnalysisDirection)
	}
	if cfg.TimestampFormat != defaultTimestampFormat {
		t.Errorf("TimestampFormat = %q, want %q", cfg.TimestampFormat, defaultTimestampFormat)
	}
	if cfg.HomeNetwork != "" {
		t.Errorf("HomeNetwork = %q, want empty", cfg.HomeNetwork)
	}
}

func TestOnlyOneTWLiteral(t *testing.T) {
	cfg, err := LoadString("[parameters]\ntime_window_width=only_one_tw\n")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TimeWindowWidth != timewindow.OnlyOneWindowWidth {
		t.Errorf("TimeWindowWidth = %v, want the only_one_tw sentinel", cfg.TimeWindowWidth)
	}
}

func TestNonPositiveWidthDefaults(t *testing.T) {
	cfg, err := LoadString("[parameters]\ntime_window_width=-5\n")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TimeWindowWidth != 300 {
		t.Errorf("TimeWindowWidth = %v, want 300 for a non-positive value", cfg.TimeWindowWidth)
	}
}

func TestParsesHomeNetworkAndDirection(t *testing.T) {
	cfg, err := LoadString("[parameters]\nhome_network=10.0.0.0/8\nanalysis_direction=out\ntime_window_width=600\n")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HomeNetwork != "10.0.0.0/8" {
		t.Errorf("HomeNetwork = %q, want 10.0.0.0/8", cfg.HomeNetwork)
	}
	if cfg.AnalysisDirection != homenet.DirectionOut {
		t.Errorf("AnalysisDirection = %v, want DirectionOut", cfg.AnalysisDirection)
	}
	if cfg.TimeWindowWidth != 600 {
		t.Errorf("TimeWindowWidth = %v, want 600", cfg.TimeWindowWidth)
	}
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv(envHomeNetwork, "172.16.0.0/12")
	os.Unsetenv(envTimeWindowWidth)
	os.Unsetenv(envAnalysisDirection)
	os.Unsetenv(envTimestampFormat)

	cfg, err := LoadString("[parameters]\nhome_network=10.0.0.0/8\n")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HomeNetwork != "172.16.0.0/12" {
		t.Errorf("HomeNetwork = %q, want env override 172.16.0.0/12", cfg.HomeNetwork)
	}
}
