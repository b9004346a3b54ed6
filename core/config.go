package core

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the flat configuration of a Store. The zero value of each field
// means "leave the store's default alone"; interval thresholds of 0 disable
// the corresponding check.
type Config struct {
	PositionInterpOrder int    `yaml:"position_interp_order"`
	ClockInterpOrder    int    `yaml:"clock_interp_order"`
	ClockInterp         string `yaml:"clock_interp"` // "lagrange" or "linear"

	RejectBadPositions       *bool `yaml:"reject_bad_positions"`
	RejectBadClocks          *bool `yaml:"reject_bad_clocks"`
	RejectPredictedPositions *bool `yaml:"reject_predicted_positions"`
	RejectPredictedClocks    *bool `yaml:"reject_predicted_clocks"`

	PositionGapInterval float64 `yaml:"position_gap_interval"`
	ClockGapInterval    float64 `yaml:"clock_gap_interval"`
	PositionMaxInterval float64 `yaml:"position_max_interval"`
	ClockMaxInterval    float64 `yaml:"clock_max_interval"`

	ClockSource string `yaml:"clock_source"` // "primary" or "override"
}

// ReadConfig decodes a YAML configuration.
func ReadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode store config: %w", err)
	}
	return cfg, nil
}

// ReadConfigFile decodes a YAML configuration file.
func ReadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open store config: %w", err)
	}
	defer f.Close()
	return ReadConfig(f)
}

// Apply pushes the configuration onto the store through its setters.
func (s *Store) Apply(cfg Config) error {
	if cfg.PositionInterpOrder > 0 {
		s.SetPositionInterpOrder(cfg.PositionInterpOrder)
	}
	if cfg.ClockInterpOrder > 0 {
		s.SetClockInterpOrder(cfg.ClockInterpOrder)
	}
	switch strings.ToLower(cfg.ClockInterp) {
	case "":
	case "lagrange":
		s.SetClockInterpolation(ClockLagrange)
	case "linear":
		s.SetClockInterpolation(ClockLinear)
	default:
		return fmt.Errorf("unknown clock interpolation %q", cfg.ClockInterp)
	}

	if cfg.RejectBadPositions != nil {
		s.RejectBadPositions(*cfg.RejectBadPositions)
	}
	if cfg.RejectBadClocks != nil {
		s.RejectBadClocks(*cfg.RejectBadClocks)
	}
	if cfg.RejectPredictedPositions != nil {
		s.RejectPredictedPositions(*cfg.RejectPredictedPositions)
	}
	if cfg.RejectPredictedClocks != nil {
		s.RejectPredictedClocks(*cfg.RejectPredictedClocks)
	}

	s.SetPositionGapInterval(cfg.PositionGapInterval)
	s.SetClockGapInterval(cfg.ClockGapInterval)
	s.SetPositionMaxInterval(cfg.PositionMaxInterval)
	s.SetClockMaxInterval(cfg.ClockMaxInterval)

	switch strings.ToLower(cfg.ClockSource) {
	case "":
	case "primary":
		s.UsePrimaryClock()
	case "override":
		s.UseOverrideClock()
	default:
		return fmt.Errorf("unknown clock source %q", cfg.ClockSource)
	}
	return nil
}
