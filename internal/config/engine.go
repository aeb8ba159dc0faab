package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical engine defaults file.
// This is the single source of truth for all default engine values.
const DefaultConfigPath = "config/engine.defaults.json"

// EngineConfig represents the acquisition engine's configuration. The schema
// matches the /api/config endpoint so the same JSON serves both startup
// configuration and runtime inspection.
type EngineConfig struct {
	// Acquisition params
	SampleRateHz              *float64 `json:"sample_rate_hz,omitempty"`
	SessionCapacity           *int     `json:"session_capacity,omitempty"`
	TrialCapacity             *int     `json:"trial_capacity,omitempty"`
	SuppressDuplicateWarnings *bool    `json:"suppress_duplicate_warnings,omitempty"`

	// Display params
	GUI            *bool   `json:"gui,omitempty"`
	DisplayHistory *int    `json:"display_history,omitempty"`
	Units          *string `json:"units,omitempty"` // "cm", "mm" or "in"
}

// EmptyEngineConfig returns an EngineConfig with all fields set to nil.
// Use LoadEngineConfig to load actual values from the defaults file.
func EmptyEngineConfig() *EngineConfig {
	return &EngineConfig{}
}

// LoadEngineConfig loads an EngineConfig from a JSON file.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyEngineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical engine defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *EngineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadEngineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *EngineConfig) Validate() error {
	if c.SampleRateHz != nil && *c.SampleRateHz <= 0 {
		return fmt.Errorf("sample_rate_hz must be positive, got %f", *c.SampleRateHz)
	}
	if c.SessionCapacity != nil && *c.SessionCapacity < 0 {
		return fmt.Errorf("session_capacity must be non-negative, got %d", *c.SessionCapacity)
	}
	if c.TrialCapacity != nil && *c.TrialCapacity < 0 {
		return fmt.Errorf("trial_capacity must be non-negative, got %d", *c.TrialCapacity)
	}
	if c.DisplayHistory != nil && *c.DisplayHistory < 1 {
		return fmt.Errorf("display_history must be at least 1, got %d", *c.DisplayHistory)
	}
	if c.Units != nil {
		switch *c.Units {
		case "cm", "mm", "in":
		default:
			return fmt.Errorf("units must be one of cm, mm, in; got %q", *c.Units)
		}
	}
	return nil
}

// GetSampleRateHz returns the sample_rate_hz value or the default.
func (c *EngineConfig) GetSampleRateHz() float64 {
	if c.SampleRateHz == nil {
		return 44.0 // board refresh ceiling
	}
	return *c.SampleRateHz
}

// GetSessionCapacity returns the session_capacity value or the default.
func (c *EngineConfig) GetSessionCapacity() int {
	if c.SessionCapacity == nil {
		return 10000
	}
	return *c.SessionCapacity
}

// GetTrialCapacity returns the trial_capacity value or the default.
func (c *EngineConfig) GetTrialCapacity() int {
	if c.TrialCapacity == nil {
		return 1000
	}
	return *c.TrialCapacity
}

// GetSuppressDuplicateWarnings returns the suppress_duplicate_warnings
// value or the default.
func (c *EngineConfig) GetSuppressDuplicateWarnings() bool {
	if c.SuppressDuplicateWarnings == nil {
		return false
	}
	return *c.SuppressDuplicateWarnings
}

// GetGUI returns the gui value or the default.
func (c *EngineConfig) GetGUI() bool {
	if c.GUI == nil {
		return true
	}
	return *c.GUI
}

// GetDisplayHistory returns the display_history value or the default.
func (c *EngineConfig) GetDisplayHistory() int {
	if c.DisplayHistory == nil {
		return 500
	}
	return *c.DisplayHistory
}

// GetUnits returns the units value or the default.
func (c *EngineConfig) GetUnits() string {
	if c.Units == nil {
		return "cm"
	}
	return *c.Units
}
