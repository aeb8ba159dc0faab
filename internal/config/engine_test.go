package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := EmptyEngineConfig()

	if got := cfg.GetSampleRateHz(); got != 44.0 {
		t.Errorf("GetSampleRateHz() = %v, want 44", got)
	}
	if got := cfg.GetSessionCapacity(); got != 10000 {
		t.Errorf("GetSessionCapacity() = %d, want 10000", got)
	}
	if got := cfg.GetTrialCapacity(); got != 1000 {
		t.Errorf("GetTrialCapacity() = %d, want 1000", got)
	}
	if cfg.GetSuppressDuplicateWarnings() {
		t.Error("GetSuppressDuplicateWarnings() = true, want false")
	}
	if !cfg.GetGUI() {
		t.Error("GetGUI() = false, want true")
	}
	if got := cfg.GetDisplayHistory(); got != 500 {
		t.Errorf("GetDisplayHistory() = %d, want 500", got)
	}
	if got := cfg.GetUnits(); got != "cm" {
		t.Errorf("GetUnits() = %q, want cm", got)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "engine.json", `{"sample_rate_hz": 22, "units": "in"}`)

	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("LoadEngineConfig error: %v", err)
	}
	if got := cfg.GetSampleRateHz(); got != 22 {
		t.Errorf("GetSampleRateHz() = %v, want 22", got)
	}
	if got := cfg.GetUnits(); got != "in" {
		t.Errorf("GetUnits() = %q, want in", got)
	}
	// Unspecified fields fall back to defaults.
	if got := cfg.GetSessionCapacity(); got != 10000 {
		t.Errorf("GetSessionCapacity() = %d, want default 10000", got)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"zero rate", `{"sample_rate_hz": 0}`, "sample_rate_hz"},
		{"negative rate", `{"sample_rate_hz": -5}`, "sample_rate_hz"},
		{"negative session capacity", `{"session_capacity": -1}`, "session_capacity"},
		{"negative trial capacity", `{"trial_capacity": -1}`, "trial_capacity"},
		{"zero display history", `{"display_history": 0}`, "display_history"},
		{"unknown units", `{"units": "furlongs"}`, "units"},
		{"malformed json", `{"sample_rate_hz": `, "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "engine.json", tt.content)
			_, err := LoadEngineConfig(path)
			if err == nil {
				t.Fatal("LoadEngineConfig succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := writeConfig(t, "engine.yaml", "sample_rate_hz: 44")
	if _, err := LoadEngineConfig(path); err == nil {
		t.Error("LoadEngineConfig accepted a non-json file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadEngineConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadEngineConfig succeeded on a missing file")
	}
}

func TestDefaultsFileMatchesAccessors(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	// The canonical defaults file must agree with the accessor fallbacks.
	if got := cfg.GetSampleRateHz(); got != 44.0 {
		t.Errorf("defaults file sample_rate_hz = %v, want 44", got)
	}
	if got := cfg.GetSessionCapacity(); got != 10000 {
		t.Errorf("defaults file session_capacity = %d, want 10000", got)
	}
	if got := cfg.GetTrialCapacity(); got != 1000 {
		t.Errorf("defaults file trial_capacity = %d, want 1000", got)
	}
	if got := cfg.GetDisplayHistory(); got != 500 {
		t.Errorf("defaults file display_history = %d, want 500", got)
	}
	if got := cfg.GetUnits(); got != "cm" {
		t.Errorf("defaults file units = %q, want cm", got)
	}
}
