package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Settings holds operational tuning loaded from an optional TOML file.
// Everything has a sane default; the file only overrides.
type Settings struct {
	Audit       AuditSettings       `toml:"audit"`
	Entitlement EntitlementSettings `toml:"entitlement"`
	Metrics     MetricsSettings     `toml:"metrics"`
}

// AuditSettings tunes the daily audit run.
type AuditSettings struct {
	CriticalThreshold int64 `toml:"critical_threshold"`
	HighThreshold     int64 `toml:"high_threshold"`
	Workers           int   `toml:"workers"`
}

// EntitlementSettings tunes which debit actions grant entitlements and
// for how long.
type EntitlementSettings struct {
	WindowDays int      `toml:"window_days"`
	Actions    []string `toml:"actions"`
}

// MetricsSettings controls the prometheus exposition endpoint.
type MetricsSettings struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// DefaultSettings returns the built-in operational defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Audit: AuditSettings{
			CriticalThreshold: 100,
			HighThreshold:     25,
			Workers:           8,
		},
		Entitlement: EntitlementSettings{
			WindowDays: 30,
			Actions:    []string{"profile_analysis", "profile_unlock"},
		},
		Metrics: MetricsSettings{
			Enabled: false,
			Listen:  ":9105",
		},
	}
}

// LoadSettings reads a TOML settings file, falling back to defaults for
// anything unset. A missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return settings, nil
	}
	if _, err := toml.DecodeFile(path, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if settings.Audit.Workers <= 0 {
		settings.Audit.Workers = DefaultSettings().Audit.Workers
	}
	if settings.Entitlement.WindowDays <= 0 {
		settings.Entitlement.WindowDays = DefaultSettings().Entitlement.WindowDays
	}
	if settings.Metrics.Listen == "" {
		settings.Metrics.Listen = DefaultSettings().Metrics.Listen
	}
	return settings, nil
}
