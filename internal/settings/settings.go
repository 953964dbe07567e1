// Package settings loads the application settings document and keeps an
// in-memory snapshot synced with the file on disk.
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Telemetry holds the metric and error reporting toggles.
type Telemetry struct {
	// AppMetricsEnabled controls anonymous metrics.
	AppMetricsEnabled bool `yaml:"appMetricsEnabled"`
	// AppErrorReportingEnabled controls anonymous error reporting.
	AppErrorReportingEnabled bool `yaml:"appErrorReportingEnabled"`
	// AppNonAnonMetricsEnabled controls non-anonymous metrics.
	AppNonAnonMetricsEnabled bool `yaml:"appNonAnonMetricsEnabled"`
	// AppDistinctID identifies the installation if reporting is enabled.
	AppDistinctID *string `yaml:"appDistinctId,omitempty"`
}

// FeatureFlags gates in-progress behavior.
type FeatureFlags struct {
	// WS3 enables the v3 workspace APIs.
	WS3 bool `yaml:"ws3"`
	// Undo enables undo/redo support.
	Undo bool `yaml:"undo"`
	// Rules enables processing of workspace rules.
	Rules bool `yaml:"rules"`
	// SingleBranch enables single branch mode.
	SingleBranch bool `yaml:"singleBranch"`
}

// Fetch controls background fetching.
type Fetch struct {
	// AutoFetchIntervalMinutes is how often the app fetches automatically.
	// A negative value disables auto fetching.
	AutoFetchIntervalMinutes int `yaml:"autoFetchIntervalMinutes"`
}

// Reviews controls PR description prefills.
type Reviews struct {
	// AutoFillPRDescriptionFromCommit fills title and body from the first
	// commit when a branch has only one commit.
	AutoFillPRDescriptionFromCommit bool `yaml:"autoFillPrDescriptionFromCommit"`
}

// AppSettings is the full settings document. Missing keys fall back to
// Default() field by field.
type AppSettings struct {
	Telemetry    Telemetry    `yaml:"telemetry"`
	FeatureFlags FeatureFlags `yaml:"featureFlags"`
	Fetch        Fetch        `yaml:"fetch"`
	Reviews      Reviews      `yaml:"reviews"`
}

// Default returns the settings used when the file is absent or partial.
func Default() AppSettings {
	return AppSettings{
		Telemetry: Telemetry{
			AppMetricsEnabled:        true,
			AppErrorReportingEnabled: true,
		},
		FeatureFlags: FeatureFlags{
			WS3: true,
		},
		Fetch: Fetch{
			AutoFetchIntervalMinutes: 15,
		},
		Reviews: Reviews{
			AutoFillPRDescriptionFromCommit: true,
		},
	}
}

// Load reads settings from path. A missing file yields the defaults; present
// keys override them.
func Load(path string) (AppSettings, error) {
	settings := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Default(), fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	return settings, nil
}

// Save writes the settings document to path.
func Save(path string, settings AppSettings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
