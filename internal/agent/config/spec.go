// Package config defines the agent configuration structure.
package config

import "time"

// AgentConfig is the root configuration for picoretain-agent.
type AgentConfig struct {
	Retention RetentionSection `koanf:"retention" json:"retention" yaml:"retention"`
	Restore   RestoreSection   `koanf:"restore" json:"restore" yaml:"restore"`
	Session   SessionSection   `koanf:"session" json:"session" yaml:"session"`
	Metrics   MetricsSection   `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Log       LogSection       `koanf:"log" json:"log" yaml:"log"`
}

// RetentionSection configures retained memory.
type RetentionSection struct {
	// Backend is "heap" (lost on exit) or "badger" (kept in DataDir).
	Backend string `koanf:"backend" json:"backend" yaml:"backend"`

	DataDir string `koanf:"data_dir" json:"data_dir" yaml:"data_dir"`

	// Budget is the total retained memory in bytes.
	Budget int `koanf:"budget" json:"budget" yaml:"budget"`

	// Regions overrides region sizes by name. Missing regions keep their
	// default size.
	Regions map[string]int `koanf:"regions" json:"regions,omitempty" yaml:"regions,omitempty"`

	// RetainImages is how many superseded images the badger backend keeps.
	RetainImages int `koanf:"retain_images" json:"retain_images" yaml:"retain_images"`

	GCInterval time.Duration `koanf:"gc_interval" json:"gc_interval" yaml:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes" json:"sync_writes" yaml:"sync_writes"`
}

// RestoreSection configures restore behavior.
type RestoreSection struct {
	// OnUnresolved is "fail" or "drop".
	OnUnresolved string `koanf:"on_unresolved" json:"on_unresolved" yaml:"on_unresolved"`
}

// SessionSection configures the session runtime.
type SessionSection struct {
	// BootstrapFile lists declarations applied on a cold boot.
	BootstrapFile string `koanf:"bootstrap_file" json:"bootstrap_file,omitempty" yaml:"bootstrap_file,omitempty"`
}

// MetricsSection configures the Prometheus endpoint. An empty Addr
// disables it.
type MetricsSection struct {
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}
