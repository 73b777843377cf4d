package config

import (
	"time"

	"github.com/yndnr/picoretain/internal/storage/region"
)

// Default configuration values.
const (
	BackendHeap   = "heap"
	BackendBadger = "badger"

	DefaultBackend      = BackendHeap
	DefaultDataDir      = "/var/lib/picoretain"
	DefaultRetainImages = 3
	DefaultGCInterval   = 10 * time.Minute
	DefaultOnUnresolved = "fail"
	DefaultMetricsAddr  = "127.0.0.1:9464"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default agent configuration.
func Default() *AgentConfig {
	return &AgentConfig{
		Retention: RetentionSection{
			Backend:      DefaultBackend,
			DataDir:      DefaultDataDir,
			Budget:       region.DefaultBudget,
			RetainImages: DefaultRetainImages,
			GCInterval:   DefaultGCInterval,
		},
		Restore: RestoreSection{
			OnUnresolved: DefaultOnUnresolved,
		},
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
