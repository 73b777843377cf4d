package config

import (
	"fmt"
	"os"

	"github.com/yndnr/picoretain/internal/storage/region"
	"github.com/yndnr/picoretain/internal/storage/snapshot"
	"github.com/yndnr/picoretain/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *AgentConfig) error {
	if err := verifyRetention(&cfg.Retention); err != nil {
		return err
	}
	if _, err := snapshot.ParseUnresolvedPolicy(cfg.Restore.OnUnresolved); err != nil {
		return fmt.Errorf("restore.on_unresolved: %w", err)
	}
	if !logger.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("log.format %q is not json or text", cfg.Log.Format)
	}
	if f := cfg.Session.BootstrapFile; f != "" {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("session.bootstrap_file: %w", err)
		}
	}
	return nil
}

func verifyRetention(cfg *RetentionSection) error {
	switch cfg.Backend {
	case BackendHeap:
	case BackendBadger:
		if cfg.DataDir == "" {
			return fmt.Errorf("retention.data_dir is required for the badger backend")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
			return fmt.Errorf("cannot create data directory: %w", err)
		}
		if cfg.RetainImages < 0 {
			return fmt.Errorf("retention.retain_images must not be negative")
		}
	default:
		return fmt.Errorf("retention.backend %q is not heap or badger", cfg.Backend)
	}
	if _, err := Table(cfg); err != nil {
		return fmt.Errorf("retention: %w", err)
	}
	return nil
}

// Table builds the region layout from the retention settings.
func Table(cfg *RetentionSection) (*region.Table, error) {
	sizes := make(map[string]int, len(region.Canonical))
	for _, s := range region.DefaultSpecs() {
		sizes[string(s.Name)] = s.Size
	}
	for name, size := range cfg.Regions {
		sizes[name] = size
	}
	return region.NewTable(cfg.Budget, region.SpecsFromMap(sizes))
}

// Policy returns the parsed unresolved-callback policy.
func (cfg *AgentConfig) Policy() snapshot.UnresolvedPolicy {
	p, _ := snapshot.ParseUnresolvedPolicy(cfg.Restore.OnUnresolved)
	return p
}
