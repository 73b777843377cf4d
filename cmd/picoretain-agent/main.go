package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/picoretain/internal/agent/config"
	"github.com/yndnr/picoretain/internal/binding"
	"github.com/yndnr/picoretain/internal/infra/buildinfo"
	"github.com/yndnr/picoretain/internal/infra/confloader"
	"github.com/yndnr/picoretain/internal/infra/shutdown"
	"github.com/yndnr/picoretain/internal/session"
	"github.com/yndnr/picoretain/internal/storage/retained"
	"github.com/yndnr/picoretain/internal/storage/snapshot"
	"github.com/yndnr/picoretain/internal/telemetry/logger"
	"github.com/yndnr/picoretain/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", os.Getenv("PICORETAIN_CONFIG"), "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("picoretain-agent %s\n", buildinfo.String())
		return nil
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogger := log.Slog()

	log.Info("starting picoretain-agent",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile,
		"backend", cfg.Retention.Backend)

	metrics := metric.NewRegistry()

	mem, err := openMemory(cfg, slogger, metrics)
	if err != nil {
		return fmt.Errorf("open retained memory: %w", err)
	}

	boot, err := loadBootstrap(cfg)
	if err != nil {
		mem.Close()
		return err
	}

	reg := binding.NewRegistry(slogger)
	if err := registerCallbacks(reg, boot, slogger); err != nil {
		mem.Close()
		return err
	}

	tab, err := config.Table(&cfg.Retention)
	if err != nil {
		mem.Close()
		return err
	}
	orch, err := snapshot.New(mem, reg, snapshot.Config{
		Table:   tab,
		Policy:  cfg.Policy(),
		Logger:  slogger,
		Metrics: metrics,
	})
	if err != nil {
		mem.Close()
		return fmt.Errorf("init orchestrator: %w", err)
	}
	metrics.Registerer().MustRegister(metric.NewRegionCollector(tab, mem.Bytes))

	sess := session.New(reg, slogger)
	restored, err := sess.WakeUp(context.Background(), orch)
	if err != nil {
		mem.Close()
		return err
	}
	if !restored {
		if err := sess.Apply(boot); err != nil {
			mem.Close()
			return fmt.Errorf("apply bootstrap: %w", err)
		}
		log.Info("cold boot, bootstrap applied", "entities", sess.Counts().Total())
	}

	handler := shutdown.NewHandler(30 * time.Second)

	handler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing retained memory")
		return mem.Close()
	})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		handler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return srv.Shutdown(ctx)
		})
		go func() {
			log.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	if path := *configFile; path != "" {
		w, err := watchConfig(path, slogger)
		if err != nil {
			log.Warn("configuration reload disabled", "error", err)
		} else {
			handler.OnShutdown(func(context.Context) error { return w.Stop() })
		}
	}

	handler.OnSleep(func(ctx context.Context) error {
		log.Info("sleep requested")
		_, err := sess.PrepareToSleep(ctx, orch)
		return err
	})
	handler.OnSleepAborted(func(err error) {
		log.Error("sleep aborted, agent keeps running", "error", err)
	})

	log.Info("agent ready", "pid", os.Getpid(), "sleep_signal", shutdown.SleepSignal.String())
	reason, err := handler.Wait()
	if err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("agent stopped", "reason", reason.String())
	return nil
}

// openMemory opens the configured retained memory backend.
func openMemory(cfg *config.AgentConfig, log *slog.Logger, metrics *metric.Registry) (retained.Memory, error) {
	if cfg.Retention.Backend != config.BackendBadger {
		return retained.NewHeapMemory(cfg.Retention.Budget), nil
	}
	bc := retained.DefaultBadgerConfig(cfg.Retention.DataDir, cfg.Retention.Budget)
	bc.RetainImages = cfg.Retention.RetainImages
	bc.SyncWrites = cfg.Retention.SyncWrites
	if cfg.Retention.GCInterval > 0 {
		bc.GCInterval = cfg.Retention.GCInterval.String()
	}
	mem, err := retained.OpenBadger(bc, log)
	if err != nil {
		return nil, err
	}
	return mem.RegisterMetrics(metrics.Registerer()), nil
}

func loadBootstrap(cfg *config.AgentConfig) (*session.Bootstrap, error) {
	if cfg.Session.BootstrapFile == "" {
		return &session.Bootstrap{}, nil
	}
	b, err := session.LoadBootstrap(cfg.Session.BootstrapFile)
	if err != nil {
		return nil, fmt.Errorf("load bootstrap: %w", err)
	}
	return b, nil
}

// registerCallbacks registers a logging callback and dropper under every
// name the bootstrap uses. Registration happens before wake-up so restored
// entities resolve to the same ids.
func registerCallbacks(reg *binding.Registry, b *session.Bootstrap, log *slog.Logger) error {
	for _, name := range b.CallbackNames() {
		l := log.With("callback", name)
		if _, err := reg.RegisterCallback(name, func(event, arg any) {
			l.Debug("event delivered", "event", fmt.Sprintf("%T", event))
		}); err != nil {
			return err
		}
		if _, err := reg.RegisterDropper(name, func(any) {
			l.Debug("entity dropped")
		}); err != nil {
			return err
		}
	}
	return nil
}

func metricsMux(metrics *metric.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// watchConfig reloads the log level when the configuration file changes.
// Other settings take effect on the next start.
func watchConfig(path string, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		cfg, err := config.Load(path)
		if err != nil {
			log.Warn("configuration reload rejected", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w, nil
}
