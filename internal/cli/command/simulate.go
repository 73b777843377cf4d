package command

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/picoretain/internal/agent/config"
	"github.com/yndnr/picoretain/internal/binding"
	"github.com/yndnr/picoretain/internal/cli/output"
	"github.com/yndnr/picoretain/internal/core/domain"
	"github.com/yndnr/picoretain/internal/session"
	"github.com/yndnr/picoretain/internal/storage/retained"
	"github.com/yndnr/picoretain/internal/storage/snapshot"
)

// SimulateResult reports one sleep and wake cycle.
type SimulateResult struct {
	Generation ulid.ULID              `json:"generation" yaml:"generation"`
	Bytes      int                    `json:"bytes" yaml:"bytes"`
	Before     domain.Counts          `json:"before" yaml:"before" table:"-"`
	After      domain.Counts          `json:"after" yaml:"after" table:"-"`
	Restored   bool                   `json:"restored" yaml:"restored"`
	Match      bool                   `json:"match" yaml:"match"`
	Regions    []snapshot.RegionUsage `json:"regions" yaml:"regions" table:"-"`
}

// SimulateCommand runs a session through a sleep and wake cycle in process.
func SimulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Snapshot a session, power-cycle it in memory and restore it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bootstrap",
				Aliases: []string{"b"},
				Usage:   "Session bootstrap file (default: a built-in demo session)",
			},
			&cli.StringFlag{
				Name:  "write",
				Usage: "Write the retained image to this file",
			},
			&cli.StringSliceFlag{
				Name:  "forget",
				Usage: "Callback names left unregistered after wake-up",
			},
			&cli.StringFlag{
				Name:  "on-unresolved",
				Usage: "Restore policy for unresolved callbacks: fail or drop",
				Value: "fail",
			},
		},
		Action: simulate,
	}
}

// demoBootstrap is used when no bootstrap file is given.
var demoBootstrap = session.Bootstrap{
	Resources: []session.BootstrapResource{{Key: "demo/**"}},
	Subscriptions: []session.BootstrapSubscription{
		{Key: "demo/**", Reliability: "reliable", Callback: "on_sample"},
	},
	Queryables: []session.BootstrapQueryable{
		{Key: "demo/eval", Complete: true, Callback: "on_query"},
	},
}

func newSimRegistry(names, forget []string, logger *slog.Logger) (*binding.Registry, error) {
	reg := binding.NewRegistry(logger)
	for _, n := range names {
		if slices.Contains(forget, n) {
			continue
		}
		if _, err := reg.RegisterCallback(n, func(any, any) {}); err != nil {
			return nil, err
		}
		if _, err := reg.RegisterDropper(n, func(any) {}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func simulate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	tab, err := config.Table(&cfg.Retention)
	if err != nil {
		return err
	}
	policy, err := snapshot.ParseUnresolvedPolicy(c.String("on-unresolved"))
	if err != nil {
		return err
	}

	boot := &demoBootstrap
	if path := c.String("bootstrap"); path != "" {
		if boot, err = session.LoadBootstrap(path); err != nil {
			return err
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	names := boot.CallbackNames()
	mem := retained.NewHeapMemory(cfg.Retention.Budget)

	// Before power-down.
	reg, err := newSimRegistry(names, nil, logger)
	if err != nil {
		return err
	}
	orch, err := snapshot.New(mem, reg, snapshot.Config{Table: tab, Policy: policy, Logger: logger})
	if err != nil {
		return err
	}
	s := session.New(reg, logger)
	if _, err := s.WakeUp(c.Context, orch); err != nil {
		return err
	}
	if err := s.Apply(boot); err != nil {
		return err
	}
	if boot == &demoBootstrap {
		if err := demoQuery(s); err != nil {
			return err
		}
	}
	before := s.Counts()
	info, err := s.PrepareToSleep(c.Context, orch)
	if err != nil {
		return err
	}

	if path := c.String("write"); path != "" {
		if err := os.WriteFile(path, mem.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
	}

	// After power-up: fresh registry and orchestrator over the same bytes.
	reg2, err := newSimRegistry(names, c.StringSlice("forget"), logger)
	if err != nil {
		return err
	}
	orch2, err := snapshot.New(mem, reg2, snapshot.Config{Table: tab, Policy: policy, Logger: logger})
	if err != nil {
		return err
	}
	s2 := session.New(reg2, logger)
	restored, err := s2.WakeUp(c.Context, orch2)
	if err != nil {
		return err
	}
	after := s2.Counts()

	res := SimulateResult{
		Generation: info.Generation,
		Bytes:      info.Used(),
		Before:     before,
		After:      after,
		Restored:   restored,
		Match:      before == after,
		Regions:    info.Regions,
	}
	if f, _ := output.ParseFormat(ParseGlobalFlags(c).Output); f == output.FormatTable {
		if err := render(c, res); err != nil {
			return err
		}
		fmt.Fprintln(writer(c))
		return render(c, res.Regions)
	}
	return render(c, res)
}

// demoQuery leaves one latest-consolidated query with a buffered reply.
func demoQuery(s *session.Session) error {
	id, err := s.Query(session.QueryRequest{
		Key:           domain.KeyExpr{Suffix: "demo/**"},
		Parameters:    "limit=1",
		Consolidation: domain.ConsolidationLatest,
	})
	if err != nil {
		return err
	}
	return s.ReceiveReply(id, &domain.PendingReply{
		Timestamp: domain.Timestamp{Time: 1},
		Sample: domain.Sample{
			KeyExpr:  domain.KeyExpr{Suffix: "demo/a"},
			Payload:  []byte("21.5"),
			Encoding: domain.Encoding{Prefix: domain.EncodingTextPlain},
		},
	})
}
