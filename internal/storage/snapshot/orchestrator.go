package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/picoretain/internal/core/domain"
	"github.com/yndnr/picoretain/internal/storage/codec"
	"github.com/yndnr/picoretain/internal/storage/region"
	"github.com/yndnr/picoretain/internal/storage/retained"
	"github.com/yndnr/picoretain/internal/telemetry/metric"
)

// SessionView is the read-only view of a live session taken at snapshot
// time. The session must be quiescent while Snapshot runs.
type SessionView interface {
	ResourcesOf(l domain.Locality) []*domain.Resource
	SubscriptionsOf(l domain.Locality) []*domain.Subscription
	Queryables() []*domain.Queryable
	Queries() []*domain.PendingQuery
}

// Resolver looks up argument codecs and attaches live callbacks.
type Resolver interface {
	codec.CodecLookup
	Resolve(b *domain.Binding) error
}

// Config configures an Orchestrator.
type Config struct {
	// Table is the region layout. Defaults to region.DefaultTable().
	Table *region.Table

	// Policy applies to entities whose callbacks cannot be resolved.
	Policy UnresolvedPolicy

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *metric.Registry
}

// RegionUsage is what one region holds after a snapshot.
type RegionUsage struct {
	Name     region.Name `json:"name" yaml:"name"`
	Entities int         `json:"entities" yaml:"entities"`
	Used     int         `json:"used" yaml:"used"`
	Capacity int         `json:"capacity" yaml:"capacity"`
}

// Info describes a completed snapshot.
type Info struct {
	Generation ulid.ULID     `json:"generation" yaml:"generation"`
	CreatedAt  time.Time     `json:"created_at" yaml:"created_at"`
	Regions    []RegionUsage `json:"regions" yaml:"regions"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Used returns the retained bytes written across all regions.
func (i *Info) Used() int {
	n := 0
	for _, r := range i.Regions {
		n += r.Used
	}
	return n
}

// Orchestrator owns the retained memory and moves a session in and out of
// it.
type Orchestrator struct {
	mem      retained.Memory
	resolver Resolver
	table    *region.Table
	policy   UnresolvedPolicy
	entities *codec.Entities
	logger   *slog.Logger
	metrics  *metric.Registry

	mu    sync.Mutex
	phase Phase
}

// New creates an orchestrator over mem. The memory must be at least as
// large as the region table.
func New(mem retained.Memory, resolver Resolver, cfg Config) (*Orchestrator, error) {
	if mem == nil {
		return nil, fmt.Errorf("snapshot: memory is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("snapshot: resolver is required")
	}
	if cfg.Table == nil {
		cfg.Table = region.DefaultTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if n := len(mem.Bytes()); n < cfg.Table.Total() {
		return nil, domain.ErrLayoutInvalid.WithDetailsf(
			"retained memory is %d bytes, layout needs %d", n, cfg.Table.Total())
	}

	o := &Orchestrator{
		mem:      mem,
		resolver: resolver,
		table:    cfg.Table,
		policy:   cfg.Policy,
		entities: codec.NewEntities(resolver),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if o.metrics != nil {
		for _, r := range o.table.Regions() {
			o.metrics.RegionCapacity.WithLabelValues(string(r.Name)).Set(float64(r.Size))
		}
		o.metrics.Phase.Set(float64(PhaseUnknown))
	}
	return o, nil
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Table returns the region layout.
func (o *Orchestrator) Table() *region.Table { return o.table }

// enter moves to next if the current phase is one of from.
func (o *Orchestrator) enter(next Phase, from ...Phase) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, p := range from {
		if o.phase == p {
			o.setPhaseLocked(next)
			return nil
		}
	}
	return domain.ErrInvalidPhase.WithDetailsf("cannot enter %s from %s", next, o.phase)
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setPhaseLocked(p)
}

func (o *Orchestrator) setPhaseLocked(p Phase) {
	o.phase = p
	if o.metrics != nil {
		o.metrics.Phase.Set(float64(p))
	}
}

// Snapshot encodes view into retained memory and syncs it.
//
// Regions are written in canonical order. On the first failure the failing
// region is invalidated, the remaining regions are not touched and the error
// is returned; regions already written stay valid. A cancelled ctx stops the
// walk the same way, invalidating the next region unless nothing was written
// yet. Sync is attempted either way, ignoring cancellation, so the retained
// image matches what the regions say.
//
// Snapshot is only allowed while Live; after a failure call Resume first.
func (o *Orchestrator) Snapshot(ctx context.Context, view SessionView) (*Info, error) {
	if err := o.enter(PhaseSnapshotting, PhaseLive); err != nil {
		return nil, err
	}

	start := time.Now()
	info := &Info{
		Generation: ulid.Make(),
		CreatedAt:  start,
	}
	mem := o.mem.Bytes()

	var encErr error
	for i, r := range o.table.Regions() {
		dst, err := o.table.Slice(mem, r.Name)
		if err != nil {
			encErr = err
			break
		}
		if err := ctx.Err(); err != nil {
			// Regions before this one already hold the new generation.
			if i > 0 {
				region.Invalidate(dst)
			}
			encErr = fmt.Errorf("snapshot: region %s: %w", r.Name, err)
			o.logger.Warn("snapshot cancelled", "region", r.Name, "regions_written", i)
			break
		}
		w := codec.NewWriter(r.BodyCap())
		n, err := encodeRegion(w, r.Name, o.entities, view)
		if err == nil {
			err = region.Seal(dst, w.Bytes())
		}
		if err != nil {
			region.Invalidate(dst)
			encErr = fmt.Errorf("snapshot: region %s: %w", r.Name, err)
			o.logger.Warn("region invalidated",
				"region", r.Name,
				"capacity", r.Size,
				"error", err)
			break
		}
		info.Regions = append(info.Regions, RegionUsage{
			Name:     r.Name,
			Entities: n,
			Used:     region.HeaderSize + w.Len(),
			Capacity: r.Size,
		})
	}

	var syncErr error
	if err := o.mem.Sync(context.WithoutCancel(ctx)); err != nil {
		syncErr = fmt.Errorf("snapshot: sync: %w", err)
	}
	info.Elapsed = time.Since(start)

	if err := errors.Join(encErr, syncErr); err != nil {
		o.setPhase(PhaseSnapshotFailed)
		o.observeSnapshot(info, metric.ResultError)
		o.logger.Error("snapshot failed",
			"generation", info.Generation.String(),
			"regions_written", len(info.Regions),
			"error", err)
		return nil, err
	}

	o.setPhase(PhaseLive)
	o.observeSnapshot(info, metric.ResultOK)
	o.logger.Info("snapshot complete",
		"generation", info.Generation.String(),
		"bytes", info.Used(),
		"elapsed", info.Elapsed)
	return info, nil
}

func (o *Orchestrator) observeSnapshot(info *Info, result string) {
	if o.metrics == nil {
		return
	}
	o.metrics.SnapshotsTotal.WithLabelValues(result).Inc()
	o.metrics.SnapshotDuration.Observe(info.Elapsed.Seconds())
	for _, r := range info.Regions {
		o.metrics.RegionBytes.WithLabelValues(string(r.Name)).Set(float64(r.Used))
		o.metrics.RegionEntities.WithLabelValues(string(r.Name)).Set(float64(r.Entities))
	}
}

// Resume returns a failed snapshot to Live so the session keeps running.
func (o *Orchestrator) Resume() error {
	return o.enter(PhaseLive, PhaseSnapshotFailed, PhaseLive)
}

// Restore decodes every region and binds the persisted callback ids.
// Any failure returns no state; the retained bytes are left as they are.
func (o *Orchestrator) Restore(ctx context.Context) (*domain.SessionState, error) {
	if err := o.enter(PhaseRestoring, PhaseUnknown, PhaseLive, PhaseRestoreFailed); err != nil {
		return nil, err
	}
	start := time.Now()

	state, err := o.restore(ctx)
	if o.metrics != nil {
		o.metrics.RestoreDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		o.setPhase(PhaseRestoreFailed)
		if o.metrics != nil {
			o.metrics.RestoresTotal.WithLabelValues(metric.ResultError).Inc()
		}
		return nil, err
	}

	o.setPhase(PhaseLive)
	if o.metrics != nil {
		o.metrics.RestoresTotal.WithLabelValues(metric.ResultOK).Inc()
	}
	c := state.Counts()
	o.logger.Info("session restored",
		"resources", c.Resources,
		"remote_resources", c.RemoteResources,
		"local_subscriptions", c.LocalSubscriptions,
		"remote_subscriptions", c.RemoteSubscriptions,
		"local_queryables", c.LocalQueryables,
		"pending_queries", c.PendingQueries,
		"elapsed", time.Since(start))
	return state, nil
}

func (o *Orchestrator) restore(ctx context.Context) (*domain.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state, dropped, err := Decode(o.table, o.mem.Bytes(), o.resolver, o.policy)
	if err != nil {
		return nil, err
	}
	for _, d := range dropped {
		o.dropped(d)
	}
	if err := o.bind(state); err != nil {
		return nil, err
	}
	return state, nil
}

func (o *Orchestrator) dropped(d Dropped) {
	o.logger.Warn("entity dropped on restore",
		"region", d.Region,
		"index", d.Index,
		"error", d.Err)
	if o.metrics != nil {
		o.metrics.DroppedEntities.WithLabelValues(string(d.Region)).Inc()
	}
}

// bind attaches live callbacks to every restored binding.
func (o *Orchestrator) bind(s *domain.SessionState) error {
	var err error
	if s.LocalSubscriptions, err = bindAll(o, region.LocalSubscriptions, s.LocalSubscriptions, subBinding); err != nil {
		return err
	}
	if s.RemoteSubscriptions, err = bindAll(o, region.RemoteSubscriptions, s.RemoteSubscriptions, subBinding); err != nil {
		return err
	}
	if s.LocalQueryables, err = bindAll(o, region.LocalQueryables, s.LocalQueryables, queryableBinding); err != nil {
		return err
	}
	if s.PendingQueries, err = bindAll(o, region.PendingQueries, s.PendingQueries, queryBinding); err != nil {
		return err
	}
	return nil
}

func subBinding(s *domain.Subscription) *domain.Binding     { return &s.Binding }
func queryableBinding(q *domain.Queryable) *domain.Binding { return &q.Binding }
func queryBinding(q *domain.PendingQuery) *domain.Binding  { return &q.Binding }

func bindAll[T any](o *Orchestrator, name region.Name, items []T, binding func(T) *domain.Binding) ([]T, error) {
	kept := items[:0]
	for i, item := range items {
		err := o.resolver.Resolve(binding(item))
		if err == nil {
			kept = append(kept, item)
			continue
		}
		if o.policy == UnresolvedDrop && errors.Is(err, domain.ErrUnresolvedCallback) {
			o.dropped(Dropped{Region: name, Index: i, Err: err})
			continue
		}
		return nil, fmt.Errorf("snapshot: region %s entity %d: %w", name, i, err)
	}
	return kept, nil
}

// RestoreOrEmpty restores the session, or falls back to an empty one when
// the retained memory holds nothing usable. restored reports which of the
// two happened. The only error is ErrInvalidPhase.
func (o *Orchestrator) RestoreOrEmpty(ctx context.Context) (state *domain.SessionState, restored bool, err error) {
	state, err = o.Restore(ctx)
	if err == nil {
		return state, true, nil
	}
	if errors.Is(err, domain.ErrInvalidPhase) {
		return nil, false, err
	}

	if o.blank() {
		o.logger.Info("no retained session, starting empty")
	} else {
		o.logger.Warn("restore failed, starting with an empty session", "error", err)
	}
	if o.metrics != nil {
		o.metrics.RestoresTotal.WithLabelValues(metric.ResultEmpty).Inc()
	}
	o.setPhase(PhaseLive)
	return domain.NewSessionState(), false, nil
}

// blank reports whether no region has ever been written.
func (o *Orchestrator) blank() bool {
	for _, r := range Inspect(o.table, o.mem.Bytes()) {
		if r.Status != region.StatusEmpty {
			return false
		}
	}
	return true
}

// Inspect reports the state of every region without decoding entities.
func (o *Orchestrator) Inspect() []RegionReport {
	return Inspect(o.table, o.mem.Bytes())
}
