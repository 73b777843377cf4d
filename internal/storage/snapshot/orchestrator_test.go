package snapshot

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/picoretain/internal/binding"
	"github.com/yndnr/picoretain/internal/core/domain"
	"github.com/yndnr/picoretain/internal/storage/codec"
	"github.com/yndnr/picoretain/internal/storage/region"
	"github.com/yndnr/picoretain/internal/storage/retained"
	"github.com/yndnr/picoretain/internal/telemetry/metric"
)

func demoKey() domain.KeyExpr {
	return domain.KeyExpr{ID: 0, Mapping: domain.MappingUnknownRemote, Suffix: "demo/**"}
}

func newRegistry(t *testing.T, onSample domain.Callback) *binding.Registry {
	t.Helper()
	r := binding.NewRegistry(nil)
	if onSample == nil {
		onSample = func(any, any) {}
	}
	if err := r.RegisterCallbackAt(42, "on_sample", onSample); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterDropperAt(43, "on_drop", func(any) {}); err != nil {
		t.Fatal(err)
	}
	return r
}

func newLive(t *testing.T, mem retained.Memory, reg Resolver, cfg Config) *Orchestrator {
	t.Helper()
	o, err := New(mem, reg, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := o.RestoreOrEmpty(context.Background()); err != nil {
		t.Fatal(err)
	}
	return o
}

// stripLive clears the function values restore attaches so states can be
// compared field by field.
func stripLive(s *domain.SessionState) *domain.SessionState {
	for _, sub := range append(append([]*domain.Subscription{}, s.LocalSubscriptions...), s.RemoteSubscriptions...) {
		sub.OnEvent, sub.OnDrop = nil, nil
	}
	for _, q := range s.LocalQueryables {
		q.OnEvent, q.OnDrop = nil, nil
	}
	for _, q := range s.PendingQueries {
		q.OnEvent, q.OnDrop = nil, nil
	}
	return s
}

func fullState() *domain.SessionState {
	s := domain.NewSessionState()
	s.Resources = []*domain.Resource{
		{ID: 1, Key: demoKey(), RefCount: 1},
		{ID: 2, Key: domain.KeyExpr{ID: 1, Suffix: "/status"}, RefCount: 3},
	}
	s.RemoteResources = []*domain.Resource{
		{ID: 7, Key: domain.KeyExpr{Mapping: domain.MappingUnknownRemote, Suffix: "peer/x"}, RefCount: 1},
	}
	s.LocalSubscriptions = []*domain.Subscription{
		{
			Key:         demoKey(),
			ID:          7,
			Reliability: domain.Reliable,
			Mode:        domain.Push,
			Binding:     domain.Binding{Callback: 42},
		},
		{
			Key:     domain.KeyExpr{Suffix: "sensor/*"},
			ID:      8,
			Period:  domain.Period{Origin: 5, Period: 1000, Duration: 100},
			Mode:    domain.Pull,
			Binding: domain.Binding{Callback: 42, Dropper: 43, Codec: binding.CodecID(binding.StringCodec{}), Argument: "ctx-8"},
		},
	}
	s.RemoteSubscriptions = []*domain.Subscription{
		{Key: domain.KeyExpr{Suffix: "remote/**"}, ID: 1},
	}
	s.LocalQueryables = []*domain.Queryable{
		{Key: domain.KeyExpr{Suffix: "demo/eval"}, ID: 3, Complete: true, Binding: domain.Binding{Callback: 42}},
	}
	s.PendingQueries = []*domain.PendingQuery{
		{
			Key:           domain.KeyExpr{Suffix: "demo/**"},
			ID:            4,
			Parameters:    "limit=3",
			Target:        domain.TargetAllComplete,
			Consolidation: domain.ConsolidationMonotonic,
			Binding:       domain.Binding{Callback: 42},
			Replies: []*domain.PendingReply{
				{
					Timestamp: domain.Timestamp{NodeID: [16]byte{9}, Time: 55},
					ReplierID: [16]byte{2},
					Sample: domain.Sample{
						KeyExpr:  domain.KeyExpr{Suffix: "demo/a"},
						Payload:  []byte("21.5"),
						Encoding: domain.Encoding{Prefix: domain.EncodingTextPlain},
					},
				},
			},
		},
	}
	return s
}

func TestRestoreOrEmpty_ColdBoot(t *testing.T) {
	mem := retained.NewHeapMemory(region.DefaultBudget)
	o, err := New(mem, newRegistry(t, nil), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if o.Phase() != PhaseUnknown {
		t.Fatalf("initial phase = %s", o.Phase())
	}

	state, restored, err := o.RestoreOrEmpty(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if restored || !state.Empty() {
		t.Fatalf("cold boot: restored=%v empty=%v", restored, state.Empty())
	}
	if o.Phase() != PhaseLive {
		t.Fatalf("phase = %s, want live", o.Phase())
	}
}

func TestSnapshotRestore_EmptySession(t *testing.T) {
	ctx := context.Background()
	mem := retained.NewHeapMemory(region.DefaultBudget)
	o := newLive(t, mem, newRegistry(t, nil), Config{})

	info, err := o.Snapshot(ctx, domain.NewSessionState())
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Regions) != len(region.Canonical) {
		t.Fatalf("wrote %d regions, want %d", len(info.Regions), len(region.Canonical))
	}
	for _, r := range info.Regions {
		if r.Used != region.HeaderSize+8 || r.Entities != 0 {
			t.Fatalf("region %s usage = %+v", r.Name, r)
		}
	}

	o2, _ := New(mem, newRegistry(t, nil), Config{})
	state, err := o2.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !state.Empty() {
		t.Fatalf("restored counts = %+v", state.Counts())
	}
}

func TestScenario_OneResourceOneSubscription(t *testing.T) {
	ctx := context.Background()
	mem := retained.NewHeapMemory(region.DefaultBudget)

	before := domain.NewSessionState()
	before.Resources = []*domain.Resource{{ID: 1, Key: demoKey(), RefCount: 1}}
	before.LocalSubscriptions = []*domain.Subscription{{
		Key:         demoKey(),
		ID:          7,
		Reliability: domain.Reliable,
		Mode:        domain.Push,
		Binding:     domain.Binding{Callback: 42},
	}}

	o := newLive(t, mem, newRegistry(t, nil), Config{})
	if _, err := o.Snapshot(ctx, before); err != nil {
		t.Fatal(err)
	}

	// Power cycle: a new registry with the same registrations.
	var delivered []any
	reg := newRegistry(t, func(event, arg any) { delivered = append(delivered, event) })
	o2, _ := New(mem, reg, Config{})
	after, err := o2.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(after.Resources) != 1 || !reflect.DeepEqual(after.Resources[0], before.Resources[0]) {
		t.Fatalf("resources = %+v", after.Resources)
	}
	if len(after.LocalSubscriptions) != 1 {
		t.Fatalf("subscriptions = %+v", after.LocalSubscriptions)
	}
	sub := after.LocalSubscriptions[0]
	if sub.ID != 7 || sub.Key != demoKey() || sub.Reliability != domain.Reliable || sub.Mode != domain.Push {
		t.Fatalf("subscription = %+v", sub)
	}
	if sub.Callback != 42 || sub.Dropper != 0 || sub.Codec != 0 || sub.Argument != nil {
		t.Fatalf("binding = %+v", sub.Binding)
	}
	if sub == before.LocalSubscriptions[0] {
		t.Fatal("restored subscription shares memory with the original")
	}

	sub.Deliver("sample-1")
	if len(delivered) != 1 || delivered[0] != "sample-1" {
		t.Fatalf("callback 42 did not resolve to the registered function: %v", delivered)
	}
}

func TestSnapshotRestore_AllCollections(t *testing.T) {
	ctx := context.Background()
	mem := retained.NewHeapMemory(region.DefaultBudget)
	o := newLive(t, mem, newRegistry(t, nil), Config{})

	before := fullState()
	info, err := o.Snapshot(ctx, before)
	if err != nil {
		t.Fatal(err)
	}
	if info.Generation.IsZero() {
		t.Fatal("snapshot has no generation id")
	}

	o2, _ := New(mem, newRegistry(t, nil), Config{})
	after, err := o2.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range after.LocalSubscriptions {
		if !s.Bound() {
			t.Fatalf("subscription %d not bound", s.ID)
		}
	}
	if !reflect.DeepEqual(stripLive(after), fullState()) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", after, fullState())
	}

	// The restored state can be snapshotted again unchanged.
	if _, err := o2.Snapshot(ctx, after); err != nil {
		t.Fatalf("re-snapshot: %v", err)
	}
}

func TestSnapshot_RegionIndependence(t *testing.T) {
	ctx := context.Background()
	mem := retained.NewHeapMemory(region.DefaultBudget)
	o := newLive(t, mem, newRegistry(t, nil), Config{})

	// First snapshot fills every region.
	if _, err := o.Snapshot(ctx, fullState()); err != nil {
		t.Fatal(err)
	}

	// Second snapshot: new resources, then local subscriptions overflow.
	next := fullState()
	next.Resources = []*domain.Resource{{ID: 99, Key: domain.KeyExpr{Suffix: "fresh"}, RefCount: 1}}
	for i := 0; i < 40; i++ {
		next.LocalSubscriptions = append(next.LocalSubscriptions, &domain.Subscription{
			Key: domain.KeyExpr{Suffix: "filler/subscription/key/expression"},
			ID:  uint32(100 + i),
		})
	}

	_, err := o.Snapshot(ctx, next)
	if !errors.Is(err, domain.ErrRegionOverflow) {
		t.Fatalf("Snapshot() error = %v, want ErrRegionOverflow", err)
	}
	if o.Phase() != PhaseSnapshotFailed {
		t.Fatalf("phase = %s, want snapshot_failed", o.Phase())
	}

	tab := o.Table()
	raw, _ := tab.Slice(mem.Bytes(), region.Resources)
	body, err := region.Open(raw)
	if err != nil {
		t.Fatalf("resources region unreadable after overflow elsewhere: %v", err)
	}
	res, err := codec.DecodeCollection(codec.NewReader(body), codec.MinResourceSize,
		codec.NewEntities(nil).DecodeResource, codec.DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].ID != 99 {
		t.Fatalf("resources region = %+v, want the new resource", res)
	}

	reports := o.Inspect()
	status := map[region.Name]region.Status{}
	for _, r := range reports {
		status[r.Name] = r.Status
	}
	if status[region.LocalSubscriptions] != region.StatusEmpty {
		t.Fatalf("overflowing region status = %s, want empty", status[region.LocalSubscriptions])
	}
	if status[region.PendingQueries] != region.StatusValid {
		t.Fatalf("later region status = %s, want its previous valid content", status[region.PendingQueries])
	}

	if err := o.Resume(); err != nil {
		t.Fatal(err)
	}
	if o.Phase() != PhaseLive {
		t.Fatalf("phase after Resume = %s", o.Phase())
	}

	// A restore now cannot produce a partial session.
	o2, _ := New(mem, newRegistry(t, nil), Config{})
	if _, err := o2.Restore(ctx); !errors.Is(err, domain.ErrTruncatedData) {
		t.Fatalf("Restore() error = %v, want ErrTruncatedData", err)
	}
	state, restored, err := o2.RestoreOrEmpty(ctx)
	if err != nil || restored || !state.Empty() {
		t.Fatalf("RestoreOrEmpty() = %v, %v, %v", state, restored, err)
	}
}

// cancellingView cancels the snapshot context while local subscriptions are
// being read.
type cancellingView struct {
	*domain.SessionState
	cancel context.CancelFunc
}

func (v *cancellingView) SubscriptionsOf(l domain.Locality) []*domain.Subscription {
	if l == domain.Local {
		v.cancel()
	}
	return v.SessionState.SubscriptionsOf(l)
}

func TestSnapshot_CancelledMidway(t *testing.T) {
	mem := retained.NewHeapMemory(region.DefaultBudget)
	o := newLive(t, mem, newRegistry(t, nil), Config{})

	old := fullState()
	old.LocalQueryables[0].ID = 99
	if _, err := o.Snapshot(context.Background(), old); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	next := fullState()
	next.Resources = next.Resources[:1]
	_, err := o.Snapshot(ctx, &cancellingView{SessionState: next, cancel: cancel})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Snapshot() error = %v, want context.Canceled", err)
	}

	status := map[region.Name]region.Status{}
	for _, r := range o.Inspect() {
		status[r.Name] = r.Status
	}
	if status[region.RemoteSubscriptions] != region.StatusEmpty {
		t.Fatalf("region after cancellation = %s, want empty", status[region.RemoteSubscriptions])
	}

	o2, _ := New(mem, newRegistry(t, nil), Config{})
	if _, err := o2.Restore(context.Background()); !errors.Is(err, domain.ErrTruncatedData) {
		t.Fatalf("Restore() error = %v, want ErrTruncatedData (no mixed generations)", err)
	}
}

func TestSnapshot_CancelledBeforeStartKeepsImage(t *testing.T) {
	mem := retained.NewHeapMemory(region.DefaultBudget)
	o := newLive(t, mem, newRegistry(t, nil), Config{})
	if _, err := o.Snapshot(context.Background(), fullState()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Snapshot(ctx, domain.NewSessionState()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Snapshot() error = %v, want context.Canceled", err)
	}

	o2, _ := New(mem, newRegistry(t, nil), Config{})
	state, err := o2.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if state.Counts() != fullState().Counts() {
		t.Fatalf("counts = %+v, want the previous image", state.Counts())
	}
}

func TestSnapshot_CapacityBoundary(t *testing.T) {
	ctx := context.Background()
	// 8 bytes count + one 22-byte resource.
	resourcesSize := region.HeaderSize + 8 + 22
	specs := region.DefaultSpecs()
	specs[0].Size = resourcesSize
	budget := 0
	for _, s := range specs {
		budget += s.Size
	}
	tab, err := region.NewTable(budget, specs)
	if err != nil {
		t.Fatal(err)
	}

	mem := retained.NewHeapMemory(tab.Total())
	o := newLive(t, mem, newRegistry(t, nil), Config{Table: tab})

	fits := domain.NewSessionState()
	fits.Resources = []*domain.Resource{{ID: 1, Key: demoKey(), RefCount: 1}}
	info, err := o.Snapshot(ctx, fits)
	if err != nil {
		t.Fatalf("exact fit rejected: %v", err)
	}
	if info.Regions[0].Used != resourcesSize {
		t.Fatalf("used = %d, want %d", info.Regions[0].Used, resourcesSize)
	}

	tooBig := domain.NewSessionState()
	tooBig.Resources = []*domain.Resource{{ID: 1, Key: domain.KeyExpr{Mapping: 1, Suffix: "demo/***"}, RefCount: 1}}
	if _, err := o.Snapshot(ctx, tooBig); !errors.Is(err, domain.ErrRegionOverflow) {
		t.Fatalf("one byte over: error = %v, want ErrRegionOverflow", err)
	}
	raw, _ := tab.Slice(mem.Bytes(), region.Resources)
	if _, err := region.Open(raw); !errors.Is(err, domain.ErrTruncatedData) {
		t.Fatalf("overflowed region still readable: %v", err)
	}
}

func TestSnapshot_StringEncoding(t *testing.T) {
	o := newLive(t, retained.NewHeapMemory(region.DefaultBudget), newRegistry(t, nil), Config{})
	s := domain.NewSessionState()
	s.LocalQueryables = []*domain.Queryable{{Key: domain.KeyExpr{Suffix: "bad\x00key"}, ID: 1}}

	_, err := o.Snapshot(context.Background(), s)
	if !errors.Is(err, domain.ErrStringEncoding) {
		t.Fatalf("error = %v, want ErrStringEncoding", err)
	}
}

func TestRestore_UnresolvedCallback(t *testing.T) {
	ctx := context.Background()
	mem := retained.NewHeapMemory(region.DefaultBudget)

	s := domain.NewSessionState()
	s.LocalSubscriptions = []*domain.Subscription{
		{Key: demoKey(), ID: 1, Binding: domain.Binding{Callback: 42}},
		{Key: demoKey(), ID: 2, Binding: domain.Binding{Callback: 77}},
		{Key: demoKey(), ID: 3},
	}
	reg := newRegistry(t, nil)
	if err := reg.RegisterCallbackAt(77, "legacy", func(any, any) {}); err != nil {
		t.Fatal(err)
	}
	o := newLive(t, mem, reg, Config{})
	if _, err := o.Snapshot(ctx, s); err != nil {
		t.Fatal(err)
	}

	t.Run("fail", func(t *testing.T) {
		o2, _ := New(mem, newRegistry(t, nil), Config{Policy: UnresolvedFail})
		state, err := o2.Restore(ctx)
		if !errors.Is(err, domain.ErrUnresolvedCallback) {
			t.Fatalf("error = %v, want ErrUnresolvedCallback", err)
		}
		if state != nil {
			t.Fatal("failed restore returned a state")
		}
		if o2.Phase() != PhaseRestoreFailed {
			t.Fatalf("phase = %s", o2.Phase())
		}
	})

	t.Run("drop", func(t *testing.T) {
		m := metric.NewRegistry()
		o2, _ := New(mem, newRegistry(t, nil), Config{Policy: UnresolvedDrop, Metrics: m})
		state, err := o2.Restore(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(state.LocalSubscriptions) != 2 ||
			state.LocalSubscriptions[0].ID != 1 || state.LocalSubscriptions[1].ID != 3 {
			t.Fatalf("kept %+v, want ids 1 and 3", state.LocalSubscriptions)
		}
		got := testutil.ToFloat64(m.DroppedEntities.WithLabelValues(string(region.LocalSubscriptions)))
		if got != 1 {
			t.Fatalf("dropped_entities_total = %v, want 1", got)
		}
	})
}

func TestRestore_UnresolvedCodec(t *testing.T) {
	ctx := context.Background()
	mem := retained.NewHeapMemory(region.DefaultBudget)

	type cfg struct{ Rate int }
	jsonCodec := binding.NewJSONCodec[cfg]("cfg")

	reg := newRegistry(t, nil)
	id, err := reg.RegisterCodec(jsonCodec)
	if err != nil {
		t.Fatal(err)
	}
	s := domain.NewSessionState()
	s.LocalQueryables = []*domain.Queryable{
		{Key: demoKey(), ID: 1, Binding: domain.Binding{Callback: 42, Codec: id, Argument: cfg{Rate: 5}}},
		{Key: demoKey(), ID: 2, Binding: domain.Binding{Callback: 42}},
	}
	o := newLive(t, mem, reg, Config{})
	if _, err := o.Snapshot(ctx, s); err != nil {
		t.Fatal(err)
	}

	withCodec := newRegistry(t, nil)
	if _, err := withCodec.RegisterCodec(jsonCodec); err != nil {
		t.Fatal(err)
	}
	o2, _ := New(mem, withCodec, Config{})
	state, err := o2.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := state.LocalQueryables[0].Argument; got != (cfg{Rate: 5}) {
		t.Fatalf("argument = %#v", got)
	}

	o3, _ := New(mem, newRegistry(t, nil), Config{})
	if _, err := o3.Restore(ctx); !errors.Is(err, domain.ErrUnresolvedCallback) {
		t.Fatalf("missing codec: error = %v, want ErrUnresolvedCallback", err)
	}

	o4, _ := New(mem, newRegistry(t, nil), Config{Policy: UnresolvedDrop})
	state, err = o4.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(state.LocalQueryables) != 1 || state.LocalQueryables[0].ID != 2 {
		t.Fatalf("kept %+v, want id 2", state.LocalQueryables)
	}
}

func TestRestore_Corruption(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(raw []byte)
	}{
		{"body bit flip", func(raw []byte) { raw[region.HeaderSize+9] ^= 0x40 }},
		{"stale format version", func(raw []byte) { raw[2] = 2 }},
		{"invalidated header", func(raw []byte) { region.Invalidate(raw) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mem := retained.NewHeapMemory(region.DefaultBudget)
			o := newLive(t, mem, newRegistry(t, nil), Config{})
			if _, err := o.Snapshot(ctx, fullState()); err != nil {
				t.Fatal(err)
			}
			raw, _ := o.Table().Slice(mem.Bytes(), region.Resources)
			tt.mutate(raw)

			o2, _ := New(mem, newRegistry(t, nil), Config{})
			if _, err := o2.Restore(ctx); !errors.Is(err, domain.ErrTruncatedData) {
				t.Fatalf("Restore() error = %v, want ErrTruncatedData", err)
			}
			o3, _ := New(mem, newRegistry(t, nil), Config{})
			state, restored, err := o3.RestoreOrEmpty(ctx)
			if err != nil || restored || !state.Empty() {
				t.Fatalf("RestoreOrEmpty() = %+v, %v, %v", state, restored, err)
			}
		})
	}
}

func TestRestore_CorruptCount(t *testing.T) {
	ctx := context.Background()
	mem := retained.NewHeapMemory(region.DefaultBudget)
	o := newLive(t, mem, newRegistry(t, nil), Config{})
	raw, _ := o.Table().Slice(mem.Bytes(), region.Resources)

	// A correctly sealed body whose count cannot possibly fit.
	w := codec.NewWriter(16)
	_ = w.PutU64(1 << 32)
	if err := region.Seal(raw, w.Bytes()); err != nil {
		t.Fatal(err)
	}
	o2, _ := New(mem, newRegistry(t, nil), Config{})
	if _, err := o2.Restore(ctx); !errors.Is(err, domain.ErrCorruptCount) {
		t.Fatalf("Restore() error = %v, want ErrCorruptCount", err)
	}
}

// reentrantView calls back into the orchestrator mid-snapshot.
type reentrantView struct {
	*domain.SessionState
	o   *Orchestrator
	err error
}

func (v *reentrantView) ResourcesOf(l domain.Locality) []*domain.Resource {
	if l == domain.Local {
		_, v.err = v.o.Snapshot(context.Background(), v.SessionState)
	}
	return v.SessionState.ResourcesOf(l)
}

func TestPhaseGuard(t *testing.T) {
	ctx := context.Background()
	mem := retained.NewHeapMemory(region.DefaultBudget)
	o, err := New(mem, newRegistry(t, nil), Config{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := o.Snapshot(ctx, domain.NewSessionState()); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("Snapshot before restore: error = %v, want ErrInvalidPhase", err)
	}
	if err := o.Resume(); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("Resume before restore: error = %v, want ErrInvalidPhase", err)
	}

	if _, _, err := o.RestoreOrEmpty(ctx); err != nil {
		t.Fatal(err)
	}
	view := &reentrantView{SessionState: domain.NewSessionState(), o: o}
	if _, err := o.Snapshot(ctx, view); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(view.err, domain.ErrInvalidPhase) {
		t.Fatalf("nested Snapshot: error = %v, want ErrInvalidPhase", view.err)
	}
	// A failed snapshot must be resumed before the next one.
	big := fullState()
	for i := 0; i < 40; i++ {
		big.LocalSubscriptions = append(big.LocalSubscriptions, &domain.Subscription{
			Key: domain.KeyExpr{Suffix: "filler/subscription/key/expression"},
			ID:  uint32(100 + i),
		})
	}
	if _, err := o.Snapshot(ctx, big); !errors.Is(err, domain.ErrRegionOverflow) {
		t.Fatalf("Snapshot() error = %v, want ErrRegionOverflow", err)
	}
	if _, err := o.Snapshot(ctx, domain.NewSessionState()); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("Snapshot from snapshot_failed: error = %v, want ErrInvalidPhase", err)
	}
	if err := o.Resume(); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Snapshot(ctx, domain.NewSessionState()); err != nil {
		t.Fatalf("Snapshot after Resume: %v", err)
	}
}

type failingSync struct {
	*retained.HeapMemory
}

func (failingSync) Sync(context.Context) error { return errors.New("flush failed") }

func TestSnapshot_SyncFailure(t *testing.T) {
	ctx := context.Background()
	mem := failingSync{retained.NewHeapMemory(region.DefaultBudget)}
	m := metric.NewRegistry()
	o := newLive(t, mem, newRegistry(t, nil), Config{Metrics: m})

	if _, err := o.Snapshot(ctx, fullState()); err == nil {
		t.Fatal("Snapshot() succeeded despite sync failure")
	}
	if o.Phase() != PhaseSnapshotFailed {
		t.Fatalf("phase = %s", o.Phase())
	}
	if got := testutil.ToFloat64(m.SnapshotsTotal.WithLabelValues(metric.ResultError)); got != 1 {
		t.Fatalf("snapshot errors = %v, want 1", got)
	}
}

func TestSnapshot_Metrics(t *testing.T) {
	ctx := context.Background()
	m := metric.NewRegistry()
	o := newLive(t, retained.NewHeapMemory(region.DefaultBudget), newRegistry(t, nil), Config{Metrics: m})

	info, err := o.Snapshot(ctx, fullState())
	if err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.SnapshotsTotal.WithLabelValues(metric.ResultOK)); got != 1 {
		t.Fatalf("snapshot ok = %v", got)
	}
	if got := testutil.ToFloat64(m.RestoresTotal.WithLabelValues(metric.ResultEmpty)); got != 1 {
		t.Fatalf("restore empty = %v", got)
	}
	if got := testutil.ToFloat64(m.RegionEntities.WithLabelValues(string(region.Resources))); got != 2 {
		t.Fatalf("resources entities = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RegionBytes.WithLabelValues(string(region.Resources))); got != float64(info.Regions[0].Used) {
		t.Fatalf("resources bytes = %v, want %d", got, info.Regions[0].Used)
	}
	if got := testutil.ToFloat64(m.Phase); got != float64(PhaseLive) {
		t.Fatalf("phase gauge = %v", got)
	}
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	mem := retained.NewHeapMemory(region.DefaultBudget)
	o := newLive(t, mem, newRegistry(t, nil), Config{})

	for _, r := range o.Inspect() {
		if r.Status != region.StatusEmpty {
			t.Fatalf("fresh region %s status = %s", r.Name, r.Status)
		}
	}
	if _, err := o.Snapshot(ctx, fullState()); err != nil {
		t.Fatal(err)
	}
	counts := fullState().Counts()
	want := map[region.Name]uint64{
		region.Resources:           uint64(counts.Resources),
		region.RemoteResources:     uint64(counts.RemoteResources),
		region.LocalSubscriptions:  uint64(counts.LocalSubscriptions),
		region.RemoteSubscriptions: uint64(counts.RemoteSubscriptions),
		region.LocalQueryables:     uint64(counts.LocalQueryables),
		region.PendingQueries:      uint64(counts.PendingQueries),
	}
	for _, r := range o.Inspect() {
		if r.Status != region.StatusValid || r.State != "valid" {
			t.Fatalf("region %s status = %s", r.Name, r.Status)
		}
		if r.Count != want[r.Name] {
			t.Fatalf("region %s count = %d, want %d", r.Name, r.Count, want[r.Name])
		}
		if r.Header.Magic != region.Magic || r.Header.Version != region.FormatVersion {
			t.Fatalf("region %s header = %+v", r.Name, r.Header)
		}
	}
}

func TestNew_MemoryTooSmall(t *testing.T) {
	_, err := New(retained.NewHeapMemory(100), newRegistry(t, nil), Config{})
	if !errors.Is(err, domain.ErrLayoutInvalid) {
		t.Fatalf("error = %v, want ErrLayoutInvalid", err)
	}
}

func TestParseUnresolvedPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    UnresolvedPolicy
		wantErr bool
	}{
		{"", UnresolvedFail, false},
		{"fail", UnresolvedFail, false},
		{"DROP", UnresolvedDrop, false},
		{"ignore", UnresolvedFail, true},
	}
	for _, tt := range tests {
		got, err := ParseUnresolvedPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseUnresolvedPolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
}
