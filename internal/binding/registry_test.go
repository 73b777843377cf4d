package binding

import (
	"errors"
	"testing"

	"github.com/yndnr/picoretain/internal/core/domain"
)

func TestIDFor_Stable(t *testing.T) {
	a := IDFor("on_sample")
	b := IDFor("on_sample")
	if a != b || a == 0 {
		t.Fatalf("IDFor not stable: %d vs %d", a, b)
	}
	if IDFor("on_sample") == IDFor("on_query") {
		t.Fatal("distinct names share an id")
	}
}

func TestRegistry_CallbackRoundTrip(t *testing.T) {
	r := NewRegistry(nil)

	var got []any
	id, err := r.RegisterCallback("on_sample", func(event, arg any) {
		got = append(got, event, arg)
	})
	if err != nil {
		t.Fatal(err)
	}
	if uint32(id) != IDFor("on_sample") {
		t.Fatalf("id = %d, want %d", id, IDFor("on_sample"))
	}

	// A fresh registry, as after a power cycle, hands out the same id.
	r2 := NewRegistry(nil)
	id2, err := r2.RegisterCallback("on_sample", func(any, any) {})
	if err != nil {
		t.Fatal(err)
	}
	if id2 != id {
		t.Fatalf("id after re-registration = %d, want %d", id2, id)
	}

	fn, ok := r.Callback(id)
	if !ok {
		t.Fatal("callback not found")
	}
	fn("sample", "arg")
	if len(got) != 2 || got[0] != "sample" || got[1] != "arg" {
		t.Fatalf("callback saw %v", got)
	}
}

func TestRegistry_Conflicts(t *testing.T) {
	r := NewRegistry(nil)
	noop := func(any, any) {}

	if err := r.RegisterCallbackAt(42, "a", noop); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterCallbackAt(42, "a", noop); err != nil {
		t.Fatalf("same name re-registration: %v", err)
	}
	if err := r.RegisterCallbackAt(42, "b", noop); !errors.Is(err, domain.ErrRegistryConflict) {
		t.Fatalf("error = %v, want ErrRegistryConflict", err)
	}
	if err := r.RegisterCallbackAt(0, "zero", noop); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("id 0 error = %v, want ErrInvalidArgument", err)
	}
	if err := r.RegisterCallbackAt(5, "nil", nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("nil fn error = %v, want ErrInvalidArgument", err)
	}
	if err := r.RegisterCodecAt(CodecID(StringCodec{}), RawCodec{}); !errors.Is(err, domain.ErrRegistryConflict) {
		t.Fatalf("codec conflict error = %v, want ErrRegistryConflict", err)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry(nil)
	dropped := 0
	if err := r.RegisterCallbackAt(42, "cb", func(any, any) {}); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterDropperAt(43, "drop", func(any) { dropped++ }); err != nil {
		t.Fatal(err)
	}

	b := domain.Binding{Callback: 42, Dropper: 43}
	if err := r.Resolve(&b); err != nil {
		t.Fatal(err)
	}
	if !b.Bound() {
		t.Fatal("binding not bound after Resolve")
	}
	b.Drop()
	if dropped != 1 {
		t.Fatalf("dropper called %d times", dropped)
	}

	missing := domain.Binding{Callback: 99}
	if err := r.Resolve(&missing); !errors.Is(err, domain.ErrUnresolvedCallback) {
		t.Fatalf("error = %v, want ErrUnresolvedCallback", err)
	}

	empty := domain.Binding{}
	if err := r.Resolve(&empty); err != nil {
		t.Fatalf("empty binding: %v", err)
	}
}

func TestRegistry_Codecs(t *testing.T) {
	r := NewRegistry(nil)

	c, ok := r.Codec(CodecID(StringCodec{}))
	if !ok || c.Name() != "string" {
		t.Fatalf("built-in string codec missing: %v %v", c, ok)
	}
	if _, ok := r.Codec(0); ok {
		t.Fatal("codec 0 resolved")
	}

	type point struct{ X, Y int }
	id, err := r.RegisterCodec(NewJSONCodec[point]("point"))
	if err != nil {
		t.Fatal(err)
	}
	c, _ = r.Codec(id)
	data, err := c.Marshal(point{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if v.(point) != (point{1, 2}) {
		t.Fatalf("json round trip = %+v", v)
	}
	if _, err := c.Marshal("nope"); err == nil {
		t.Fatal("json codec accepted wrong type")
	}
}

func TestRegistry_Entries(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.RegisterCallbackAt(42, "cb", func(any, any) {}); err != nil {
		t.Fatal(err)
	}
	entries := r.Entries()
	var kinds = map[string]int{}
	for _, e := range entries {
		kinds[e.Kind]++
	}
	if kinds["callback"] != 1 || kinds["codec"] != 2 || kinds["dropper"] != 0 {
		t.Fatalf("Entries() kinds = %v", kinds)
	}
	if entries[0].Kind != "callback" || entries[0].ID != 42 {
		t.Fatalf("first entry = %+v", entries[0])
	}
}
