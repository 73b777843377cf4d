package binding

import (
	"log/slog"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/picoretain/internal/core/domain"
	"github.com/yndnr/picoretain/pkg/cmap"
)

// IDFor returns the stable id for a registration name. Zero is reserved for
// "absent", so a name hashing to zero is moved to one.
func IDFor(name string) uint32 {
	id := murmur3.Sum32([]byte(name))
	if id == 0 {
		id = 1
	}
	return id
}

type named[T any] struct {
	name string
	fn   T
}

// Entry describes one registration.
type Entry struct {
	Kind string `json:"kind" yaml:"kind"`
	ID   uint32 `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Registry holds the live callbacks, droppers and argument codecs of one
// boot. It is safe for concurrent use.
type Registry struct {
	callbacks *cmap.Map[domain.CallbackID, named[domain.Callback]]
	droppers  *cmap.Map[domain.CallbackID, named[domain.Dropper]]
	codecs    *cmap.Map[domain.CodecID, domain.ArgumentCodec]
	logger    *slog.Logger
}

// NewRegistry creates a registry with RawCodec and StringCodec registered.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		callbacks: cmap.New[domain.CallbackID, named[domain.Callback]](),
		droppers:  cmap.New[domain.CallbackID, named[domain.Dropper]](),
		codecs:    cmap.New[domain.CodecID, domain.ArgumentCodec](),
		logger:    logger,
	}
	_, _ = r.RegisterCodec(RawCodec{})
	_, _ = r.RegisterCodec(StringCodec{})
	return r
}

func register[K cmap.Key, V any](m *cmap.Map[K, named[V]], kind string, id K, name string, fn V, isNil bool) error {
	if id == 0 {
		return domain.ErrInvalidArgument.WithDetailsf("%s id 0 is reserved", kind)
	}
	if isNil {
		return domain.ErrInvalidArgument.WithDetailsf("%s %q is nil", kind, name)
	}
	if m.SetIfAbsent(id, named[V]{name: name, fn: fn}) {
		return nil
	}
	existing, _ := m.Get(id)
	if existing.name != name {
		return domain.ErrRegistryConflict.WithDetailsf(
			"%s id %d: %q already registered, cannot add %q", kind, id, existing.name, name)
	}
	// Same name again replaces the function, as after a re-init.
	m.Set(id, named[V]{name: name, fn: fn})
	return nil
}

// RegisterCallback registers fn under the id derived from name.
func (r *Registry) RegisterCallback(name string, fn domain.Callback) (domain.CallbackID, error) {
	id := domain.CallbackID(IDFor(name))
	if err := register(r.callbacks, "callback", id, name, fn, fn == nil); err != nil {
		return 0, err
	}
	r.logger.Debug("callback registered", "name", name, "id", id)
	return id, nil
}

// RegisterCallbackAt registers fn under an explicit id.
func (r *Registry) RegisterCallbackAt(id domain.CallbackID, name string, fn domain.Callback) error {
	return register(r.callbacks, "callback", id, name, fn, fn == nil)
}

// RegisterDropper registers fn under the id derived from name.
func (r *Registry) RegisterDropper(name string, fn domain.Dropper) (domain.CallbackID, error) {
	id := domain.CallbackID(IDFor(name))
	if err := register(r.droppers, "dropper", id, name, fn, fn == nil); err != nil {
		return 0, err
	}
	r.logger.Debug("dropper registered", "name", name, "id", id)
	return id, nil
}

// RegisterDropperAt registers fn under an explicit id.
func (r *Registry) RegisterDropperAt(id domain.CallbackID, name string, fn domain.Dropper) error {
	return register(r.droppers, "dropper", id, name, fn, fn == nil)
}

// RegisterCodec registers c under the id derived from its name.
func (r *Registry) RegisterCodec(c domain.ArgumentCodec) (domain.CodecID, error) {
	if c == nil {
		return 0, domain.ErrInvalidArgument.WithDetails("codec is nil")
	}
	id := domain.CodecID(IDFor(c.Name()))
	if err := r.RegisterCodecAt(id, c); err != nil {
		return 0, err
	}
	return id, nil
}

// RegisterCodecAt registers c under an explicit id.
func (r *Registry) RegisterCodecAt(id domain.CodecID, c domain.ArgumentCodec) error {
	if id == 0 {
		return domain.ErrInvalidArgument.WithDetails("codec id 0 is reserved")
	}
	if c == nil {
		return domain.ErrInvalidArgument.WithDetails("codec is nil")
	}
	if r.codecs.SetIfAbsent(id, c) {
		return nil
	}
	existing, _ := r.codecs.Get(id)
	if existing.Name() != c.Name() {
		return domain.ErrRegistryConflict.WithDetailsf(
			"codec id %d: %q already registered, cannot add %q", id, existing.Name(), c.Name())
	}
	r.codecs.Set(id, c)
	return nil
}

// Callback returns the callback registered under id.
func (r *Registry) Callback(id domain.CallbackID) (domain.Callback, bool) {
	e, ok := r.callbacks.Get(id)
	return e.fn, ok
}

// Dropper returns the dropper registered under id.
func (r *Registry) Dropper(id domain.CallbackID) (domain.Dropper, bool) {
	e, ok := r.droppers.Get(id)
	return e.fn, ok
}

// Codec returns the argument codec registered under id.
func (r *Registry) Codec(id domain.CodecID) (domain.ArgumentCodec, bool) {
	if id == 0 {
		return nil, false
	}
	return r.codecs.Get(id)
}

// CodecID returns the id c would be registered under by RegisterCodec.
func CodecID(c domain.ArgumentCodec) domain.CodecID {
	return domain.CodecID(IDFor(c.Name()))
}

// Resolve attaches the live functions for every id b references.
// It fails with ErrUnresolvedCallback if any id has no registration.
func (r *Registry) Resolve(b *domain.Binding) error {
	if b.Callback != 0 {
		fn, ok := r.Callback(b.Callback)
		if !ok {
			return domain.ErrUnresolvedCallback.WithDetailsf("callback %d", b.Callback)
		}
		b.OnEvent = fn
	}
	if b.Dropper != 0 {
		fn, ok := r.Dropper(b.Dropper)
		if !ok {
			return domain.ErrUnresolvedCallback.WithDetailsf("dropper %d", b.Dropper)
		}
		b.OnDrop = fn
	}
	return nil
}

// Entries lists every registration, sorted by kind and id.
func (r *Registry) Entries() []Entry {
	var out []Entry
	r.callbacks.Range(func(id domain.CallbackID, e named[domain.Callback]) bool {
		out = append(out, Entry{Kind: "callback", ID: uint32(id), Name: e.name})
		return true
	})
	r.droppers.Range(func(id domain.CallbackID, e named[domain.Dropper]) bool {
		out = append(out, Entry{Kind: "dropper", ID: uint32(id), Name: e.name})
		return true
	})
	r.codecs.Range(func(id domain.CodecID, c domain.ArgumentCodec) bool {
		out = append(out, Entry{Kind: "codec", ID: uint32(id), Name: c.Name()})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}
