package domain

// CallbackID is the stable registration id of a callback or dropper.
// Zero means absent.
type CallbackID uint32

// CodecID is the stable registration id of an argument codec.
// Zero means absent.
type CodecID uint32

// Callback receives an event (a sample, a query, a reply) together with the
// user argument bound to the entity.
type Callback func(event any, arg any)

// Dropper is invoked once when the owning entity is released.
type Dropper func(arg any)

// Binding ties an entity to user behavior. Only the ids and the argument are
// persisted; the function values are resolved again after a power cycle.
type Binding struct {
	Callback CallbackID `json:"callback_ref,omitempty" yaml:"callback_ref,omitempty"`
	Dropper  CallbackID `json:"dropper_ref,omitempty" yaml:"dropper_ref,omitempty"`
	Codec    CodecID    `json:"codec_ref,omitempty" yaml:"codec_ref,omitempty"`

	// Argument is an opaque user payload, persisted through the codec
	// registered under Codec.
	Argument any `json:"argument,omitempty" yaml:"argument,omitempty"`

	OnEvent Callback `json:"-" yaml:"-"`
	OnDrop  Dropper  `json:"-" yaml:"-"`
}

// Bound reports whether live handlers have been attached for every id the
// binding references.
func (b *Binding) Bound() bool {
	if b.Callback != 0 && b.OnEvent == nil {
		return false
	}
	if b.Dropper != 0 && b.OnDrop == nil {
		return false
	}
	return true
}

// Deliver invokes the event callback if one is bound.
func (b *Binding) Deliver(event any) {
	if b.OnEvent != nil {
		b.OnEvent(event, b.Argument)
	}
}

// Drop invokes the dropper if one is bound.
func (b *Binding) Drop() {
	if b.OnDrop != nil {
		b.OnDrop(b.Argument)
	}
}

// ArgumentCodec converts a binding argument to and from bytes. The retained
// format frames the bytes with a length and treats them as opaque.
type ArgumentCodec interface {
	// Name identifies the codec; registries derive stable ids from it.
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}
