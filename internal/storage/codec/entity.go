package codec

import (
	"errors"
	"fmt"

	"github.com/yndnr/picoretain/internal/core/domain"
)

// Smallest possible encoding of each entity, used to bound declared counts.
const (
	minKeyExprSize      = 2 + 2 + 1
	minBindingSize      = 4 + 4 + 4 + 1
	timestampSize       = 16 + 8
	minSampleSize       = minKeyExprSize + 8 + timestampSize + 8 + 1 + 1
	MinResourceSize     = 8 + minKeyExprSize + 2
	MinSubscriptionSize = minKeyExprSize + 4 + 12 + 1 + 1 + minBindingSize
	MinQueryableSize    = minKeyExprSize + 4 + 1 + minBindingSize
	MinPendingQuerySize = minKeyExprSize + 4 + 1 + 1 + 1 + 1 + minBindingSize + 8
	MinPendingReplySize = timestampSize + 1 + 16 + minSampleSize
)

// CodecLookup resolves the codec that owns a binding argument.
type CodecLookup interface {
	Codec(id domain.CodecID) (domain.ArgumentCodec, bool)
}

// Entities encodes and decodes single session entities. Field order is
// fixed; see the package documentation.
type Entities struct {
	codecs CodecLookup
}

// NewEntities creates an entity codec. codecs may be nil, in which case any
// entity carrying an argument fails with ErrUnresolvedCallback.
func NewEntities(codecs CodecLookup) *Entities {
	return &Entities{codecs: codecs}
}

func (e *Entities) lookup(id domain.CodecID) (domain.ArgumentCodec, bool) {
	if e.codecs == nil || id == 0 {
		return nil, false
	}
	return e.codecs.Codec(id)
}

// atomically runs fn and rolls the writer back if it fails, so a rejected
// entity leaves no bytes behind.
func atomically(w *Writer, fn func() error) error {
	mark := w.Len()
	if err := fn(); err != nil {
		w.Truncate(mark)
		return err
	}
	return nil
}

// ============================================================================
// KeyExpr / Timestamp
// ============================================================================

func putKeyExpr(w *Writer, k domain.KeyExpr) error {
	if err := w.PutU16(k.ID); err != nil {
		return err
	}
	if err := w.PutU16(k.Mapping); err != nil {
		return err
	}
	return w.PutCString(k.Suffix)
}

func readKeyExpr(r *Reader) (domain.KeyExpr, error) {
	var k domain.KeyExpr
	var err error
	if k.ID, err = r.U16(); err != nil {
		return k, err
	}
	if k.Mapping, err = r.U16(); err != nil {
		return k, err
	}
	k.Suffix, err = r.CString()
	return k, err
}

func putTimestamp(w *Writer, t domain.Timestamp) error {
	if err := w.PutFixed16(t.NodeID); err != nil {
		return err
	}
	return w.PutU64(t.Time)
}

func readTimestamp(r *Reader) (domain.Timestamp, error) {
	var t domain.Timestamp
	var err error
	if t.NodeID, err = r.Fixed16(); err != nil {
		return t, err
	}
	t.Time, err = r.U64()
	return t, err
}

func readEnum(r *Reader, field string, valid func(uint8) bool) (uint8, error) {
	v, err := r.U8()
	if err != nil {
		return 0, err
	}
	if !valid(v) {
		return 0, domain.ErrCorruptValue.WithDetailsf("%s %d at offset %d", field, v, r.Offset()-1)
	}
	return v, nil
}

// ============================================================================
// Binding
// ============================================================================

// marshalArgument produces the argument bytes before anything is written.
func (e *Entities) marshalArgument(b *domain.Binding) ([]byte, bool, error) {
	if b.Argument == nil {
		return nil, false, nil
	}
	if b.Codec == 0 {
		return nil, false, domain.ErrUnresolvedCallback.WithDetails("argument has no codec")
	}
	c, ok := e.lookup(b.Codec)
	if !ok {
		return nil, false, domain.ErrUnresolvedCallback.WithDetailsf("codec %d", b.Codec)
	}
	data, err := c.Marshal(b.Argument)
	if err != nil {
		return nil, false, fmt.Errorf("codec: marshal argument with %s: %w", c.Name(), err)
	}
	return data, true, nil
}

func putBinding(w *Writer, b *domain.Binding, arg []byte, hasArg bool) error {
	if err := w.PutOptional(uint32(b.Callback)); err != nil {
		return err
	}
	if err := w.PutOptional(uint32(b.Dropper)); err != nil {
		return err
	}
	if err := w.PutOptional(uint32(b.Codec)); err != nil {
		return err
	}
	if err := w.PutPresence(hasArg); err != nil {
		return err
	}
	if hasArg {
		return w.PutBlob(arg)
	}
	return nil
}

// readBinding reads the binding fields. The argument blob is always consumed;
// if its codec cannot be resolved the binding is returned together with
// ErrUnresolvedCallback so the caller may skip the entity.
func (e *Entities) readBinding(r *Reader) (domain.Binding, error) {
	var b domain.Binding

	cb, _, err := r.Optional()
	if err != nil {
		return b, err
	}
	dr, _, err := r.Optional()
	if err != nil {
		return b, err
	}
	cd, _, err := r.Optional()
	if err != nil {
		return b, err
	}
	b.Callback = domain.CallbackID(cb)
	b.Dropper = domain.CallbackID(dr)
	b.Codec = domain.CodecID(cd)

	hasArg, err := r.Presence()
	if err != nil {
		return b, err
	}
	if !hasArg {
		return b, nil
	}
	data, err := r.Blob()
	if err != nil {
		return b, err
	}
	if b.Codec == 0 {
		return b, domain.ErrCorruptValue.WithDetails("argument without codec id")
	}
	c, ok := e.lookup(b.Codec)
	if !ok {
		return b, domain.ErrUnresolvedCallback.WithDetailsf("codec %d", b.Codec)
	}
	arg, err := c.Unmarshal(data)
	if err != nil {
		return b, domain.ErrCorruptValue.WithDetailsf("argument for codec %s", c.Name()).WithCause(err)
	}
	b.Argument = arg
	return b, nil
}

// IsSkippable reports whether a decode error left the cursor at the start of
// the next entity, so the entity can be dropped and decoding continued.
func IsSkippable(err error) bool {
	return errors.Is(err, domain.ErrUnresolvedCallback)
}

// ============================================================================
// Resource
// ============================================================================

// EncodeResource writes id, key expression and reference count.
func (e *Entities) EncodeResource(w *Writer, res *domain.Resource) error {
	if err := res.Key.Validate(); err != nil {
		return err
	}
	return atomically(w, func() error {
		if err := w.PutU64(res.ID); err != nil {
			return err
		}
		if err := putKeyExpr(w, res.Key); err != nil {
			return err
		}
		return w.PutU16(res.RefCount)
	})
}

// DecodeResource reads a resource into a fresh instance.
func (e *Entities) DecodeResource(r *Reader) (*domain.Resource, error) {
	res := &domain.Resource{}
	var err error
	if res.ID, err = r.U64(); err != nil {
		return nil, err
	}
	if res.Key, err = readKeyExpr(r); err != nil {
		return nil, err
	}
	if res.RefCount, err = r.U16(); err != nil {
		return nil, err
	}
	return res, nil
}

// ============================================================================
// Subscription
// ============================================================================

// EncodeSubscription writes a subscription and its binding.
func (e *Entities) EncodeSubscription(w *Writer, s *domain.Subscription) error {
	if err := s.Validate(); err != nil {
		return err
	}
	arg, hasArg, err := e.marshalArgument(&s.Binding)
	if err != nil {
		return err
	}
	return atomically(w, func() error {
		if err := putKeyExpr(w, s.Key); err != nil {
			return err
		}
		if err := w.PutU32(s.ID); err != nil {
			return err
		}
		if err := w.PutU32(s.Period.Origin); err != nil {
			return err
		}
		if err := w.PutU32(s.Period.Period); err != nil {
			return err
		}
		if err := w.PutU32(s.Period.Duration); err != nil {
			return err
		}
		if err := w.PutU8(uint8(s.Reliability)); err != nil {
			return err
		}
		if err := w.PutU8(uint8(s.Mode)); err != nil {
			return err
		}
		return putBinding(w, &s.Binding, arg, hasArg)
	})
}

// DecodeSubscription reads a subscription into a fresh instance.
func (e *Entities) DecodeSubscription(r *Reader) (*domain.Subscription, error) {
	s := &domain.Subscription{}
	var err error
	if s.Key, err = readKeyExpr(r); err != nil {
		return nil, err
	}
	if s.ID, err = r.U32(); err != nil {
		return nil, err
	}
	if s.Period.Origin, err = r.U32(); err != nil {
		return nil, err
	}
	if s.Period.Period, err = r.U32(); err != nil {
		return nil, err
	}
	if s.Period.Duration, err = r.U32(); err != nil {
		return nil, err
	}
	rel, err := readEnum(r, "reliability", func(v uint8) bool { return domain.Reliability(v).Valid() })
	if err != nil {
		return nil, err
	}
	mode, err := readEnum(r, "mode", func(v uint8) bool { return domain.SubMode(v).Valid() })
	if err != nil {
		return nil, err
	}
	s.Reliability = domain.Reliability(rel)
	s.Mode = domain.SubMode(mode)

	s.Binding, err = e.readBinding(r)
	if err != nil {
		if IsSkippable(err) {
			return s, fmt.Errorf("subscription %d: %w", s.ID, err)
		}
		return nil, err
	}
	return s, nil
}

// ============================================================================
// Queryable
// ============================================================================

// EncodeQueryable writes a queryable and its binding.
func (e *Entities) EncodeQueryable(w *Writer, q *domain.Queryable) error {
	if err := q.Key.Validate(); err != nil {
		return err
	}
	arg, hasArg, err := e.marshalArgument(&q.Binding)
	if err != nil {
		return err
	}
	return atomically(w, func() error {
		if err := putKeyExpr(w, q.Key); err != nil {
			return err
		}
		if err := w.PutU32(q.ID); err != nil {
			return err
		}
		if err := w.PutBool(q.Complete); err != nil {
			return err
		}
		return putBinding(w, &q.Binding, arg, hasArg)
	})
}

// DecodeQueryable reads a queryable into a fresh instance.
func (e *Entities) DecodeQueryable(r *Reader) (*domain.Queryable, error) {
	q := &domain.Queryable{}
	var err error
	if q.Key, err = readKeyExpr(r); err != nil {
		return nil, err
	}
	if q.ID, err = r.U32(); err != nil {
		return nil, err
	}
	if q.Complete, err = r.Bool(); err != nil {
		return nil, err
	}
	q.Binding, err = e.readBinding(r)
	if err != nil {
		if IsSkippable(err) {
			return q, fmt.Errorf("queryable %d: %w", q.ID, err)
		}
		return nil, err
	}
	return q, nil
}

// ============================================================================
// PendingReply
// ============================================================================

// EncodePendingReply writes a buffered reply.
func (e *Entities) EncodePendingReply(w *Writer, p *domain.PendingReply) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return atomically(w, func() error {
		return putPendingReply(w, p)
	})
}

func putPendingReply(w *Writer, p *domain.PendingReply) error {
	if err := putTimestamp(w, p.Timestamp); err != nil {
		return err
	}
	if err := w.PutU8(uint8(p.Tag)); err != nil {
		return err
	}
	if err := w.PutFixed16(p.ReplierID); err != nil {
		return err
	}

	s := &p.Sample
	if err := putKeyExpr(w, s.KeyExpr); err != nil {
		return err
	}
	if err := w.PutBlob(s.Payload); err != nil {
		return err
	}
	if err := putTimestamp(w, s.Timestamp); err != nil {
		return err
	}
	if err := w.PutBlob(s.Encoding.Suffix); err != nil {
		return err
	}
	if err := w.PutU8(uint8(s.Encoding.Prefix)); err != nil {
		return err
	}
	return w.PutU8(uint8(s.Kind))
}

// DecodePendingReply reads a buffered reply into a fresh instance.
func (e *Entities) DecodePendingReply(r *Reader) (*domain.PendingReply, error) {
	p := &domain.PendingReply{}
	var err error
	if p.Timestamp, err = readTimestamp(r); err != nil {
		return nil, err
	}
	tag, err := readEnum(r, "reply tag", func(v uint8) bool { return domain.ReplyTag(v).Valid() })
	if err != nil {
		return nil, err
	}
	p.Tag = domain.ReplyTag(tag)
	if p.ReplierID, err = r.Fixed16(); err != nil {
		return nil, err
	}

	s := &p.Sample
	if s.KeyExpr, err = readKeyExpr(r); err != nil {
		return nil, err
	}
	if s.Payload, err = r.Blob(); err != nil {
		return nil, err
	}
	if s.Timestamp, err = readTimestamp(r); err != nil {
		return nil, err
	}
	if s.Encoding.Suffix, err = r.Blob(); err != nil {
		return nil, err
	}
	prefix, err := readEnum(r, "encoding prefix", func(v uint8) bool { return domain.EncodingPrefix(v).Valid() })
	if err != nil {
		return nil, err
	}
	kind, err := readEnum(r, "sample kind", func(v uint8) bool { return domain.SampleKind(v).Valid() })
	if err != nil {
		return nil, err
	}
	s.Encoding.Prefix = domain.EncodingPrefix(prefix)
	s.Kind = domain.SampleKind(kind)
	return p, nil
}

// ============================================================================
// PendingQuery
// ============================================================================

// EncodePendingQuery writes a query, its binding and its reply buffer.
func (e *Entities) EncodePendingQuery(w *Writer, q *domain.PendingQuery) error {
	if err := q.Validate(); err != nil {
		return err
	}
	arg, hasArg, err := e.marshalArgument(&q.Binding)
	if err != nil {
		return err
	}
	return atomically(w, func() error {
		if err := putKeyExpr(w, q.Key); err != nil {
			return err
		}
		if err := w.PutU32(q.ID); err != nil {
			return err
		}
		if err := w.PutCString(q.Parameters); err != nil {
			return err
		}
		if err := w.PutU8(uint8(q.Target)); err != nil {
			return err
		}
		if err := w.PutU8(uint8(q.Consolidation)); err != nil {
			return err
		}
		if err := w.PutBool(q.AnyKey); err != nil {
			return err
		}
		if err := putBinding(w, &q.Binding, arg, hasArg); err != nil {
			return err
		}
		if err := w.PutU64(uint64(len(q.Replies))); err != nil {
			return err
		}
		for _, p := range q.Replies {
			if err := putPendingReply(w, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// DecodePendingQuery reads a query and its replies into fresh instances.
func (e *Entities) DecodePendingQuery(r *Reader) (*domain.PendingQuery, error) {
	q := &domain.PendingQuery{}
	var err error
	if q.Key, err = readKeyExpr(r); err != nil {
		return nil, err
	}
	if q.ID, err = r.U32(); err != nil {
		return nil, err
	}
	if q.Parameters, err = r.CString(); err != nil {
		return nil, err
	}
	target, err := readEnum(r, "query target", func(v uint8) bool { return domain.QueryTarget(v).Valid() })
	if err != nil {
		return nil, err
	}
	cons, err := readEnum(r, "consolidation", func(v uint8) bool { return domain.ConsolidationMode(v).Valid() })
	if err != nil {
		return nil, err
	}
	q.Target = domain.QueryTarget(target)
	q.Consolidation = domain.ConsolidationMode(cons)
	if q.AnyKey, err = r.Bool(); err != nil {
		return nil, err
	}

	// An unresolved argument codec is remembered and reported after the
	// replies are consumed, so the cursor ends on the next query.
	var unresolved error
	q.Binding, err = e.readBinding(r)
	if err != nil {
		if !IsSkippable(err) {
			return nil, err
		}
		unresolved = err
	}

	q.Replies, err = DecodeCollection(r, MinPendingReplySize, e.DecodePendingReply, DecodeOptions{})
	if err != nil {
		return nil, fmt.Errorf("replies of query %d: %w", q.ID, err)
	}
	if unresolved != nil {
		return q, fmt.Errorf("query %d: %w", q.ID, unresolved)
	}
	return q, nil
}
