package snapshot

import (
	"fmt"

	"github.com/yndnr/picoretain/internal/core/domain"
	"github.com/yndnr/picoretain/internal/storage/codec"
	"github.com/yndnr/picoretain/internal/storage/region"
)

// Dropped records an entity left out of a restored state.
type Dropped struct {
	Region region.Name
	Index  int
	Err    error
}

// Decode reads every region of mem into a fresh state without binding
// callbacks. Entities whose argument codec is missing are dropped or fail
// the decode according to policy.
func Decode(table *region.Table, mem []byte, codecs codec.CodecLookup, policy UnresolvedPolicy) (*domain.SessionState, []Dropped, error) {
	state := domain.NewSessionState()
	e := codec.NewEntities(codecs)
	var dropped []Dropped

	for _, r := range table.Regions() {
		raw, err := table.Slice(mem, r.Name)
		if err != nil {
			return nil, nil, err
		}
		body, err := region.Open(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot: region %s: %w", r.Name, err)
		}

		opts := codec.DecodeOptions{
			DropUnresolved: policy == UnresolvedDrop,
			OnDrop: func(i int, err error) {
				dropped = append(dropped, Dropped{Region: r.Name, Index: i, Err: err})
			},
		}
		rd := codec.NewReader(body)
		if err := decodeRegion(rd, r.Name, e, state, opts); err != nil {
			return nil, nil, fmt.Errorf("snapshot: region %s: %w", r.Name, err)
		}
		if rd.Remaining() != 0 {
			return nil, nil, fmt.Errorf("snapshot: region %s: %w", r.Name,
				domain.ErrCorruptValue.WithDetailsf("%d trailing bytes", rd.Remaining()))
		}
	}
	return state, dropped, nil
}

func decodeRegion(rd *codec.Reader, name region.Name, e *codec.Entities, s *domain.SessionState, opts codec.DecodeOptions) error {
	var err error
	switch name {
	case region.Resources:
		err = decodeInto(&s.Resources, rd, codec.MinResourceSize, e.DecodeResource, opts)
	case region.RemoteResources:
		err = decodeInto(&s.RemoteResources, rd, codec.MinResourceSize, e.DecodeResource, opts)
	case region.LocalSubscriptions:
		err = decodeInto(&s.LocalSubscriptions, rd, codec.MinSubscriptionSize, e.DecodeSubscription, opts)
	case region.RemoteSubscriptions:
		err = decodeInto(&s.RemoteSubscriptions, rd, codec.MinSubscriptionSize, e.DecodeSubscription, opts)
	case region.LocalQueryables:
		err = decodeInto(&s.LocalQueryables, rd, codec.MinQueryableSize, e.DecodeQueryable, opts)
	case region.PendingQueries:
		err = decodeInto(&s.PendingQueries, rd, codec.MinPendingQuerySize, e.DecodePendingQuery, opts)
	default:
		err = domain.ErrUnknownRegion.WithDetailsf("%q", name)
	}
	return err
}

func decodeInto[T any](dst *[]T, rd *codec.Reader, minSize int, decode func(*codec.Reader) (T, error), opts codec.DecodeOptions) error {
	items, err := codec.DecodeCollection(rd, minSize, decode, opts)
	if err != nil {
		return err
	}
	if items != nil {
		*dst = items
	}
	return nil
}

func encodeRegion(w *codec.Writer, name region.Name, e *codec.Entities, view SessionView) (int, error) {
	switch name {
	case region.Resources:
		items := view.ResourcesOf(domain.Local)
		return len(items), codec.EncodeCollection(w, items, e.EncodeResource)
	case region.RemoteResources:
		items := view.ResourcesOf(domain.Remote)
		return len(items), codec.EncodeCollection(w, items, e.EncodeResource)
	case region.LocalSubscriptions:
		items := view.SubscriptionsOf(domain.Local)
		return len(items), codec.EncodeCollection(w, items, e.EncodeSubscription)
	case region.RemoteSubscriptions:
		items := view.SubscriptionsOf(domain.Remote)
		return len(items), codec.EncodeCollection(w, items, e.EncodeSubscription)
	case region.LocalQueryables:
		items := view.Queryables()
		return len(items), codec.EncodeCollection(w, items, e.EncodeQueryable)
	case region.PendingQueries:
		items := view.Queries()
		return len(items), codec.EncodeCollection(w, items, e.EncodePendingQuery)
	default:
		return 0, domain.ErrUnknownRegion.WithDetailsf("%q", name)
	}
}
