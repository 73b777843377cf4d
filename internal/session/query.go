package session

import (
	"slices"

	"github.com/yndnr/picoretain/internal/core/domain"
)

// QueryRequest describes an outgoing query.
type QueryRequest struct {
	Key           domain.KeyExpr
	Parameters    string
	Target        domain.QueryTarget
	Consolidation domain.ConsolidationMode
	AnyKey        bool
	Binding       domain.Binding
}

func (r *QueryRequest) validate() error {
	if err := r.Key.Validate(); err != nil {
		return err
	}
	if !r.Target.Valid() {
		return domain.ErrInvalidArgument.WithDetailsf("target %s", r.Target)
	}
	if !r.Consolidation.Valid() {
		return domain.ErrInvalidArgument.WithDetailsf("consolidation %s", r.Consolidation)
	}
	q := domain.PendingQuery{Key: r.Key, Parameters: r.Parameters}
	return q.Validate()
}

// Query registers an outstanding query and returns its id.
func (s *Session) Query(req QueryRequest) (uint32, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}
	b := req.Binding
	if err := s.bind(&b); err != nil {
		return 0, err
	}
	var id uint32
	err := s.mutate(func() error {
		s.lastQuery++
		id = s.lastQuery
		s.state.PendingQueries = append(s.state.PendingQueries, &domain.PendingQuery{
			Key:           req.Key,
			ID:            id,
			Parameters:    req.Parameters,
			Target:        req.Target,
			Consolidation: req.Consolidation,
			AnyKey:        req.AnyKey,
			Binding:       b,
		})
		return nil
	})
	return id, err
}

func (s *Session) findQuery(id uint32) (int, *domain.PendingQuery, error) {
	i := slices.IndexFunc(s.state.PendingQueries, func(q *domain.PendingQuery) bool { return q.ID == id })
	if i < 0 {
		return -1, nil, domain.ErrNotFound.WithDetailsf("query %d", id)
	}
	return i, s.state.PendingQueries[i], nil
}

// ReceiveReply handles a reply to query id.
//
// With no consolidation the reply is delivered at once. Otherwise the reply
// is kept only if it is newer than the buffered reply for the same key;
// monotonic consolidation also delivers every kept reply immediately, while
// latest consolidation holds them until FinishQuery.
func (s *Session) ReceiveReply(id uint32, reply *domain.PendingReply) error {
	if err := reply.Validate(); err != nil {
		return err
	}
	var (
		q       *domain.PendingQuery
		deliver bool
	)
	err := s.mutate(func() error {
		var err error
		if _, q, err = s.findQuery(id); err != nil {
			return err
		}
		if q.Consolidation == domain.ConsolidationNone {
			deliver = true
			return nil
		}

		i := slices.IndexFunc(q.Replies, func(r *domain.PendingReply) bool {
			return r.Sample.KeyExpr == reply.Sample.KeyExpr
		})
		switch {
		case i < 0:
			q.Replies = append(q.Replies, reply)
		case newer(reply.Timestamp, q.Replies[i].Timestamp):
			q.Replies[i] = reply
		default:
			return nil
		}
		deliver = q.Consolidation == domain.ConsolidationMonotonic
		return nil
	})
	if err != nil {
		return err
	}
	if deliver {
		q.Deliver(reply)
	}
	return nil
}

// FinishQuery completes query id: buffered replies of a latest-consolidated
// query are delivered, then the query is removed and its dropper runs.
func (s *Session) FinishQuery(id uint32) error {
	var q *domain.PendingQuery
	err := s.mutate(func() error {
		i, found, err := s.findQuery(id)
		if err != nil {
			return err
		}
		q = found
		s.state.PendingQueries = slices.Delete(s.state.PendingQueries, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	if q.Consolidation == domain.ConsolidationLatest {
		for _, r := range q.Replies {
			q.Deliver(r)
		}
	}
	q.Drop()
	return nil
}

func newer(a, b domain.Timestamp) bool {
	if a.Time != b.Time {
		return a.Time > b.Time
	}
	return slices.Compare(a.NodeID[:], b.NodeID[:]) > 0
}
