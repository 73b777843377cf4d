// Package session holds the live entity collections of a client session and
// moves them in and out of retained memory across a power cycle.
//
// A Session is the host-side collaborator of the snapshot orchestrator: it
// implements snapshot.SessionView, can be quiesced so nothing mutates while a
// snapshot is taken, and adopts a restored state on wake-up.
package session

import (
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/yndnr/picoretain/internal/core/domain"
)

// Resolver attaches live callbacks to a binding.
type Resolver interface {
	Resolve(b *domain.Binding) error
}

// Session is a live client session.
type Session struct {
	resolver Resolver
	logger   *slog.Logger

	mu       sync.RWMutex
	state    *domain.SessionState
	quiesced bool

	lastResource uint64
	lastEntity   uint32
	lastQuery    uint32
}

// New creates an empty session. The resolver attaches callbacks to every
// declared entity; a nil logger uses slog.Default().
func New(resolver Resolver, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		resolver: resolver,
		logger:   logger,
		state:    domain.NewSessionState(),
	}
}

// mutate runs fn under the write lock unless the session is quiesced.
func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiesced {
		return domain.ErrSessionQuiesced
	}
	return fn()
}

func (s *Session) bind(b *domain.Binding) error {
	if s.resolver == nil || (b.Callback == 0 && b.Dropper == 0) {
		return nil
	}
	return s.resolver.Resolve(b)
}

// ============================================================================
// Quiescence
// ============================================================================

// Quiesce stops all mutation. It is idempotent.
func (s *Session) Quiesce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quiesced = true
}

// Resume allows mutation again.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quiesced = false
}

// Quiesced reports whether mutation is stopped.
func (s *Session) Quiesced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quiesced
}

// ============================================================================
// State
// ============================================================================

// Adopt replaces the session collections with state and moves the id
// counters past every id it contains. The previous entities are released
// without running their droppers.
func (s *Session) Adopt(state *domain.SessionState) {
	if state == nil {
		state = domain.NewSessionState()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
	s.lastResource, s.lastEntity, s.lastQuery = 0, 0, 0
	for _, r := range state.Resources {
		s.lastResource = max(s.lastResource, r.ID)
	}
	for _, sub := range state.LocalSubscriptions {
		s.lastEntity = max(s.lastEntity, sub.ID)
	}
	for _, q := range state.LocalQueryables {
		s.lastEntity = max(s.lastEntity, q.ID)
	}
	for _, q := range state.PendingQueries {
		s.lastQuery = max(s.lastQuery, q.ID)
	}
	s.logger.Debug("session state adopted",
		"entities", state.Counts().Total(),
		"last_resource", s.lastResource,
		"last_entity", s.lastEntity,
		"last_query", s.lastQuery)
}

// Counts returns the size of every collection.
func (s *Session) Counts() domain.Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Counts()
}

// The view accessors return the live collections. Callers must not modify
// them and should only use them while the session is quiesced.

// ResourcesOf returns the local or remote resources.
func (s *Session) ResourcesOf(l domain.Locality) []*domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ResourcesOf(l)
}

// SubscriptionsOf returns the local or remote subscriptions.
func (s *Session) SubscriptionsOf(l domain.Locality) []*domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SubscriptionsOf(l)
}

// Queryables returns the local queryables.
func (s *Session) Queryables() []*domain.Queryable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Queryables()
}

// Queries returns the pending queries.
func (s *Session) Queries() []*domain.PendingQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Queries()
}

// ============================================================================
// Resources
// ============================================================================

// DeclareResource maps key to a local resource id. Declaring a key that is
// already mapped bumps its reference count and returns the existing id.
func (s *Session) DeclareResource(key domain.KeyExpr) (uint64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	var id uint64
	err := s.mutate(func() error {
		for _, r := range s.state.Resources {
			if r.Key == key {
				if err := retain(r); err != nil {
					return err
				}
				id = r.ID
				return nil
			}
		}
		s.lastResource++
		id = s.lastResource
		s.state.Resources = append(s.state.Resources, &domain.Resource{ID: id, Key: key, RefCount: 1})
		return nil
	})
	return id, err
}

// RegisterRemoteResource records a mapping declared by a peer.
func (s *Session) RegisterRemoteResource(id uint64, key domain.KeyExpr) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return s.mutate(func() error {
		for _, r := range s.state.RemoteResources {
			if r.ID == id {
				if r.Key != key {
					return domain.ErrInvalidArgument.WithDetailsf(
						"remote resource %d already maps %q", id, r.Key.Suffix)
				}
				return retain(r)
			}
		}
		s.state.RemoteResources = append(s.state.RemoteResources,
			&domain.Resource{ID: id, Key: key, RefCount: 1})
		return nil
	})
}

// retain adds a reference to r. A saturated count is an error rather than
// a wrap to zero.
func retain(r *domain.Resource) error {
	if r.RefCount == math.MaxUint16 {
		return domain.ErrInvalidArgument.WithDetailsf("resource %d reference count saturated", r.ID)
	}
	r.RefCount++
	return nil
}

// UndeclareResource drops one reference to a resource and removes it when
// none remain.
func (s *Session) UndeclareResource(l domain.Locality, id uint64) error {
	return s.mutate(func() error {
		list := &s.state.Resources
		if l == domain.Remote {
			list = &s.state.RemoteResources
		}
		i := slices.IndexFunc(*list, func(r *domain.Resource) bool { return r.ID == id })
		if i < 0 {
			return domain.ErrNotFound.WithDetailsf("%s resource %d", l, id)
		}
		r := (*list)[i]
		if r.RefCount > 1 {
			r.RefCount--
			return nil
		}
		*list = slices.Delete(*list, i, i+1)
		return nil
	})
}

// ============================================================================
// Subscriptions
// ============================================================================

// SubscribeRequest describes a subscription.
type SubscribeRequest struct {
	Key         domain.KeyExpr
	Reliability domain.Reliability
	Mode        domain.SubMode
	Period      domain.Period
	Binding     domain.Binding

	// ID is the peer-assigned id of a remote subscription. Local
	// subscriptions get an id from the session.
	ID uint32
}

func (r *SubscribeRequest) validate() error {
	if err := r.Key.Validate(); err != nil {
		return err
	}
	if !r.Reliability.Valid() {
		return domain.ErrInvalidArgument.WithDetailsf("reliability %s", r.Reliability)
	}
	if !r.Mode.Valid() {
		return domain.ErrInvalidArgument.WithDetailsf("mode %s", r.Mode)
	}
	return nil
}

// Subscribe adds a local or remote subscription and returns its id.
func (s *Session) Subscribe(l domain.Locality, req SubscribeRequest) (uint32, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}
	b := req.Binding
	if err := s.bind(&b); err != nil {
		return 0, err
	}

	var id uint32
	err := s.mutate(func() error {
		list := &s.state.LocalSubscriptions
		if l == domain.Remote {
			list = &s.state.RemoteSubscriptions
			if slices.ContainsFunc(*list, func(sub *domain.Subscription) bool { return sub.ID == req.ID }) {
				return domain.ErrInvalidArgument.WithDetailsf("remote subscription %d exists", req.ID)
			}
			id = req.ID
		} else {
			s.lastEntity++
			id = s.lastEntity
		}
		*list = append(*list, &domain.Subscription{
			Key:         req.Key,
			ID:          id,
			Period:      req.Period,
			Reliability: req.Reliability,
			Mode:        req.Mode,
			Binding:     b,
		})
		return nil
	})
	return id, err
}

// Unsubscribe removes a subscription and runs its dropper.
func (s *Session) Unsubscribe(l domain.Locality, id uint32) error {
	var sub *domain.Subscription
	err := s.mutate(func() error {
		list := &s.state.LocalSubscriptions
		if l == domain.Remote {
			list = &s.state.RemoteSubscriptions
		}
		i := slices.IndexFunc(*list, func(x *domain.Subscription) bool { return x.ID == id })
		if i < 0 {
			return domain.ErrNotFound.WithDetailsf("%s subscription %d", l, id)
		}
		sub = (*list)[i]
		*list = slices.Delete(*list, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	sub.Drop()
	return nil
}

// Publish delivers a sample to every local subscription whose key matches
// exactly. It returns the number of deliveries.
func (s *Session) Publish(sample *domain.Sample) int {
	s.mu.RLock()
	var targets []*domain.Subscription
	for _, sub := range s.state.LocalSubscriptions {
		if sub.Key == sample.KeyExpr {
			targets = append(targets, sub)
		}
	}
	s.mu.RUnlock()

	for _, sub := range targets {
		sub.Deliver(sample)
	}
	return len(targets)
}

// ============================================================================
// Queryables
// ============================================================================

// DeclareQueryable adds a local queryable and returns its id.
func (s *Session) DeclareQueryable(key domain.KeyExpr, complete bool, b domain.Binding) (uint32, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if err := s.bind(&b); err != nil {
		return 0, err
	}
	var id uint32
	err := s.mutate(func() error {
		s.lastEntity++
		id = s.lastEntity
		s.state.LocalQueryables = append(s.state.LocalQueryables, &domain.Queryable{
			Key:      key,
			ID:       id,
			Complete: complete,
			Binding:  b,
		})
		return nil
	})
	return id, err
}

// UndeclareQueryable removes a queryable and runs its dropper.
func (s *Session) UndeclareQueryable(id uint32) error {
	var q *domain.Queryable
	err := s.mutate(func() error {
		i := slices.IndexFunc(s.state.LocalQueryables, func(x *domain.Queryable) bool { return x.ID == id })
		if i < 0 {
			return domain.ErrNotFound.WithDetailsf("queryable %d", id)
		}
		q = s.state.LocalQueryables[i]
		s.state.LocalQueryables = slices.Delete(s.state.LocalQueryables, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	q.Drop()
	return nil
}
