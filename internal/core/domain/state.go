package domain

// SessionState is the aggregate of every persisted collection of a session.
//
// Restore builds a fresh SessionState; no entity is shared with the state
// that was snapshotted. Slice order is the iteration order of the source
// collection and is preserved across a round trip.
type SessionState struct {
	Resources           []*Resource     `json:"resources" yaml:"resources"`
	RemoteResources     []*Resource     `json:"remote_resources" yaml:"remote_resources"`
	LocalSubscriptions  []*Subscription `json:"local_subscriptions" yaml:"local_subscriptions"`
	RemoteSubscriptions []*Subscription `json:"remote_subscriptions" yaml:"remote_subscriptions"`
	LocalQueryables     []*Queryable    `json:"local_queryables" yaml:"local_queryables"`
	PendingQueries      []*PendingQuery `json:"pending_queries" yaml:"pending_queries"`
}

// NewSessionState returns an empty state with non-nil collections.
func NewSessionState() *SessionState {
	return &SessionState{
		Resources:           []*Resource{},
		RemoteResources:     []*Resource{},
		LocalSubscriptions:  []*Subscription{},
		RemoteSubscriptions: []*Subscription{},
		LocalQueryables:     []*Queryable{},
		PendingQueries:      []*PendingQuery{},
	}
}

// Counts holds the number of entities per collection.
type Counts struct {
	Resources           int `json:"resources" yaml:"resources"`
	RemoteResources     int `json:"remote_resources" yaml:"remote_resources"`
	LocalSubscriptions  int `json:"local_subscriptions" yaml:"local_subscriptions"`
	RemoteSubscriptions int `json:"remote_subscriptions" yaml:"remote_subscriptions"`
	LocalQueryables     int `json:"local_queryables" yaml:"local_queryables"`
	PendingQueries      int `json:"pending_queries" yaml:"pending_queries"`
	PendingReplies      int `json:"pending_replies" yaml:"pending_replies"`
}

// Total returns the number of top-level entities.
func (c Counts) Total() int {
	return c.Resources + c.RemoteResources + c.LocalSubscriptions +
		c.RemoteSubscriptions + c.LocalQueryables + c.PendingQueries
}

// Counts returns the size of each collection.
func (s *SessionState) Counts() Counts {
	c := Counts{
		Resources:           len(s.Resources),
		RemoteResources:     len(s.RemoteResources),
		LocalSubscriptions:  len(s.LocalSubscriptions),
		RemoteSubscriptions: len(s.RemoteSubscriptions),
		LocalQueryables:     len(s.LocalQueryables),
		PendingQueries:      len(s.PendingQueries),
	}
	for _, q := range s.PendingQueries {
		c.PendingReplies += len(q.Replies)
	}
	return c
}

// Empty reports whether every collection is empty.
func (s *SessionState) Empty() bool {
	return s.Counts().Total() == 0
}

// The accessors below let a SessionState stand in for a live session when
// it is snapshotted again.

// ResourcesOf returns the local or remote resources.
func (s *SessionState) ResourcesOf(l Locality) []*Resource {
	if l == Remote {
		return s.RemoteResources
	}
	return s.Resources
}

// SubscriptionsOf returns the local or remote subscriptions.
func (s *SessionState) SubscriptionsOf(l Locality) []*Subscription {
	if l == Remote {
		return s.RemoteSubscriptions
	}
	return s.LocalSubscriptions
}

// Queryables returns the local queryables.
func (s *SessionState) Queryables() []*Queryable {
	return s.LocalQueryables
}

// Queries returns the pending queries.
func (s *SessionState) Queries() []*PendingQuery {
	return s.PendingQueries
}
