// Package domain defines the session entities that picoretain persists
// across a power cycle.
//
// Domain models are plain values without IO dependencies:
//
//   - Resource, KeyExpr: registered key expression mappings
//   - Subscription, Queryable: standing declarations with a callback Binding
//   - PendingQuery, PendingReply, Sample: outstanding queries and their replies
//   - SessionState: the aggregate produced by restore
//   - Errors: coded domain errors shared by every layer
//
// Callbacks are never persisted as function values. A Binding stores the
// registration ids (CallbackID, CodecID) and the live functions are looked up
// again after wake-up.
package domain
