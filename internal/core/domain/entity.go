package domain

import (
	"fmt"
	"strings"
)

// Key expression mappings.
const (
	// MappingLocal marks a key expression declared by this session.
	MappingLocal uint16 = 0
	// MappingUnknownRemote marks a key expression declared by a peer.
	MappingUnknownRemote uint16 = 1
)

// KeyExpr is a key expression as held by the session: an optional numeric
// alias, the mapping that owns the alias, and a textual suffix.
type KeyExpr struct {
	ID      uint16 `json:"id" yaml:"id"`
	Mapping uint16 `json:"mapping" yaml:"mapping"`
	Suffix  string `json:"suffix" yaml:"suffix"`
}

// Validate reports whether the key expression can be persisted.
func (k KeyExpr) Validate() error {
	if strings.IndexByte(k.Suffix, 0) >= 0 {
		return ErrStringEncoding.WithDetailsf("key suffix %q", k.Suffix)
	}
	return nil
}

func (k KeyExpr) String() string {
	if k.ID == 0 {
		return k.Suffix
	}
	return fmt.Sprintf("%d:%d/%s", k.Mapping, k.ID, k.Suffix)
}

// Resource is a registered key expression mapping.
type Resource struct {
	ID       uint64  `json:"id" yaml:"id"`
	Key      KeyExpr `json:"key" yaml:"key"`
	RefCount uint16  `json:"refcount" yaml:"refcount"`
}

// Period describes a periodic pull subscription.
type Period struct {
	Origin   uint32 `json:"origin" yaml:"origin"`
	Period   uint32 `json:"period" yaml:"period"`
	Duration uint32 `json:"duration" yaml:"duration"`
}

// Subscription is a standing subscription.
type Subscription struct {
	Key         KeyExpr     `json:"key" yaml:"key"`
	ID          uint32      `json:"id" yaml:"id"`
	Period      Period      `json:"period" yaml:"period"`
	Reliability Reliability `json:"reliability" yaml:"reliability"`
	Mode        SubMode     `json:"mode" yaml:"mode"`
	Binding `yaml:",inline"`
}

// Validate reports whether the subscription can be persisted.
func (s *Subscription) Validate() error {
	if err := s.Key.Validate(); err != nil {
		return err
	}
	if !s.Reliability.Valid() {
		return ErrCorruptValue.WithDetailsf("subscription %d: reliability %d", s.ID, s.Reliability)
	}
	if !s.Mode.Valid() {
		return ErrCorruptValue.WithDetailsf("subscription %d: mode %d", s.ID, s.Mode)
	}
	return nil
}

// Queryable answers queries on a key expression.
type Queryable struct {
	Key      KeyExpr `json:"key" yaml:"key"`
	ID       uint32  `json:"id" yaml:"id"`
	Complete bool    `json:"complete" yaml:"complete"`
	Binding `yaml:",inline"`
}

// Timestamp is a hybrid logical clock value stamped by a node.
type Timestamp struct {
	NodeID [16]byte `json:"node_id" yaml:"node_id"`
	Time   uint64   `json:"time" yaml:"time"`
}

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool {
	return t.Time == 0 && t.NodeID == [16]byte{}
}

// Encoding describes the payload format of a sample.
type Encoding struct {
	Suffix []byte         `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Prefix EncodingPrefix `json:"prefix" yaml:"prefix"`
}

// Sample is the data part of a reply.
type Sample struct {
	KeyExpr   KeyExpr    `json:"keyexpr" yaml:"keyexpr"`
	Payload   []byte     `json:"payload,omitempty" yaml:"payload,omitempty"`
	Timestamp Timestamp  `json:"timestamp" yaml:"timestamp"`
	Encoding  Encoding   `json:"encoding" yaml:"encoding"`
	Kind      SampleKind `json:"kind" yaml:"kind"`
}

// PendingReply is a reply buffered for a query until consolidation completes.
type PendingReply struct {
	Timestamp Timestamp `json:"timestamp" yaml:"timestamp"`
	Tag       ReplyTag  `json:"tag" yaml:"tag"`
	ReplierID [16]byte  `json:"replier_id" yaml:"replier_id"`
	Sample    Sample    `json:"sample" yaml:"sample"`
}

// Validate reports whether the reply can be persisted.
func (r *PendingReply) Validate() error {
	if r == nil {
		return ErrInvalidArgument.WithDetails("nil reply")
	}
	if err := r.Sample.KeyExpr.Validate(); err != nil {
		return err
	}
	if !r.Tag.Valid() {
		return ErrCorruptValue.WithDetailsf("reply tag %d", r.Tag)
	}
	if !r.Sample.Kind.Valid() {
		return ErrCorruptValue.WithDetailsf("sample kind %d", r.Sample.Kind)
	}
	if !r.Sample.Encoding.Prefix.Valid() {
		return ErrCorruptValue.WithDetailsf("encoding prefix %d", r.Sample.Encoding.Prefix)
	}
	return nil
}

// PendingQuery is an outstanding query. It owns its reply buffer.
type PendingQuery struct {
	Key           KeyExpr           `json:"key" yaml:"key"`
	ID            uint32            `json:"id" yaml:"id"`
	Parameters    string            `json:"parameters" yaml:"parameters"`
	Target        QueryTarget       `json:"target" yaml:"target"`
	Consolidation ConsolidationMode `json:"consolidation" yaml:"consolidation"`
	AnyKey        bool              `json:"anykey" yaml:"anykey"`
	Binding `yaml:",inline"`
	Replies []*PendingReply `json:"pending_replies" yaml:"pending_replies"`
}

// Validate reports whether the query and its buffered replies can be
// persisted: strings carry no terminator byte and every enum is in range.
func (q *PendingQuery) Validate() error {
	if err := q.Key.Validate(); err != nil {
		return err
	}
	if strings.IndexByte(q.Parameters, 0) >= 0 {
		return ErrStringEncoding.WithDetailsf("parameters of query %d", q.ID)
	}
	if !q.Target.Valid() {
		return ErrCorruptValue.WithDetailsf("query %d: target %d", q.ID, q.Target)
	}
	if !q.Consolidation.Valid() {
		return ErrCorruptValue.WithDetailsf("query %d: consolidation %d", q.ID, q.Consolidation)
	}
	for i, r := range q.Replies {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("query %d reply %d: %w", q.ID, i, err)
		}
	}
	return nil
}

// Locality selects between the entities this session declared and the ones
// its peers declared.
type Locality uint8

const (
	Local Locality = iota
	Remote
)

func (l Locality) String() string {
	if l == Remote {
		return "remote"
	}
	return "local"
}
