package snapshot

import (
	"fmt"
	"strings"
)

// Phase is the orchestrator state.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseRestoring
	PhaseRestoreFailed
	PhaseLive
	PhaseSnapshotting
	PhaseSnapshotFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseRestoring:
		return "restoring"
	case PhaseRestoreFailed:
		return "restore_failed"
	case PhaseLive:
		return "live"
	case PhaseSnapshotting:
		return "snapshotting"
	case PhaseSnapshotFailed:
		return "snapshot_failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// UnresolvedPolicy decides what restore does with an entity whose callback,
// dropper or argument codec has no live registration.
type UnresolvedPolicy int

const (
	// UnresolvedFail fails the whole restore.
	UnresolvedFail UnresolvedPolicy = iota
	// UnresolvedDrop drops the entity and keeps going.
	UnresolvedDrop
)

func (p UnresolvedPolicy) String() string {
	if p == UnresolvedDrop {
		return "drop"
	}
	return "fail"
}

// ParseUnresolvedPolicy parses "fail" or "drop".
func ParseUnresolvedPolicy(s string) (UnresolvedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return UnresolvedFail, nil
	case "drop":
		return UnresolvedDrop, nil
	default:
		return UnresolvedFail, fmt.Errorf("snapshot: unknown unresolved policy %q", s)
	}
}
