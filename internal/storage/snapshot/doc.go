// Package snapshot writes a session into retained memory before power-down
// and rebuilds it after power returns.
//
// Snapshot walks the regions in canonical order. Each collection is encoded
// into a scratch buffer bounded by the region body, then sealed into place.
// A collection that does not fit invalidates only its own region; regions
// written earlier in the same call stay valid and later ones are left alone.
//
// Restore opens every region, decodes it, and binds the persisted callback
// ids through the registry. Any failure yields no state at all; callers that
// prefer to keep running use RestoreOrEmpty.
//
// Phases:
//
//	Unknown --Restore--> Restoring --ok--> Live --Snapshot--> Snapshotting --ok--> Live
//	                         |                                     |
//	                         +--err--> RestoreFailed               +--err--> SnapshotFailed --Resume--> Live
//
// Only one operation runs at a time; a call made in the wrong phase fails
// with ErrInvalidPhase.
package snapshot
