package session

import (
	"context"
	"fmt"

	"github.com/yndnr/picoretain/internal/core/domain"
	"github.com/yndnr/picoretain/internal/storage/snapshot"
)

// Retainer moves a session in and out of retained memory.
// *snapshot.Orchestrator implements it.
type Retainer interface {
	Snapshot(ctx context.Context, view snapshot.SessionView) (*snapshot.Info, error)
	Resume() error
	RestoreOrEmpty(ctx context.Context) (*domain.SessionState, bool, error)
}

// PrepareToSleep quiesces the session and snapshots it. On success the
// session stays quiesced until power is removed. On failure the retainer and
// the session are both resumed and the snapshot error is returned.
func (s *Session) PrepareToSleep(ctx context.Context, r Retainer) (*snapshot.Info, error) {
	s.Quiesce()

	info, err := r.Snapshot(ctx, s)
	if err != nil {
		if rerr := r.Resume(); rerr != nil {
			s.logger.Error("cannot resume after failed snapshot", "error", rerr)
		}
		s.Resume()
		s.logger.Warn("sleep aborted, session resumed", "error", err)
		return nil, fmt.Errorf("session: prepare to sleep: %w", err)
	}

	s.logger.Info("session ready to sleep",
		"generation", info.Generation.String(),
		"bytes", info.Used())
	return info, nil
}

// WakeUp restores the retained session, or starts empty when nothing usable
// was retained, and resumes mutation. restored reports which happened.
func (s *Session) WakeUp(ctx context.Context, r Retainer) (restored bool, err error) {
	state, restored, err := r.RestoreOrEmpty(ctx)
	if err != nil {
		return false, fmt.Errorf("session: wake up: %w", err)
	}
	s.Adopt(state)
	s.Resume()

	c := state.Counts()
	s.logger.Info("session awake",
		"restored", restored,
		"entities", c.Total(),
		"pending_replies", c.PendingReplies)
	return restored, nil
}
