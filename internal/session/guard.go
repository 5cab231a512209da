package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ExitGuard mediates between termination signals from the hosting connection
// and the controller. The host raises HostGone when the connection drops (no
// confirmation is possible there); a voluntary leave goes through the
// RequestLeave / ConfirmLeave / CancelLeave handshake, and only a confirm
// forces the exit.
type ExitGuard struct {
	ctrl   *Controller
	logger zerolog.Logger

	mu           sync.Mutex
	leavePending bool
}

func NewExitGuard(ctrl *Controller, logger zerolog.Logger) *ExitGuard {
	return &ExitGuard{
		ctrl: ctrl,
		logger: logger.With().
			Str("component", "exit-guard").
			Str("contestId", ctrl.ContestID()).
			Logger(),
	}
}

// HostGone handles an involuntary termination: the connection is already
// gone, so the best-effort forced submission runs immediately.
func (g *ExitGuard) HostGone(ctx context.Context) {
	g.logger.Info().Str("phase", string(g.ctrl.Phase())).Msg("Host connection gone")
	g.ctrl.ForceExit(ctx, ReasonDisconnect)
}

// RequestLeave starts the voluntary-leave handshake. It reports whether a
// confirmation prompt should be shown; outside Participating there is nothing
// to guard and the caller may just drop the session.
func (g *ExitGuard) RequestLeave() bool {
	if g.ctrl.Phase() != PhaseParticipating {
		return false
	}
	g.mu.Lock()
	g.leavePending = true
	g.mu.Unlock()
	return true
}

// ConfirmLeave completes a pending leave. Without a preceding RequestLeave it
// is a no-op, so a stray confirm can never end a session.
func (g *ExitGuard) ConfirmLeave(ctx context.Context) {
	g.mu.Lock()
	pending := g.leavePending
	g.leavePending = false
	g.mu.Unlock()

	if !pending {
		g.logger.Debug().Msg("Ignoring confirm without pending leave request")
		return
	}
	g.ctrl.ForceExit(ctx, ReasonLeave)
}

// CancelLeave aborts the handshake; the session stays untouched.
func (g *ExitGuard) CancelLeave() {
	g.mu.Lock()
	g.leavePending = false
	g.mu.Unlock()
}

// LeavePending reports whether a confirmation is outstanding.
func (g *ExitGuard) LeavePending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.leavePending
}
