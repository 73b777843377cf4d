package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Reason is why Wait returned.
type Reason int

const (
	// Terminate is a plain stop.
	Terminate Reason = iota
	// Sleep is a stop after the session was retained.
	Sleep
)

func (r Reason) String() string {
	if r == Sleep {
		return "sleep"
	}
	return "terminate"
}

// SleepSignal requests a retained power-down.
var SleepSignal os.Signal = syscall.SIGUSR1

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration
	hooks   []func(context.Context) error
	sleep   func(context.Context) error
	onAbort func(error)
	mu      sync.Mutex
	signals chan os.Signal
	done    chan struct{}
}

// NewHandler creates a new shutdown handler.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		hooks:   make([]func(context.Context) error, 0),
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// OnSleep sets the hook run on SleepSignal. Without one, SleepSignal
// behaves like a terminate signal.
func (h *Handler) OnSleep(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sleep = hook
}

// OnSleepAborted sets a function told about every sleep hook failure.
func (h *Handler) OnSleepAborted(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAbort = fn
}

// Trigger delivers sig as if it had been received from the OS.
func (h *Handler) Trigger(sig os.Signal) {
	h.signals <- sig
}

// Wait blocks until a terminate signal arrives, or a sleep signal whose hook
// succeeds, then executes the shutdown hooks.
func (h *Handler) Wait() (Reason, error) {
	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM, SleepSignal)
	defer signal.Stop(h.signals)

	reason := Terminate
	for sig := range h.signals {
		if sig != SleepSignal {
			break
		}
		h.mu.Lock()
		sleep, onAbort := h.sleep, h.onAbort
		h.mu.Unlock()
		if sleep == nil {
			break
		}
		if err := h.run(sleep); err != nil {
			if onAbort != nil {
				onAbort(err)
			}
			continue
		}
		reason = Sleep
		break
	}

	h.mu.Lock()
	hooks := make([]func(context.Context) error, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var lastErr error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			lastErr = err
		}
	}

	close(h.done)
	return reason, lastErr
}

func (h *Handler) run(hook func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return hook(ctx)
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
