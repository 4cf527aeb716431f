package loginflow

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionWatcher periodically re-checks credential presence and triggers
// navigation when it is gone. The check must be idempotent and side-effect
// free beyond invoking the callback. Lifetime is tied to the caller through
// Start/Stop rather than an ambient global interval.
type SessionWatcher struct {
	interval time.Duration
	check    func(ctx context.Context) bool
	onAbsent func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSessionWatcher creates a watcher. check reports whether a valid session
// is present; onAbsent fires once per tick it is not.
func NewSessionWatcher(interval time.Duration, check func(ctx context.Context) bool, onAbsent func()) *SessionWatcher {
	return &SessionWatcher{
		interval: interval,
		check:    check,
		onAbsent: onAbsent,
	}
}

// Start launches the background task. Calling Start on a running watcher is
// a no-op.
func (w *SessionWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !w.check(ctx) {
					slog.Debug("Session absent, triggering navigation")
					w.onAbsent()
				}
			}
		}
	}()
}

// Stop cancels the background task and waits for it to exit.
func (w *SessionWatcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
