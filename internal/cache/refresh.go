package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultRefreshInterval = 30 * time.Second

// Refresher is anything that can reload itself; *List satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// AutoRefresh reloads its targets on a fixed interval while the app is in
// the foreground. At most one ticker runs at a time.
type AutoRefresh struct {
	interval time.Duration
	targets  []Refresher

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewAutoRefresh(interval time.Duration, targets ...Refresher) *AutoRefresh {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &AutoRefresh{interval: interval, targets: targets}
}

// Foreground starts the ticker; it is a no-op when already running.
func (a *AutoRefresh) Foreground() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done

	go a.loop(ctx, done)
}

// Background stops the ticker and waits for an in-flight refresh to return.
func (a *AutoRefresh) Background() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Stop is Background for owners being torn down.
func (a *AutoRefresh) Stop() {
	a.Background()
}

func (a *AutoRefresh) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

func (a *AutoRefresh) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, t := range a.targets {
				err := t.Refresh(ctx)
				if err != nil && ctx.Err() == nil {
					slog.Warn("periodic refresh failed", "error", err)
				}
			}
		}
	}
}
