package companion

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultPollInterval = 15 * time.Second

// Monitor polls the hub's health endpoint and fires a callback on the
// offline-to-online transition, which is when queued operations get
// replayed.
type Monitor struct {
	remote   *Client
	interval time.Duration
	onOnline func(context.Context)
	logger   *slog.Logger

	mu     sync.RWMutex
	online bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(remote *Client, interval time.Duration, onOnline func(context.Context), logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Monitor{
		remote:   remote,
		interval: interval,
		onOnline: onOnline,
		logger:   logger,
	}
}

// Online reports the last observed hub reachability.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Start begins polling. The first check runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)

		m.check(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Stop halts polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Monitor) check(ctx context.Context) {
	err := m.remote.Health(ctx)
	nowOnline := err == nil

	m.mu.Lock()
	wasOnline := m.online
	m.online = nowOnline
	m.mu.Unlock()

	switch {
	case nowOnline && !wasOnline:
		m.logger.Info("hub reachable")
		if m.onOnline != nil {
			m.onOnline(ctx)
		}
	case !nowOnline && wasOnline:
		m.logger.Warn("hub unreachable", "error", err)
	}
}
