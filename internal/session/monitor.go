package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State of the monitored session.
type State int

const (
	StateActive State = iota
	StateExpired
)

func (s State) String() string {
	if s == StateExpired {
		return "expired"
	}
	return "active"
}

// Store persists the last-activity timestamp. Persistence failures make the
// monitor fail open: a session is never expired because a write failed.
type Store interface {
	Touch(ctx context.Context, at time.Time) error
	Last(ctx context.Context) (time.Time, bool, error)
	Clear(ctx context.Context) error
}

// Config carries the monitor timings. Zero values fall back to the defaults
// of the original client: 30m timeout, 60s check interval, 30s throttle.
type Config struct {
	Timeout       time.Duration
	CheckInterval time.Duration
	Throttle      time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Minute
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = 60 * time.Second
	}
	if c.Throttle == 0 {
		c.Throttle = 30 * time.Second
	}
	return c
}

// Monitor tracks user activity and expires idle sessions. ACTIVE is entered
// on Reset (login) and on any Touch; once EXPIRED the monitor stays expired
// until the next Reset.
type Monitor struct {
	store    Store
	cfg      Config
	onExpire func()
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	state     State
	last      time.Time
	lastWrite time.Time
}

func NewMonitor(store Store, cfg Config, onExpire func(), logger *slog.Logger) *Monitor {
	m := &Monitor{
		store:    store,
		cfg:      cfg.withDefaults(),
		onExpire: onExpire,
		logger:   logger,
		now:      time.Now,
	}
	m.last = m.now()
	return m
}

// Reset marks the start of a session, e.g. after login.
func (m *Monitor) Reset(ctx context.Context) {
	m.mu.Lock()
	m.state = StateActive
	m.last = m.now()
	m.lastWrite = time.Time{}
	m.mu.Unlock()
	m.persist(ctx)
}

// Resume picks up a session restored after a restart: a persisted activity
// timestamp is adopted as-is, so idle time accrued before the restart still
// counts toward the timeout. Without one it behaves like Reset.
func (m *Monitor) Resume(ctx context.Context) {
	last, ok, err := m.store.Last(ctx)
	if err != nil {
		// Fail open, same as a failed write.
		m.logger.Error("failed to read persisted activity timestamp", "error", err)
		ok = false
	}
	if !ok {
		m.Reset(ctx)
		return
	}
	m.mu.Lock()
	m.state = StateActive
	m.last = last
	m.lastWrite = last
	m.mu.Unlock()
}

// Touch records user activity. Writes to the store are throttled; the
// in-memory timestamp always advances so throttling never expires a session.
func (m *Monitor) Touch(ctx context.Context) {
	m.mu.Lock()
	if m.state == StateExpired {
		m.mu.Unlock()
		return
	}
	now := m.now()
	m.last = now
	throttled := !m.lastWrite.IsZero() && now.Sub(m.lastWrite) < m.cfg.Throttle
	m.mu.Unlock()

	if !throttled {
		m.persist(ctx)
	}
}

// Check compares idle time against the timeout and expires the session when
// exceeded, firing the expiry callback once.
func (m *Monitor) Check(ctx context.Context) State {
	m.mu.Lock()
	if m.state == StateExpired {
		m.mu.Unlock()
		return StateExpired
	}
	idle := m.now().Sub(m.last)
	if idle <= m.cfg.Timeout {
		m.mu.Unlock()
		return StateActive
	}
	m.state = StateExpired
	m.mu.Unlock()

	m.logger.Info("session expired due to inactivity", "idle", idle)
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("failed to clear activity record", "error", err)
	}
	if m.onExpire != nil {
		m.onExpire()
	}
	return StateExpired
}

// State returns the current state without running expiry checks.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run performs the periodic check until the context is cancelled or the
// session expires.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.Check(ctx) == StateExpired {
				return
			}
		}
	}
}

func (m *Monitor) persist(ctx context.Context) {
	m.mu.Lock()
	at := m.last
	m.mu.Unlock()
	if err := m.store.Touch(ctx, at); err != nil {
		// Fail open: a failed write must not cause a spurious logout.
		m.logger.Error("failed to persist activity timestamp", "error", err)
		return
	}
	m.mu.Lock()
	m.lastWrite = at
	m.mu.Unlock()
}
