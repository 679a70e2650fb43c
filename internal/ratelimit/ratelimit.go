package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// Config holds the attempt budget for one action.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultConfig is applied to any action without a named override.
var DefaultConfig = Config{MaxRequests: 5, Window: 15 * time.Minute}

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// Entry is a snapshot of one live counter, as returned by ActiveLimits.
type Entry struct {
	Count     int
	ResetTime time.Time
}

type entry struct {
	count     int
	resetTime time.Time
}

// Limiter tracks per-(action, identifier) attempt counts inside sliding
// time windows. Expiry is lazy: an entry whose window has passed behaves
// as if it does not exist, no background sweep is needed for correctness.
// Cleanup only bounds memory.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	configs map[string]Config
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Limiter)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithActionConfig installs a named per-action budget at construction.
func WithActionConfig(action string, cfg Config) Option {
	return func(l *Limiter) {
		l.configs[action] = cfg
	}
}

// New creates a Limiter with the built-in action budgets. Overrides can be
// layered on via options or SetConfig.
func New(logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		configs: map[string]Config{
			"login":          {MaxRequests: 5, Window: 15 * time.Minute},
			"login_role":     {MaxRequests: 5, Window: 15 * time.Minute},
			"register":       {MaxRequests: 3, Window: time.Hour},
			"password_reset": {MaxRequests: 3, Window: time.Hour},
		},
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func key(action, identifier string) string {
	return action + ":" + identifier
}

// resolveConfig applies the precedence: explicit override > named action
// config > compiled default. Callers must hold l.mu or not need it.
func (l *Limiter) resolveConfig(action string, override *Config) Config {
	if override != nil {
		return *override
	}
	if cfg, ok := l.configs[action]; ok {
		return cfg
	}
	return DefaultConfig
}

// IsAllowed performs an atomic check-and-increment for the (action,
// identifier) key. An allowed call always consumes one attempt; there is
// no non-counting probe. A denied call returns the existing reset time
// without extending it.
func (l *Limiter) IsAllowed(action, identifier string, override *Config) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := l.resolveConfig(action, override)
	now := l.now()
	k := key(action, identifier)

	e, ok := l.entries[k]
	if !ok || !e.resetTime.After(now) {
		e = &entry{count: 1, resetTime: now.Add(cfg.Window)}
		l.entries[k] = e
		return Decision{Allowed: true, Remaining: cfg.MaxRequests - 1, ResetTime: e.resetTime}
	}

	if e.count >= cfg.MaxRequests {
		l.logger.Warn("rate limit exceeded",
			slog.String("action", action),
			slog.Int("count", e.count),
			slog.Time("reset_time", e.resetTime))
		return Decision{Allowed: false, Remaining: 0, ResetTime: e.resetTime}
	}

	e.count++
	return Decision{Allowed: true, Remaining: cfg.MaxRequests - e.count, ResetTime: e.resetTime}
}

// Record increments the counter without returning a decision, for callers
// that pre-checked on a separate code path. Creation and lazy-expiry rules
// match IsAllowed.
func (l *Limiter) Record(action, identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := l.resolveConfig(action, nil)
	now := l.now()
	k := key(action, identifier)

	e, ok := l.entries[k]
	if !ok || !e.resetTime.After(now) {
		l.entries[k] = &entry{count: 1, resetTime: now.Add(cfg.Window)}
		return
	}
	e.count++
}

// GetRemaining returns how many attempts are left in the current window.
// A missing or expired entry leaves the full budget.
func (l *Limiter) GetRemaining(action, identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := l.resolveConfig(action, nil)
	e, ok := l.entries[key(action, identifier)]
	if !ok || !e.resetTime.After(l.now()) {
		return cfg.MaxRequests
	}
	remaining := cfg.MaxRequests - e.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetResetTime returns the current window's reset time, or the zero time
// if no live entry exists.
func (l *Limiter) GetResetTime(action, identifier string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key(action, identifier)]
	if !ok || !e.resetTime.After(l.now()) {
		return time.Time{}
	}
	return e.resetTime
}

// Reset drops the counter for one (action, identifier) key.
func (l *Limiter) Reset(action, identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key(action, identifier))
}

// ResetAll drops every counter. Test isolation only, never called from
// production paths.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*entry)
}

// SetConfig installs or replaces the named budget for an action. A live
// window keeps its original reset time; the new max applies immediately.
func (l *Limiter) SetConfig(action string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configs[action] = cfg
}

// GetConfig returns the effective config for an action.
func (l *Limiter) GetConfig(action string) Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolveConfig(action, nil)
}

// Cleanup purges expired entries and reports how many were removed.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cleanupLocked()
}

func (l *Limiter) cleanupLocked() int {
	now := l.now()
	removed := 0
	for k, e := range l.entries {
		if !e.resetTime.After(now) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

// ActiveLimits purges expired entries and returns a snapshot of the live
// counters keyed by "action:identifier".
func (l *Limiter) ActiveLimits() map[string]Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanupLocked()
	snapshot := make(map[string]Entry, len(l.entries))
	for k, e := range l.entries {
		snapshot[k] = Entry{Count: e.count, ResetTime: e.resetTime}
	}
	return snapshot
}
