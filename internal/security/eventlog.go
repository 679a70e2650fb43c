package security

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ridelink/identity/internal/models"
	pkglogger "github.com/ridelink/identity/pkg/logger"
)

// Event types for the security log
const (
	EventLoginSuccess       = "login_success"
	EventLoginFailure       = "login_failure"
	EventRegisterSuccess    = "registration_success"
	EventRegisterFailure    = "registration_failure"
	EventLogout             = "logout"
	EventUnauthorizedAccess = "unauthorized_access"
	EventBruteForceDetected = "brute_force_detected"
	EventRateLimitExceeded  = "rate_limit_exceeded"
)

// Severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// DefaultCapacity bounds the retained event buffer.
const DefaultCapacity = 500

// Event is a single immutable security event. The identifier is masked
// before the event is constructed; the unmasked value is never stored.
type Event struct {
	ID               string
	Type             string
	Severity         string
	Timestamp        time.Time
	MaskedIdentifier string
	Details          string
}

// Statistics aggregates the retained buffer for monitoring consumers.
type Statistics struct {
	Total       int
	ByType      map[string]int
	BySeverity  map[string]int
	FailureRate float64 // failed auth/registration attempts over all attempts in the buffer
}

// EventLog is an append-only bounded buffer of security events with a
// dual-write to slog. Eviction is FIFO once the capacity is reached.
// Pattern detection here is advisory only; blocking is the rate limiter's job.
type EventLog struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*EventLog)

// WithCapacity overrides the retained buffer size.
func WithCapacity(n int) Option {
	return func(l *EventLog) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *EventLog) {
		l.now = now
	}
}

// NewEventLog creates an EventLog with the default capacity.
func NewEventLog(logger *slog.Logger, opts ...Option) *EventLog {
	l := &EventLog{
		events:   make([]Event, 0, DefaultCapacity),
		capacity: DefaultCapacity,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log appends a fully-formed event, evicting the oldest entry once the
// buffer is full, and mirrors it to slog at a level matching its severity.
func (l *EventLog) Log(event Event) {
	l.mu.Lock()
	if len(l.events) >= l.capacity {
		l.events = l.events[1:]
	}
	l.events = append(l.events, event)
	l.mu.Unlock()

	attrs := []any{
		slog.String("event_type", event.Type),
		slog.String("severity", event.Severity),
		slog.String("identifier", event.MaskedIdentifier),
		slog.String("details", event.Details),
	}
	switch event.Severity {
	case SeverityCritical:
		l.logger.Error("security event", attrs...)
	case SeverityWarning:
		l.logger.Warn("security event", attrs...)
	default:
		l.logger.Info("security event", attrs...)
	}
}

func (l *EventLog) newEvent(eventType, severity, identifier, details string) Event {
	return Event{
		ID:               uuid.New().String(),
		Type:             eventType,
		Severity:         severity,
		Timestamp:        l.now(),
		MaskedIdentifier: pkglogger.MaskIdentifier(identifier),
		Details:          details,
	}
}

// LogAuthAttempt records the outcome of a login attempt.
func (l *EventLog) LogAuthAttempt(identifier string, success bool, errorMessage, accountID string) {
	eventType := EventLoginSuccess
	severity := SeverityInfo
	details := "login succeeded"
	if !success {
		eventType = EventLoginFailure
		severity = SeverityWarning
		details = "login failed"
	}
	if errorMessage != "" {
		details = fmt.Sprintf("%s: %s", details, errorMessage)
	}
	if accountID != "" {
		details = fmt.Sprintf("%s (account %s)", details, accountID)
	}
	l.Log(l.newEvent(eventType, severity, identifier, details))
}

// LogRegistrationAttempt records the outcome of a registration attempt.
func (l *EventLog) LogRegistrationAttempt(identifier string, role models.Role, success bool, errorMessage, accountID string) {
	eventType := EventRegisterSuccess
	severity := SeverityInfo
	details := fmt.Sprintf("registration succeeded for role %s", role)
	if !success {
		eventType = EventRegisterFailure
		severity = SeverityWarning
		details = fmt.Sprintf("registration failed for role %s", role)
	}
	if errorMessage != "" {
		details = fmt.Sprintf("%s: %s", details, errorMessage)
	}
	if accountID != "" {
		details = fmt.Sprintf("%s (account %s)", details, accountID)
	}
	l.Log(l.newEvent(eventType, severity, identifier, details))
}

// LogBruteForceAttempt records a detected consecutive-failure pattern.
// Emitted by the resolver once its threshold is reached; never blocks.
func (l *EventLog) LogBruteForceAttempt(identifier string, attemptCount int) {
	details := fmt.Sprintf("%d consecutive failed attempts", attemptCount)
	l.Log(l.newEvent(EventBruteForceDetected, SeverityCritical, identifier, details))
}

// LogRateLimitExceeded records a denied attempt.
func (l *EventLog) LogRateLimitExceeded(action, identifier string, resetTime time.Time) {
	details := fmt.Sprintf("%s attempts exhausted, window resets at %s", action, resetTime.Format(time.RFC3339))
	l.Log(l.newEvent(EventRateLimitExceeded, SeverityWarning, identifier, details))
}

// LogLogout records a session being cleared.
func (l *EventLog) LogLogout(identifier string) {
	l.Log(l.newEvent(EventLogout, SeverityInfo, identifier, "session cleared"))
}

// LogUnauthorizedAccess records a rejected access to a protected surface.
func (l *EventLog) LogUnauthorizedAccess(identifier, details string) {
	l.Log(l.newEvent(EventUnauthorizedAccess, SeverityWarning, identifier, details))
}

// RecentEvents returns up to limit events, newest first.
func (l *EventLog) RecentEvents(limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.events) {
		limit = len(l.events)
	}
	out := make([]Event, 0, limit)
	for i := len(l.events) - 1; i >= len(l.events)-limit; i-- {
		out = append(out, l.events[i])
	}
	return out
}

// ClearEvents empties the buffer. Test isolation only.
func (l *EventLog) ClearEvents() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = l.events[:0]
}

// ConsecutiveFailures counts the trailing run of failed login attempts for
// an identifier within the window, stopping at the first success. The
// resolver uses this to decide when to emit a brute-force event.
func (l *EventLog) ConsecutiveFailures(identifier string, window time.Duration) int {
	masked := pkglogger.MaskIdentifier(identifier)
	cutoff := l.now().Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if e.MaskedIdentifier != masked {
			continue
		}
		switch e.Type {
		case EventLoginFailure:
			if e.Timestamp.Before(cutoff) {
				return count
			}
			count++
		case EventLoginSuccess:
			return count
		}
	}
	return count
}

// Statistics computes counts by type and severity plus the failure rate
// over the retained attempt events.
func (l *EventLog) Statistics() Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Statistics{
		Total:      len(l.events),
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
	}

	attempts := 0
	failures := 0
	for _, e := range l.events {
		stats.ByType[e.Type]++
		stats.BySeverity[e.Severity]++
		switch e.Type {
		case EventLoginSuccess, EventRegisterSuccess:
			attempts++
		case EventLoginFailure, EventRegisterFailure:
			attempts++
			failures++
		}
	}
	if attempts > 0 {
		stats.FailureRate = float64(failures) / float64(attempts)
	}
	return stats
}
