// Package security provides the Authentication Engine's audit log sink:
// every Authenticate outcome and lockout transition is a security-relevant
// event, structured and emitted through slog rather than the engine
// reaching for logger.Info/Warn/Error directly everywhere. Grounded on the
// teacher's pkg/history/security/audit_logger.go (AuditLogger wrapping a
// *slog.Logger, a SecurityEvent struct, severity-to-log-level mapping),
// adapted from HTTP request/response fields (IP, endpoint, status code) to
// the engine's realm/account/lockout domain.
package security

import (
	"log/slog"
	"time"
)

// Severity classifies a SecurityEvent for log-level mapping.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SecurityEvent is one audit log entry.
type SecurityEvent struct {
	Type     string
	Severity Severity
	Realm    string
	Account  string
	Status   string
	Message  string
	Details  map[string]interface{}
}

// AuditLogger emits SecurityEvents through a structured logger.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger builds an AuditLogger. A nil logger falls back to
// slog.Default().
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger.With("component", "audit")}
}

// LogSecurityEvent is the general entry point; the convenience methods
// below cover the Authentication Engine's specific event types.
func (a *AuditLogger) LogSecurityEvent(event SecurityEvent) {
	attrs := []interface{}{
		"event_type", event.Type,
		"severity", event.Severity,
	}
	if event.Realm != "" {
		attrs = append(attrs, "realm", event.Realm)
	}
	if event.Account != "" {
		attrs = append(attrs, "account", event.Account)
	}
	if event.Status != "" {
		attrs = append(attrs, "status", event.Status)
	}
	if event.Message != "" {
		attrs = append(attrs, "message", event.Message)
	}
	if event.Details != nil {
		attrs = append(attrs, "details", event.Details)
	}

	switch event.Severity {
	case SeverityCritical:
		a.logger.Error("security event", attrs...)
	case SeverityHigh:
		a.logger.Warn("security event", attrs...)
	default:
		a.logger.Info("security event", attrs...)
	}
}

// LogAuthSuccess records a successful authentication (spec §4.5
// LogAuthSuccess).
func (a *AuditLogger) LogAuthSuccess(realm, account string) {
	a.LogSecurityEvent(SecurityEvent{
		Type:     "authentication_success",
		Severity: SeverityLow,
		Realm:    realm,
		Account:  account,
	})
}

// LogAuthFailure records a rejected authentication attempt (spec §4.5
// LogAuthFailure), for any non-Authenticated status.
func (a *AuditLogger) LogAuthFailure(realm, account, status string) {
	a.LogSecurityEvent(SecurityEvent{
		Type:     "authentication_failure",
		Severity: SeverityMedium,
		Realm:    realm,
		Account:  account,
		Status:   status,
	})
}

// LogAccountLocked records a lockout transition (spec §4.4).
func (a *AuditLogger) LogAccountLocked(realm, account string, ttl time.Duration) {
	a.LogSecurityEvent(SecurityEvent{
		Type:     "account_locked",
		Severity: SeverityHigh,
		Realm:    realm,
		Account:  account,
		Details:  map[string]interface{}{"ttl": ttl.String()},
	})
}

// LogAccountUnlocked records the negative cache expiring a locked entry
// (spec §4.4, §9 "the lock-released event fires from the negative cache's
// eviction hook").
func (a *AuditLogger) LogAccountUnlocked(realm, account string) {
	a.LogSecurityEvent(SecurityEvent{
		Type:     "account_unlocked",
		Severity: SeverityLow,
		Realm:    realm,
		Account:  account,
	})
}

// LogBackendFailure records a backend extension error (spec §7
// BackendFailure), which is never cached and always worth an audit trail
// entry regardless of the LogAuthSuccess/LogAuthFailure toggles.
func (a *AuditLogger) LogBackendFailure(realm, account string, err error) {
	a.LogSecurityEvent(SecurityEvent{
		Type:     "backend_failure",
		Severity: SeverityCritical,
		Realm:    realm,
		Account:  account,
		Message:  err.Error(),
	})
}
