package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuditLogger(t *testing.T) (*AuditLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewAuditLogger(logger), &buf
}

func decodeLastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestLogAuthSuccess_LowSeverityLogsAtInfo(t *testing.T) {
	a, buf := newTestAuditLogger(t)
	a.LogAuthSuccess("corp", "alice")

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "authentication_success", entry["event_type"])
	assert.Equal(t, "corp", entry["realm"])
	assert.Equal(t, "alice", entry["account"])
}

func TestLogAuthFailure_MediumSeverityLogsAtInfo(t *testing.T) {
	a, buf := newTestAuditLogger(t)
	a.LogAuthFailure("corp", "alice", "BadPassword")

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "authentication_failure", entry["event_type"])
	assert.Equal(t, "BadPassword", entry["status"])
}

func TestLogAccountLocked_HighSeverityLogsAtWarn(t *testing.T) {
	a, buf := newTestAuditLogger(t)
	a.LogAccountLocked("corp", "alice", 0)

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "account_locked", entry["event_type"])
}

func TestLogAccountUnlocked_LowSeverityLogsAtInfo(t *testing.T) {
	a, buf := newTestAuditLogger(t)
	a.LogAccountUnlocked("corp", "alice")

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "account_unlocked", entry["event_type"])
}

func TestLogBackendFailure_CriticalSeverityLogsAtError(t *testing.T) {
	a, buf := newTestAuditLogger(t)
	a.LogBackendFailure("corp", "alice", errors.New("dial tcp: timeout"))

	entry := decodeLastLine(t, buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "backend_failure", entry["event_type"])
	assert.Equal(t, "dial tcp: timeout", entry["message"])
}

func TestLogSecurityEvent_OmitsEmptyOptionalFields(t *testing.T) {
	a, buf := newTestAuditLogger(t)
	a.LogSecurityEvent(SecurityEvent{Type: "custom", Severity: SeverityLow})

	entry := decodeLastLine(t, buf)
	_, hasRealm := entry["realm"]
	_, hasAccount := entry["account"]
	_, hasStatus := entry["status"]
	assert.False(t, hasRealm)
	assert.False(t, hasAccount)
	assert.False(t, hasStatus)
}

func TestNewAuditLogger_NilLoggerFallsBackToDefault(t *testing.T) {
	a := NewAuditLogger(nil)
	require.NotNil(t, a)
	assert.NotPanics(t, func() { a.LogAuthSuccess("corp", "alice") })
}
