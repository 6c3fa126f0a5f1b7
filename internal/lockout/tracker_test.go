package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

func TestNew_FirstFailureDoesNotLockUnderThreshold(t *testing.T) {
	policy := Policy{LockoutCount: 3, LockoutThreshold: time.Minute, LockoutTime: 5 * time.Minute}
	s := New("corp", "alice", "badpass", authtypes.StatusAccessDenied, policy, time.Hour)

	assert.False(t, s.IsLocked)
	assert.Equal(t, 1, s.FailCount)
	assert.Equal(t, authtypes.StatusAccessDenied, s.Status)
	assert.True(t, s.HasPassword("badpass"))
	assert.Equal(t, time.Minute, s.TTL)
}

func TestNew_LockoutCountOneLocksImmediately(t *testing.T) {
	policy := Policy{LockoutCount: 1, LockoutThreshold: time.Minute, LockoutTime: 5 * time.Minute}
	s := New("corp", "alice", "badpass", authtypes.StatusAccessDenied, policy, time.Hour)

	assert.True(t, s.IsLocked)
	assert.Equal(t, authtypes.StatusAccountLocked, s.Status)
	assert.Equal(t, 5*time.Minute, s.TTL)
}

func TestRecordFailure_LocksOnReachingCount(t *testing.T) {
	policy := Policy{LockoutCount: 3, LockoutThreshold: time.Minute, LockoutTime: 5 * time.Minute}
	s := New("corp", "alice", "p1", authtypes.StatusAccessDenied, policy, time.Hour)

	justLocked := RecordFailure(s, "p2", authtypes.StatusAccessDenied, time.Hour)
	assert.False(t, justLocked)
	assert.Equal(t, 2, s.FailCount)
	assert.False(t, s.IsLocked)

	justLocked = RecordFailure(s, "p3", authtypes.StatusAccessDenied, time.Hour)
	require.True(t, justLocked)
	assert.True(t, s.IsLocked)
	assert.Equal(t, authtypes.StatusAccountLocked, s.Status)
	assert.Equal(t, 5*time.Minute, s.TTL)
}

func TestRecordFailure_NoOpWhenAlreadyLocked(t *testing.T) {
	policy := Policy{LockoutCount: 1, LockoutThreshold: time.Minute, LockoutTime: 5 * time.Minute}
	s := New("corp", "alice", "p1", authtypes.StatusAccessDenied, policy, time.Hour)
	require.True(t, s.IsLocked)

	justLocked := RecordFailure(s, "p2", authtypes.StatusAccessDenied, time.Hour)
	assert.False(t, justLocked)
	assert.Equal(t, 1, s.FailCount)
}

func TestLock_ForceLocksRegardlessOfHistory(t *testing.T) {
	s := &State{Realm: "corp", Account: "alice"}
	Lock(s, 10*time.Minute)

	assert.True(t, s.IsLocked)
	assert.Equal(t, authtypes.StatusAccountLocked, s.Status)
	assert.Equal(t, 10*time.Minute, s.TTL)
}

func TestNewLocked(t *testing.T) {
	policy := Policy{LockoutCount: 3, LockoutThreshold: time.Minute, LockoutTime: 5 * time.Minute}
	s := NewLocked("corp", "alice", policy, 10*time.Minute)

	assert.True(t, s.IsLocked)
	assert.Equal(t, 10*time.Minute, s.TTL)
	assert.Equal(t, "alice", s.Account)
}

func TestIncrementObserved_MirrorsWithoutPassword(t *testing.T) {
	policy := Policy{LockoutCount: 2, LockoutThreshold: time.Minute, LockoutTime: 5 * time.Minute}
	s := NewObserved("corp", "alice", policy, time.Hour)
	assert.False(t, s.IsLocked)
	assert.Equal(t, 1, s.FailCount)

	justLocked := IncrementObserved(s, time.Hour)
	assert.True(t, justLocked)
	assert.True(t, s.IsLocked)
	assert.Empty(t, s.BadPasswords)
}

func TestIncrementObserved_NoOpWhenLocked(t *testing.T) {
	s := &State{IsLocked: true, FailCount: 5}
	justLocked := IncrementObserved(s, time.Hour)
	assert.False(t, justLocked)
	assert.Equal(t, 5, s.FailCount)
}

func TestHasPassword(t *testing.T) {
	s := &State{}
	assert.False(t, s.HasPassword("x"))
	s.addPassword("x")
	assert.True(t, s.HasPassword("x"))
}
