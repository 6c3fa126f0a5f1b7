package engine

import (
	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

// logAndCount is the fast-path logger for results returned without a
// backend call or a cache write (BadRealm, empty-password BadPassword, a
// positive-cache hit, a locked account) -- no events to dispatch, but the
// security log entry is still mandatory (spec §7
// "Security log entries are always emitted on both success and terminal
// failure of the request").
func (e *Engine) logAndCount(realm, account string, result authtypes.AuthResult, events []pendingEvent) {
	e.dispatchAndLog(realm, account, result, events)
}

// dispatchAndLog fires buffered events and emits the security log entry,
// both outside the engine lock (spec §5).
func (e *Engine) dispatchAndLog(realm, account string, result authtypes.AuthResult, events []pendingEvent) {
	if len(events) > 0 {
		e.subs.dispatch(events)
	}

	if result.Status == authtypes.StatusAuthenticated {
		if e.settings.LogAuthSuccess {
			e.audit.LogAuthSuccess(realm, account)
		}
		return
	}
	if e.settings.LogAuthFailure {
		e.audit.LogAuthFailure(realm, account, result.Status.String())
	}
}

func (e *Engine) logBackendFailure(realm, account string, err error) {
	e.audit.LogBackendFailure(realm, account, err)
}
