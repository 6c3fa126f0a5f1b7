package engine

import (
	"context"
	"time"
)

// backgroundLoop runs at bkTaskInterval until Stop closes stopCh (spec
// §4.5 "Background task"). Under the lock it only checks and advances the
// next-flush/next-map-load deadlines; the actual flush and reload calls
// happen outside the lock, since loadRealmMap takes its own short lock
// internally and a provider fetch can block on I/O.
func (e *Engine) backgroundLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.settings.BkTaskInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case now := <-ticker.C:
			e.runBackgroundTick(now)
		}
	}
}

func (e *Engine) runBackgroundTick(now time.Time) {
	e.mu.Lock()
	doFlush := !now.Before(e.nextFlush)
	if doFlush {
		e.nextFlush = now.Add(e.settings.CacheFlushInterval)
	}
	doMapLoad := !now.Before(e.nextMapLoad)
	if doMapLoad {
		e.nextMapLoad = now.Add(e.settings.RealmMapLoadInterval)
	}
	e.mu.Unlock()

	if doFlush {
		if e.positiveCache != nil {
			e.positiveCache.Flush()
		}
		if e.negativeCache != nil {
			e.negativeCache.Flush()
		}
	}
	if doMapLoad {
		ctx, cancel := context.WithTimeout(context.Background(), e.settings.RealmMapLoadInterval)
		_ = e.reloadRealmMapLocked(ctx)
		cancel()
	}
}
