package backend

import (
	"context"
	"sync"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

// tracked wraps an Extension so that Close waits for in-flight
// Authenticate calls to return before releasing the underlying resource
// (spec §4.1: "close: must wait for in-flight authenticate calls to
// return before releasing shared resources"). Every constructor in this
// package returns an extension wrapped this way so that requirement holds
// uniformly across variants, instead of being reimplemented per backend.
type tracked struct {
	inner authtypes.Extension
	wg    sync.WaitGroup
}

// Track wraps ext so its Close() waits out in-flight Authenticate calls.
func Track(ext authtypes.Extension) authtypes.Extension {
	return &tracked{inner: ext}
}

func (t *tracked) Open(args map[string]string, query string) error {
	return t.inner.Open(args, query)
}

func (t *tracked) Authenticate(ctx context.Context, realm, account, password string) (authtypes.AuthResult, error) {
	t.wg.Add(1)
	defer t.wg.Done()
	return t.inner.Authenticate(ctx, realm, account, password)
}

func (t *tracked) Close() error {
	t.wg.Wait()
	return t.inner.Close()
}
