package backend

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

var (
	errAlreadyOpen = errors.New("backend: extension already open")
	errNotOpen     = errors.New("backend: extension not open")
)

// ConfigExtension authenticates against an inline "realm;account;password"
// record set carried directly in the realm mapping's query string, rather
// than a file on disk (spec §4.1). Unlike File, there is no reload-on-query
// option -- the record set is fixed for the lifetime of the open extension,
// since it arrived with the realm map entry itself.
type ConfigExtension struct {
	open atomic.Bool

	maxCacheTime CommonArgs
	store        *recordStore
}

func NewConfigExtension() *ConfigExtension {
	return &ConfigExtension{store: newRecordStore()}
}

func (e *ConfigExtension) Open(args map[string]string, query string) error {
	if e.open.Load() {
		return errAlreadyOpen
	}

	ca, err := ParseCommonArgs(args)
	if err != nil {
		return err
	}
	e.maxCacheTime = ca

	lines := strings.Split(ExpandEnv(query), "\n")
	if err := e.store.loadLines(lines); err != nil {
		return err
	}
	e.open.Store(true)
	return nil
}

func (e *ConfigExtension) Authenticate(ctx context.Context, realm, account, password string) (authtypes.AuthResult, error) {
	if !e.open.Load() {
		return authtypes.AuthResult{}, errNotOpen
	}
	result := e.store.check(realm, account, password)
	if result.Status == authtypes.StatusAuthenticated {
		result.MaxCacheTime = e.maxCacheTime.MaxCacheTime
	}
	return result, nil
}

func (e *ConfigExtension) Close() error {
	e.open.Store(false)
	return nil
}
