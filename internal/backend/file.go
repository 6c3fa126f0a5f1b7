package backend

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

// FileExtension authenticates against a flat "realm;account;password" file
// on disk (spec §4.1, "File / Config"). Grounded on the teacher's
// l1_cache.go style of a mutex-guarded map rebuilt wholesale on refresh,
// rather than mutated entry by entry.
type FileExtension struct {
	mu   sync.Mutex
	open atomic.Bool

	path          string
	reloadOnQuery bool
	maxCacheTime  CommonArgs

	store *recordStore
}

func NewFileExtension() *FileExtension {
	return &FileExtension{store: newRecordStore()}
}

func (e *FileExtension) Open(args map[string]string, query string) error {
	if e.open.Load() {
		return errAlreadyOpen
	}

	ca, err := ParseCommonArgs(args)
	if err != nil {
		return err
	}
	e.maxCacheTime = ca
	e.path = ExpandEnv(args["Path"])
	e.reloadOnQuery = ArgBool(args, "ReloadOnQuery", false)

	if err := e.store.loadFile(e.path); err != nil {
		return err
	}
	e.open.Store(true)
	return nil
}

func (e *FileExtension) Authenticate(ctx context.Context, realm, account, password string) (authtypes.AuthResult, error) {
	if !e.open.Load() {
		return authtypes.AuthResult{}, errNotOpen
	}

	if e.reloadOnQuery {
		e.mu.Lock()
		err := e.store.loadFile(e.path)
		e.mu.Unlock()
		if err != nil {
			return authtypes.AuthResult{}, err
		}
	}

	result := e.store.check(realm, account, password)
	if result.Status == authtypes.StatusAuthenticated {
		result.MaxCacheTime = e.maxCacheTime.MaxCacheTime
	}
	return result, nil
}

func (e *FileExtension) Close() error {
	e.open.Store(false)
	return nil
}
