package backend

import (
	"fmt"
	"sync"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

// Constructor builds an unopened Extension instance for one realm mapping
// entry. Extensions are stateful per-mapping (each holds its own file
// handle / connection pool / socket), so the registry hands back a fresh
// instance per call rather than a singleton.
type Constructor func() authtypes.Extension

// Registry resolves an extensionTypeRef string (as found in a realm map
// entry) to a Constructor, the way the teacher's notification channel
// registry resolves a channel type name to a sender constructor.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry builds a Registry pre-populated with the six built-in
// variants (spec §4.1).
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register("File", func() authtypes.Extension { return Track(NewFileExtension()) })
	r.Register("Config", func() authtypes.Extension { return Track(NewConfigExtension()) })
	r.Register("LDAP", func() authtypes.Extension { return Track(NewLDAPExtension()) })
	r.Register("RADIUS", func() authtypes.Extension { return Track(NewRADIUSExtension()) })
	r.Register("ODBC", func() authtypes.Extension { return Track(NewODBCExtension()) })
	return r
}

// Register installs or replaces the constructor for typeRef, letting
// deployments plug in a custom extension (spec §4.1 "custom" variant)
// without modifying this package.
func (r *Registry) Register(typeRef string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[typeRef] = ctor
}

// New builds a fresh, unopened Extension for typeRef.
func (r *Registry) New(typeRef string) (authtypes.Extension, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[typeRef]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("backend: unknown extension type %q", typeRef)
	}
	return ctor(), nil
}
