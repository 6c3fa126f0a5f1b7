// Package realmmap implements the Realm Map Provider variants (spec
// component C2): File, Config, ODBC and a pluggable custom slot, each
// producing a snapshot of RealmMapping records that the engine hot-swaps
// in atomically. Grounded on the teacher's config hot-reload pattern
// (internal/config: parse a fresh struct, validate, swap a pointer under a
// lock) generalized from "one config struct" to "a provider-sourced list of
// mappings."
package realmmap

import (
	"context"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/backend"
)

// Provider is the realm map source capability set (spec §4.2):
// {open, getMap, close}.
type Provider interface {
	Open(engineDefaults backend.CommonArgs, configHandle string) error
	GetMap(ctx context.Context) ([]authtypes.RealmMapping, error)
	Close() error
}

// Constructor builds an unopened Provider.
type Constructor func(registry *backend.Registry) Provider

// Registry resolves a providerTypeRef string to a Constructor, mirroring
// internal/backend.Registry.
type Registry struct {
	backends     *backend.Registry
	constructors map[string]Constructor
}

func NewRegistry(backends *backend.Registry) *Registry {
	r := &Registry{backends: backends, constructors: make(map[string]Constructor)}
	r.Register("File", func(b *backend.Registry) Provider { return NewFileProvider(b) })
	r.Register("Config", func(b *backend.Registry) Provider { return NewConfigProvider(b) })
	r.Register("ODBC", func(b *backend.Registry) Provider { return NewODBCProvider(b) })
	return r
}

func (r *Registry) Register(typeRef string, ctor Constructor) {
	r.constructors[typeRef] = ctor
}

func (r *Registry) New(typeRef string) (Provider, bool) {
	ctor, ok := r.constructors[typeRef]
	if !ok {
		return nil, false
	}
	return ctor(r.backends), true
}
