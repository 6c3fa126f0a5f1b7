package realmmap

import (
	"context"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/backend"
)

// FileProvider reloads the realm map from a flat file on every GetMap call
// (spec §4.2), so an operator can hand-edit the file and rely on the
// engine's RealmMapLoadInterval tick to pick it up without a restart.
type FileProvider struct {
	backends *backend.Registry
	path     string
}

func NewFileProvider(backends *backend.Registry) *FileProvider {
	return &FileProvider{backends: backends}
}

func (p *FileProvider) Open(engineDefaults backend.CommonArgs, configHandle string) error {
	p.path = backend.ExpandEnv(configHandle)
	return nil
}

func (p *FileProvider) GetMap(ctx context.Context) ([]authtypes.RealmMapping, error) {
	lines, err := readLines(p.path)
	if err != nil {
		return nil, err
	}
	return parseEntries(p.backends, lines)
}

func (p *FileProvider) Close() error {
	return nil
}
