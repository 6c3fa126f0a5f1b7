package realmmap

import (
	"context"
	"strings"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/backend"
)

// ConfigProvider parses its realm map once, from the inline text handed in
// at Open (e.g. a config file section loaded by the host process), and
// returns the same snapshot on every GetMap call. Unlike FileProvider there
// is nothing on disk to watch -- a changed config requires a process
// restart or an explicit Open with new content.
type ConfigProvider struct {
	backends *backend.Registry
	mappings []authtypes.RealmMapping
}

func NewConfigProvider(backends *backend.Registry) *ConfigProvider {
	return &ConfigProvider{backends: backends}
}

func (p *ConfigProvider) Open(engineDefaults backend.CommonArgs, configHandle string) error {
	lines := strings.Split(backend.ExpandEnv(configHandle), "\n")
	mappings, err := parseEntries(p.backends, lines)
	if err != nil {
		return err
	}
	p.mappings = mappings
	return nil
}

func (p *ConfigProvider) GetMap(ctx context.Context) ([]authtypes.RealmMapping, error) {
	return p.mappings, nil
}

func (p *ConfigProvider) Close() error {
	return nil
}
