package realmmap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nforgeio/lilltek-auth/internal/backend"
)

func TestConfigProvider_OpenFailsWhenAnExtensionCannotOpen(t *testing.T) {
	backends := backend.NewRegistry()
	p := NewConfigProvider(backends)

	handle := "corp$$File$$Path=/nonexistent;MaxCacheTime=1m$$\n" +
		"// a comment\n" +
		"partner$$Config$$$$partner;alice;s3cret"
	// corp references a missing file, so Open on that line must fail.
	err := p.Open(backend.CommonArgs{}, handle)
	assert.Error(t, err)
}

func TestConfigProvider_DuplicateRealmRejected(t *testing.T) {
	backends := backend.NewRegistry()
	p := NewConfigProvider(backends)

	handle := "corp$$Config$$$$corp;alice;s3cret\n" +
		"CORP$$Config$$$$corp;bob;hunter2"
	err := p.Open(backend.CommonArgs{}, handle)
	assert.Error(t, err)
}

func TestConfigProvider_GetMapReturnsParsedSnapshot(t *testing.T) {
	backends := backend.NewRegistry()
	p := NewConfigProvider(backends)

	handle := "partner$$Config$$$$partner;alice;s3cret"
	require.NoError(t, p.Open(backend.CommonArgs{}, handle))
	defer p.Close()

	mappings, err := p.GetMap(context.Background())
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "partner", mappings[0].Realm)
	assert.Equal(t, "Config", mappings[0].ExtensionType)
	assert.NotNil(t, mappings[0].Extension)
}

func TestFileProvider_ReloadsFromDiskOnEveryGetMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realmmap.db")
	require.NoError(t, os.WriteFile(path, []byte("corp$$Config$$$$corp;alice;s3cret"), 0o600))

	backends := backend.NewRegistry()
	p := NewFileProvider(backends)
	require.NoError(t, p.Open(backend.CommonArgs{}, path))
	defer p.Close()

	mappings, err := p.GetMap(context.Background())
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "corp", mappings[0].Realm)

	require.NoError(t, os.WriteFile(path, []byte(
		"corp$$Config$$$$corp;alice;s3cret\npartner$$Config$$$$partner;bob;hunter2"), 0o600))

	mappings, err = p.GetMap(context.Background())
	require.NoError(t, err)
	assert.Len(t, mappings, 2)
}

func TestParseArgs_LockoutOverridesApplied(t *testing.T) {
	backends := backend.NewRegistry()
	p := NewConfigProvider(backends)

	handle := "corp$$Config$$LockoutCount=3;LockoutThreshold=1m;LockoutTime=5m$$corp;alice;s3cret"
	require.NoError(t, p.Open(backend.CommonArgs{}, handle))

	mappings, err := p.GetMap(context.Background())
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, 3, mappings[0].LockoutCount)
}

func TestParseEntries_MalformedLineRejected(t *testing.T) {
	backends := backend.NewRegistry()
	p := NewConfigProvider(backends)

	err := p.Open(backend.CommonArgs{}, "not-enough-fields")
	assert.Error(t, err)
}

func TestParseEntries_UnknownExtensionTypeRejected(t *testing.T) {
	backends := backend.NewRegistry()
	p := NewConfigProvider(backends)

	err := p.Open(backend.CommonArgs{}, "corp$$NoSuchBackend$$$$")
	assert.Error(t, err)
}
