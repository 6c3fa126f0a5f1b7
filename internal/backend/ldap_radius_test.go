package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
)

func TestLDAPExtension_OpenRequiresServers(t *testing.T) {
	ext := NewLDAPExtension()
	err := ext.Open(map[string]string{}, "")
	assert.Error(t, err)
}

func TestLDAPExtension_BindNameFormats(t *testing.T) {
	ext := NewLDAPExtension()
	require.NoError(t, ext.Open(map[string]string{"Servers": "ldap.example.com:389", "BindFormat": "Slash"}, ""))
	assert.Equal(t, `corp\alice`, ext.bindName("corp", "alice"))

	ext2 := NewLDAPExtension()
	require.NoError(t, ext2.Open(map[string]string{"Servers": "ldap.example.com:389"}, ""))
	assert.Equal(t, "alice@corp", ext2.bindName("corp", "alice"))
}

func TestLDAPExtension_EmptyPasswordRejectedDefensively(t *testing.T) {
	ext := NewLDAPExtension()
	require.NoError(t, ext.Open(map[string]string{"Servers": "ldap.example.com:389"}, ""))

	result, err := ext.Authenticate(context.Background(), "corp", "alice", "")
	require.NoError(t, err)
	assert.NotEqual(t, authtypes.StatusAuthenticated, result.Status)
}

func TestLDAPExtension_NotOpenReturnsError(t *testing.T) {
	ext := NewLDAPExtension()
	_, err := ext.Authenticate(context.Background(), "corp", "alice", "p")
	assert.ErrorIs(t, err, errNotOpen)
}

func TestRADIUSExtension_OpenRequiresServerAndSecret(t *testing.T) {
	ext := NewRADIUSExtension()
	assert.Error(t, ext.Open(map[string]string{}, ""))

	ext2 := NewRADIUSExtension()
	assert.Error(t, ext2.Open(map[string]string{"Server": "radius.example.com"}, ""))
}

func TestRADIUSExtension_OpenDefaultsPort(t *testing.T) {
	ext := NewRADIUSExtension()
	require.NoError(t, ext.Open(map[string]string{"Server": "radius.example.com", "Secret": "s3cret"}, ""))
	assert.Equal(t, "radius.example.com:1812", ext.server)
}

func TestRADIUSExtension_NotOpenReturnsError(t *testing.T) {
	ext := NewRADIUSExtension()
	_, err := ext.Authenticate(context.Background(), "corp", "alice", "p")
	assert.ErrorIs(t, err, errNotOpen)
}
