package rbac

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionsForRole_Builtin(t *testing.T) {
	t.Parallel()

	p, err := Load("")
	require.NoError(t, err)

	got, err := p.PermissionsForRole("foo")
	require.NoError(t, err)
	assert.Equal(t, []string{`killer\.undead\..*`}, got)

	got, err = p.PermissionsForRole("admin")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{`killer\.undead\..*`, `curator\..*`}, got)

	got, err = p.PermissionsForRole("nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	p, err := Load("")
	require.NoError(t, err)

	ok, err := p.Allowed("admin", "curator.printers")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.Allowed("hurdy", "curator.printers")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("p, ops, deploy\\..*\n"), 0o644))
	p, err := Load(good)
	require.NoError(t, err)
	got, err := p.PermissionsForRole("ops")
	require.NoError(t, err)
	assert.Equal(t, []string{`deploy\..*`}, got)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("x, ops, deploy\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "line 1")
}
