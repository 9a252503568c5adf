package marker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_Declared(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)

	assert.False(t, d.Declared("widgets"))

	require.NoError(t, d.Declare("widgets"))
	assert.True(t, d.Declared("widgets"))
	assert.False(t, d.Declared("gadgets"))

	require.NoError(t, os.Remove(filepath.Join(root, "widgets"+Suffix)))
	assert.False(t, d.Declared("widgets"), "presence is checked per call")
}

func TestDir_RejectsPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "x"+Suffix), nil, 0o644))
	d := NewDir(root)

	assert.False(t, d.Declared("sub/x"))
	assert.False(t, d.Declared(`sub\x`))
	assert.False(t, d.Declared(""))
	assert.False(t, d.Declared(".."))
}

func TestDir_DirectoryIsNotAMarker(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "odd"+Suffix), 0o755))

	assert.False(t, NewDir(root).Declared("odd"))
}

func TestDir_List(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)
	require.NoError(t, d.Declare("widgets"))
	require.NoError(t, d.Declare("apples"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))

	names, err := d.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"apples", "widgets"}, names)
}

func TestDir_ListMissingRoot(t *testing.T) {
	d := NewDir(filepath.Join(t.TempDir(), "nope"))

	names, err := d.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSet(t *testing.T) {
	s := Set{"widgets": true}
	assert.True(t, s.Declared("widgets"))
	assert.False(t, s.Declared("ghost"))
}
