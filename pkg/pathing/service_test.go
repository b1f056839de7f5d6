package pathing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, ".telem_token"), ExpandHome("~/.telem_token"))
	assert.Equal(t, "/etc/telem", ExpandHome("/etc/telem"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}

func TestDataDirHonoursXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	assert.Equal(t, "/tmp/xdg-data/telem", GetDataDir())
	assert.Equal(t, "/tmp/xdg-data/telem/telem-history.db", GetHistoryDbPath())
}

func TestEnsureParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "file.db")
	require.NoError(t, EnsureParentDir(path, 0o700))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
