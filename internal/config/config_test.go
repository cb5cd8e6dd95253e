package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, created, err := Ensure(path)
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, cfg.Validate())

	// Second call loads the existing file.
	again, created, err := Ensure(path)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, cfg, again)
}

func TestLoadStripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	require.NoError(t, Save(path, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, raw...), 0644))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.P2P.ListenPort = 70000
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Identity.KeyFile = " "
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Call.SignalingTimeoutSec = 0
	require.Error(t, cfg.Validate())
}
