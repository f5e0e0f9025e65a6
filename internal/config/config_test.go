package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromPartialKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("load_policy: eager\nbackup:\n  keep_last: 3\n"), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "eager", cfg.LoadPolicy)
	assert.Equal(t, 3, cfg.Backup.KeepLast)
	assert.Equal(t, "zstd", cfg.Backup.Compression)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, 4, cfg.LoadConcurrency)
}

func TestLoadFromInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "load_policy: [\n"},
		{"bad policy", "load_policy: lazy\n"},
		{"bad compression", "backup:\n  compression: xz\n"},
		{"negative cache", "cache_max_bytes: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := LoadFrom(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.RulesFile = "/etc/lump/rules.yaml"
	cfg.Backup.Compression = "lz4"
	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestPathHonorsEnv(t *testing.T) {
	want := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvPath, want)
	assert.Equal(t, want, Path())
}

func TestExpandPath(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/cache", filepath.Join(home, "cache")},
		{"/abs/path", "/abs/path"},
		{"~user/x", "~user/x"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandPath(tt.in), tt.in)
	}
}
