package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envSnapshot clears GRAPHKEEP_-prefixed environment variables for the
// duration of a test and restores them afterward.
func envSnapshot(t *testing.T) {
	t.Helper()
	saved := make(map[string]string)
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, EnvPrefix+"_") {
			key := strings.SplitN(env, "=", 2)[0]
			saved[key] = os.Getenv(key)
			os.Unsetenv(key)
		}
	}
	t.Cleanup(func() {
		for key, val := range saved {
			os.Setenv(key, val)
		}
	})
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(prev) })
	return dir
}

func TestLoad_UsesDefaultsWithNoProjectFile(t *testing.T) {
	envSnapshot(t)
	chdirTemp(t)

	l, err := Load()
	require.NoError(t, err)
	cfg := l.Current()
	assert.Equal(t, "127.0.0.1", cfg.Backend.Host)
	assert.Equal(t, 3307, cfg.Backend.Port)
	assert.Equal(t, 300000, cfg.BrokerWaitTimeoutMs)
	assert.Equal(t, 256, cfg.EventBusMailboxBound)
	assert.Empty(t, cfg.NatsURL)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	envSnapshot(t)
	dir := chdirTemp(t)

	contents := []byte(`
[backend]
host = "10.0.0.5"
port = 3309

[broker]
waittimeoutms = 5000
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graphkeep.toml"), contents, 0o644))

	l, err := Load()
	require.NoError(t, err)
	cfg := l.Current()
	assert.Equal(t, "10.0.0.5", cfg.Backend.Host)
	assert.Equal(t, 3309, cfg.Backend.Port)
	assert.Equal(t, 5000, cfg.BrokerWaitTimeoutMs)
	// untouched by the project file, still default
	assert.Equal(t, 256, cfg.EventBusMailboxBound)
}

func TestLoad_EnvironmentOverridesProjectFile(t *testing.T) {
	envSnapshot(t)
	dir := chdirTemp(t)

	contents := []byte(`
[backend]
host = "10.0.0.5"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graphkeep.toml"), contents, 0o644))
	os.Setenv("GRAPHKEEP_BACKEND_HOST", "192.168.1.1")

	l, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", l.Current().Backend.Host)
}

func TestLoad_SearchesDotGraphkeepSubdirectory(t *testing.T) {
	envSnapshot(t)
	dir := chdirTemp(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".graphkeep"), 0o755))
	contents := []byte(`
[backend]
database = "nested"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".graphkeep", "graphkeep.toml"), contents, 0o644))

	l, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "nested", l.Current().Backend.Database)
}

func TestWatch_ReloadsBrokerAndLogSettingsButNotBackend(t *testing.T) {
	envSnapshot(t)
	dir := chdirTemp(t)
	path := filepath.Join(dir, "graphkeep.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[backend]
host = "original-host"

[broker]
waittimeoutms = 1000
`), 0o644))

	l, err := Load()
	require.NoError(t, err)
	require.Equal(t, "original-host", l.Current().Backend.Host)

	decoded, err := decodeProjectConfig(path)
	require.NoError(t, err)
	require.NoError(t, l.v.MergeConfigMap(decoded))

	// Simulate what Watch's fsnotify handler does on a write event, without
	// depending on filesystem event timing in the test.
	backendBefore := l.Current().Backend
	require.NoError(t, os.WriteFile(path, []byte(`
[backend]
host = "changed-host"

[broker]
waittimeoutms = 9000
`), 0o644))
	decoded, err = decodeProjectConfig(path)
	require.NoError(t, err)
	require.NoError(t, l.v.MergeConfigMap(decoded))
	l.reloadLocked()

	assert.Equal(t, 9000, l.Current().BrokerWaitTimeoutMs, "broker settings reload")
	assert.Equal(t, backendBefore, l.Current().Backend, "backend must not change without a restart")
}
