package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearClientEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ECM_API_URL", "ECM_SESSION_BACKEND", "ECM_SESSION_PATH", "ECM_LOG_LEVEL", "ECM_CONFIRM_AFTER_SAVE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadClient_MissingFileUsesDefaults(t *testing.T) {
	clearClientEnv(t)
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3002", cfg.APIURL)
	assert.Equal(t, BackendFile, cfg.SessionBackend)
	assert.False(t, cfg.ConfirmAfterSave)
}

func TestLoadClient_FileThenEnv(t *testing.T) {
	clearClientEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	saved := DefaultClient()
	saved.APIURL = "http://cases.internal:9000/"
	saved.SessionBackend = BackendSQLite
	require.NoError(t, saved.Save(path))

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://cases.internal:9000", cfg.APIURL)
	assert.Equal(t, BackendSQLite, cfg.SessionBackend)

	t.Setenv("ECM_API_URL", "http://override:1")
	t.Setenv("ECM_CONFIRM_AFTER_SAVE", "true")
	cfg, err = LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override:1", cfg.APIURL)
	assert.True(t, cfg.ConfirmAfterSave)
}

func TestLoadClient_RejectsUnknownBackend(t *testing.T) {
	clearClientEnv(t)
	t.Setenv("ECM_SESSION_BACKEND", "cookie-jar")
	_, err := LoadClient(filepath.Join(t.TempDir(), "c.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cookie-jar")
}

func TestLoadClient_BadYAML(t *testing.T) {
	clearClientEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: [unterminated"), 0o600))
	_, err := LoadClient(path)
	require.Error(t, err)
}

func TestLoadServer_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "DATABASE_URL", "JWT_SECRET", "TOKEN_TTL", "LOG_LEVEL", "DEV_LOGGING"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, ":3002", cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestLoadServer_BadDuration(t *testing.T) {
	t.Setenv("TOKEN_TTL", "forever")
	_, err := LoadServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
