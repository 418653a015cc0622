package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VELVET_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	// A pointed-to but missing config file is an error; point at nothing
	// instead to exercise pure defaults.
	require.Error(t, err)

	t.Setenv("VELVET_CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/licenses.json", cfg.Paths.LicenseFile)
	assert.Equal(t, "web/assets/pro-theme.css", cfg.Paths.AssetFile)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.False(t, cfg.AdminEnabled(), "admin stays locked without a password")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VELVET_CONFIG_FILE", "")
	t.Setenv("VELVET_SERVER_PORT", "9090")
	t.Setenv("VELVET_PATHS_LICENSE_FILE", "/var/lib/velvet/licenses.json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/velvet/licenses.json", cfg.Paths.LicenseFile)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  port: 9191\nadmin:\n  password: hunter22\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("VELVET_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)

	// The plaintext password is hashed at load and discarded.
	assert.Empty(t, cfg.Admin.Password)
	assert.True(t, cfg.AdminEnabled())
	assert.True(t, cfg.CheckAdminPassword("hunter22"))
	assert.False(t, cfg.CheckAdminPassword("wrong"))
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	assert.Error(t, cfg.validate())

	cfg = Default()
	cfg.Paths.AssetFile = ""
	assert.Error(t, cfg.validate())

	cfg = Default()
	cfg.Admin.SessionTTL = 0
	assert.Error(t, cfg.validate())

	assert.NoError(t, Default().validate())
}
