package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssbking/personal-digital-authority/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `
allowed_base_directories:
  - /home/user/documents
keys:
  hmac_key_env_var: PDA_HMAC_KEY
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.TaskIDSchemeSHA256Hex, cfg.TaskIDScheme)
	assert.Equal(t, config.LeaseSchemeHMAC, cfg.LeaseScheme)
	assert.Equal(t, 60.0, cfg.LeaseDuration.Duration().Seconds())
	assert.Equal(t, 0.5, cfg.Trust.MinimumRequired)
	assert.Equal(t, "v1", cfg.AdapterVersion)
}

func TestLoad_RejectsMissingAllowedBaseDirectories(t *testing.T) {
	path := writeConfig(t, `
keys:
  hmac_key_env_var: PDA_HMAC_KEY
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed_base_directories")
}

func TestLoad_RejectsHMACSchemeWithoutKeyEnvVar(t *testing.T) {
	path := writeConfig(t, `
allowed_base_directories:
  - /home/user/documents
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keys.hmac_key_env_var")
}

func TestLoad_RejectsTrustMinimumOutOfRange(t *testing.T) {
	path := writeConfig(t, `
allowed_base_directories:
  - /home/user/documents
keys:
  hmac_key_env_var: PDA_HMAC_KEY
trust:
  minimum_required: 1.5
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trust.minimum_required")
}

func TestLoad_RejectsUnreadableFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestHardNoConfig_FallsBackToDefaultsWhenSectionsAreEmpty(t *testing.T) {
	path := writeConfig(t, `
allowed_base_directories:
  - /home/user/documents
keys:
  hmac_key_env_var: PDA_HMAC_KEY
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	hn := cfg.HardNoConfig()
	assert.True(t, hn.DeleteActions["DELETE"])
	assert.True(t, hn.CredentialActions["READ_CREDENTIAL"])
}

func TestHardNoConfig_OverridesDeleteActionsWhenDeploymentSuppliesThem(t *testing.T) {
	path := writeConfig(t, `
allowed_base_directories:
  - /home/user/documents
keys:
  hmac_key_env_var: PDA_HMAC_KEY
hard_no:
  delete_actions:
    - NUKE
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	hn := cfg.HardNoConfig()
	assert.True(t, hn.DeleteActions["NUKE"])
	assert.False(t, hn.DeleteActions["DELETE"])
	assert.True(t, hn.CredentialActions["READ_CREDENTIAL"], "untouched sections still fall back to defaults")
}
