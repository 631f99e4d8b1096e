package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	require.Equal(t, DefaultHistoryWindow, cfg.History.Window)
	require.Equal(t, DefaultFragmentLimit, cfg.Outbound.FragmentLimit)
	require.Equal(t, DefaultPollMaxAttempts, cfg.Transcribe.PollMaxAttempts)
	require.Equal(t, DefaultLanguageCode, cfg.Transcribe.LanguageCode)
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9000"

[history]
window = 8
backup_retain = 2

[outbound]
fragment_limit = 240
fragment_delay_ms = 500

[twilio]
account_sid = "AC123"
auth_token = "secret"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Server.Addr)
	require.Equal(t, 8, cfg.History.Window)
	require.Equal(t, 2, cfg.History.BackupRetain)
	require.Equal(t, 240, cfg.Outbound.FragmentLimit)
	require.Equal(t, "AC123", cfg.Twilio.AccountSID)
	// Untouched sections keep their defaults.
	require.Equal(t, DefaultDedupWindow, cfg.Dedup.Window)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[history]
window = -1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
