package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RESERVESYNC_CREDENTIALS_FILE", "RESERVESYNC_DIRECTORY_SPREADSHEET_ID",
		"RESERVESYNC_LOGGING_SPREADSHEET_ID", "RESERVESYNC_TIME_ZONE",
		"RESERVESYNC_LOOKBACK_DAYS", "RESERVESYNC_STATE_BACKEND",
		"RESERVESYNC_SQLITE_PATH", "RESERVESYNC_DAILY_LOG_HOUR",
	} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "Asia/Tokyo", cfg.Sync.TimeZone)
	assert.Equal(t, 10, cfg.Sync.LookbackDays)
	assert.Equal(t, int64(100), cfg.Sync.PageSize)
	assert.Equal(t, int64(2500), cfg.Sync.CursorPageSize)
	assert.Equal(t, 4500, cfg.Sync.LogBackupRows)
	assert.Equal(t, 990000, cfg.Sync.FinalLogBackupRows)
	assert.Equal(t, "finalLog", cfg.Spreadsheets.FinalLogSheet)
	assert.Equal(t, BackendSQLite, cfg.State.Backend)

	// defaults are only missing the spreadsheet id
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory_id")

	cfg.Spreadsheets.DirectoryID = "x"
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join("testdata", "full.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/etc/reservesync/sa.json", cfg.Google.CredentialsFile)
	assert.Equal(t, "dir-123", cfg.Spreadsheets.DirectoryID)
	assert.Equal(t, "log-456", cfg.Spreadsheets.LoggingID)
	assert.Equal(t, "users", cfg.Spreadsheets.UsersSheet, "unset keys keep defaults")
	assert.Equal(t, 14, cfg.Sync.LookbackDays)
	assert.Equal(t, 8, cfg.Sync.ConditionCount)
	assert.Equal(t, int64(100), cfg.Sync.PageSize)
	assert.Equal(t, BackendValkey, cfg.State.Backend)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, -1, cfg.Server.DailyLogHour)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	auth := cfg.GoogleAuth()
	assert.Equal(t, "/etc/reservesync/sa.json", auth.CredentialsFile)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESERVESYNC_DIRECTORY_SPREADSHEET_ID", "from-env")
	t.Setenv("RESERVESYNC_LOOKBACK_DAYS", "3")
	t.Setenv("RESERVESYNC_STATE_BACKEND", "memory")

	cfg, err := Load(filepath.Join("testdata", "full.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Spreadsheets.DirectoryID)
	assert.Equal(t, 3, cfg.Sync.LookbackDays)
	assert.Equal(t, BackendMemory, cfg.State.Backend)
}

func TestLoadLoggingDefaultsToDirectory(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spreadsheets:\n  directory_id: only\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "only", cfg.Spreadsheets.LoggingID)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "an explicit path must exist")

	t.Chdir(t.TempDir())
	t.Setenv("RESERVESYNC_DIRECTORY_SPREADSHEET_ID", "env-only")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Spreadsheets.DirectoryID)
}

func TestLoadMalformed(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync: [1, 2"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad zone", func(c *Config) { c.Sync.TimeZone = "Mars/Olympus" }, "invalid time zone"},
		{"zero lookback", func(c *Config) { c.Sync.LookbackDays = 0 }, "lookback_days"},
		{"page too large", func(c *Config) { c.Sync.PageSize = 5000 }, "page_size"},
		{"cursor page zero", func(c *Config) { c.Sync.CursorPageSize = 0 }, "cursor_page_size"},
		{"negative budget", func(c *Config) { c.Sync.LogBackupRows = -1 }, "backup row"},
		{"zero rate", func(c *Config) { c.Sync.MutationsPerSecond = 0 }, "mutations_per_second"},
		{"unknown backend", func(c *Config) { c.State.Backend = "etcd" }, "invalid state backend"},
		{"valkey without address", func(c *Config) { c.State.Backend = BackendValkey }, "valkey_address"},
		{"sqlite without path", func(c *Config) { c.State.SQLitePath = "" }, "sqlite_path"},
		{"hour out of range", func(c *Config) { c.Server.DailyLogHour = 24 }, "daily_log_hour"},
		{"empty sheet name", func(c *Config) { c.Spreadsheets.UsersSheet = "" }, "sheet names"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Spreadsheets.DirectoryID = "x"
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
