package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BoronSpoon/equipment-reservation/internal/google"
)

// DefaultFile is read when no explicit path is given. Its absence is not an error.
const DefaultFile = "reservesync.yaml"

// State backends.
const (
	BackendSQLite = "sqlite"
	BackendValkey = "valkey"
	BackendMemory = "memory"
)

// Config is the full reservesync configuration.
type Config struct {
	Google       GoogleConfig       `yaml:"google"`
	Spreadsheets SpreadsheetsConfig `yaml:"spreadsheets"`
	Sync         SyncConfig         `yaml:"sync"`
	State        StateConfig        `yaml:"state"`
	Server       ServerConfig       `yaml:"server"`
}

// GoogleConfig holds credentials and endpoint overrides.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	TokenFile       string `yaml:"token_file"`

	// Endpoint overrides, only useful against fake servers.
	CalendarEndpoint string `yaml:"calendar_endpoint"`
	SheetsEndpoint   string `yaml:"sheets_endpoint"`
	DriveEndpoint    string `yaml:"drive_endpoint"`
}

// SpreadsheetsConfig names the spreadsheets and sheets reservesync works on.
type SpreadsheetsConfig struct {
	// DirectoryID holds the users and properties sheets and one sheet per
	// equipment item. Required.
	DirectoryID string `yaml:"directory_id"`
	// LoggingID holds the finalLog sheet. Defaults to DirectoryID.
	LoggingID string `yaml:"logging_id"`

	UsersSheet      string `yaml:"users_sheet"`
	PropertiesSheet string `yaml:"properties_sheet"`
	FinalLogSheet   string `yaml:"final_log_sheet"`

	// ArchiveFolderID is the Drive folder backups are moved to. Empty
	// leaves backups next to the source spreadsheet.
	ArchiveFolderID string `yaml:"archive_folder_id"`
}

// SyncConfig tunes sync passes and logging.
type SyncConfig struct {
	TimeZone           string  `yaml:"time_zone"`
	LookbackDays       int     `yaml:"lookback_days"`
	PageSize           int64   `yaml:"page_size"`
	CursorPageSize     int64   `yaml:"cursor_page_size"`
	ConditionCount     int     `yaml:"condition_count"`
	LogBackupRows      int     `yaml:"log_backup_rows"`
	FinalLogBackupRows int     `yaml:"final_log_backup_rows"`
	MutationsPerSecond float64 `yaml:"mutations_per_second"`
	MutationBurst      int     `yaml:"mutation_burst"`
}

// StateConfig selects where sync cursors and the log ledger live.
type StateConfig struct {
	Backend         string `yaml:"backend"`
	SQLitePath      string `yaml:"sqlite_path"`
	ValkeyAddress   string `yaml:"valkey_address"`
	ValkeyPassword  string `yaml:"valkey_password"`
	ValkeyDB        int    `yaml:"valkey_db"`
	ValkeyKeyPrefix string `yaml:"valkey_key_prefix"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	// DailyLogHour is the local hour the finalLog copy runs at. -1 disables it.
	DailyLogHour int `yaml:"daily_log_hour"`
	QueueSize    int `yaml:"queue_size"`
	// NotificationSecret, when set, is required as a bearer token on
	// directory notifications.
	NotificationSecret string `yaml:"notification_secret"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Spreadsheets: SpreadsheetsConfig{
			UsersSheet:      "users",
			PropertiesSheet: "properties",
			FinalLogSheet:   "finalLog",
		},
		Sync: SyncConfig{
			TimeZone:           "Asia/Tokyo",
			LookbackDays:       10,
			PageSize:           100,
			CursorPageSize:     2500,
			ConditionCount:     20,
			LogBackupRows:      4500,
			FinalLogBackupRows: 990000,
			MutationsPerSecond: 5,
			MutationBurst:      1,
		},
		State: StateConfig{
			Backend:         BackendSQLite,
			SQLitePath:      "reservesync.db",
			ValkeyKeyPrefix: "reservesync:",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MetricsAddr:  ":9090",
			DailyLogHour: 3,
			QueueSize:    64,
		},
	}
}

// Load reads the configuration and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds a Config from defaults, the YAML file at path and the
// environment without validating it. An empty path reads DefaultFile if it
// exists.
func Read(path string) (*Config, error) {
	cfg := Default()

	file := path
	if file == "" {
		file = DefaultFile
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", file, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == "":
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", file, err)
	}

	cfg.applyEnv()
	if cfg.Spreadsheets.LoggingID == "" {
		cfg.Spreadsheets.LoggingID = cfg.Spreadsheets.DirectoryID
	}
	return &cfg, nil
}

// GoogleAuth returns the credentials settings in the form the google package takes.
func (c *Config) GoogleAuth() google.Config {
	return google.Config{
		CredentialsFile: c.Google.CredentialsFile,
		ClientID:        c.Google.ClientID,
		ClientSecret:    c.Google.ClientSecret,
		TokenFile:       c.Google.TokenFile,
	}
}

func (c *Config) applyEnv() {
	g := &c.Google
	g.CredentialsFile = getEnvOrDefault("RESERVESYNC_CREDENTIALS_FILE", g.CredentialsFile)
	g.ClientID = getEnvOrDefault("RESERVESYNC_CLIENT_ID", g.ClientID)
	g.ClientSecret = getEnvOrDefault("RESERVESYNC_CLIENT_SECRET", g.ClientSecret)
	g.TokenFile = getEnvOrDefault("RESERVESYNC_TOKEN_FILE", g.TokenFile)

	s := &c.Spreadsheets
	s.DirectoryID = getEnvOrDefault("RESERVESYNC_DIRECTORY_SPREADSHEET_ID", s.DirectoryID)
	s.LoggingID = getEnvOrDefault("RESERVESYNC_LOGGING_SPREADSHEET_ID", s.LoggingID)
	s.ArchiveFolderID = getEnvOrDefault("RESERVESYNC_ARCHIVE_FOLDER_ID", s.ArchiveFolderID)

	y := &c.Sync
	y.TimeZone = getEnvOrDefault("RESERVESYNC_TIME_ZONE", y.TimeZone)
	y.LookbackDays = getEnvIntOrDefault("RESERVESYNC_LOOKBACK_DAYS", y.LookbackDays)
	y.MutationsPerSecond = getEnvFloatOrDefault("RESERVESYNC_MUTATIONS_PER_SECOND", y.MutationsPerSecond)

	st := &c.State
	st.Backend = getEnvOrDefault("RESERVESYNC_STATE_BACKEND", st.Backend)
	st.SQLitePath = getEnvOrDefault("RESERVESYNC_SQLITE_PATH", st.SQLitePath)
	st.ValkeyAddress = getEnvOrDefault("RESERVESYNC_VALKEY_ADDRESS", st.ValkeyAddress)
	st.ValkeyPassword = getEnvOrDefault("RESERVESYNC_VALKEY_PASSWORD", st.ValkeyPassword)

	sv := &c.Server
	sv.Addr = getEnvOrDefault("RESERVESYNC_ADDR", sv.Addr)
	sv.MetricsAddr = getEnvOrDefault("RESERVESYNC_METRICS_ADDR", sv.MetricsAddr)
	sv.DailyLogHour = getEnvIntOrDefault("RESERVESYNC_DAILY_LOG_HOUR", sv.DailyLogHour)
	sv.NotificationSecret = getEnvOrDefault("RESERVESYNC_NOTIFICATION_SECRET", sv.NotificationSecret)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Spreadsheets.DirectoryID == "" {
		return fmt.Errorf("spreadsheets.directory_id is required")
	}
	if c.Spreadsheets.UsersSheet == "" || c.Spreadsheets.PropertiesSheet == "" || c.Spreadsheets.FinalLogSheet == "" {
		return fmt.Errorf("sheet names must not be empty")
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Sync.LookbackDays <= 0 {
		return fmt.Errorf("sync.lookback_days must be positive, got %d", c.Sync.LookbackDays)
	}
	if c.Sync.PageSize <= 0 || c.Sync.PageSize > 2500 {
		return fmt.Errorf("sync.page_size must be between 1 and 2500, got %d", c.Sync.PageSize)
	}
	if c.Sync.CursorPageSize <= 0 || c.Sync.CursorPageSize > 2500 {
		return fmt.Errorf("sync.cursor_page_size must be between 1 and 2500, got %d", c.Sync.CursorPageSize)
	}
	if c.Sync.ConditionCount < 0 {
		return fmt.Errorf("sync.condition_count must not be negative")
	}
	if c.Sync.LogBackupRows < 0 || c.Sync.FinalLogBackupRows < 0 {
		return fmt.Errorf("backup row budgets must not be negative")
	}
	if c.Sync.MutationsPerSecond <= 0 {
		return fmt.Errorf("sync.mutations_per_second must be positive, got %f", c.Sync.MutationsPerSecond)
	}
	if c.Sync.MutationBurst < 1 {
		return fmt.Errorf("sync.mutation_burst must be at least 1")
	}

	switch c.State.Backend {
	case BackendSQLite:
		if c.State.SQLitePath == "" {
			return fmt.Errorf("state.sqlite_path is required for the sqlite backend")
		}
	case BackendValkey:
		if c.State.ValkeyAddress == "" {
			return fmt.Errorf("state.valkey_address is required for the valkey backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid state backend: %s (must be sqlite, valkey, or memory)", c.State.Backend)
	}

	if c.Server.DailyLogHour < -1 || c.Server.DailyLogHour > 23 {
		return fmt.Errorf("server.daily_log_hour must be between -1 and 23, got %d", c.Server.DailyLogHour)
	}
	if c.Server.QueueSize < 1 {
		return fmt.Errorf("server.queue_size must be at least 1")
	}
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Sync.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.Sync.TimeZone, err)
	}
	return loc, nil
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}
