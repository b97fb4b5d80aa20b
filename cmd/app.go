package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/BoronSpoon/equipment-reservation/internal/calendar"
	"github.com/BoronSpoon/equipment-reservation/internal/config"
	"github.com/BoronSpoon/equipment-reservation/internal/directory"
	"github.com/BoronSpoon/equipment-reservation/internal/drive"
	"github.com/BoronSpoon/equipment-reservation/internal/eventlog"
	"github.com/BoronSpoon/equipment-reservation/internal/google"
	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
	"github.com/BoronSpoon/equipment-reservation/internal/sheets"
	"github.com/BoronSpoon/equipment-reservation/internal/state"
	"github.com/BoronSpoon/equipment-reservation/internal/syncengine"
)

// googleHTTPClient builds the authenticated client; tests replace it.
var googleHTTPClient = google.HTTPClient

// app holds everything a command needs, wired from the configuration.
type app struct {
	cfg      *config.Config
	loc      *time.Location
	provider *instrumentation.Provider
	store    *state.Store

	calendar  *calendar.Client
	directory *directory.SheetsDirectory
	engine    *syncengine.Engine
	daily     *eventlog.DailyLogger
}

func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err != nil {
			_ = provider.Shutdown(context.Background())
		}
	}()
	metrics := provider.Metrics()

	httpClient, err := googleHTTPClient(ctx, cfg.GoogleAuth())
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate to Google: %w", err)
	}

	cal, err := calendar.NewClient(ctx, calendar.Config{
		HTTPClient: httpClient,
		Endpoint:   cfg.Google.CalendarEndpoint,
		Location:   loc,
		Metrics:    metrics,
	})
	if err != nil {
		return nil, err
	}
	sh, err := sheets.NewClient(ctx, sheets.Config{
		HTTPClient: httpClient,
		Endpoint:   cfg.Google.SheetsEndpoint,
		Metrics:    metrics,
	})
	if err != nil {
		return nil, err
	}
	dr, err := drive.NewClient(ctx, drive.Config{
		HTTPClient: httpClient,
		Endpoint:   cfg.Google.DriveEndpoint,
		Metrics:    metrics,
	})
	if err != nil {
		return nil, err
	}

	kv, err := openKV(cfg.State)
	if err != nil {
		return nil, err
	}
	store := state.NewStore(kv)

	directoryBook := sh.Spreadsheet(cfg.Spreadsheets.DirectoryID)
	loggingBook := sh.Spreadsheet(cfg.Spreadsheets.LoggingID)
	dir := directory.NewSheetsDirectory(directoryBook, cfg.Spreadsheets.UsersSheet, cfg.Spreadsheets.PropertiesSheet)
	archiver := eventlog.NewArchiver(sh, dr, cfg.Spreadsheets.ArchiveFolderID, logger)

	evlog := eventlog.New(eventlog.Config{
		Book:           directoryBook,
		Ledger:         store,
		Archiver:       archiver,
		Location:       loc,
		ConditionCount: cfg.Sync.ConditionCount,
		BackupRows:     cfg.Sync.LogBackupRows,
		Logger:         logger,
		Metrics:        metrics,
	})

	engine := syncengine.New(cal, dir, store, evlog, syncengine.Options{
		Location:       loc,
		LookbackDays:   cfg.Sync.LookbackDays,
		PageSize:       cfg.Sync.PageSize,
		CursorPageSize: cfg.Sync.CursorPageSize,
		Limiter:        rate.NewLimiter(rate.Limit(cfg.Sync.MutationsPerSecond), cfg.Sync.MutationBurst),
		Conditions:     directoryBook,
		ConditionCount: cfg.Sync.ConditionCount,
		Logger:         logger,
		Metrics:        metrics,
	})

	daily := eventlog.NewDaily(eventlog.DailyConfig{
		Source:     cal,
		Book:       loggingBook,
		Sheet:      cfg.Spreadsheets.FinalLogSheet,
		Archiver:   archiver,
		BackupRows: cfg.Sync.FinalLogBackupRows,
		Location:   loc,
		PageSize:   cfg.Sync.PageSize,
		Logger:     logger,
		Metrics:    metrics,
	})

	return &app{
		cfg:       cfg,
		loc:       loc,
		provider:  provider,
		store:     store,
		calendar:  cal,
		directory: dir,
		engine:    engine,
		daily:     daily,
	}, nil
}

// openKV opens the configured durable store.
func openKV(cfg config.StateConfig) (state.KV, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return state.OpenSQLite(cfg.SQLitePath)
	case config.BackendValkey:
		return state.OpenValkey(state.ValkeyConfig{
			Address:   cfg.ValkeyAddress,
			Password:  cfg.ValkeyPassword,
			DB:        cfg.ValkeyDB,
			KeyPrefix: cfg.ValkeyKeyPrefix,
		})
	case config.BackendMemory:
		slog.Warn("memory state backend: sync cursors and the flush ledger are lost on exit")
		return state.NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("invalid state backend: %s", cfg.Backend)
	}
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.store.Close(), a.provider.Shutdown(ctx))
}

// withApp loads the configuration, runs fn and closes the app.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			slog.Warn("error during shutdown", "error", err)
		}
	}()
	return fn(ctx, a)
}
