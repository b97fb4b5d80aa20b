package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BoronSpoon/equipment-reservation/internal/config"
	"github.com/BoronSpoon/equipment-reservation/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

// rootCmd represents the base command for the reservesync application
var rootCmd = &cobra.Command{
	Use:   "reservesync",
	Short: "Mirrors equipment reservations between Google Calendars",
	Long: `reservesync keeps shared equipment reservations in sync. Each user books
equipment on their own write calendar; reservesync copies every booking onto
the read calendars of the users subscribed to that equipment and logs each
reservation and cancellation to the equipment's sheet.

It can run as:
  - One-off commands (sync, repair, daily-log, apply-condition)
  - A notification server reacting to calendar and spreadsheet edits (serve)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "reservesync version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file (default: ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newRepairCmd())
	rootCmd.AddCommand(newDailyLogCmd())
	rootCmd.AddCommand(newApplyConditionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
