package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mysql-backup-restore/internal/backup"
	appErrors "mysql-backup-restore/internal/errors"
	"mysql-backup-restore/internal/scheduler"
)

var (
	scheduleSpec      string
	scheduleRetention int
	schedulePrefix    string
	scheduleMaxSize   string
	scheduleRunNow    bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run automatic backups on a cron schedule",
	Long: `Run automatic backups on a cron schedule until interrupted.

Each run dumps the database into <name_prefix>-<timestamp>.sql, warns when the
dump is larger than max_backup_size and then deletes dumps older than the
retention period. Settings come from backup.auto_backup in the config file.

Examples:
  # Every night at 02:00, keeping two weeks of dumps
  mysql-backup-restore schedule --cron "0 2 * * *" --retention 14

  # Show the effective settings and the next run
  mysql-backup-restore schedule show`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the automatic backup settings and the next run time",
	Args:  cobra.NoArgs,
	RunE:  runScheduleShow,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the automatic backup job once, now",
	Args:  cobra.NoArgs,
	RunE:  runScheduleOnce,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleShowCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)

	flags := scheduleCmd.PersistentFlags()
	flags.StringVar(&scheduleSpec, "cron", "", "five-field cron expression (default from config, \"0 2 * * *\")")
	flags.IntVar(&scheduleRetention, "retention", 0, "days to keep dumps (default from config)")
	flags.StringVar(&schedulePrefix, "prefix", "", "filename prefix for scheduled dumps (default \"auto\")")
	flags.StringVar(&scheduleMaxSize, "max-size", "", "warn when a dump is larger than this, e.g. 512MB")
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "also run once immediately after starting")
}

// scheduleSettings applies the command line overrides to the configured settings
func scheduleSettings(settings backup.AutoBackupSettings) backup.AutoBackupSettings {
	if scheduleSpec != "" {
		settings.Schedule = scheduleSpec
	}
	if scheduleRetention > 0 {
		settings.Retention = scheduleRetention
	}
	if schedulePrefix != "" {
		settings.NamePrefix = schedulePrefix
	}
	if scheduleMaxSize != "" {
		settings.MaxBackupSize = scheduleMaxSize
	}
	return settings
}

// runSchedule runs the cron loop until SIGINT or SIGTERM
func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, true)
	if err != nil {
		return err
	}

	s, err := scheduler.New(a.service, scheduleSettings(a.config.Backup.AutoBackup), a.logger)
	if err != nil {
		a.Close()
		return err
	}
	s.WithRunTimeout(a.config.Timeout)

	if err := s.Start(); err != nil {
		a.Close()
		return err
	}

	// Shutdown functions run in reverse: the scheduler drains before the
	// database closes.
	shutdown := appErrors.NewGracefulShutdownHandler()
	shutdown.RegisterShutdownFunc(func() error {
		a.Close()
		return nil
	})
	shutdown.RegisterShutdownFunc(func() error {
		s.Stop()
		return nil
	})
	shutdown.Start()

	a.display.Info(fmt.Sprintf("Scheduled backups running (%s), next at %s. Press Ctrl+C to stop.",
		s.Settings().Schedule, s.NextRun().Local().Format(time.DateTime)))

	if scheduleRunNow {
		go func() {
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			if _, err := s.RunOnce(ctx); err != nil {
				a.logger.WithField("error", err.Error()).Error("Initial backup failed")
			}
		}()
	}

	shutdown.WaitForShutdown()
	return nil
}

// runScheduleShow prints the effective settings
func runScheduleShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := scheduler.New(a.service, scheduleSettings(a.config.Backup.AutoBackup), a.logger)
	if err != nil {
		return err
	}
	return a.display.Settings(s.Settings(), s.NextAfter(time.Now()))
}

// runScheduleOnce runs the job in the foreground
func runScheduleOnce(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := scheduler.New(a.service, scheduleSettings(a.config.Backup.AutoBackup), a.logger)
	if err != nil {
		return err
	}

	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	spinner := a.display.StartSpinner("Running scheduled backup...")
	result, err := s.RunOnce(ctx)
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("scheduled backup failed: %w", err)
	}

	if err := a.display.BackupCreated(result.Backup); err != nil {
		return err
	}
	if result.Cleanup != nil && result.Cleanup.DeletedCount > 0 {
		a.display.Info(fmt.Sprintf("Retention removed %d backup(s), freed %s",
			result.Cleanup.DeletedCount, result.Cleanup.FreedFormatted))
	}
	for _, w := range result.Warnings {
		a.display.Warning(w)
	}
	return nil
}
