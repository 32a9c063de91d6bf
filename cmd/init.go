package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mysql-backup-restore/internal/config"
)

var initSkipDatabase bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Prepare the backup storage and check the configuration",
	Long: `Prepare the backup storage and check the configuration.

Creates the local backup directory, lists the configured store and pings the
database, then reports problems together with suggested fixes. The exit code
is non-zero when backups could not be written.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initSkipDatabase, "skip-database", false, "do not try to connect to the database")
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var probe config.DatabaseProbe
	if !initSkipDatabase {
		probe = func(ctx context.Context) error {
			if err := a.config.ValidateDatabase(); err != nil {
				return err
			}
			db, err := a.dbs.Connect(ctx, a.config.Database)
			if err != nil {
				return err
			}
			return a.dbs.Close(db)
		}
	}

	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	result := config.NewBackupSystemInitializer(a.config, a.store, probe, a.logger).Initialize(ctx)

	pairs := [][]string{
		{"Configuration", status(result.ConfigValid)},
		{"Storage (" + string(a.config.Backup.Storage.Provider) + ")", status(result.StorageReady)},
		{"Backups found", fmt.Sprintf("%d", result.BackupCount)},
	}
	if probe != nil {
		pairs = append(pairs, []string{"Database", status(result.DatabaseReady)})
	}

	if err := a.display.KeyValues(result, pairs); err != nil {
		return err
	}
	for _, w := range result.Warnings {
		a.display.Warning(w)
	}
	for _, e := range result.Errors {
		a.display.Error(e)
	}
	for _, fix := range result.RecommendedFixes {
		a.display.Info("Suggestion: " + fix)
	}

	if !result.Success {
		return fmt.Errorf("backup system is not ready")
	}
	a.display.Success("Backup system is ready")
	return nil
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
