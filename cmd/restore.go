package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mysql-backup-restore/internal/backup"
	"mysql-backup-restore/internal/display"
)

var (
	keepExisting bool
	ignoreErrors bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <filename>",
	Short: "Restore a backup into the configured database",
	Long: `Restore a backup into the configured database inside one transaction.

By default the dump's DROP TABLE statements run, replacing existing tables.
Use --keep-existing to skip them. A failing statement rolls everything back
unless --ignore-errors is given, in which case failures are reported as
warnings and the rest of the dump is committed.

Examples:
  mysql-backup-restore restore nightly-2025-01-15T02-00-00-000Z.sql
  mysql-backup-restore restore nightly-2025-01-15T02-00-00-000Z.sql --keep-existing --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().BoolVar(&keepExisting, "keep-existing", false, "skip DROP TABLE statements in the dump")
	restoreCmd.Flags().BoolVar(&ignoreErrors, "ignore-errors", false, "continue past failing statements")
}

// runRestore restores one backup after confirmation
func runRestore(cmd *cobra.Command, args []string) error {
	filename := args[0]

	a, err := newApp(cmd.Context(), cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	file, err := a.service.GetBackup(ctx, filename)
	if err != nil {
		return err
	}

	details := []string{fmt.Sprintf("backup size: %s", file.SizeFormatted)}
	if keepExisting {
		details = append(details, "existing tables are kept")
	} else {
		details = append(details, "tables in the dump replace existing tables")
	}
	if ignoreErrors {
		details = append(details, "failing statements are skipped")
	}
	if err := a.confirm(display.ConfirmationRequest{
		Title:       "Restore backup",
		Message:     fmt.Sprintf("Restore %s into %s?", filename, a.config.Database.Database),
		Details:     details,
		Destructive: !keepExisting,
	}); err != nil {
		return err
	}

	dropExisting := !keepExisting
	spinner := a.display.StartSpinner("Restoring " + filename + "...")
	result, err := a.service.RestoreBackup(ctx, backup.RestoreOptions{
		Filename:     filename,
		DropExisting: &dropExisting,
		IgnoreErrors: ignoreErrors,
	})
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	return a.display.Restore(result)
}
