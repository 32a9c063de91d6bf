package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mysql-backup-restore/internal/backup"
	"mysql-backup-restore/internal/display"
)

// PassphraseEnv supplies the export passphrase without a prompt
const PassphraseEnv = "MYSQL_BACKUP_EXPORT_PASSPHRASE"

var (
	// Backup creation flags
	backupName        string
	backupDescription string
	includeTables     []string
	excludeTables     []string
	schemaOnly        bool
	failFast          bool

	// Cleanup flags
	retentionDays int

	// Export flags
	exportOutput      string
	exportCompression string
	exportEncrypt     bool

	// Import flags
	importName        string
	importCompression string
	importDecrypt     bool
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list and manage database dumps",
	Long: `Create, list, validate and manage logical dumps of the configured database.

Examples:
  # Create a dump named "pre-migration"
  mysql-backup-restore backup create --name pre-migration --description "before v2 schema"

  # Dump the structure of two tables only
  mysql-backup-restore backup create --tables users,orders --schema-only

  # Delete dumps older than 14 days
  mysql-backup-restore backup cleanup --retention-days 14

  # Export a dump compressed with zstd and encrypted
  mysql-backup-restore backup export nightly-2025-01-15T02-00-00-000Z.sql --compression zstd --encrypt

  # Add that export to another store
  mysql-backup-restore backup import ./nightly-2025-01-15T02-00-00-000Z.sql.zst.enc --storage s3`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Dump the database into a new backup file",
	Args:  cobra.NoArgs,
	RunE:  runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List backup files, newest first",
	Args:    cobra.NoArgs,
	RunE:    runBackupList,
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <filename>",
	Short: "Delete a backup file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupDelete,
}

var backupStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show backup count, total size and the newest and oldest files",
	Args:  cobra.NoArgs,
	RunE:  runBackupStats,
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete backups older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runBackupCleanup,
}

var backupValidateCmd = &cobra.Command{
	Use:   "validate <filename>",
	Short: "Check that a backup file is a complete dump",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupValidate,
}

var backupExportCmd = &cobra.Command{
	Use:   "export <filename>",
	Short: "Write a compressed, optionally encrypted copy of a backup",
	Long: `Write a compressed, optionally encrypted copy of a backup to a file or stdout.

With --encrypt the passphrase is read from ` + PassphraseEnv + ` or prompted for.
The xxhash64 checksum of the written bytes is printed for verification.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupExport,
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Add an exported backup to the store",
	Long: `Unpack a file written by "backup export" and add it to the store.

Compression and encryption are taken from the file extension (.gz, .lz4, .zst,
.enc) unless --compression or --decrypt is given. The passphrase is read from
` + PassphraseEnv + ` or prompted for. Use - to read the export from stdin
together with --name. The unpacked script must pass validation.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupImport,
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	backupCmd.AddCommand(backupStatsCmd)
	backupCmd.AddCommand(backupCleanupCmd)
	backupCmd.AddCommand(backupValidateCmd)
	backupCmd.AddCommand(backupExportCmd)
	backupCmd.AddCommand(backupImportCmd)

	backupCreateCmd.Flags().StringVar(&backupName, "name", "", "filename prefix (default \"backup\")")
	backupCreateCmd.Flags().StringVar(&backupDescription, "description", "", "backup description")
	backupCreateCmd.Flags().StringSliceVar(&includeTables, "tables", nil, "only dump these tables")
	backupCreateCmd.Flags().StringSliceVar(&excludeTables, "exclude-tables", nil, "skip these tables")
	backupCreateCmd.Flags().BoolVar(&schemaOnly, "schema-only", false, "dump table structure without rows")
	backupCreateCmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort when a table cannot be dumped")

	backupCleanupCmd.Flags().IntVar(&retentionDays, "retention-days", 0, "retention period in days (default from config)")

	backupExportCmd.Flags().StringVarP(&exportOutput, "output", "o", ".", "output file or directory, - for stdout")
	backupExportCmd.Flags().StringVar(&exportCompression, "compression", "", "compression (none, gzip, lz4, zstd; default from config)")
	backupExportCmd.Flags().BoolVar(&exportEncrypt, "encrypt", false, "encrypt the export with AES-256-GCM")

	backupImportCmd.Flags().StringVar(&importName, "name", "", "filename in the store (default derived from the export name)")
	backupImportCmd.Flags().StringVar(&importCompression, "compression", "", "compression of the export (none, gzip, lz4, zstd)")
	backupImportCmd.Flags().BoolVar(&importDecrypt, "decrypt", false, "the export is encrypted")
}

// runBackupCreate dumps the database
func runBackupCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := backup.CreateOptions{
		Name:          backupName,
		Description:   backupDescription,
		IncludeTables: includeTables,
		ExcludeTables: excludeTables,
	}
	if schemaOnly {
		includeData := false
		opts.IncludeData = &includeData
	}
	if failFast {
		opts.OnTableError = backup.PolicyFailFast
	}

	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	spinner := a.display.StartSpinner(fmt.Sprintf("Dumping %s...", a.config.Database.Database))
	file, err := a.service.CreateBackup(ctx, opts)
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("backup creation failed: %w", err)
	}

	return a.display.BackupCreated(file)
}

// runBackupList lists the catalog
func runBackupList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	files, err := a.service.GetBackupList(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	return a.display.BackupList(files)
}

// runBackupDelete deletes one backup after confirmation
func runBackupDelete(cmd *cobra.Command, args []string) error {
	filename := args[0]

	a, err := newApp(cmd.Context(), cmd, false)
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

	if err := a.confirm(display.ConfirmationRequest{
		Title:       "Delete backup",
		Message:     fmt.Sprintf("Delete %s (%s)?", file.Filename, file.SizeFormatted),
		Destructive: true,
	}); err != nil {
		return err
	}

	if err := a.service.DeleteBackup(ctx, filename); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	a.display.Success("Deleted " + filename)
	return nil
}

// runBackupStats prints catalog statistics
func runBackupStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	stats, err := a.service.GetBackupStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute backup statistics: %w", err)
	}
	return a.display.Stats(stats)
}

// runBackupCleanup applies the retention period
func runBackupCleanup(cmd *cobra.Command, args []string) error {
	if retentionDays < 0 {
		return fmt.Errorf("--retention-days must not be negative")
	}

	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	result, err := a.service.CleanupOldBackups(ctx, retentionDays)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return a.display.Cleanup(result)
}

// runBackupValidate checks one backup file. An invalid file is an error so
// scripts can rely on the exit code.
func runBackupValidate(cmd *cobra.Command, args []string) error {
	filename := args[0]

	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	result, err := a.service.ValidateBackup(ctx, filename)
	if err != nil {
		return err
	}
	if err := a.display.Validation(filename, result); err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("backup %s is not valid", filename)
	}
	return nil
}

// runBackupExport writes an exported copy of a backup
func runBackupExport(cmd *cobra.Command, args []string) error {
	filename := args[0]

	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := backup.ExportOptions{Compression: a.config.Backup.Export.Compression}
	if exportCompression != "" {
		opts.Compression = backup.CompressionType(exportCompression)
	}
	if exportEncrypt {
		opts.Passphrase, err = readPassphrase(cmd, true)
		if err != nil {
			return err
		}
	}

	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	var buf bytes.Buffer
	result, err := a.service.ExportBackup(ctx, filename, &buf, opts)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	destination := exportOutput
	if destination == "-" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if info, statErr := os.Stat(destination); statErr == nil && info.IsDir() {
		destination = filepath.Join(destination, result.ExportName)
	}
	if err := writeNewFile(destination, buf.Bytes()); err != nil {
		return err
	}
	return a.display.Export(result, destination)
}

// runBackupImport adds an exported backup to the store
func runBackupImport(cmd *cobra.Command, args []string) error {
	source := args[0]

	name, compression, encrypted := backup.ParseExportName(filepath.Base(source))
	if importName != "" {
		name = importName
	} else if source == "-" {
		return fmt.Errorf("--name is required when reading from stdin")
	}
	if importCompression != "" {
		compression = backup.CompressionType(importCompression)
	}
	encrypted = encrypted || importDecrypt

	var data []byte
	var err error
	if source == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}

	a, err := newApp(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := backup.ExportOptions{Compression: compression}
	if encrypted {
		opts.Passphrase, err = readPassphrase(cmd, false)
		if err != nil {
			return err
		}
	}

	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	file, err := a.service.ImportBackup(ctx, name, data, opts)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return a.display.BackupImported(file)
}

// writeNewFile writes data to path, refusing to overwrite an existing file
func writeNewFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// readPassphrase takes the passphrase from the environment or prompts on the
// terminal, twice when confirm is set
func readPassphrase(cmd *cobra.Command, confirm bool) (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("a passphrase is needed: set %s when stdin is not a terminal", PassphraseEnv)
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprint(errOut, "Passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if !confirm {
		return string(first), nil
	}
	fmt.Fprint(errOut, "Repeat passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if !bytes.Equal(first, second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}
