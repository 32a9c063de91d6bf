package cmd

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "mysql-backup-restore/internal/errors"
)

const validDump = "-- dump of shop\n" +
	"SET FOREIGN_KEY_CHECKS = 0;\n" +
	"DROP TABLE IF EXISTS `users`;\n" +
	"CREATE TABLE `users` (`id` int NOT NULL);\n" +
	"INSERT INTO `users` (`id`) VALUES (1),(2);\n" +
	"SET FOREIGN_KEY_CHECKS = 1;\n"

// resetFlags restores every flag in the tree to its default between runs
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeDump(t *testing.T, dir, name, content string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mysql-backup-restore version dev")
	assert.Contains(t, out, "Commit: unknown")
}

func TestConfigCommand(t *testing.T) {
	out, _, err := execute(t, "", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "database:")
	assert.Contains(t, out, "auto_backup:")
	assert.Contains(t, out, "MYSQL_BACKUP_DATABASE_PASSWORD")
}

func TestVerboseAndQuietConflict(t *testing.T) {
	_, _, err := execute(t, "", "backup", "list", "--verbose", "--quiet", "--backup-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestBackupList(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, "", "backup", "list", "--backup-dir", dir, "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	writeDump(t, dir, "older.sql", validDump, 48*time.Hour)
	writeDump(t, dir, "newer.sql", validDump, time.Hour)
	writeDump(t, dir, "notes.txt", "not a dump", time.Minute)

	out, _, err = execute(t, "", "backup", "list", "--backup-dir", dir, "--format", "compact")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "newer.sql\t"))
	assert.True(t, strings.HasPrefix(lines[1], "older.sql\t"))
}

func TestBackupStats(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "a.sql", validDump, time.Hour)

	out, _, err := execute(t, "", "backup", "stats", "--backup-dir", dir, "--format", "json")
	require.NoError(t, err)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, float64(1), stats["totalBackups"])
	assert.Equal(t, float64(len(validDump)), stats["totalSize"])
}

func TestBackupDelete_DeclinedKeepsFile(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "a.sql", validDump, time.Hour)

	_, errOut, err := execute(t, "n\n", "backup", "delete", "a.sql", "--backup-dir", dir, "--no-color")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Contains(t, errOut, "Proceed? [y/N]: ")
	assert.FileExists(t, filepath.Join(dir, "a.sql"))
}

func TestBackupDelete_Confirmed(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "a.sql", validDump, time.Hour)

	_, _, err := execute(t, "y\n", "backup", "delete", "a.sql", "--backup-dir", dir)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "a.sql"))
}

func TestBackupDelete_YesSkipsPrompt(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "a.sql", validDump, time.Hour)

	_, errOut, err := execute(t, "", "backup", "delete", "a.sql", "--backup-dir", dir, "--yes")
	require.NoError(t, err)
	assert.NotContains(t, errOut, "Proceed?")
	assert.NoFileExists(t, filepath.Join(dir, "a.sql"))
}

func TestBackupDelete_Missing(t *testing.T) {
	_, _, err := execute(t, "", "backup", "delete", "missing.sql", "--backup-dir", t.TempDir(), "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND_ERROR")
}

func TestBackupCleanup(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "old.sql", validDump, 72*time.Hour)
	writeDump(t, dir, "new.sql", validDump, time.Hour)

	out, _, err := execute(t, "", "backup", "cleanup", "--backup-dir", dir, "--retention-days", "1", "--format", "compact")
	require.NoError(t, err)
	assert.Equal(t, "deleted\told.sql\n", out)
	assert.NoFileExists(t, filepath.Join(dir, "old.sql"))
	assert.FileExists(t, filepath.Join(dir, "new.sql"))
}

func TestBackupValidate(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "good.sql", validDump, time.Hour)
	writeDump(t, dir, "bad.sql", "SELECT 1;\n", time.Hour)

	_, _, err := execute(t, "", "backup", "validate", "good.sql", "--backup-dir", dir)
	require.NoError(t, err)

	out, _, err := execute(t, "", "backup", "validate", "bad.sql", "--backup-dir", dir, "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.sql is not valid")

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, false, result["valid"])
}

func TestBackupExport(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	writeDump(t, dir, "a.sql", validDump, time.Hour)

	_, _, err := execute(t, "", "backup", "export", "a.sql", "--backup-dir", dir, "--compression", "gzip", "-o", outDir)
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(outDir, "a.sql.gz"))
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, validDump, string(plain))

	// An existing export is never overwritten.
	_, _, err = execute(t, "", "backup", "export", "a.sql", "--backup-dir", dir, "--compression", "gzip", "-o", outDir)
	require.Error(t, err)
}

func TestBackupExport_EncryptNeedsPassphrase(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "a.sql", validDump, time.Hour)
	t.Setenv(PassphraseEnv, "")

	_, _, err := execute(t, "", "backup", "export", "a.sql", "--backup-dir", dir, "--encrypt", "-o", "-")
	require.Error(t, err)
}

func TestBackupCreate_RequiresDatabaseSettings(t *testing.T) {
	_, _, err := execute(t, "", "backup", "create", "--backup-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIGURATION_ERROR")
	assert.Contains(t, err.Error(), "username is required")
}

func TestScheduleShow(t *testing.T) {
	out, _, err := execute(t, "", "schedule", "show", "--backup-dir", t.TempDir(),
		"--cron", "*/15 * * * *", "--retention", "3", "--format", "json")
	require.NoError(t, err)

	var settings map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &settings))
	assert.Equal(t, "*/15 * * * *", settings["schedule"])
	assert.Equal(t, float64(3), settings["retention"])
	assert.NotEqual(t, "-", settings["nextRun"])
}

func TestScheduleShow_InvalidCron(t *testing.T) {
	_, _, err := execute(t, "", "schedule", "show", "--backup-dir", t.TempDir(), "--cron", "every day")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")

	out, _, err := execute(t, "", "init", "--skip-database", "--backup-dir", dir, "--format", "compact")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration\tok\n")
	assert.DirExists(t, dir)
}

func TestConfigFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "a.sql", validDump, time.Hour)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("display:\n  output_format: yaml\n"), 0600))
	t.Setenv("MYSQL_BACKUP_BACKUP_STORAGE_LOCAL_BASE_PATH", dir)

	out, _, err := execute(t, "", "backup", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "- filename: a.sql")
}

func TestReportError(t *testing.T) {
	appErr := appErrors.NewAppError(appErrors.ErrorTypeConnection, "dial tcp 10.0.0.5:3306: i/o timeout", nil)
	appErr.UserMessage = "Cannot reach the database server"

	var buf bytes.Buffer
	reportError(&buf, fmt.Errorf("backup failed: %w", appErr))
	assert.Equal(t, "Error: Cannot reach the database server\n", buf.String())

	buf.Reset()
	reportError(&buf, errors.New("plain failure"))
	assert.Equal(t, "Error: plain failure\n", buf.String())
}

func TestCommandErrorsAreNotPrintedTwice(t *testing.T) {
	_, errOut, err := execute(t, "", "backup", "delete", "missing.sql", "--backup-dir", t.TempDir(), "--yes")
	require.Error(t, err)
	assert.NotContains(t, errOut, "Error:")
}

func TestBackupImport(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	outDir := t.TempDir()
	writeDump(t, source, "a.sql", validDump, time.Hour)
	t.Setenv(PassphraseEnv, "correct horse")

	_, _, err := execute(t, "", "backup", "export", "a.sql", "--backup-dir", source, "--compression", "zstd", "--encrypt", "-o", outDir)
	require.NoError(t, err)

	exported := filepath.Join(outDir, "a.sql.zst.enc")
	out, _, err := execute(t, "", "backup", "import", exported, "--backup-dir", target, "--format", "compact")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("a.sql\t%d\n", len(validDump)), out)

	imported, err := os.ReadFile(filepath.Join(target, "a.sql"))
	require.NoError(t, err)
	assert.Equal(t, validDump, string(imported))

	// The same name cannot be imported twice.
	_, _, err = execute(t, "", "backup", "import", exported, "--backup-dir", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestBackupImport_Stdin(t *testing.T) {
	dir := t.TempDir()

	_, _, err := execute(t, validDump, "backup", "import", "-", "--backup-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--name")

	_, _, err = execute(t, validDump, "backup", "import", "-", "--name", "piped.sql", "--backup-dir", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "piped.sql"))
}
