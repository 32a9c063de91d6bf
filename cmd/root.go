package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mysql-backup-restore/internal/config"
	appErrors "mysql-backup-restore/internal/errors"
	"mysql-backup-restore/internal/logging"
)

var cfgFile string

// CLI flag variables
var (
	// Database flags
	dbHost     string
	dbPort     int
	dbUsername string
	dbPassword string
	dbName     string

	// Storage flags
	storageProvider string
	backupDir       string

	// Operation flags
	verbose     bool
	quiet       bool
	autoApprove bool
	timeout     time.Duration
	logFile     string

	// Display flags
	noColor       bool
	theme         string
	outputFormat  string
	noIcons       bool
	noProgress    bool
	noInteractive bool
	tableStyle    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mysql-backup-restore",
	Short: "Logical backup and restore for MySQL databases",
	Long: `MySQL Backup Restore dumps a MySQL database into a plain SQL script and
restores it transactionally. Dumps are kept in a local directory or in S3,
Azure Blob Storage or Google Cloud Storage, can be exported compressed and
encrypted, and can be taken on a cron schedule or through an HTTP API.

Examples:
  # Dump the database configured in ~/.mysql-backup-restore.yaml
  mysql-backup-restore backup create --name nightly

  # List dumps as JSON
  mysql-backup-restore backup list --format json

  # Restore a dump without dropping existing tables
  mysql-backup-restore restore nightly-2025-01-15T02-00-00-000Z.sql --keep-existing

  # Run the scheduled backup daemon
  mysql-backup-restore schedule

  # Serve the HTTP API
  mysql-backup-restore serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// reportError prints the user-facing message of err
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", appErrors.FormatUserError(err))
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mysql-backup-restore.yaml)")

	flags.StringVar(&dbHost, "db-host", "localhost", "database host")
	flags.IntVar(&dbPort, "db-port", 3306, "database port")
	flags.StringVar(&dbUsername, "db-user", "", "database username")
	flags.StringVar(&dbPassword, "db-password", "", "database password (prefer MYSQL_BACKUP_DATABASE_PASSWORD)")
	flags.StringVar(&dbName, "db-name", "", "database name")

	flags.StringVar(&storageProvider, "storage", "local", "storage provider (local, s3, azure, gcs, memory)")
	flags.StringVar(&backupDir, "backup-dir", "", "backup directory for local storage (default ./backups)")

	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	flags.BoolVarP(&autoApprove, "yes", "y", false, "answer yes to confirmation prompts")
	flags.DurationVar(&timeout, "timeout", 30*time.Minute, "timeout for a single operation")
	flags.StringVar(&logFile, "log-file", "", "also write logs to this file")

	flags.BoolVar(&noColor, "no-color", false, "disable color output")
	flags.StringVar(&theme, "theme", "dark", "color theme (dark, light, high-contrast, auto)")
	flags.StringVar(&outputFormat, "format", "table", "output format (table, json, yaml, compact)")
	flags.BoolVar(&noIcons, "no-icons", false, "disable Unicode icons")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress spinners")
	flags.BoolVar(&noInteractive, "no-interactive", false, "never prompt, approve confirmations automatically")
	flags.StringVar(&tableStyle, "table-style", "default", "table style (default, rounded, minimal)")

	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
}

// flagBindings maps configuration keys to persistent flags
var flagBindings = map[string]string{
	"database.host":                  "db-host",
	"database.port":                  "db-port",
	"database.username":              "db-user",
	"database.password":              "db-password",
	"database.database":              "db-name",
	"backup.storage.provider":        "storage",
	"backup.storage.local.base_path": "backup-dir",
	"timeout":                        "timeout",
	"logging.file":                   "log-file",
	"display.theme":                  "theme",
	"display.output_format":          "format",
	"display.table_style":            "table-style",
}

// bindFlags binds the changed persistent flags to v
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range flagBindings {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// validateFlags validates CLI flags and their combinations
func validateFlags() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}
	if timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// buildConfig combines the config file, MYSQL_BACKUP_* environment variables
// and command line flags
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := validateFlags(); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := config.SetupViper(v, cfgFile); err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd.Root().PersistentFlags()); err != nil {
		return nil, err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	// Inverted flags only override when given.
	if noColor {
		cfg.Display.ColorEnabled = false
	}
	if noIcons {
		cfg.Display.UseIcons = false
	}
	if noProgress {
		cfg.Display.ShowProgress = false
	}
	if noInteractive {
		cfg.Display.InteractiveMode = false
	}

	switch {
	case verbose:
		cfg.Logging.Level = logging.LogLevelVerbose
	case quiet:
		cfg.Logging.Level = logging.LogLevelQuiet
		cfg.Display.QuietMode = true
	}

	cfg.Display.Writer = cmd.OutOrStdout()
	cfg.Display.ErrWriter = cmd.ErrOrStderr()
	cfg.Display.Reader = cmd.InOrStdin()
	cfg.Logging.Output = cmd.ErrOrStderr()

	if verbose && v.ConfigFileUsed() != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", v.ConfigFileUsed())
	}

	return cfg, nil
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mysql-backup-restore version %s\n", version)
			fmt.Fprintf(out, "Built: %s\n", buildTime)
			fmt.Fprintf(out, "Commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Go version: %s\n", goVersion)
		},
	}
}

// createConfigCommand creates the config subcommand for generating sample config
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the --config flag.

Examples:
  mysql-backup-restore config > ~/.mysql-backup-restore.yaml
  chmod 600 ~/.mysql-backup-restore.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := config.SampleYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(sample)
			return err
		},
	}
}
