// Package config loads the application configuration from the config file,
// MYSQL_BACKUP_* environment variables and bound command line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mysql-backup-restore/internal/api"
	"mysql-backup-restore/internal/backup"
	"mysql-backup-restore/internal/database"
	"mysql-backup-restore/internal/display"
	"mysql-backup-restore/internal/logging"
)

const (
	// EnvPrefix is prepended to every environment variable
	EnvPrefix = "MYSQL_BACKUP"
	// ConfigName is the file name searched for in the home and working directories
	ConfigName = ".mysql-backup-restore"
)

// Config is the complete application configuration
type Config struct {
	Database database.DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Backup   backup.BackupSystemConfig `mapstructure:"backup" yaml:"backup"`
	Logging  logging.Config            `mapstructure:"logging" yaml:"logging"`
	Server   api.ServerConfig          `mapstructure:"server" yaml:"server"`
	Display  display.DisplayConfig     `mapstructure:"display" yaml:"display"`
	// Timeout bounds a single CLI operation.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetupViper points v at configFile, or at the default search paths when it
// is empty, and enables environment overrides. A missing default config file
// is not an error.
func SetupViper(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configFile == "" {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// SetDefaults registers every default with v. Keys need a default to be
// picked up from the environment by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("timeout", "30m")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")
	v.SetDefault("database.timeout", "30s")
	v.SetDefault("database.charset", "utf8mb4")

	v.SetDefault("backup.storage.provider", string(backup.StorageProviderLocal))
	v.SetDefault("backup.storage.local.base_path", backup.DefaultBackupDir())
	v.SetDefault("backup.storage.local.permissions", 0755)
	v.SetDefault("backup.retention.days", backup.DefaultRetentionDays)
	v.SetDefault("backup.retention.on_error", string(backup.PolicyBestEffort))
	v.SetDefault("backup.export.compression", string(backup.CompressionTypeGzip))
	v.SetDefault("backup.on_table_error", string(backup.PolicyBestEffort))
	v.SetDefault("backup.auto_backup.enabled", false)
	v.SetDefault("backup.auto_backup.schedule", backup.DefaultSchedule)
	v.SetDefault("backup.auto_backup.retention", backup.DefaultRetentionDays)
	v.SetDefault("backup.auto_backup.max_backup_size", "")
	v.SetDefault("backup.auto_backup.name_prefix", backup.DefaultAutoPrefix)

	v.SetDefault("logging.level", string(logging.LogLevelNormal))
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.show_caller", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30m")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("display.color_enabled", true)
	v.SetDefault("display.theme", string(display.ThemeDark))
	v.SetDefault("display.output_format", string(display.FormatTable))
	v.SetDefault("display.use_icons", true)
	v.SetDefault("display.show_progress", true)
	v.SetDefault("display.interactive", true)
	v.SetDefault("display.quiet", false)
	v.SetDefault("display.table_style", string(display.TableStyleDefault))
	v.SetDefault("display.max_table_width", 120)
}

// Load decodes v into a Config, fills the remaining defaults and validates
// everything except the database section, which only some commands need.
func Load(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, backup.NewConfigurationError("failed to decode configuration", err)
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	config := &Config{Display: *display.DefaultDisplayConfig()}
	config.Logging.Level = logging.LogLevelNormal
	config.Logging.Format = "text"
	config.SetDefaults()
	return config
}

// SetDefaults fills unset values in every section
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Minute
	}
	c.Database.SetDefaults()
	c.Backup.SetDefaults()
	c.Server.SetDefaults()
	c.Display.SetDefaults()
	if c.Logging.Level == "" {
		c.Logging.Level = logging.LogLevelNormal
	}
}

// Validate checks every section but the database connection
func (c *Config) Validate() error {
	var errs []error

	if err := c.Backup.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Display.Validate(); err != nil {
		errs = append(errs, backup.NewConfigurationError("invalid display configuration", err))
	}
	switch c.Logging.Level {
	case logging.LogLevelQuiet, logging.LogLevelNormal, logging.LogLevelVerbose, logging.LogLevelDebug:
	default:
		errs = append(errs, backup.NewConfigurationError(fmt.Sprintf("invalid log level %q", c.Logging.Level), nil))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, backup.NewConfigurationError(fmt.Sprintf("invalid log format %q", c.Logging.Format), nil))
	}
	if c.Server.Address == "" {
		errs = append(errs, backup.NewConfigurationError("server address is required", nil))
	}

	return errors.Join(errs...)
}

// ValidateDatabase checks the connection settings for commands that dump or
// restore
func (c *Config) ValidateDatabase() error {
	if err := c.Database.Validate(); err != nil {
		return backup.NewConfigurationError("invalid database configuration", err)
	}
	return nil
}

// SampleYAML renders a commented configuration template holding the defaults
func SampleYAML() ([]byte, error) {
	config := Default()
	config.Database.Username = "backup"
	config.Database.Database = "app"
	config.Backup.Storage.Local.BasePath = "./backups"

	body, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to render sample configuration: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# mysql-backup-restore configuration\n")
	buf.WriteString("# Every key can be overridden with an environment variable, e.g.\n")
	buf.WriteString("#   " + EnvPrefix + "_DATABASE_PASSWORD=secret\n")
	buf.WriteString("#   " + EnvPrefix + "_BACKUP_STORAGE_PROVIDER=s3\n")
	buf.WriteString("# Keep passwords out of this file and restrict its permissions (chmod 600).\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}
