package backup

import (
	"errors"
	"fmt"

	"github.com/docker/go-units"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule   = "0 2 * * *"
	DefaultAutoPrefix = "auto"
)

// BackupSystemConfig represents the complete backup system configuration
type BackupSystemConfig struct {
	Storage    StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Retention  RetentionConfig    `mapstructure:"retention" yaml:"retention"`
	Export     ExportConfig       `mapstructure:"export" yaml:"export"`
	AutoBackup AutoBackupSettings `mapstructure:"auto_backup" yaml:"auto_backup"`
	// OnTableError is the dump policy for a table that cannot be read.
	OnTableError ErrorPolicy `mapstructure:"on_table_error" yaml:"on_table_error"`
}

// RetentionConfig defines how long dumps are kept
type RetentionConfig struct {
	Days int `mapstructure:"days" yaml:"days"`
	// OnError decides whether cleanup stops at the first failed delete.
	OnError ErrorPolicy `mapstructure:"on_error" yaml:"on_error"`
}

// ExportConfig holds export defaults
type ExportConfig struct {
	Compression CompressionType `mapstructure:"compression" yaml:"compression"`
}

// AutoBackupSettings configures the scheduled backup job
type AutoBackupSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Schedule string `mapstructure:"schedule" yaml:"schedule" json:"schedule"`
	// Retention is in days.
	Retention int `mapstructure:"retention" yaml:"retention" json:"retention"`
	// MaxBackupSize is a human size such as "512MB"; empty means no limit.
	MaxBackupSize string `mapstructure:"max_backup_size" yaml:"max_backup_size" json:"maxBackupSize"`
	NamePrefix    string `mapstructure:"name_prefix" yaml:"name_prefix" json:"namePrefix"`
}

// SetDefaults fills unset values
func (bsc *BackupSystemConfig) SetDefaults() {
	if bsc.Storage.Provider == "" {
		bsc.Storage.Provider = StorageProviderLocal
	}
	if bsc.Storage.Provider == StorageProviderLocal && bsc.Storage.Local == nil {
		bsc.Storage.Local = &LocalConfig{BasePath: DefaultBackupDir(), Permissions: 0755}
	}
	if bsc.Retention.Days <= 0 {
		bsc.Retention.Days = DefaultRetentionDays
	}
	if bsc.Retention.OnError == PolicyDefault {
		bsc.Retention.OnError = PolicyBestEffort
	}
	if bsc.Export.Compression == "" {
		bsc.Export.Compression = CompressionTypeGzip
	}
	if bsc.OnTableError == PolicyDefault {
		bsc.OnTableError = PolicyBestEffort
	}
	bsc.AutoBackup.SetDefaults()
}

// SetDefaults fills unset values
func (s *AutoBackupSettings) SetDefaults() {
	if s.Schedule == "" {
		s.Schedule = DefaultSchedule
	}
	if s.Retention <= 0 {
		s.Retention = DefaultRetentionDays
	}
	if s.NamePrefix == "" {
		s.NamePrefix = DefaultAutoPrefix
	}
}

// MaxBackupSizeBytes parses MaxBackupSize; 0 means unlimited
func (s *AutoBackupSettings) MaxBackupSizeBytes() (int64, error) {
	if s.MaxBackupSize == "" {
		return 0, nil
	}
	size, err := units.FromHumanSize(s.MaxBackupSize)
	if err != nil {
		return 0, NewConfigurationError(fmt.Sprintf("invalid max_backup_size %q", s.MaxBackupSize), err)
	}
	return size, nil
}

// Validate checks the auto backup settings
func (s *AutoBackupSettings) Validate() error {
	var errs []error
	if s.Enabled || s.Schedule != "" {
		if _, err := cron.ParseStandard(s.Schedule); err != nil {
			errs = append(errs, NewConfigurationError(fmt.Sprintf("invalid schedule %q", s.Schedule), err))
		}
	}
	if s.Retention < 0 {
		errs = append(errs, NewConfigurationError("retention must not be negative", nil))
	}
	if _, err := s.MaxBackupSizeBytes(); err != nil {
		errs = append(errs, err)
	}
	if err := validateName(s.NamePrefix); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validatePolicy(key string, policy ErrorPolicy) error {
	switch policy {
	case PolicyDefault, PolicyBestEffort, PolicyFailFast:
		return nil
	}
	return NewConfigurationError(fmt.Sprintf("unknown error policy %q for %s", policy, key), nil)
}

// Validate validates the BackupSystemConfig
func (bsc *BackupSystemConfig) Validate() error {
	var errs []error

	if err := bsc.Storage.Validate(); err != nil {
		errs = append(errs, err)
	}
	if bsc.Retention.Days < 0 {
		errs = append(errs, NewConfigurationError("retention days must not be negative", nil))
	}
	if _, err := GetCompressor(bsc.Export.Compression); err != nil {
		errs = append(errs, err)
	}
	if err := validatePolicy("on_table_error", bsc.OnTableError); err != nil {
		errs = append(errs, err)
	}
	if err := validatePolicy("retention.on_error", bsc.Retention.OnError); err != nil {
		errs = append(errs, err)
	}
	if err := bsc.AutoBackup.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
