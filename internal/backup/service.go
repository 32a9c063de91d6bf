package backup

import (
	"context"
	"database/sql"
	"io"
	"time"

	"mysql-backup-restore/internal/logging"
)

// ServiceOptions wires a Service
type ServiceOptions struct {
	DB           *sql.DB
	DatabaseName string
	Store        BackupStore
	Config       BackupSystemConfig
	Logger       *logging.Logger
	// Clock defaults to time.Now.
	Clock Clock
}

// Service is the entry point used by the CLI, the scheduler and the HTTP API
type Service struct {
	config    BackupSystemConfig
	store     BackupStore
	catalog   *Catalog
	writer    *DumpWriter
	restorer  *RestoreExecutor
	sweeper   *RetentionSweeper
	validator *Validator
	exporter  *Exporter
	logger    *logging.Logger
}

// NewService creates a Service. The store must be set; the database is only
// needed for CreateBackup and RestoreBackup.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Store == nil {
		return nil, NewConfigurationError("backup store is required", nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	config := opts.Config
	config.SetDefaults()

	catalog := NewCatalog(opts.Store)
	return &Service{
		config:  config,
		store:   opts.Store,
		catalog: catalog,
		writer: NewDumpWriter(
			NewIntrospector(opts.DB, opts.DatabaseName),
			NewRowSerializer(opts.DB),
			opts.Store, opts.DatabaseName, opts.Logger, opts.Clock),
		restorer:  NewRestoreExecutor(opts.DB, opts.Store, opts.Logger, opts.Clock),
		sweeper:   NewRetentionSweeper(catalog, opts.Logger, opts.Clock).WithPolicy(config.Retention.OnError),
		validator: NewValidator(opts.Store),
		exporter:  NewExporter(catalog, opts.Clock),
		logger:    opts.Logger,
	}, nil
}

// Config returns the effective configuration
func (s *Service) Config() BackupSystemConfig {
	return s.config
}

// CreateBackup dumps the database into a new file
func (s *Service) CreateBackup(ctx context.Context, opts CreateOptions) (*BackupFile, error) {
	if opts.OnTableError == PolicyDefault {
		opts.OnTableError = s.config.OnTableError
	}

	done := s.logger.LogOperationStart("create_backup", map[string]interface{}{
		"name":   opts.Name,
		"policy": string(opts.OnTableError.resolve(PolicyBestEffort)),
	})
	file, err := s.writer.CreateBackup(ctx, opts)
	done(err)
	return file, err
}

// RestoreBackup replays a dump in one transaction
func (s *Service) RestoreBackup(ctx context.Context, opts RestoreOptions) (*RestoreResult, error) {
	done := s.logger.LogOperationStart("restore_backup", map[string]interface{}{
		"filename":      opts.Filename,
		"drop_existing": opts.dropExisting(),
		"ignore_errors": opts.IgnoreErrors,
	})
	result, err := s.restorer.Restore(ctx, opts)
	done(err)
	return result, err
}

// GetBackupList returns all dumps, newest first
func (s *Service) GetBackupList(ctx context.Context) ([]*BackupFile, error) {
	return s.catalog.List(ctx)
}

// GetBackup returns one dump's metadata
func (s *Service) GetBackup(ctx context.Context, filename string) (*BackupFile, error) {
	return s.catalog.Stat(ctx, filename)
}

// DeleteBackup removes one dump
func (s *Service) DeleteBackup(ctx context.Context, filename string) error {
	if err := s.catalog.Delete(ctx, filename); err != nil {
		return err
	}
	s.logger.WithField("filename", filename).Info("Backup deleted")
	return nil
}

// GetBackupStats summarizes the catalog
func (s *Service) GetBackupStats(ctx context.Context) (*BackupStats, error) {
	return s.catalog.Stats(ctx)
}

// CleanupOldBackups deletes dumps older than retentionDays; a value <= 0 uses
// the configured retention
func (s *Service) CleanupOldBackups(ctx context.Context, retentionDays int) (*CleanupResult, error) {
	if retentionDays <= 0 {
		retentionDays = s.config.Retention.Days
	}

	done := s.logger.LogOperationStart("cleanup_backups", map[string]interface{}{
		"retention_days": retentionDays,
		"policy":         string(s.config.Retention.OnError),
	})
	result, err := s.sweeper.Cleanup(ctx, retentionDays)
	done(err)
	return result, err
}

// ValidateBackup checks a dump's structure
func (s *Service) ValidateBackup(ctx context.Context, filename string) (*ValidationResult, error) {
	return s.validator.Validate(ctx, filename)
}

// ExportBackup writes a compressed and optionally encrypted copy of a dump to
// w. An empty compression uses the configured default.
func (s *Service) ExportBackup(ctx context.Context, filename string, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	if opts.Compression == "" {
		opts.Compression = s.config.Export.Compression
	}
	return s.exporter.Export(ctx, filename, w, opts)
}

// ImportBackup unpacks an exported dump and adds it to the store as filename
func (s *Service) ImportBackup(ctx context.Context, filename string, data []byte, opts ExportOptions) (*BackupFile, error) {
	done := s.logger.LogOperationStart("import_backup", map[string]interface{}{
		"filename":    filename,
		"compression": string(opts.Compression),
		"encrypted":   opts.Passphrase != "",
	})
	file, err := s.exporter.Import(ctx, filename, data, opts)
	done(err)
	return file, err
}

// OpenBackup returns a dump's raw contents for download
func (s *Service) OpenBackup(ctx context.Context, filename string) ([]byte, *BackupFile, error) {
	info, err := s.catalog.Stat(ctx, filename)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.catalog.Read(ctx, filename)
	if err != nil {
		return nil, nil, err
	}
	return data, info, nil
}

// AutoBackupSettings returns the scheduled backup settings
func (s *Service) AutoBackupSettings() AutoBackupSettings {
	return s.config.AutoBackup
}
