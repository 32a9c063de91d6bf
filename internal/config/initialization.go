package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mysql-backup-restore/internal/backup"
	"mysql-backup-restore/internal/logging"
)

// InitializationResult represents the result of backup system initialization
type InitializationResult struct {
	Success          bool     `json:"success" yaml:"success"`
	ConfigValid      bool     `json:"configValid" yaml:"config_valid"`
	StorageReady     bool     `json:"storageReady" yaml:"storage_ready"`
	DatabaseReady    bool     `json:"databaseReady" yaml:"database_ready"`
	BackupCount      int      `json:"backupCount" yaml:"backup_count"`
	Warnings         []string `json:"warnings" yaml:"warnings"`
	Errors           []string `json:"errors" yaml:"errors"`
	RecommendedFixes []string `json:"recommendedFixes" yaml:"recommended_fixes"`
}

// DatabaseProbe checks that the configured database accepts connections
type DatabaseProbe func(ctx context.Context) error

// BackupSystemInitializer prepares the backup storage and reports anything
// that would stop a dump, restore or scheduled run from working
type BackupSystemInitializer struct {
	config *Config
	store  backup.BackupStore
	probe  DatabaseProbe
	logger *logging.Logger
}

// NewBackupSystemInitializer creates an initializer. probe may be nil to skip
// the database check.
func NewBackupSystemInitializer(config *Config, store backup.BackupStore, probe DatabaseProbe, logger *logging.Logger) *BackupSystemInitializer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &BackupSystemInitializer{config: config, store: store, probe: probe, logger: logger}
}

// Initialize validates the configuration, prepares local storage, lists the
// store and optionally pings the database. Problems are collected in the
// result rather than returned.
func (bsi *BackupSystemInitializer) Initialize(ctx context.Context) *InitializationResult {
	result := &InitializationResult{
		Success:          true,
		ConfigValid:      true,
		StorageReady:     true,
		Warnings:         []string{},
		Errors:           []string{},
		RecommendedFixes: []string{},
	}

	bsi.logger.Info("Initializing backup system")

	if err := bsi.config.Validate(); err != nil {
		result.ConfigValid = false
		result.fail(fmt.Sprintf("configuration validation failed: %v", err))
	}

	if err := bsi.initializeStorage(result); err != nil {
		result.StorageReady = false
		result.fail(fmt.Sprintf("storage initialization failed: %v", err))
	}

	if result.StorageReady && bsi.store != nil {
		objects, err := bsi.store.List(ctx)
		if err != nil {
			result.StorageReady = false
			result.fail(fmt.Sprintf("cannot list backups: %v", err))
		} else {
			result.BackupCount = countDumps(objects)
		}
	}

	if bsi.probe != nil {
		if err := bsi.probe(ctx); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("database is not reachable: %v", err))
			result.RecommendedFixes = append(result.RecommendedFixes,
				"Check database.host, database.username and "+EnvPrefix+"_DATABASE_PASSWORD")
		} else {
			result.DatabaseReady = true
		}
	}

	bsi.generateRecommendations(result)

	bsi.logger.WithFields(map[string]interface{}{
		"success":       result.Success,
		"storage_ready": result.StorageReady,
		"warnings":      len(result.Warnings),
	}).Info("Backup system initialization finished")

	return result
}

func (r *InitializationResult) fail(message string) {
	r.Success = false
	r.Errors = append(r.Errors, message)
}

func (bsi *BackupSystemInitializer) initializeStorage(result *InitializationResult) error {
	storage := bsi.config.Backup.Storage
	switch storage.Provider {
	case backup.StorageProviderLocal, "":
		return bsi.initializeLocalStorage(storage.Local)
	case backup.StorageProviderS3:
		if storage.S3 != nil && storage.S3.AccessKey == "" && os.Getenv("AWS_ACCESS_KEY_ID") == "" {
			result.Warnings = append(result.Warnings, "AWS credentials are not configured")
			result.RecommendedFixes = append(result.RecommendedFixes,
				"Set backup.storage.s3.access_key/secret_key or export AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
		}
	case backup.StorageProviderGCS:
		if storage.GCS == nil {
			return nil
		}
		if storage.GCS.CredentialsPath == "" {
			if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
				result.Warnings = append(result.Warnings, "Google Cloud credentials are not configured")
				result.RecommendedFixes = append(result.RecommendedFixes,
					"Set GCS credentials: export GOOGLE_APPLICATION_CREDENTIALS=/path/to/credentials.json")
			}
		} else if _, err := os.Stat(storage.GCS.CredentialsPath); os.IsNotExist(err) {
			return fmt.Errorf("GCS credentials file does not exist: %s", storage.GCS.CredentialsPath)
		}
	case backup.StorageProviderMemory:
		result.Warnings = append(result.Warnings, "memory storage keeps backups only for the life of the process")
	}
	return nil
}

// initializeLocalStorage creates the backup directory and checks it is writable
func (bsi *BackupSystemInitializer) initializeLocalStorage(local *backup.LocalConfig) error {
	if local == nil || local.BasePath == "" {
		return fmt.Errorf("local storage base_path is not set")
	}

	perm := os.FileMode(local.Permissions)
	if perm == 0 {
		perm = 0755
	}
	if err := os.MkdirAll(local.BasePath, perm); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	testFile := filepath.Join(local.BasePath, ".backup_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return fmt.Errorf("backup directory is not writable: %w", err)
	}
	os.Remove(testFile)

	bsi.logger.WithField("path", local.BasePath).Debug("Local storage ready")
	return nil
}

func (bsi *BackupSystemInitializer) generateRecommendations(result *InitializationResult) {
	auto := bsi.config.Backup.AutoBackup
	if auto.Enabled && auto.MaxBackupSize == "" {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Set backup.auto_backup.max_backup_size to be warned about unexpectedly large dumps")
	}
	if bsi.config.Backup.Storage.Provider == backup.StorageProviderLocal && !auto.Enabled {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Enable backup.auto_backup or run 'backup cleanup' regularly to keep the backup directory bounded")
	}
	if bsi.config.Database.Password != "" {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Move database.password to "+EnvPrefix+"_DATABASE_PASSWORD and restrict the config file permissions")
	}
}

func countDumps(objects []backup.ObjectInfo) int {
	count := 0
	for _, o := range objects {
		if filepath.Ext(o.Name) == ".sql" {
			count++
		}
	}
	return count
}
