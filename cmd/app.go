package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"mysql-backup-restore/internal/backup"
	"mysql-backup-restore/internal/config"
	"mysql-backup-restore/internal/database"
	"mysql-backup-restore/internal/display"
	"mysql-backup-restore/internal/logging"
)

// app holds everything a command needs once configuration is loaded
type app struct {
	config  *config.Config
	logger  *logging.Logger
	display *display.Service
	store   backup.BackupStore
	service *backup.Service
	dbs     *database.Service
	db      *sql.DB
}

// newApp loads the configuration and wires the backup service. The database
// connection is opened only when withDB is set.
func newApp(ctx context.Context, cmd *cobra.Command, withDB bool) (*app, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := backup.NewStore(ctx, cfg.Backup.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Backup.Storage.Provider, err)
	}

	a := &app{
		config:  cfg,
		logger:  logger,
		display: display.NewService(&cfg.Display),
		store:   store,
		dbs:     database.NewServiceWithLogger(logger),
	}

	if withDB {
		if err := cfg.ValidateDatabase(); err != nil {
			return nil, err
		}
		a.db, err = a.dbs.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	a.service, err = backup.NewService(backup.ServiceOptions{
		DB:           a.db,
		DatabaseName: cfg.Database.Database,
		Store:        store,
		Config:       cfg.Backup,
		Logger:       logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// context returns a context bounded by the configured operation timeout
func (a *app) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, a.config.Timeout)
}

// confirm asks before a destructive action unless --yes was given
func (a *app) confirm(req display.ConfirmationRequest) error {
	ok, err := a.display.Confirm(req, autoApprove)
	if err != nil {
		return err
	}
	if !ok {
		return display.ErrCancelled
	}
	return nil
}

// Close releases the database connection
func (a *app) Close() {
	if a.db != nil {
		a.dbs.Close(a.db)
		a.db = nil
	}
}
