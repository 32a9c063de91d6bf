package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mysql-backup-restore/internal/api"
	appErrors "mysql-backup-restore/internal/errors"
	"mysql-backup-restore/internal/scheduler"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the backup HTTP API",
	Long: `Serve the backup HTTP API until interrupted.

Routes:
  GET    /backups                      list backups
  POST   /backups                      create a backup
  GET    /backups/stats                catalog statistics
  GET    /backups/config               storage and auto backup settings
  POST   /backups/cleanup              apply the retention period
  GET    /backups/{filename}/validate  validate a backup
  POST   /backups/{filename}/restore   restore a backup
  GET    /backups/{filename}/download  download, optionally ?compression=zstd
  DELETE /backups/{filename}           delete a backup

When backup.auto_backup.enabled is true the scheduler runs in the same process.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, \":8080\")")
}

// runServe starts the HTTP API and, when enabled, the scheduler
func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd, true)
	if err != nil {
		return err
	}

	serverConfig := a.config.Server
	if serveAddr != "" {
		serverConfig.Address = serveAddr
	}

	shutdown := appErrors.NewGracefulShutdownHandler()
	shutdown.RegisterShutdownFunc(func() error {
		a.Close()
		return nil
	})

	if a.config.Backup.AutoBackup.Enabled {
		s, err := scheduler.New(a.service, a.config.Backup.AutoBackup, a.logger)
		if err != nil {
			a.Close()
			return err
		}
		s.WithRunTimeout(a.config.Timeout)
		if err := s.Start(); err != nil {
			a.Close()
			return err
		}
		shutdown.RegisterShutdownFunc(func() error {
			s.Stop()
			return nil
		})
	}

	server := api.NewServer(api.New(a.service, a.logger), serverConfig, a.logger)
	shutdown.RegisterShutdownFunc(server.Shutdown)

	server.Start()
	shutdown.Start()
	a.display.Info(fmt.Sprintf("Serving the backup API on %s. Press Ctrl+C to stop.", serverConfig.Address))

	failed := make(chan error, 1)
	go func() {
		if err, ok := <-server.Errors(); ok {
			failed <- err
			shutdown.Shutdown()
		}
	}()

	shutdown.WaitForShutdown()
	select {
	case err := <-failed:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		return nil
	}
}
