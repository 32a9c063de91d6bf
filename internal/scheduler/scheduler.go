// Package scheduler runs the automatic backup job on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"mysql-backup-restore/internal/backup"
	"mysql-backup-restore/internal/logging"
)

// ErrRunInProgress is returned by RunOnce while another run is active
var ErrRunInProgress = errors.New("scheduled backup already running")

// BackupRunner is the part of backup.Service the scheduler drives
type BackupRunner interface {
	CreateBackup(ctx context.Context, opts backup.CreateOptions) (*backup.BackupFile, error)
	CleanupOldBackups(ctx context.Context, retentionDays int) (*backup.CleanupResult, error)
}

// RunResult describes one completed run
type RunResult struct {
	Backup    *backup.BackupFile
	Cleanup   *backup.CleanupResult
	Oversized bool
	Warnings  []string
	StartedAt time.Time
	Duration  time.Duration
}

// Scheduler owns the cron instance and the single auto-backup entry
type Scheduler struct {
	cron     *cron.Cron
	runner   BackupRunner
	settings backup.AutoBackupSettings
	maxSize  int64
	logger   *logging.Logger
	timeout  time.Duration

	running atomic.Bool
	mu      sync.Mutex
	entry   cron.EntryID
	started bool
	last    *RunResult
}

// New validates the settings and builds a stopped scheduler
func New(runner BackupRunner, settings backup.AutoBackupSettings, logger *logging.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	settings.SetDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	maxSize, err := settings.MaxBackupSizeBytes()
	if err != nil {
		return nil, err
	}

	cl := cronLogger{logger}
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cl)), cron.WithLogger(cl)),
		runner:   runner,
		settings: settings,
		maxSize:  maxSize,
		logger:   logger,
		timeout:  time.Hour,
	}, nil
}

// WithRunTimeout bounds each scheduled run
func (s *Scheduler) WithRunTimeout(d time.Duration) *Scheduler {
	s.timeout = d
	return s
}

// Settings returns the effective settings
func (s *Scheduler) Settings() backup.AutoBackupSettings {
	return s.settings
}

// Start registers the job and starts the cron loop in its own goroutine
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	entry, err := s.cron.AddFunc(s.settings.Schedule, s.tick)
	if err != nil {
		return backup.NewConfigurationError(fmt.Sprintf("could not add backup job for schedule %q", s.settings.Schedule), err)
	}
	s.entry = entry
	s.started = true
	s.cron.Start()

	s.logger.WithFields(map[string]interface{}{
		"schedule":  s.settings.Schedule,
		"retention": s.settings.Retention,
		"next_run":  s.cron.Entry(entry).Next,
	}).Info("Backup scheduler started")
	return nil
}

// Stop stops the cron loop and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cron.Remove(s.entry)
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Backup scheduler stopped")
}

// NextRun returns the next activation time, zero when not started
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// NextAfter returns the first activation after t, whether or not the
// scheduler is running
func (s *Scheduler) NextAfter(t time.Time) time.Time {
	schedule, err := cron.ParseStandard(s.settings.Schedule)
	if err != nil {
		return time.Time{}
	}
	return schedule.Next(t)
}

// LastRun returns the most recent successful run, if any
func (s *Scheduler) LastRun() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("Skipping scheduled backup: previous run still in progress")
			return
		}
		s.logger.WithField("error", err.Error()).Error("Scheduled backup failed")
	}
}

// RunOnce creates one backup and then applies the retention policy. A cleanup
// failure is reported as a warning; the backup itself still counts.
func (s *Scheduler) RunOnce(ctx context.Context) (*RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	result := &RunResult{StartedAt: time.Now()}

	file, err := s.runner.CreateBackup(ctx, backup.CreateOptions{
		Name:        s.settings.NamePrefix,
		Description: "Automatic backup",
	})
	if err != nil {
		return nil, err
	}
	result.Backup = file

	if s.maxSize > 0 && file.Size > s.maxSize {
		result.Oversized = true
		msg := fmt.Sprintf("backup %s is %s, above the %s limit", file.Filename, file.SizeFormatted, s.settings.MaxBackupSize)
		result.Warnings = append(result.Warnings, msg)
		s.logger.WithFields(map[string]interface{}{
			"filename": file.Filename,
			"size":     file.Size,
			"limit":    s.maxSize,
		}).Warn("Backup exceeds configured maximum size")
	}

	cleanup, err := s.runner.CleanupOldBackups(ctx, s.settings.Retention)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("cleanup failed: %v", err))
		s.logger.WithField("error", err.Error()).Warn("Retention cleanup failed after scheduled backup")
	} else {
		result.Cleanup = cleanup
		result.Warnings = append(result.Warnings, cleanup.Errors...)
	}

	result.Duration = time.Since(result.StartedAt)

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"filename": file.Filename,
		"duration": result.Duration.String(),
		"warnings": len(result.Warnings),
	}).Info("Scheduled backup completed")
	return result, nil
}

// cronLogger adapts logging.Logger to cron.Logger
type cronLogger struct {
	logger *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvFields(keysAndValues)
	fields["error"] = err.Error()
	c.logger.WithFields(fields).Error("cron: " + msg)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
