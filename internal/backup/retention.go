package backup

import (
	"context"
	"fmt"
	"time"

	"mysql-backup-restore/internal/logging"
)

// DefaultRetentionDays is used when no positive retention is given
const DefaultRetentionDays = 7

// RetentionSweeper deletes dumps older than a retention window
type RetentionSweeper struct {
	catalog *Catalog
	logger  *logging.Logger
	now     Clock
	policy  ErrorPolicy
}

// NewRetentionSweeper creates a best-effort sweeper
func NewRetentionSweeper(catalog *Catalog, logger *logging.Logger, clock Clock) *RetentionSweeper {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if clock == nil {
		clock = time.Now
	}
	return &RetentionSweeper{
		catalog: catalog,
		logger:  logger,
		now:     clock,
		policy:  PolicyBestEffort,
	}
}

// WithPolicy sets how a failed delete is handled
func (rs *RetentionSweeper) WithPolicy(policy ErrorPolicy) *RetentionSweeper {
	rs.policy = policy.resolve(PolicyBestEffort)
	return rs
}

// Cleanup deletes every dump created before now minus retentionDays. Files
// that fail to delete are reported in Errors and are not counted.
func (rs *RetentionSweeper) Cleanup(ctx context.Context, retentionDays int) (*CleanupResult, error) {
	if retentionDays <= 0 {
		return nil, NewValidationError(fmt.Sprintf("retention days must be positive, got %d", retentionDays), nil)
	}

	files, err := rs.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := rs.now().AddDate(0, 0, -retentionDays)
	result := &CleanupResult{}

	for _, f := range files {
		if !f.CreatedAt.Before(cutoff) {
			continue
		}

		if err := rs.catalog.Delete(ctx, f.Filename); err != nil {
			if rs.policy == PolicyFailFast {
				return result, err
			}
			rs.logger.WithFields(map[string]interface{}{
				"filename": f.Filename,
				"error":    err.Error(),
			}).Warn("Failed to delete expired backup")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Filename, err))
			continue
		}

		result.DeletedCount++
		result.FreedBytes += f.Size
		result.DeletedFiles = append(result.DeletedFiles, f.Filename)
	}

	result.FreedFormatted = FormatFileSize(result.FreedBytes)

	rs.logger.WithFields(map[string]interface{}{
		"retention_days": retentionDays,
		"cutoff":         cutoff.Format(time.RFC3339),
		"deleted":        result.DeletedCount,
		"freed_bytes":    result.FreedBytes,
		"errors":         len(result.Errors),
	}).Info("Retention cleanup finished")

	return result, nil
}
