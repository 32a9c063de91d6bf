package backup

import (
	"time"
)

// BackupFile describes one dump held by the store
type BackupFile struct {
	Filename      string    `json:"filename" yaml:"filename"`
	Size          int64     `json:"size" yaml:"size"`
	SizeFormatted string    `json:"sizeFormatted" yaml:"size_formatted"`
	CreatedAt     time.Time `json:"createdAt" yaml:"created_at"`

	// Populated only by CreateBackup.
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	TableCount   int      `json:"tableCount,omitempty" yaml:"table_count,omitempty"`
	RecordCount  int64    `json:"recordCount,omitempty" yaml:"record_count,omitempty"`
	FailedTables []string `json:"failedTables,omitempty" yaml:"failed_tables,omitempty"`
}

// ID returns the filename without its .sql extension
func (b *BackupFile) ID() string {
	return trimSQLExtension(b.Filename)
}

// ErrorPolicy selects how a multi-step operation reacts to a failing step
type ErrorPolicy string

const (
	// PolicyDefault lets each operation use its own default
	PolicyDefault ErrorPolicy = ""
	// PolicyBestEffort records the failure and continues with the next item
	PolicyBestEffort ErrorPolicy = "best-effort"
	// PolicyFailFast aborts the operation on the first failure
	PolicyFailFast ErrorPolicy = "fail-fast"
)

func (p ErrorPolicy) resolve(def ErrorPolicy) ErrorPolicy {
	if p == PolicyDefault {
		return def
	}
	return p
}

// CreateOptions configures CreateBackup
type CreateOptions struct {
	// Name prefixes the generated filename; "backup" when empty.
	Name        string
	Description string
	// IncludeData defaults to true when nil.
	IncludeData   *bool
	IncludeTables []string
	ExcludeTables []string
	// OnTableError defaults to PolicyBestEffort.
	OnTableError ErrorPolicy
}

func (o CreateOptions) includeData() bool {
	return o.IncludeData == nil || *o.IncludeData
}

// RestoreOptions configures RestoreBackup
type RestoreOptions struct {
	Filename string
	// DropExisting defaults to true when nil. When false, DROP TABLE
	// statements in the dump are skipped.
	DropExisting *bool
	// IgnoreErrors switches statement failures from fail-fast to best-effort.
	IgnoreErrors bool
}

func (o RestoreOptions) dropExisting() bool {
	return o.DropExisting == nil || *o.DropExisting
}

func (o RestoreOptions) policy() ErrorPolicy {
	if o.IgnoreErrors {
		return PolicyBestEffort
	}
	return PolicyFailFast
}

// RestoreResult reports the outcome of a restore
type RestoreResult struct {
	Success            bool     `json:"success"`
	Message            string   `json:"message"`
	TablesRestored     int      `json:"tablesRestored"`
	StatementsExecuted int      `json:"statementsExecuted"`
	StatementsSkipped  int      `json:"statementsSkipped"`
	StatementsFailed   int      `json:"statementsFailed"`
	Warnings           []string `json:"warnings,omitempty"`
}

// ValidationResult reports structural problems found in a dump
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// BackupStats aggregates the current catalog. LatestBackup and OldestBackup
// are nil when the catalog is empty.
type BackupStats struct {
	TotalBackups       int         `json:"totalBackups" yaml:"total_backups"`
	TotalSize          int64       `json:"totalSize" yaml:"total_size"`
	TotalSizeFormatted string      `json:"totalSizeFormatted" yaml:"total_size_formatted"`
	LatestBackup       *BackupFile `json:"latestBackup" yaml:"latest_backup"`
	OldestBackup       *BackupFile `json:"oldestBackup" yaml:"oldest_backup"`
}

// CleanupResult reports what a retention sweep removed
type CleanupResult struct {
	DeletedCount   int      `json:"deletedCount"`
	FreedBytes     int64    `json:"freedBytes"`
	FreedFormatted string   `json:"freedFormatted"`
	DeletedFiles   []string `json:"deletedFiles,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// Clock returns the current time
type Clock func() time.Time
