package backup

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	sqlExtension      = ".sql"
	defaultNamePrefix = "backup"
)

var fileSizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with 1024-based units and two decimals
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}

	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(fileSizeUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", value, fileSizeUnits[unit])
}

var timestampReplacer = strings.NewReplacer(":", "-", ".", "-")

// GenerateFilename builds "<name>-<timestamp>.sql", e.g.
// backup-2025-01-15T10-30-00-000Z.sql. The timestamp is UTC with millisecond
// precision.
func GenerateFilename(name string, now time.Time) string {
	prefix := strings.TrimSpace(name)
	if prefix == "" {
		prefix = defaultNamePrefix
	}
	stamp := timestampReplacer.Replace(now.UTC().Format("2006-01-02T15:04:05.000Z"))
	return fmt.Sprintf("%s-%s%s", prefix, stamp, sqlExtension)
}

// ValidateFilename rejects anything that is not a plain file name
func ValidateFilename(filename string) error {
	switch {
	case filename == "":
		return NewValidationError("filename is required", nil)
	case strings.ContainsAny(filename, `/\`) || strings.ContainsRune(filename, 0):
		return NewValidationError(fmt.Sprintf("filename must not contain path separators: %q", filename), nil)
	case filename == "." || filename == ".." || path.Clean(filename) != filename:
		return NewValidationError(fmt.Sprintf("invalid filename: %q", filename), nil)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return nil
	}
	return ValidateFilename(name)
}

func isSQLFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), sqlExtension)
}

func trimSQLExtension(name string) string {
	if isSQLFile(name) {
		return name[:len(name)-len(sqlExtension)]
	}
	return name
}

// QuoteIdentifier wraps a table or column name in backticks
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
