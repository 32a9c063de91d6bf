package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows every executed statement
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel  `mapstructure:"level" yaml:"level"`
	Output     io.Writer `mapstructure:"-" yaml:"-"`
	Format     string    `mapstructure:"format" yaml:"format"` // "text" or "json"
	ShowCaller bool      `mapstructure:"show_caller" yaml:"show_caller"`
	LogFile    string    `mapstructure:"file" yaml:"file"`

	// Rotation settings for LogFile, in megabytes / files / days.
	MaxSizeMB  int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	logger.SetOutput(output)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("unsupported log format %q", config.Format)
	}

	logger.SetLevel(toLogrusLevel(config.Level))

	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})
	}

	if config.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.LogFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory for %s: %w", config.LogFile, err)
		}

		rotator := &lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    defaultInt(config.MaxSizeMB, 100),
			MaxBackups: defaultInt(config.MaxBackups, 3),
			MaxAge:     defaultInt(config.MaxAgeDays, 28),
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(output, rotator))
	}

	return &Logger{logger: logger}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: os.Stderr,
		Format: "text",
	})
	return logger
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	logger, _ := NewLogger(Config{Level: LogLevelQuiet, Output: io.Discard})
	return logger
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelQuiet:
		return logrus.ErrorLevel
	case LogLevelVerbose:
		return logrus.DebugLevel
	case LogLevelDebug:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// WithContext returns a logger entry carrying the request ID found in ctx, if any
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.logger.WithContext(ctx)
	if requestID := GetRequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	return entry
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// LogDatabaseConnection logs database connection attempts
func (l *Logger) LogDatabaseConnection(host string, database string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "database_connection",
		"host":      host,
		"database":  database,
		"duration":  duration.String(),
		"success":   success,
	}

	if success {
		l.logger.WithFields(fields).Info("Database connection established")
		return
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.logger.WithFields(fields).Error("Database connection failed")
}

// LogSQLExecution logs a single executed statement. Successful statements are
// only visible at verbose level and above.
func (l *Logger) LogSQLExecution(sql string, duration time.Duration, rowsAffected int64, err error) {
	fields := logrus.Fields{
		"operation":     "sql_execution",
		"duration":      duration.String(),
		"rows_affected": rowsAffected,
	}

	fields["sql"] = SanitizeSQL(sql)
	if len(sql) > sanitizedSQLLimit {
		fields["sql_length"] = len(sql)
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Warn("SQL execution failed")
		return
	}
	l.logger.WithFields(fields).Debug("SQL executed successfully")
}

// LogBackupCreated logs the outcome of a dump
func (l *Logger) LogBackupCreated(filename string, tables, failedTables int, records int64, size int64, duration time.Duration) {
	fields := logrus.Fields{
		"operation":     "backup_create",
		"filename":      filename,
		"table_count":   tables,
		"failed_tables": failedTables,
		"record_count":  records,
		"size_bytes":    size,
		"duration":      duration.String(),
	}

	if failedTables > 0 {
		l.logger.WithFields(fields).Warn("Backup completed with table errors")
		return
	}
	l.logger.WithFields(fields).Info("Backup completed")
}

// LogRestoreCompleted logs the outcome of a restore
func (l *Logger) LogRestoreCompleted(filename string, tablesRestored, executed, failed int, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":           "backup_restore",
		"filename":            filename,
		"tables_restored":     tablesRestored,
		"statements_executed": executed,
		"statements_failed":   failed,
		"duration":            duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Restore failed, transaction rolled back")
		return
	}
	l.logger.WithFields(fields).Info("Restore completed")
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.logger.SetLevel(toLogrusLevel(level))
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	return l.logger.IsLevelEnabled(toLogrusLevel(level))
}

// LogOperationStart logs the start of an operation and returns a function to
// log its completion. Each operation gets its own operation_id.
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation":    operation,
		"operation_id": uuid.NewString(),
		"status":       "started",
	}
	for k, v := range fields {
		logFields[k] = v
	}

	l.logger.WithFields(logFields).Debug("Operation started")

	return func(err error) {
		logFields["status"] = "completed"
		logFields["duration"] = time.Since(startTime).String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			l.logger.WithFields(logFields).Error("Operation failed")
			return
		}
		logFields["success"] = true
		l.logger.WithFields(logFields).Info("Operation completed")
	}
}

// CreateContextWithRequestID creates a context with a request ID for tracing.
// An empty requestID generates a new one.
func CreateContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestIDFromContext extracts request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

const sanitizedSQLLimit = 500

// SanitizeSQL masks password assignments and truncates long statements for logging
func SanitizeSQL(sql string) string {
	sql = maskAssignment(sql, "password=")
	sql = maskAssignment(sql, "PASSWORD=")
	sql = maskIdentifiedBy(sql)

	if len(sql) > sanitizedSQLLimit {
		return sql[:sanitizedSQLLimit] + "... [truncated]"
	}
	return sql
}

func maskAssignment(sql, marker string) string {
	idx := strings.Index(sql, marker)
	if idx < 0 {
		return sql
	}
	rest := sql[idx+len(marker):]
	return sql[:idx] + marker + "***" + rest[valueEnd(rest):]
}

// maskIdentifiedBy hides the secret in CREATE USER / ALTER USER ... IDENTIFIED BY '...'.
func maskIdentifiedBy(sql string) string {
	upper := strings.ToUpper(sql)
	const marker = "IDENTIFIED BY "
	idx := strings.Index(upper, marker)
	if idx < 0 {
		return sql
	}
	start := idx + len(marker)
	rest := sql[start:]
	return sql[:start] + "***" + rest[valueEnd(rest):]
}

// valueEnd returns the length of the leading value in s: a quoted string
// including its quotes, or everything up to the next space.
func valueEnd(s string) int {
	if s == "" {
		return 0
	}
	if s[0] == '\'' || s[0] == '"' {
		if end := strings.IndexByte(s[1:], s[0]); end != -1 {
			return end + 2
		}
		return len(s)
	}
	if end := strings.IndexByte(s, ' '); end != -1 {
		return end
	}
	return len(s)
}
