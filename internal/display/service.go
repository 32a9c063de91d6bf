// Package display renders command output as tables, JSON, YAML or compact
// tab-separated lines.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mysql-backup-restore/internal/backup"
)

// OutputFormat represents different output format options
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCompact OutputFormat = "compact"
)

const timeLayout = "2006-01-02 15:04:05"

// Service provides centralized formatting and output management
type Service struct {
	config *DisplayConfig
	colors *ColorSystem
	icons  *IconSystem
}

// NewService creates a display service; a nil config uses the defaults
func NewService(config *DisplayConfig) *Service {
	if config == nil {
		config = DefaultDisplayConfig()
	}
	config.SetDefaults()
	return &Service{
		config: config,
		colors: NewColorSystem(config.GetColorTheme(), config.IsColorEnabled()),
		icons:  NewIconSystem(config.IsIconsEnabled()),
	}
}

// Config returns the active configuration
func (s *Service) Config() *DisplayConfig {
	return s.config
}

func (s *Service) format() OutputFormat {
	return OutputFormat(s.config.OutputFormat)
}

func (s *Service) structured() bool {
	f := s.format()
	return f == FormatJSON || f == FormatYAML || f == FormatCompact
}

// Success prints a success message. Structured formats print nothing so the
// payload stays parseable.
func (s *Service) Success(message string) {
	if s.config.QuietMode || s.structured() {
		return
	}
	s.status(s.config.Writer, "success", message, s.colors.Theme().Success)
}

// Info prints an informational message
func (s *Service) Info(message string) {
	if s.config.QuietMode || s.structured() {
		return
	}
	s.status(s.config.Writer, "info", message, s.colors.Theme().Info)
}

// Warning prints a warning to the error writer
func (s *Service) Warning(message string) {
	s.status(s.config.ErrWriter, "warning", message, s.colors.Theme().Warning)
}

// Error prints an error to the error writer
func (s *Service) Error(message string) {
	s.status(s.config.ErrWriter, "error", message, s.colors.Theme().Error)
}

func (s *Service) status(w io.Writer, level, message string, clr Color) {
	prefix := s.icons.Render(level)
	if prefix == "" {
		prefix = "[" + strings.ToUpper(level) + "]"
	}
	fmt.Fprintf(w, "%s %s\n", s.colors.Colorize(prefix, clr), message)
}

// NewTable returns a table configured with the display settings
func (s *Service) NewTable() *Table {
	return NewTable(s.config.TableStyle, s.config.MaxTableWidth, s.colors)
}

// render writes data in the structured formats, rows in compact form, or
// calls table for the default format
func (s *Service) render(data interface{}, rows [][]string, table func(w io.Writer)) error {
	w := s.config.Writer
	switch s.format() {
	case FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case FormatYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to format YAML: %w", err)
		}
		_, err = w.Write(out)
		return err
	case FormatCompact:
		for _, row := range rows {
			if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
		return nil
	default:
		table(w)
		return nil
	}
}

// keyValues renders label/value pairs as a two-column table
func (s *Service) keyValues(w io.Writer, pairs [][]string) {
	t := s.NewTable().SetHeaders("Property", "Value")
	for _, p := range pairs {
		t.AddRow(p...)
	}
	t.RenderTo(w)
}

// KeyValues renders data in the structured formats and pairs as a property
// table otherwise
func (s *Service) KeyValues(data interface{}, pairs [][]string) error {
	return s.render(data, pairs, func(w io.Writer) {
		s.keyValues(w, pairs)
	})
}

// BackupList renders the catalog
func (s *Service) BackupList(files []*backup.BackupFile) error {
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Filename, strconv.FormatInt(f.Size, 10), f.CreatedAt.UTC().Format(time.RFC3339)})
	}
	if files == nil {
		files = []*backup.BackupFile{}
	}

	return s.render(files, rows, func(w io.Writer) {
		if len(files) == 0 {
			s.Info("No backups found")
			return
		}
		t := s.NewTable().SetHeaders("Filename", "Size", "Created").SetColumnAlignment(1, AlignRight)
		for _, f := range files {
			t.AddRow(f.Filename, f.SizeFormatted, f.CreatedAt.Local().Format(timeLayout))
		}
		t.RenderTo(w)
		fmt.Fprintf(w, "%d backup(s)\n", len(files))
	})
}

// BackupCreated renders a newly created dump
func (s *Service) BackupCreated(file *backup.BackupFile) error {
	rows := [][]string{{file.Filename, strconv.FormatInt(file.Size, 10), strconv.Itoa(file.TableCount), strconv.FormatInt(file.RecordCount, 10)}}
	return s.render(file, rows, func(w io.Writer) {
		s.Success("Backup created: " + file.Filename)
		s.keyValues(w, [][]string{
			{"Filename", file.Filename},
			{"Size", file.SizeFormatted},
			{"Tables", strconv.Itoa(file.TableCount)},
			{"Records", strconv.FormatInt(file.RecordCount, 10)},
			{"Created", file.CreatedAt.Local().Format(timeLayout)},
		})
		for _, table := range file.FailedTables {
			s.Warning("Table could not be backed up: " + table)
		}
	})
}

// BackupImported renders a dump added by import
func (s *Service) BackupImported(file *backup.BackupFile) error {
	rows := [][]string{{file.Filename, strconv.FormatInt(file.Size, 10)}}
	return s.render(file, rows, func(w io.Writer) {
		s.Success("Backup imported: " + file.Filename)
		s.keyValues(w, [][]string{
			{"Filename", file.Filename},
			{"Size", file.SizeFormatted},
			{"Created", file.CreatedAt.Local().Format(timeLayout)},
		})
	})
}

// Stats renders catalog statistics
func (s *Service) Stats(stats *backup.BackupStats) error {
	latest, oldest := "-", "-"
	if stats.LatestBackup != nil {
		latest = stats.LatestBackup.Filename
	}
	if stats.OldestBackup != nil {
		oldest = stats.OldestBackup.Filename
	}
	rows := [][]string{{strconv.Itoa(stats.TotalBackups), strconv.FormatInt(stats.TotalSize, 10), latest, oldest}}

	return s.render(stats, rows, func(w io.Writer) {
		s.keyValues(w, [][]string{
			{"Total backups", strconv.Itoa(stats.TotalBackups)},
			{"Total size", stats.TotalSizeFormatted},
			{"Latest backup", latest},
			{"Oldest backup", oldest},
		})
	})
}

// Cleanup renders the outcome of a retention sweep
func (s *Service) Cleanup(result *backup.CleanupResult) error {
	rows := make([][]string, 0, len(result.DeletedFiles))
	for _, f := range result.DeletedFiles {
		rows = append(rows, []string{"deleted", f})
	}
	for _, e := range result.Errors {
		rows = append(rows, []string{"error", e})
	}

	return s.render(result, rows, func(w io.Writer) {
		if result.DeletedCount == 0 {
			s.Info("No backups older than the retention period")
		} else {
			t := s.NewTable().SetHeaders("Deleted")
			for _, f := range result.DeletedFiles {
				t.AddRow(f)
			}
			t.RenderTo(w)
			s.Success(fmt.Sprintf("Deleted %d backup(s), freed %s", result.DeletedCount, result.FreedFormatted))
		}
		for _, e := range result.Errors {
			s.Warning(e)
		}
	})
}

// Restore renders a restore result
func (s *Service) Restore(result *backup.RestoreResult) error {
	rows := [][]string{{strconv.FormatBool(result.Success), strconv.Itoa(result.TablesRestored),
		strconv.Itoa(result.StatementsExecuted), strconv.Itoa(result.StatementsSkipped), strconv.Itoa(result.StatementsFailed)}}

	return s.render(result, rows, func(w io.Writer) {
		s.keyValues(w, [][]string{
			{"Tables restored", strconv.Itoa(result.TablesRestored)},
			{"Statements executed", strconv.Itoa(result.StatementsExecuted)},
			{"Statements skipped", strconv.Itoa(result.StatementsSkipped)},
			{"Statements failed", strconv.Itoa(result.StatementsFailed)},
		})
		for _, warning := range result.Warnings {
			s.Warning(warning)
		}
		if result.Success {
			s.Success(result.Message)
		} else {
			s.Error(result.Message)
		}
	})
}

// Validation renders a validation result
func (s *Service) Validation(filename string, result *backup.ValidationResult) error {
	rows := [][]string{{filename, strconv.FormatBool(result.Valid)}}
	for _, e := range result.Errors {
		rows = append(rows, []string{filename, "error", e})
	}
	payload := struct {
		Filename string   `json:"filename" yaml:"filename"`
		Valid    bool     `json:"valid" yaml:"valid"`
		Errors   []string `json:"errors" yaml:"errors"`
	}{filename, result.Valid, result.Errors}

	return s.render(payload, rows, func(w io.Writer) {
		if result.Valid {
			s.Success(filename + " is valid")
			return
		}
		s.Error(filename + " failed validation")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	})
}

// Export renders an export result
func (s *Service) Export(result *backup.ExportResult, destination string) error {
	rows := [][]string{{destination, strconv.FormatInt(result.ExportedSize, 10), result.Checksum}}
	return s.render(result, rows, func(w io.Writer) {
		pairs := [][]string{
			{"Destination", destination},
			{"Compression", string(result.Compression)},
			{"Original size", backup.FormatFileSize(result.OriginalSize)},
			{"Exported size", backup.FormatFileSize(result.ExportedSize)},
			{"Ratio", fmt.Sprintf("%.2f", result.CompressionRatio)},
			{"Checksum (xxh64)", result.Checksum},
		}
		if result.Encrypted {
			pairs = append(pairs, []string{"Encryption", result.Algorithm})
		}
		s.keyValues(w, pairs)
		s.Success("Exported " + result.Filename)
	})
}

// Settings renders the auto backup settings together with the next run time
func (s *Service) Settings(settings backup.AutoBackupSettings, next time.Time) error {
	nextRun := "-"
	if !next.IsZero() {
		nextRun = next.Local().Format(timeLayout)
	}
	rows := [][]string{{settings.Schedule, strconv.Itoa(settings.Retention), settings.NamePrefix, nextRun}}
	payload := struct {
		backup.AutoBackupSettings `yaml:",inline"`
		NextRun                   string `json:"nextRun" yaml:"next_run"`
	}{settings, nextRun}

	return s.render(payload, rows, func(w io.Writer) {
		maxSize := settings.MaxBackupSize
		if maxSize == "" {
			maxSize = "unlimited"
		}
		s.keyValues(w, [][]string{
			{"Schedule", settings.Schedule},
			{"Retention (days)", strconv.Itoa(settings.Retention)},
			{"Name prefix", settings.NamePrefix},
			{"Max backup size", maxSize},
			{"Next run", nextRun},
		})
	})
}
