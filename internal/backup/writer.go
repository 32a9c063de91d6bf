package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mysql-backup-restore/internal/logging"
)

const (
	dumpTitle      = "Database Backup File"
	dumpRule       = "-- ========================================"
	isoMillisecond = "2006-01-02T15:04:05.000Z07:00"

	// SHOW CREATE TABLE output escapes its literals with backslashes, so DDL
	// replays in the default mode. Row literals only double their quotes and
	// need NO_BACKSLASH_ESCAPES.
	schemaSQLMode = "NO_AUTO_VALUE_ON_ZERO"
	dataSQLMode   = "NO_AUTO_VALUE_ON_ZERO,NO_BACKSLASH_ESCAPES"
)

// DumpWriter produces a SQL dump of a schema and stores it
type DumpWriter struct {
	introspector *Introspector
	serializer   *RowSerializer
	store        BackupStore
	databaseName string
	logger       *logging.Logger
	now          Clock
}

// NewDumpWriter wires a writer. A nil logger discards output and a nil clock
// uses time.Now.
func NewDumpWriter(introspector *Introspector, serializer *RowSerializer, store BackupStore, databaseName string, logger *logging.Logger, clock Clock) *DumpWriter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if clock == nil {
		clock = time.Now
	}
	return &DumpWriter{
		introspector: introspector,
		serializer:   serializer,
		store:        store,
		databaseName: databaseName,
		logger:       logger,
		now:          clock,
	}
}

// tableDump is the rendered output of one table
type tableDump struct {
	text    string
	records int64
}

// CreateBackup dumps the selected tables and writes the result to the store
func (dw *DumpWriter) CreateBackup(ctx context.Context, opts CreateOptions) (*BackupFile, error) {
	if err := validateName(opts.Name); err != nil {
		return nil, err
	}

	start := dw.now()
	filename := GenerateFilename(opts.Name, start)
	policy := opts.OnTableError.resolve(PolicyBestEffort)

	allTables, err := dw.introspector.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	tables := selectTables(allTables, opts.IncludeTables, opts.ExcludeTables)

	var sb strings.Builder
	dw.writeHeader(&sb, opts.Description, start)

	var totalRecords int64
	var failed []string
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, NewSchemaError("backup cancelled", err)
		}

		dump, err := dw.dumpTable(ctx, table, opts.includeData())
		if err != nil {
			if policy == PolicyFailFast {
				return nil, err
			}
			dw.logger.WithFields(map[string]interface{}{
				"table": table,
				"error": err.Error(),
			}).Warn("Skipping table that could not be backed up")

			failed = append(failed, table)
			fmt.Fprintf(&sb, "-- ERROR: could not back up table %s: %s\n\n", table, singleLine(err.Error()))
			continue
		}

		sb.WriteString(dump.text)
		totalRecords += dump.records
	}

	dw.writeFooter(&sb, len(tables), totalRecords)

	if err := dw.store.Write(ctx, filename, []byte(sb.String())); err != nil {
		if errors.Is(err, ErrObjectExists) {
			return nil, NewConflictError(fmt.Sprintf("backup file already exists: %s", filename), err)
		}
		return nil, err
	}

	info, err := dw.store.Stat(ctx, filename)
	if err != nil {
		return nil, NewStorageError("failed to stat written backup", err).WithContext("filename", filename)
	}

	dw.logger.LogBackupCreated(filename, len(tables), len(failed), totalRecords, info.Size, dw.now().Sub(start))

	return &BackupFile{
		Filename:      filename,
		Size:          info.Size,
		SizeFormatted: FormatFileSize(info.Size),
		CreatedAt:     info.CreatedAt,
		Description:   opts.Description,
		TableCount:    len(tables),
		RecordCount:   totalRecords,
		FailedTables:  failed,
	}, nil
}

// dumpTable renders one table into its own buffer so a failure leaves no
// partial output behind
func (dw *DumpWriter) dumpTable(ctx context.Context, table string, includeData bool) (*tableDump, error) {
	ddl, err := dw.introspector.TableDefinition(ctx, table)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(dumpRule + "\n")
	fmt.Fprintf(&sb, "-- Table: %s\n", table)
	sb.WriteString(dumpRule + "\n")
	fmt.Fprintf(&sb, "DROP TABLE IF EXISTS %s;\n", QuoteIdentifier(table))
	sb.WriteString(strings.TrimRight(ddl, "; \n") + ";\n\n")

	dump := &tableDump{}
	if includeData {
		inserts, count, err := dw.serializer.SerializeTable(ctx, table)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			fmt.Fprintf(&sb, "-- Data: %s (%d records)\n", table, count)
			fmt.Fprintf(&sb, "SET SQL_MODE = '%s';\n", dataSQLMode)
			sb.WriteString(inserts)
			fmt.Fprintf(&sb, "SET SQL_MODE = '%s';\n\n", schemaSQLMode)
			dump.records = count
		}
	}

	dump.text = sb.String()
	return dump, nil
}

func (dw *DumpWriter) writeHeader(sb *strings.Builder, description string, generated time.Time) {
	if description == "" {
		description = "none"
	}

	sb.WriteString(dumpRule + "\n")
	sb.WriteString("-- " + dumpTitle + "\n")
	fmt.Fprintf(sb, "-- Generated: %s\n", generated.UTC().Format(isoMillisecond))
	fmt.Fprintf(sb, "-- Database: %s\n", dw.databaseName)
	fmt.Fprintf(sb, "-- Description: %s\n", singleLine(description))
	sb.WriteString(dumpRule + "\n\n")

	sb.WriteString("SET FOREIGN_KEY_CHECKS = 0;\n")
	fmt.Fprintf(sb, "SET SQL_MODE = '%s';\n", schemaSQLMode)
	sb.WriteString("SET AUTOCOMMIT = 0;\n")
	sb.WriteString("START TRANSACTION;\n\n")
}

func (dw *DumpWriter) writeFooter(sb *strings.Builder, tables int, records int64) {
	sb.WriteString("COMMIT;\n")
	sb.WriteString("SET FOREIGN_KEY_CHECKS = 1;\n\n")
	sb.WriteString(dumpRule + "\n")
	sb.WriteString("-- Backup completed\n")
	fmt.Fprintf(sb, "-- Tables: %d\n", tables)
	fmt.Fprintf(sb, "-- Records: %d\n", records)
	fmt.Fprintf(sb, "-- Completed: %s\n", dw.now().UTC().Format(isoMillisecond))
	sb.WriteString(dumpRule + "\n")
}

// selectTables applies the include and exclude filters, keeping the order of
// tables
func selectTables(tables, include, exclude []string) []string {
	var includeSet map[string]bool
	if len(include) > 0 {
		includeSet = make(map[string]bool, len(include))
		for _, t := range include {
			includeSet[t] = true
		}
	}
	excludeSet := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		excludeSet[t] = true
	}

	selected := make([]string, 0, len(tables))
	for _, t := range tables {
		if includeSet != nil && !includeSet[t] {
			continue
		}
		if excludeSet[t] {
			continue
		}
		selected = append(selected, t)
	}
	return selected
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
