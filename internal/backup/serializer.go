package backup

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const sqlDateTimeLayout = "2006-01-02 15:04:05"

// RowSerializer renders table rows as INSERT statements
type RowSerializer struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewRowSerializer creates a serializer reading from db
func NewRowSerializer(db *sql.DB) *RowSerializer {
	return &RowSerializer{db: db, queryTimeout: defaultQueryTimeout}
}

// SerializeTable returns one INSERT line per row of table and the row count.
// Empty tables yield an empty string without reading any rows.
func (rs *RowSerializer) SerializeTable(ctx context.Context, table string) (string, int64, error) {
	if rs.db == nil {
		return "", 0, NewSchemaError("database connection is nil", nil)
	}

	quoted := QuoteIdentifier(table)

	count, err := rs.countRows(ctx, quoted)
	if err != nil {
		return "", 0, NewSchemaError(fmt.Sprintf("failed to count rows of table %s", table), err).WithContext("table", table)
	}
	if count == 0 {
		return "", 0, nil
	}

	rows, err := rs.db.QueryContext(ctx, "SELECT * FROM "+quoted)
	if err != nil {
		return "", 0, NewSchemaError(fmt.Sprintf("failed to read rows of table %s", table), err).WithContext("table", table)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", 0, NewSchemaError("failed to read column names", err).WithContext("table", table)
	}
	numeric, err := numericColumns(rows, len(columns))
	if err != nil {
		return "", 0, NewSchemaError("failed to read column types", err).WithContext("table", table)
	}

	var sb strings.Builder
	var records int64
	for rows.Next() {
		values := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for idx := range values {
			dest[idx] = &values[idx]
		}
		if err := rows.Scan(dest...); err != nil {
			return "", 0, NewSchemaError("failed to scan row", err).WithContext("table", table)
		}

		line, err := formatInsert(table, columns, numeric, values)
		if err != nil {
			return "", 0, NewSchemaError(fmt.Sprintf("row %d of table %s", records+1, table), err).WithContext("table", table)
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
		records++
	}

	if err := rows.Err(); err != nil {
		return "", 0, NewSchemaError("error iterating rows", err).WithContext("table", table)
	}

	return sb.String(), records, nil
}

func (rs *RowSerializer) countRows(ctx context.Context, quotedTable string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, rs.queryTimeout)
	defer cancel()

	var count int64
	err := rs.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quotedTable).Scan(&count)
	return count, err
}

// numericColumns marks columns whose raw bytes are emitted unquoted
func numericColumns(rows *sql.Rows, n int) ([]bool, error) {
	numeric := make([]bool, n)
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	for idx, ct := range types {
		if idx < n {
			numeric[idx] = isNumericType(ct.DatabaseTypeName())
		}
	}
	return numeric, nil
}

func isNumericType(databaseType string) bool {
	switch strings.TrimPrefix(strings.ToUpper(databaseType), "UNSIGNED ") {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
		"DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL", "YEAR":
		return true
	}
	return false
}

// formatInsert renders a single row. numeric may be nil.
func formatInsert(table string, columns []string, numeric []bool, values []interface{}) (string, error) {
	if len(values) != len(columns) {
		return "", fmt.Errorf("%w: %d columns, %d values", ErrHeterogeneousRow, len(columns), len(values))
	}

	quotedColumns := make([]string, len(columns))
	for idx, col := range columns {
		quotedColumns[idx] = QuoteIdentifier(col)
	}

	literals := make([]string, len(values))
	for idx, v := range values {
		literals[idx] = FormatValue(v, idx < len(numeric) && numeric[idx])
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		QuoteIdentifier(table),
		strings.Join(quotedColumns, ", "),
		strings.Join(literals, ", ")), nil
}

// FormatValue renders v as a SQL literal. Raw bytes of numeric columns are
// emitted as they are; any other text is single-quoted with quotes doubled.
func FormatValue(v interface{}, numeric bool) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		if numeric {
			return string(val)
		}
		return quoteString(string(val))
	case string:
		return quoteString(val)
	case time.Time:
		return "'" + val.Format(sqlDateTimeLayout) + "'"
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(val)
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
