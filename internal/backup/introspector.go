package backup

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultQueryTimeout = 30 * time.Second

// Introspector reads table names and definitions from one schema
type Introspector struct {
	db           *sql.DB
	schemaName   string
	queryTimeout time.Duration
}

// NewIntrospector creates an introspector for schemaName
func NewIntrospector(db *sql.DB, schemaName string) *Introspector {
	return &Introspector{
		db:           db,
		schemaName:   schemaName,
		queryTimeout: defaultQueryTimeout,
	}
}

// WithQueryTimeout overrides the per-query timeout
func (i *Introspector) WithQueryTimeout(timeout time.Duration) *Introspector {
	if timeout > 0 {
		i.queryTimeout = timeout
	}
	return i
}

// ListTables returns the base tables of the schema sorted by name. Views are
// not included.
func (i *Introspector) ListTables(ctx context.Context) ([]string, error) {
	if i.db == nil {
		return nil, NewSchemaError("database connection is nil", nil)
	}

	query := `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`

	ctx, cancel := context.WithTimeout(ctx, i.queryTimeout)
	defer cancel()

	rows, err := i.db.QueryContext(ctx, query, i.schemaName)
	if err != nil {
		return nil, NewSchemaError("failed to query tables", err).WithContext("schema", i.schemaName)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, NewSchemaError("failed to scan table name", err)
		}
		tables = append(tables, tableName)
	}

	if err := rows.Err(); err != nil {
		return nil, NewSchemaError("error iterating table rows", err)
	}

	return tables, nil
}

// TableDefinition returns the CREATE TABLE statement for table, without a
// trailing semicolon.
func (i *Introspector) TableDefinition(ctx context.Context, table string) (string, error) {
	if i.db == nil {
		return "", NewSchemaError("database connection is nil", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, i.queryTimeout)
	defer cancel()

	var name, ddl string
	err := i.db.QueryRowContext(ctx, "SHOW CREATE TABLE "+QuoteIdentifier(table)).Scan(&name, &ddl)
	if err == sql.ErrNoRows {
		return "", NewSchemaError(fmt.Sprintf("table %s has no definition", table), err).WithContext("table", table)
	}
	if err != nil {
		return "", NewSchemaError(fmt.Sprintf("failed to get definition of table %s", table), err).WithContext("table", table)
	}

	return ddl, nil
}
