package backup

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"mysql-backup-restore/internal/logging"
)

const statementPreviewLength = 100

// RestoreExecutor replays a dump inside a single transaction
type RestoreExecutor struct {
	db     *sql.DB
	store  BackupStore
	logger *logging.Logger
	now    Clock
}

// NewRestoreExecutor creates an executor
func NewRestoreExecutor(db *sql.DB, store BackupStore, logger *logging.Logger, clock Clock) *RestoreExecutor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if clock == nil {
		clock = time.Now
	}
	return &RestoreExecutor{db: db, store: store, logger: logger, now: clock}
}

// Restore executes every statement of the named dump. Transaction control
// statements in the script are skipped because the executor owns the
// transaction. With fail-fast (the default) the first failing statement
// rolls everything back.
func (re *RestoreExecutor) Restore(ctx context.Context, opts RestoreOptions) (result *RestoreResult, err error) {
	if err := ValidateFilename(opts.Filename); err != nil {
		return nil, err
	}
	if re.db == nil {
		return nil, NewRestoreError("database connection is nil", nil)
	}

	data, err := re.store.Read(ctx, opts.Filename)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, NewNotFoundError(opts.Filename)
	}
	if err != nil {
		return nil, err
	}

	start := re.now()
	result = &RestoreResult{}
	defer func() {
		re.logger.LogRestoreCompleted(opts.Filename, result.TablesRestored, result.StatementsExecuted,
			result.StatementsFailed, re.now().Sub(start), err)
	}()

	script := string(data)
	statements := SplitStatements(script, SplitOptions{BackslashEscapes: true})
	policy := opts.policy()

	conn, err := re.db.Conn(ctx)
	if err != nil {
		return result, NewRestoreError("failed to acquire database connection", err)
	}
	defer conn.Close()

	// The script changes FOREIGN_KEY_CHECKS and SQL_MODE on its connection;
	// put them back before the connection returns to the pool.
	saved, err := readSession(ctx, conn)
	if err != nil {
		return result, NewRestoreError("failed to read session settings", err)
	}
	defer re.restoreSession(ctx, conn, saved)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return result, NewRestoreError("failed to begin transaction", err)
	}

	for idx, stmt := range statements {
		if ctxErr := ctx.Err(); ctxErr != nil {
			tx.Rollback()
			return result, NewRestoreError("restore cancelled", ctxErr).WithContext("statement_index", idx+1)
		}

		kind := classifyStatement(stmt)
		if kind == statementTransaction || (kind == statementDropTable && !opts.dropExisting()) {
			result.StatementsSkipped++
			continue
		}

		execStart := re.now()
		res, execErr := tx.ExecContext(ctx, stmt)
		var affected int64
		if execErr == nil && res != nil {
			affected, _ = res.RowsAffected()
		}
		re.logger.LogSQLExecution(stmt, re.now().Sub(execStart), affected, execErr)

		if execErr != nil {
			if policy == PolicyFailFast || ctx.Err() != nil {
				tx.Rollback()
				return result, NewRestoreError(fmt.Sprintf("statement %d failed, transaction rolled back", idx+1), execErr).
					WithContext("statement_index", idx+1).
					WithContext("statement", preview(stmt, statementPreviewLength))
			}

			result.StatementsFailed++
			warning := fmt.Sprintf("statement %d failed: %v", idx+1, execErr)
			result.Warnings = append(result.Warnings, warning)
			re.logger.WithFields(map[string]interface{}{
				"statement_index": idx + 1,
				"statement":       preview(stmt, statementPreviewLength),
			}).Warn(warning)
			continue
		}

		result.StatementsExecuted++
		if kind == statementCreateTable {
			result.TablesRestored++
		}
	}

	if err := tx.Commit(); err != nil {
		return result, NewRestoreError("failed to commit restore transaction", err)
	}

	result.Success = true
	result.Message = fmt.Sprintf("restored %d tables from %s", result.TablesRestored, opts.Filename)
	if result.StatementsFailed > 0 {
		result.Message += fmt.Sprintf(" with %d failed statements", result.StatementsFailed)
	}
	return result, nil
}

type sessionSettings struct {
	sqlMode          string
	foreignKeyChecks int
}

const (
	readSessionQuery    = "SELECT @@SESSION.sql_mode, @@SESSION.foreign_key_checks"
	restoreSessionQuery = "SET SESSION sql_mode = ?, SESSION foreign_key_checks = ?"
)

func readSession(ctx context.Context, conn *sql.Conn) (sessionSettings, error) {
	var s sessionSettings
	err := conn.QueryRowContext(ctx, readSessionQuery).Scan(&s.sqlMode, &s.foreignKeyChecks)
	return s, err
}

// restoreSession resets the connection's session settings. A connection
// that cannot be reset is discarded instead of going back to the pool.
func (re *RestoreExecutor) restoreSession(ctx context.Context, conn *sql.Conn, s sessionSettings) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultQueryTimeout)
	defer cancel()

	if _, err := conn.ExecContext(ctx, restoreSessionQuery, s.sqlMode, s.foreignKeyChecks); err != nil {
		re.logger.WithField("error", err.Error()).Warn("Could not reset session settings after restore, discarding connection")
		conn.Raw(func(interface{}) error { return driver.ErrBadConn })
	}
}

type statementKind int

const (
	statementOther statementKind = iota
	statementTransaction
	statementDropTable
	statementCreateTable
)

func classifyStatement(stmt string) statementKind {
	upper := strings.ToUpper(strings.Join(strings.Fields(stmt), " "))

	switch {
	case upper == "BEGIN" || strings.HasPrefix(upper, "BEGIN WORK"),
		strings.HasPrefix(upper, "START TRANSACTION"),
		upper == "COMMIT" || strings.HasPrefix(upper, "COMMIT "),
		upper == "ROLLBACK" || strings.HasPrefix(upper, "ROLLBACK "),
		strings.HasPrefix(upper, "SET AUTOCOMMIT"):
		return statementTransaction
	case strings.HasPrefix(upper, "DROP TABLE"):
		return statementDropTable
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return statementCreateTable
	}
	return statementOther
}

func preview(s string, n int) string {
	s = singleLine(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
