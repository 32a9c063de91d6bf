package backup

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRestorer(t *testing.T, store BackupStore) (*RestoreExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRestoreExecutor(db, store, nil, fixedClock), mock
}

func expectReadSession(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(readSessionQuery).WillReturnRows(
		sqlmock.NewRows([]string{"@@SESSION.sql_mode", "@@SESSION.foreign_key_checks"}).
			AddRow("STRICT_TRANS_TABLES", 1))
}

func expectResetSession(mock sqlmock.Sqlmock) {
	mock.ExpectExec(restoreSessionQuery).
		WithArgs("STRICT_TRANS_TABLES", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func tenInserts() string {
	var sb strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "INSERT INTO `t` (`id`) VALUES (%d);\n", i)
	}
	return sb.String()
}

func TestRestore_RoundTrip(t *testing.T) {
	writer, dumpMock, store := newTestWriter(t)
	expectTables(dumpMock, "notes")
	expectNotesTable(dumpMock)

	file, err := writer.CreateBackup(context.Background(), CreateOptions{})
	require.NoError(t, err)

	restorer, mock := newTestRestorer(t, store)
	ok := sqlmock.NewResult(0, 0)
	expectReadSession(mock)
	mock.ExpectBegin()
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(ok)
	mock.ExpectExec("SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO'").WillReturnResult(ok)
	mock.ExpectExec("DROP TABLE IF EXISTS `notes`").WillReturnResult(ok)
	mock.ExpectExec(notesDDL).WillReturnResult(ok)
	mock.ExpectExec("SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO,NO_BACKSLASH_ESCAPES'").WillReturnResult(ok)
	mock.ExpectExec("INSERT INTO `notes` (`id`, `body`) VALUES (1, 'a;b ''quoted''')").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `notes` (`id`, `body`) VALUES (2, NULL)").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO'").WillReturnResult(ok)
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(ok)
	mock.ExpectCommit()
	expectResetSession(mock)

	result, err := restorer.Restore(context.Background(), RestoreOptions{Filename: file.Filename})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.TablesRestored)
	assert.Equal(t, 9, result.StatementsExecuted)
	// SET AUTOCOMMIT, START TRANSACTION and COMMIT from the script
	assert.Equal(t, 3, result.StatementsSkipped)
	assert.Equal(t, 0, result.StatementsFailed)
}

func TestRestore_FailFastRollsBack(t *testing.T) {
	store := NewMemoryStore(fixedClock)
	store.Put("ten.sql", []byte(tenInserts()), fixedNow)

	restorer, mock := newTestRestorer(t, store)
	expectReadSession(mock)
	mock.ExpectBegin()
	for i := 1; i <= 4; i++ {
		mock.ExpectExec(fmt.Sprintf("INSERT INTO `t` (`id`) VALUES (%d)", i)).WillReturnResult(sqlmock.NewResult(int64(i), 1))
	}
	mock.ExpectExec("INSERT INTO `t` (`id`) VALUES (5)").WillReturnError(errors.New("Duplicate entry '5' for key 'PRIMARY'"))
	mock.ExpectRollback()
	expectResetSession(mock)

	result, err := restorer.Restore(context.Background(), RestoreOptions{Filename: "ten.sql"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, IsType(err, BackupErrorTypeRestore))
	var backupErr *BackupError
	require.True(t, errors.As(err, &backupErr))
	assert.Equal(t, 5, backupErr.Context["statement_index"])
	assert.Contains(t, err.Error(), "Duplicate entry")

	assert.False(t, result.Success)
	assert.Equal(t, 4, result.StatementsExecuted)
}

func TestRestore_IgnoreErrorsContinues(t *testing.T) {
	store := NewMemoryStore(fixedClock)
	store.Put("ten.sql", []byte(tenInserts()), fixedNow)

	restorer, mock := newTestRestorer(t, store)
	expectReadSession(mock)
	mock.ExpectBegin()
	for i := 1; i <= 10; i++ {
		exec := mock.ExpectExec(fmt.Sprintf("INSERT INTO `t` (`id`) VALUES (%d)", i))
		if i == 5 {
			exec.WillReturnError(errors.New("Duplicate entry '5' for key 'PRIMARY'"))
			continue
		}
		exec.WillReturnResult(sqlmock.NewResult(int64(i), 1))
	}
	mock.ExpectCommit()
	expectResetSession(mock)

	result, err := restorer.Restore(context.Background(), RestoreOptions{Filename: "ten.sql", IgnoreErrors: true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, result.Success)
	assert.Equal(t, 9, result.StatementsExecuted)
	assert.Equal(t, 1, result.StatementsFailed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "statement 5 failed")
}

func TestRestore_KeepExistingTablesSkipsDrop(t *testing.T) {
	store := NewMemoryStore(fixedClock)
	store.Put("s.sql", []byte("DROP TABLE IF EXISTS `t`;\nCREATE TABLE `t` (`id` int);\n"), fixedNow)

	restorer, mock := newTestRestorer(t, store)
	expectReadSession(mock)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE `t` (`id` int)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	expectResetSession(mock)

	dropExisting := false
	result, err := restorer.Restore(context.Background(), RestoreOptions{Filename: "s.sql", DropExisting: &dropExisting})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 1, result.TablesRestored)
	assert.Equal(t, 1, result.StatementsSkipped)
}

func TestRestore_BackslashEscapesWithoutPragma(t *testing.T) {
	store := NewMemoryStore(fixedClock)
	store.Put("legacy.sql", []byte(`INSERT INTO t VALUES ('it\'s; one');`), fixedNow)

	restorer, mock := newTestRestorer(t, store)
	expectReadSession(mock)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO t VALUES ('it\'s; one')`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	expectResetSession(mock)

	_, err := restorer.Restore(context.Background(), RestoreOptions{Filename: "legacy.sql"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_MissingFile(t *testing.T) {
	restorer, mock := newTestRestorer(t, NewMemoryStore(fixedClock))

	_, err := restorer.Restore(context.Background(), RestoreOptions{Filename: "nope.sql"})
	assert.True(t, IsNotFound(err))
	assert.True(t, IsType(err, BackupErrorTypeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_CommitFailure(t *testing.T) {
	store := NewMemoryStore(fixedClock)
	store.Put("s.sql", []byte("SET A = 1;"), fixedNow)

	restorer, mock := newTestRestorer(t, store)
	expectReadSession(mock)
	mock.ExpectBegin()
	mock.ExpectExec("SET A = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(errors.New("connection lost"))
	expectResetSession(mock)

	_, err := restorer.Restore(context.Background(), RestoreOptions{Filename: "s.sql"})
	assert.True(t, IsType(err, BackupErrorTypeRestore))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_CancelledContext(t *testing.T) {
	store := NewMemoryStore(fixedClock)
	store.Put("s.sql", []byte("SET A = 1;SET B = 2;"), fixedNow)

	restorer, _ := newTestRestorer(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := restorer.Restore(ctx, RestoreOptions{Filename: "s.sql"})
	assert.True(t, IsType(err, BackupErrorTypeRestore))
	require.NotNil(t, result)
	assert.Equal(t, 0, result.StatementsExecuted)
}

func TestRestore_DDLLiteralsReplayWithBackslashEscapes(t *testing.T) {
	// SHOW CREATE TABLE writes a newline in a comment as backslash + n and a
	// backslash as two backslashes.
	ddl := "CREATE TABLE `paths` (`dir` varchar(10) DEFAULT 'C:\\\\') COMMENT='a\\nb; c'"

	writer, dumpMock, store := newTestWriter(t)
	expectTables(dumpMock, "paths")
	expectDefinition(dumpMock, "paths", ddl)
	expectCount(dumpMock, "paths", 1)
	dumpMock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `paths`")).
		WillReturnRows(sqlmock.NewRows([]string{"dir"}).AddRow(`D:\`))

	file, err := writer.CreateBackup(context.Background(), CreateOptions{})
	require.NoError(t, err)

	restorer, mock := newTestRestorer(t, store)
	ok := sqlmock.NewResult(0, 0)
	expectReadSession(mock)
	mock.ExpectBegin()
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(ok)
	mock.ExpectExec("SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO'").WillReturnResult(ok)
	mock.ExpectExec("DROP TABLE IF EXISTS `paths`").WillReturnResult(ok)
	mock.ExpectExec(ddl).WillReturnResult(ok)
	mock.ExpectExec("SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO,NO_BACKSLASH_ESCAPES'").WillReturnResult(ok)
	mock.ExpectExec("INSERT INTO `paths` (`dir`) VALUES ('D:\\')").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO'").WillReturnResult(ok)
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(ok)
	mock.ExpectCommit()
	expectResetSession(mock)

	result, err := restorer.Restore(context.Background(), RestoreOptions{Filename: file.Filename})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, result.TablesRestored)
}

func TestRestore_StripsFullLineComments(t *testing.T) {
	store := NewMemoryStore(fixedClock)
	store.Put("notes.sql", []byte("--no space comment\nSET FOREIGN_KEY_CHECKS = 0;\n  --another\nCREATE TABLE `t` (`id` int);\n"), fixedNow)

	restorer, mock := newTestRestorer(t, store)
	ok := sqlmock.NewResult(0, 0)
	expectReadSession(mock)
	mock.ExpectBegin()
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(ok)
	mock.ExpectExec("CREATE TABLE `t` (`id` int)").WillReturnResult(ok)
	mock.ExpectCommit()
	expectResetSession(mock)

	result, err := restorer.Restore(context.Background(), RestoreOptions{Filename: "notes.sql"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 2, result.StatementsExecuted)
}

func TestRestore_ResetsSessionAfterRollback(t *testing.T) {
	store := NewMemoryStore(fixedClock)
	store.Put("fk.sql", []byte("SET FOREIGN_KEY_CHECKS = 0;\nINSERT INTO `t` (`id`) VALUES (1);\n"), fixedNow)

	restorer, mock := newTestRestorer(t, store)
	expectReadSession(mock)
	mock.ExpectBegin()
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO `t` (`id`) VALUES (1)").WillReturnError(errors.New("table missing"))
	mock.ExpectRollback()
	expectResetSession(mock)

	_, err := restorer.Restore(context.Background(), RestoreOptions{Filename: "fk.sql"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
