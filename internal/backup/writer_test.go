package backup

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestWriter(t *testing.T) (*DumpWriter, sqlmock.Sqlmock, *MemoryStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewMemoryStore(fixedClock)
	writer := NewDumpWriter(NewIntrospector(db, "shop"), NewRowSerializer(db), store, "shop", nil, fixedClock)
	return writer, mock, store
}

func expectTables(mock sqlmock.Sqlmock, tables ...string) {
	rows := sqlmock.NewRows([]string{"TABLE_NAME"})
	for _, table := range tables {
		rows.AddRow(table)
	}
	mock.ExpectQuery("SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES").WithArgs("shop").WillReturnRows(rows)
}

func expectDefinition(mock sqlmock.Sqlmock, table, ddl string) {
	mock.ExpectQuery(regexp.QuoteMeta("SHOW CREATE TABLE `" + table + "`")).
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).AddRow(table, ddl))
}

func expectCount(mock sqlmock.Sqlmock, table string, count int) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `" + table + "`")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(count))
}

const notesDDL = "CREATE TABLE `notes` (`id` int NOT NULL, `body` text)"

func expectNotesTable(mock sqlmock.Sqlmock) {
	expectDefinition(mock, "notes", notesDDL)
	expectCount(mock, "notes", 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `notes`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).
			AddRow(int64(1), "a;b 'quoted'").
			AddRow(int64(2), nil))
}

func TestCreateBackup_DumpLayout(t *testing.T) {
	writer, mock, store := newTestWriter(t)
	expectTables(mock, "notes")
	expectNotesTable(mock)

	file, err := writer.CreateBackup(context.Background(), CreateOptions{Name: "shop", Description: "nightly"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "shop-2025-01-15T10-30-00-000Z.sql", file.Filename)
	assert.Equal(t, 1, file.TableCount)
	assert.Equal(t, int64(2), file.RecordCount)
	assert.Empty(t, file.FailedTables)
	assert.Equal(t, fixedNow, file.CreatedAt)

	data, err := store.Read(context.Background(), file.Filename)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), file.Size)
	assert.Equal(t, FormatFileSize(int64(len(data))), file.SizeFormatted)

	want := strings.Join([]string{
		"-- ========================================",
		"-- Database Backup File",
		"-- Generated: 2025-01-15T10:30:00.000Z",
		"-- Database: shop",
		"-- Description: nightly",
		"-- ========================================",
		"",
		"SET FOREIGN_KEY_CHECKS = 0;",
		"SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO';",
		"SET AUTOCOMMIT = 0;",
		"START TRANSACTION;",
		"",
		"-- ========================================",
		"-- Table: notes",
		"-- ========================================",
		"DROP TABLE IF EXISTS `notes`;",
		notesDDL + ";",
		"",
		"-- Data: notes (2 records)",
		"SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO,NO_BACKSLASH_ESCAPES';",
		"INSERT INTO `notes` (`id`, `body`) VALUES (1, 'a;b ''quoted''');",
		"INSERT INTO `notes` (`id`, `body`) VALUES (2, NULL);",
		"SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO';",
		"",
		"COMMIT;",
		"SET FOREIGN_KEY_CHECKS = 1;",
		"",
		"-- ========================================",
		"-- Backup completed",
		"-- Tables: 1",
		"-- Records: 2",
		"-- Completed: 2025-01-15T10:30:00.000Z",
		"-- ========================================",
		"",
	}, "\n")
	assert.Equal(t, want, string(data))
}

func TestCreateBackup_DefaultDescriptionAndName(t *testing.T) {
	writer, mock, store := newTestWriter(t)
	expectTables(mock)

	file, err := writer.CreateBackup(context.Background(), CreateOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(file.Filename, "backup-"))
	assert.Equal(t, 0, file.TableCount)

	data, _ := store.Read(context.Background(), file.Filename)
	assert.Contains(t, string(data), "-- Description: none\n")
	assert.Contains(t, string(data), "-- Tables: 0\n")
}

func TestCreateBackup_SchemaOnly(t *testing.T) {
	writer, mock, store := newTestWriter(t)
	expectTables(mock, "notes")
	expectDefinition(mock, "notes", notesDDL)

	includeData := false
	file, err := writer.CreateBackup(context.Background(), CreateOptions{IncludeData: &includeData})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, int64(0), file.RecordCount)

	data, _ := store.Read(context.Background(), file.Filename)
	assert.NotContains(t, string(data), "INSERT INTO")
	assert.NotContains(t, string(data), "-- Data:")
}

func TestCreateBackup_TableFailureIsRecorded(t *testing.T) {
	writer, mock, store := newTestWriter(t)
	expectTables(mock, "customers", "orders", "products")

	expectDefinition(mock, "customers", "CREATE TABLE `customers` (`id` int)")
	expectCount(mock, "customers", 0)

	// orders gets as far as its definition before the row count fails
	expectDefinition(mock, "orders", "CREATE TABLE `orders` (`id` int)")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `orders`")).
		WillReturnError(errors.New("Lock wait timeout exceeded"))

	expectDefinition(mock, "products", "CREATE TABLE `products` (`id` int)")
	expectCount(mock, "products", 0)

	file, err := writer.CreateBackup(context.Background(), CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 3, file.TableCount)
	assert.Equal(t, []string{"orders"}, file.FailedTables)

	data, _ := store.Read(context.Background(), file.Filename)
	dump := string(data)
	assert.Contains(t, dump, "-- ERROR: could not back up table orders: ")
	assert.Contains(t, dump, "Lock wait timeout exceeded")
	assert.NotContains(t, dump, "DROP TABLE IF EXISTS `orders`")
	assert.NotContains(t, dump, "-- Table: orders")
	assert.Contains(t, dump, "CREATE TABLE `customers` (`id` int);")
	assert.Contains(t, dump, "CREATE TABLE `products` (`id` int);")

	result := ValidateScript(dump)
	assert.True(t, result.Valid, result.Errors)
}

func TestCreateBackup_FailFast(t *testing.T) {
	writer, mock, store := newTestWriter(t)
	expectTables(mock, "customers", "orders")
	mock.ExpectQuery(regexp.QuoteMeta("SHOW CREATE TABLE `customers`")).
		WillReturnError(errors.New("Table 'shop.customers' doesn't exist"))

	_, err := writer.CreateBackup(context.Background(), CreateOptions{OnTableError: PolicyFailFast})
	require.Error(t, err)
	assert.True(t, IsType(err, BackupErrorTypeSchema))

	objects, _ := store.List(context.Background())
	assert.Empty(t, objects)
}

func TestCreateBackup_ListTablesFailureIsFatal(t *testing.T) {
	writer, mock, store := newTestWriter(t)
	mock.ExpectQuery("SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES").
		WillReturnError(errors.New("Access denied"))

	_, err := writer.CreateBackup(context.Background(), CreateOptions{})
	require.Error(t, err)

	objects, _ := store.List(context.Background())
	assert.Empty(t, objects)
}

func TestCreateBackup_FilenameConflict(t *testing.T) {
	writer, mock, store := newTestWriter(t)
	store.Put(GenerateFilename("", fixedNow), []byte("existing"), fixedNow)
	expectTables(mock)

	_, err := writer.CreateBackup(context.Background(), CreateOptions{})
	assert.True(t, IsType(err, BackupErrorTypeConflict))
}

func TestCreateBackup_RejectsUnsafeName(t *testing.T) {
	writer, _, _ := newTestWriter(t)

	_, err := writer.CreateBackup(context.Background(), CreateOptions{Name: "../x"})
	assert.True(t, IsType(err, BackupErrorTypeValidation))
}

func TestSelectTables(t *testing.T) {
	all := []string{"a", "b", "c", "d"}

	assert.Equal(t, all, selectTables(all, nil, nil))
	assert.Equal(t, []string{"b", "d"}, selectTables(all, []string{"d", "b", "zz"}, nil))
	assert.Equal(t, []string{"a", "c"}, selectTables(all, nil, []string{"b", "d"}))
	assert.Equal(t, []string{"d"}, selectTables(all, []string{"b", "d"}, []string{"b"}))
}
