package backup

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDump = `-- header
SET FOREIGN_KEY_CHECKS = 0;
START TRANSACTION;
DROP TABLE IF EXISTS ` + "`t`" + `;
CREATE TABLE ` + "`t`" + ` (` + "`id`" + ` int);
INSERT INTO ` + "`t`" + ` (` + "`id`" + `) VALUES (1);
COMMIT;
SET FOREIGN_KEY_CHECKS = 1;
`

func TestValidate_MissingFile(t *testing.T) {
	result, err := NewValidator(NewMemoryStore(nil)).Validate(context.Background(), "gone.sql")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"backup file does not exist: gone.sql"}, result.Errors)
}

func TestValidate_ValidDump(t *testing.T) {
	store := NewMemoryStore(fixedClock)
	store.Put("ok.sql", []byte(validDump), fixedNow)

	result, err := NewValidator(store).Validate(context.Background(), "ok.sql")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidate_Idempotent(t *testing.T) {
	store := NewMemoryStore(fixedClock)
	store.Put("bad.sql", []byte("SELECT 1;"), fixedNow)
	validator := NewValidator(store)

	first, err := validator.Validate(context.Background(), "bad.sql")
	require.NoError(t, err)
	second, err := validator.Validate(context.Background(), "bad.sql")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, first.Valid)
}

func TestValidateScript(t *testing.T) {
	t.Run("missing markers", func(t *testing.T) {
		result := ValidateScript("INSERT INTO t VALUES (1);")
		assert.False(t, result.Valid)
		assert.Equal(t, []string{
			"backup file contains no CREATE TABLE statement",
			"backup file is missing SET FOREIGN_KEY_CHECKS",
		}, result.Errors)
	})

	t.Run("first invalid statement stops the scan", func(t *testing.T) {
		script := validDump + "UPDATE t SET id = 2;\nDELETE FROM t;\n"
		result := ValidateScript(script)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "statement 8 may be invalid SQL: UPDATE t SET id = 2...", result.Errors[0])
	})

	t.Run("long statement is truncated to 50 characters", func(t *testing.T) {
		long := "SELECT " + strings.Repeat("x", 100)
		result := ValidateScript(validDump + long + ";")
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "statement 8 may be invalid SQL: "+long[:50]+"...", result.Errors[0])
	})

	t.Run("keywords are case-insensitive", func(t *testing.T) {
		result := ValidateScript("set foreign_key_checks = 0;\ncreate table t (id int);\ncommit;")
		assert.True(t, result.Valid, result.Errors)
	})

	t.Run("semicolons in data do not create statements", func(t *testing.T) {
		result := ValidateScript(validDump + "INSERT INTO t VALUES ('x; UPDATE y');\n")
		assert.True(t, result.Valid, result.Errors)
	})

	t.Run("full line comment without a space", func(t *testing.T) {
		result := ValidateScript("--note: nightly; keep\n" + validDump)
		assert.True(t, result.Valid, result.Errors)
	})
}
