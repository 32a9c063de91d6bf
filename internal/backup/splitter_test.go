package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		opts   SplitOptions
		want   []string
	}{
		{
			name:   "simple statements",
			script: "SET A = 1;\nSET B = 2;\n",
			want:   []string{"SET A = 1", "SET B = 2"},
		},
		{
			name:   "semicolon inside single quotes",
			script: "INSERT INTO `t` (`a`) VALUES ('x;y');",
			want:   []string{"INSERT INTO `t` (`a`) VALUES ('x;y')"},
		},
		{
			name:   "doubled quote does not end string",
			script: "INSERT INTO `t` (`a`) VALUES ('it''s; fine');SET X = 1;",
			want:   []string{"INSERT INTO `t` (`a`) VALUES ('it''s; fine')", "SET X = 1"},
		},
		{
			name:   "semicolon inside double quotes and backticks",
			script: "SELECT \"a;b\", `c;d` FROM t;",
			want:   []string{"SELECT \"a;b\", `c;d` FROM t"},
		},
		{
			name:   "line comments dropped",
			script: "-- header; with semicolon\nSET A = 1; # trailing; comment\nSET B = 2;",
			want:   []string{"SET A = 1", "SET B = 2"},
		},
		{
			name:   "comment markers inside strings are text",
			script: "INSERT INTO t VALUES ('-- not a comment', '# nor this', '/* nor */');",
			want:   []string{"INSERT INTO t VALUES ('-- not a comment', '# nor this', '/* nor */')"},
		},
		{
			name:   "block comment dropped",
			script: "/* a; b */SET A = 1;/* multi\nline; */SET B = 2;",
			want:   []string{"SET A = 1", "SET B = 2"},
		},
		{
			name:   "double dash without space is an operator",
			script: "SELECT 1--1;",
			want:   []string{"SELECT 1--1"},
		},
		{
			name:   "full line double dash is a comment",
			script: "--no space comment\nSET FOREIGN_KEY_CHECKS = 0;\n  --another; one\nCREATE TABLE `t` (`id` int);",
			want:   []string{"SET FOREIGN_KEY_CHECKS = 0", "CREATE TABLE `t` (`id` int)"},
		},
		{
			name:   "trailing statement without semicolon",
			script: "SET A = 1;\nSET B = 2",
			want:   []string{"SET A = 1", "SET B = 2"},
		},
		{
			name:   "empty statements skipped",
			script: ";;\n  ;SET A = 1;;",
			want:   []string{"SET A = 1"},
		},
		{
			name:   "backslash is literal without escapes",
			script: `INSERT INTO t VALUES ('C:\');SET A = 1;`,
			want:   []string{`INSERT INTO t VALUES ('C:\')`, "SET A = 1"},
		},
		{
			name:   "backslash escapes quote when enabled",
			script: `INSERT INTO t VALUES ('it\'s; ok');SET A = 1;`,
			opts:   SplitOptions{BackslashEscapes: true},
			want:   []string{`INSERT INTO t VALUES ('it\'s; ok')`, "SET A = 1"},
		},
		{
			name:   "empty script",
			script: "  \n-- only a comment\n",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.script, tt.opts))
		})
	}
}

func TestSplitStatements_FollowsSQLMode(t *testing.T) {
	script := "CREATE TABLE `t` (`a` text COMMENT 'it\\'s; a\\nb');\n" +
		"SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO,NO_BACKSLASH_ESCAPES';\n" +
		"INSERT INTO `t` (`a`) VALUES ('C:\\');\n" +
		"set session sql_mode = 'NO_AUTO_VALUE_ON_ZERO';\n" +
		"INSERT INTO `t` (`a`) VALUES ('it\\'s; x');\n"

	assert.Equal(t, []string{
		"CREATE TABLE `t` (`a` text COMMENT 'it\\'s; a\\nb')",
		"SET SQL_MODE = 'NO_AUTO_VALUE_ON_ZERO,NO_BACKSLASH_ESCAPES'",
		"INSERT INTO `t` (`a`) VALUES ('C:\\')",
		"set session sql_mode = 'NO_AUTO_VALUE_ON_ZERO'",
		"INSERT INTO `t` (`a`) VALUES ('it\\'s; x')",
	}, SplitStatements(script, SplitOptions{BackslashEscapes: true}))
}

func TestSplitStatements_ModeNameInDataIsIgnored(t *testing.T) {
	script := "INSERT INTO t VALUES ('docs: no_backslash_escapes');\nINSERT INTO t VALUES ('it\\'s; x');\n"

	assert.Equal(t, []string{
		"INSERT INTO t VALUES ('docs: no_backslash_escapes')",
		"INSERT INTO t VALUES ('it\\'s; x')",
	}, SplitStatements(script, SplitOptions{BackslashEscapes: true}))
}

func TestClassifyStatement(t *testing.T) {
	tests := []struct {
		stmt string
		want statementKind
	}{
		{"START TRANSACTION", statementTransaction},
		{"begin", statementTransaction},
		{"COMMIT", statementTransaction},
		{"ROLLBACK", statementTransaction},
		{"SET AUTOCOMMIT = 0", statementTransaction},
		{"set  autocommit=1", statementTransaction},
		{"DROP TABLE IF EXISTS `t`", statementDropTable},
		{"CREATE TABLE `t` (`id` int)", statementCreateTable},
		{"create\n  table `t` (`id` int)", statementCreateTable},
		{"INSERT INTO `t` VALUES (1)", statementOther},
		{"SET FOREIGN_KEY_CHECKS = 0", statementOther},
		{"COMMITTED_READS", statementOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStatement(tt.stmt), tt.stmt)
	}
}
