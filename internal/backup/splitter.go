package backup

import (
	"regexp"
	"strings"
)

// SplitOptions controls how quoted text is scanned
type SplitOptions struct {
	// BackslashEscapes treats \ inside quotes as an escape character, as
	// MySQL does unless NO_BACKSLASH_ESCAPES is set. It is the mode at the
	// start of the script; SET SQL_MODE statements change it from there on.
	BackslashEscapes bool
}

var sqlModeStatement = regexp.MustCompile(`(?is)^SET\s+(?:(?:SESSION|LOCAL)\s+|@@(?:SESSION\.|LOCAL\.)?)?SQL_MODE\s*:?=`)

type splitState int

const (
	stateNormal splitState = iota
	stateQuoted
	stateLineComment
	stateBlockComment
)

// SplitStatements splits a SQL script into statements on semicolons that are
// outside quotes and comments. Comments are dropped, statements are trimmed,
// and empty statements are skipped. Trailing text without a terminating
// semicolon is returned as the last statement.
//
// A line whose first non-blank characters are "--" is a comment whatever
// follows; elsewhere "--" needs trailing whitespace, as in MySQL.
func SplitStatements(script string, opts SplitOptions) []string {
	var (
		statements []string
		current    strings.Builder
		state      = stateNormal
		quote      byte
		lineStart  = true
		escapes    = opts.BackslashEscapes
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			statements = append(statements, stmt)
			if sqlModeStatement.MatchString(stmt) {
				escapes = !strings.Contains(strings.ToUpper(stmt), "NO_BACKSLASH_ESCAPES")
			}
		}
		current.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]

		switch state {
		case stateQuoted:
			current.WriteByte(c)
			switch {
			case c == '\\' && escapes && quote != '`':
				if i+1 < len(script) {
					i++
					current.WriteByte(script[i])
				}
			case c == quote:
				if i+1 < len(script) && script[i+1] == quote {
					i++
					current.WriteByte(script[i])
				} else {
					state = stateNormal
				}
			}

		case stateLineComment:
			if c == '\n' {
				current.WriteByte('\n')
				state = stateNormal
				lineStart = true
			}

		case stateBlockComment:
			if c == '*' && i+1 < len(script) && script[i+1] == '/' {
				i++
				current.WriteByte(' ')
				state = stateNormal
			}

		default:
			atLineStart := lineStart
			lineStart = c == '\n' || (lineStart && (c == ' ' || c == '\t' || c == '\r'))

			switch {
			case c == '\'' || c == '"' || c == '`':
				quote = c
				state = stateQuoted
				current.WriteByte(c)
			case c == '#':
				state = stateLineComment
			case c == '-' && (isLineCommentStart(script, i) || (atLineStart && i+1 < len(script) && script[i+1] == '-')):
				state = stateLineComment
				i++
			case c == '/' && i+1 < len(script) && script[i+1] == '*':
				state = stateBlockComment
				i++
			case c == ';':
				flush()
			default:
				current.WriteByte(c)
			}
		}
	}

	flush()
	return statements
}

// isLineCommentStart reports whether script[i:] starts a "-- " comment. MySQL
// requires whitespace (or end of input) after the two dashes.
func isLineCommentStart(script string, i int) bool {
	if i+1 >= len(script) || script[i+1] != '-' {
		return false
	}
	if i+2 >= len(script) {
		return true
	}
	switch script[i+2] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
