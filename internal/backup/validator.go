package backup

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const invalidStatementPreview = 50

var allowedStatementPrefix = regexp.MustCompile(`(?i)^(CREATE|INSERT|DROP|SET|START|COMMIT)`)

// Validator checks the structure of a dump without executing it
type Validator struct {
	store BackupStore
}

// NewValidator creates a validator reading from store
func NewValidator(store BackupStore) *Validator {
	return &Validator{store: store}
}

// Validate reports structural problems as data. Only storage failures other
// than a missing file are returned as errors.
func (v *Validator) Validate(ctx context.Context, filename string) (*ValidationResult, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	data, err := v.store.Read(ctx, filename)
	if errors.Is(err, ErrObjectNotFound) {
		return &ValidationResult{
			Valid:  false,
			Errors: []string{NewNotFoundError(filename).Message},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return ValidateScript(string(data)), nil
}

// ValidateScript runs the structural checks on a script held in memory
func ValidateScript(script string) *ValidationResult {
	problems := []string{}
	upper := strings.ToUpper(script)

	if !strings.Contains(upper, "CREATE TABLE") {
		problems = append(problems, "backup file contains no CREATE TABLE statement")
	}
	if !strings.Contains(upper, "SET FOREIGN_KEY_CHECKS") {
		problems = append(problems, "backup file is missing SET FOREIGN_KEY_CHECKS")
	}

	statements := SplitStatements(script, SplitOptions{BackslashEscapes: true})
	for idx, stmt := range statements {
		if !allowedStatementPrefix.MatchString(stmt) {
			problems = append(problems, fmt.Sprintf("statement %d may be invalid SQL: %s...",
				idx+1, truncateRunes(stmt, invalidStatementPreview)))
			break
		}
	}

	return &ValidationResult{
		Valid:  len(problems) == 0,
		Errors: problems,
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
