package display

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrCancelled is returned when the user declines a confirmation prompt
var ErrCancelled = errors.New("operation cancelled by user")

// ConfirmationRequest describes a destructive action awaiting approval
type ConfirmationRequest struct {
	Title   string
	Message string
	Details []string
	// Destructive adds a warning banner.
	Destructive bool
}

// Confirm asks the user to approve req. It approves without asking when
// autoApprove is set, interactive mode is off, or the input is not a terminal.
// Anything but y/yes declines.
func (s *Service) Confirm(req ConfirmationRequest, autoApprove bool) (bool, error) {
	if autoApprove || !s.config.IsInteractiveEnabled() || !isInteractiveInput(s.config.Reader) {
		return true, nil
	}

	w := s.config.ErrWriter
	theme := s.colors.Theme()

	if req.Title != "" {
		fmt.Fprintln(w, s.colors.Colorize(req.Title, theme.Highlight))
	}
	if req.Destructive {
		fmt.Fprintf(w, "%s %s\n", s.colors.Colorize(s.icons.Render("warning"), theme.Warning),
			s.colors.Colorize("This operation cannot be undone.", theme.Warning))
	}
	if req.Message != "" {
		fmt.Fprintln(w, req.Message)
	}
	for _, d := range req.Details {
		fmt.Fprintf(w, "  - %s\n", d)
	}
	fmt.Fprint(w, s.colors.Colorize("Proceed? [y/N]: ", theme.Primary))

	input, err := bufio.NewReader(s.config.Reader).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return parseConfirmation(input), nil
}

func parseConfirmation(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// isInteractiveInput reports whether r can prompt a person. Files must be
// terminals; other readers (tests, pipes wrapped by callers) count as input.
func isInteractiveInput(r io.Reader) bool {
	if f, ok := r.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return r != nil
}
