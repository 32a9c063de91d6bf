package display

import (
	"os"

	"github.com/mattn/go-isatty"
)

// Icon represents a visual icon with Unicode and ASCII fallbacks
type Icon struct {
	Unicode string
	ASCII   string
}

var icons = map[string]Icon{
	"success":  {Unicode: "✓", ASCII: "[OK]"},
	"error":    {Unicode: "✗", ASCII: "[ERROR]"},
	"warning":  {Unicode: "⚠", ASCII: "[WARN]"},
	"info":     {Unicode: "ℹ", ASCII: "[INFO]"},
	"backup":   {Unicode: "💾", ASCII: "[BACKUP]"},
	"restore":  {Unicode: "♻", ASCII: "[RESTORE]"},
	"schedule": {Unicode: "⏰", ASCII: "[SCHEDULE]"},
}

// IconSystem renders icons, falling back to ASCII on limited terminals
type IconSystem struct {
	unicode bool
}

// NewIconSystem creates an icon system. Unicode is used only when enabled is
// true and the terminal looks capable.
func NewIconSystem(enabled bool) *IconSystem {
	return &IconSystem{unicode: enabled && detectUnicodeSupport()}
}

// detectUnicodeSupport checks if the terminal supports Unicode characters
func detectUnicodeSupport() bool {
	if os.Getenv("FORCE_UNICODE") != "" {
		return true
	}
	if os.Getenv("NO_UNICODE") != "" {
		return false
	}
	if os.Getenv("LANG") == "C" || os.Getenv("LC_ALL") == "C" {
		return false
	}
	if term := os.Getenv("TERM"); term == "dumb" || term == "vt100" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Render returns the icon for name; unknown names render as ""
func (is *IconSystem) Render(name string) string {
	icon, ok := icons[name]
	if !ok {
		return ""
	}
	if is.unicode {
		return icon.Unicode
	}
	return icon.ASCII
}

// IsUnicodeSupported reports whether Unicode icons are used
func (is *IconSystem) IsUnicodeSupported() bool {
	return is.unicode
}
