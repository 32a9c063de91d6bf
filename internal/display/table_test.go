package display

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_ASCII(t *testing.T) {
	table := NewTable("default", 120, nil).
		SetHeaders("Name", "Size").
		AddRow("a.sql", "1.00 KB")

	want := strings.Join([]string{
		"+-------+---------+",
		"| Name  | Size    |",
		"+-------+---------+",
		"| a.sql | 1.00 KB |",
		"+-------+---------+",
		"",
	}, "\n")
	assert.Equal(t, want, table.Render())
}

func TestTable_MinimalRightAligned(t *testing.T) {
	table := NewTable("minimal", 120, nil).
		SetHeaders("Name", "Size").
		SetColumnAlignment(1, AlignRight).
		AddRow("a.sql", "1 B")

	want := " Name   Size\n a.sql   1 B\n"
	assert.Equal(t, want, table.Render())
}

func TestTable_ShrinksToMaxWidth(t *testing.T) {
	long := strings.Repeat("x", 80)
	table := NewTable("default", 40, nil).SetHeaders("Filename", "Size").AddRow(long, "2 B")

	for _, line := range strings.Split(strings.TrimRight(table.Render(), "\n"), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 40, line)
	}
	assert.Contains(t, table.Render(), "...")
}

func TestTable_Empty(t *testing.T) {
	assert.Equal(t, "", NewTable("rounded", 80, nil).Render())
}

func TestTable_RaggedRows(t *testing.T) {
	out := NewTable("default", 120, nil).SetHeaders("A").AddRow("1", "extra").Render()
	assert.Contains(t, out, "| 1 | extra |")
	assert.Contains(t, out, "| A |       |")
}
