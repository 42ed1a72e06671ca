package util

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// Table builds space-aligned text from tab-separated cells. Writes go to a strings.Builder and
// therefore never fail, so no errors are returned.
type Table struct {
	sb     *strings.Builder
	writer *tabwriter.Writer
}

// NewTable returns a table whose columns are separated by at least padding spaces.
func NewTable(padding int) *Table {
	sb := &strings.Builder{}
	return &Table{
		sb:     sb,
		writer: tabwriter.NewWriter(sb, 1, 1, padding, ' ', 0),
	}
}

// Writef writes formatted text; tabs separate cells.
func (t *Table) Writef(format string, a ...any) {
	_, _ = fmt.Fprintf(t.writer, format, a...)
}

// Row writes one line with a cell per value.
func (t *Table) Row(cells ...any) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprint(cell)
	}
	_, _ = fmt.Fprintln(t.writer, strings.Join(parts, "\t"))
}

func (t *Table) String() string {
	_ = t.writer.Flush()
	return t.sb.String()
}
