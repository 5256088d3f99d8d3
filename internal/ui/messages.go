package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	out       io.Writer = os.Stdout
	quietMode bool
)

// SetOutput redirects all printing; nil restores stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// SetQuietMode suppresses informational output. Errors and warnings are
// still printed.
func SetQuietMode(quiet bool) {
	quietMode = quiet
}

// Println prints an empty line.
func Println() {
	if quietMode {
		return
	}
	fmt.Fprintln(out)
}

// PrintSuccess prints a success message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintSuccess(format string, args ...any) {
	if quietMode {
		return
	}
	fmt.Fprintln(out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintError prints an error message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintError(format string, args ...any) {
	fmt.Fprintln(out, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...any) {
	fmt.Fprintln(out, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// PrintInfo prints an informational message.
func PrintInfo(format string, args ...any) {
	if quietMode {
		return
	}
	fmt.Fprintln(out, InfoStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintDim prints a dimmed message.
func PrintDim(format string, args ...any) {
	if quietMode {
		return
	}
	fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintLink prints a labelled URL.
func PrintLink(label, url string) {
	if quietMode {
		return
	}
	fmt.Fprintf(out, "%s %s\n", DimStyle.Render(label+":"), LinkStyle.Render(url))
}

// PrintPlain prints text as-is. Command output goes through here so it is
// never styled or suppressed.
func PrintPlain(text string) {
	fmt.Fprintln(out, text)
}

// Table is a table with dynamic column widths.
type Table struct {
	// Headers contains the column header names.
	Headers []string

	// Rows contains all data rows.
	Rows [][]string

	// MaxWidths specifies maximum width per column index (truncates with ellipsis).
	MaxWidths map[int]int
}

// NewTable creates a new table with the specified headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers, MaxWidths: make(map[int]int)}
}

// AddRow adds a data row to the table.
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// SetMaxWidth sets the maximum width for a column.
func (t *Table) SetMaxWidth(col, width int) {
	t.MaxWidths[col] = width
}

func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, val := range row {
			if i < len(widths) && len(val) > widths[i] {
				widths[i] = len(val)
			}
		}
	}
	for i := range widths {
		if max, ok := t.MaxWidths[i]; ok && widths[i] > max {
			widths[i] = max
		}
	}
	return widths
}

func truncateWithEllipsis(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// String renders the table.
func (t *Table) String() string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := t.columnWidths()
	const gap = "  "

	var b strings.Builder
	cells := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		cells[i] = TableHeaderStyle.Render(padRight(h, widths[i]))
	}
	b.WriteString(strings.TrimRight(strings.Join(cells, gap), " "))
	b.WriteString("\n")

	total := len(gap) * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	b.WriteString(DimStyle.Render(strings.Repeat("─", total)))
	b.WriteString("\n")

	for _, row := range t.Rows {
		for i := range t.Headers {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			if max, ok := t.MaxWidths[i]; ok {
				val = truncateWithEllipsis(val, max)
			}
			cells[i] = TableCellStyle.Render(padRight(val, widths[i]))
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, gap), " "))
		b.WriteString("\n")
	}
	return b.String()
}

// Render prints the table.
func (t *Table) Render() {
	fmt.Fprint(out, t.String())
}
