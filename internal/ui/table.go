// Package ui provides table rendering for aligned columnar output.
package ui

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Table represents a table with dynamic column widths for formatted output.
type Table struct {
	// Headers contains the column header names.
	Headers []string

	// Rows contains all data rows.
	Rows [][]string

	// MinWidths specifies minimum width per column index.
	MinWidths map[int]int

	// MaxWidths specifies maximum width per column index (truncates with ellipsis).
	MaxWidths map[int]int
}

// NewTable creates a new table with the specified headers.
//
// Parameters:
//   - headers: Column header names
//
// Returns:
//   - *Table: A new table instance
func NewTable(headers ...string) *Table {
	return &Table{
		Headers:   headers,
		Rows:      make([][]string, 0),
		MinWidths: make(map[int]int),
		MaxWidths: make(map[int]int),
	}
}

// AddRow adds a data row to the table.
//
// Parameters:
//   - values: Cell values for the row
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// SetMinWidth sets the minimum width for a column.
//
// Parameters:
//   - col: Column index (0-based)
//   - width: Minimum width in characters
func (t *Table) SetMinWidth(col, width int) {
	t.MinWidths[col] = width
}

// SetMaxWidth sets the maximum width for a column.
// Values exceeding this width will be truncated with ellipsis.
//
// Parameters:
//   - col: Column index (0-based)
//   - width: Maximum width in characters
func (t *Table) SetMaxWidth(col, width int) {
	t.MaxWidths[col] = width
}

// calculateColumnWidths computes the optimal width for each column,
// shrinking the widest columns when the terminal is too narrow.
//
// Returns:
//   - []int: Width for each column
func (t *Table) calculateColumnWidths() []int {
	numCols := len(t.Headers)
	widths := make([]int, numCols)

	// Start with header widths
	for i, header := range t.Headers {
		widths[i] = utf8.RuneCountInString(header)
	}

	// Check all row values
	for _, row := range t.Rows {
		for i, val := range row {
			if w := utf8.RuneCountInString(val); i < numCols && w > widths[i] {
				widths[i] = w
			}
		}
	}

	// Apply min/max constraints
	for i := range widths {
		if min, ok := t.MinWidths[i]; ok && widths[i] < min {
			widths[i] = min
		}
		if max, ok := t.MaxWidths[i]; ok && widths[i] > max {
			widths[i] = max
		}
	}

	t.fitToWidth(widths, terminalWidth())

	return widths
}

// fitToWidth shrinks the widest columns until the table fits in limit
// characters. Columns never shrink below their header width or 4 runes.
func (t *Table) fitToWidth(widths []int, limit int) {
	if limit <= 0 || len(widths) == 0 {
		return
	}

	total := func() int {
		sum := colGapWidth * (len(widths) - 1)
		for _, w := range widths {
			sum += w
		}
		return sum
	}

	for total() > limit {
		// Find the widest shrinkable column.
		widest, at := 0, -1
		for i, w := range widths {
			floor := utf8.RuneCountInString(t.Headers[i])
			if floor < 4 {
				floor = 4
			}
			if w > floor && w > widest {
				widest, at = w, i
			}
		}
		if at < 0 {
			return
		}
		widths[at]--
	}
}

// colGapWidth is the number of spaces between columns.
const colGapWidth = 2

// terminalWidth returns the width of the attached terminal, or 0 when
// stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

// truncateWithEllipsis truncates a string to the specified width with ellipsis.
//
// Parameters:
//   - s: String to truncate
//   - width: Maximum width
//
// Returns:
//   - string: Truncated string with ellipsis if needed
func truncateWithEllipsis(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// padRight pads a string to the specified width with spaces.
//
// Parameters:
//   - s: String to pad
//   - width: Target width
//
// Returns:
//   - string: Padded string
func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// Render prints the table with calculated column widths.
// Headers are styled with TableHeaderStyle, cells with TableCellStyle.
func (t *Table) Render() {
	fmt.Print(t.String())
}

// String renders the table to a string.
//
// Returns:
//   - string: The rendered table including a trailing newline
func (t *Table) String() string {
	if len(t.Headers) == 0 {
		return ""
	}

	var out strings.Builder
	widths := t.calculateColumnWidths()
	colGap := strings.Repeat(" ", colGapWidth)

	// Header row
	var headerCells []string
	for i, header := range t.Headers {
		cell := padRight(truncateWithEllipsis(header, widths[i]), widths[i])
		headerCells = append(headerCells, TableHeaderStyle.Render(cell))
	}
	out.WriteString(strings.Join(headerCells, colGap))
	out.WriteString("\n")

	// Separator
	totalWidth := colGapWidth * (len(widths) - 1)
	for _, w := range widths {
		totalWidth += w
	}
	out.WriteString(DimStyle.Render(strings.Repeat("─", totalWidth)))
	out.WriteString("\n")

	// Data rows
	for _, row := range t.Rows {
		var cells []string
		for i := 0; i < len(t.Headers); i++ {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			cell := padRight(truncateWithEllipsis(val, widths[i]), widths[i])
			cells = append(cells, TableCellStyle.Render(cell))
		}
		out.WriteString(strings.Join(cells, colGap))
		out.WriteString("\n")
	}

	return out.String()
}
