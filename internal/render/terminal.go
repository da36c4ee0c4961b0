package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
)

// Column width hints are in pixels; this many pixels make one character.
const (
	pixelsPerChar = 8
	minCellWidth  = 8
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	emptyStyle  = lipgloss.NewStyle().Faint(true)
)

// Terminal draws each table as soon as it ends.
type Terminal struct {
	w       io.Writer
	name    string
	columns []category.Column
	rows    [][]string
	row     []string
	err     error
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) BeginTable(name string, columns []category.Column) {
	t.name = name
	t.columns = columns
	t.rows = nil
}

func (t *Terminal) BeginRow(category.IconRef) {
	t.row = make([]string, 0, len(t.columns))
}

func (t *Terminal) AddValue(cell category.Cell) {
	i := len(t.row)
	t.row = append(t.row, truncate(cell.String(), t.widthOf(i)))
}

func (t *Terminal) EndRow() {
	t.rows = append(t.rows, t.row)
	t.row = nil
}

func (t *Terminal) EndTable() {
	var b strings.Builder
	b.WriteString(titleStyle.Render(t.name))
	b.WriteByte('\n')

	if len(t.rows) == 0 {
		b.WriteString(emptyStyle.Render("(no data)"))
		b.WriteString("\n\n")
		t.write(b.String())
		return
	}

	headers := make([]string, len(t.columns))
	for i, c := range t.columns {
		headers[i] = c.Title
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(t.rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	b.WriteString(tbl.Render())
	b.WriteString("\n\n")
	t.write(b.String())
}

// Err returns the first write error.
func (t *Terminal) Err() error { return t.err }

func (t *Terminal) write(s string) {
	if t.err != nil {
		return
	}
	_, t.err = io.WriteString(t.w, s)
}

// Note prints a line under the table title, for tables that have no rows to
// show because something went wrong.
func (t *Terminal) Note(name, format string, args ...any) {
	t.write(titleStyle.Render(name) + "\n" + emptyStyle.Render(fmt.Sprintf(format, args...)) + "\n\n")
}

func (t *Terminal) widthOf(col int) int {
	if col >= len(t.columns) {
		return 0
	}
	return max(t.columns[col].Width/pixelsPerChar, minCellWidth)
}

// truncate cuts s to at most width display cells. Zero means no limit.
func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
