// Package render turns decoded category rows into displays.
//
// A Sink receives one table declaration per category followed by a
// bracketed sequence of rows. It makes no assumption about layout: the
// Terminal sink draws text tables, the Collector sink keeps the tables in
// memory for JSON, YAML and the REST API.
package render

import "github.com/go-tangra/go-tangra-sysinfo/internal/category"

// Sink consumes tables. Calls arrive in the order
// BeginTable (BeginRow AddValue* EndRow)* EndTable.
type Sink interface {
	BeginTable(name string, columns []category.Column)
	BeginRow(icon category.IconRef)
	AddValue(cell category.Cell)
	EndRow()
	EndTable()
}

// Emit declares the table of c and feeds rows into it.
func Emit(s Sink, c category.Category, rows []category.Row) {
	EmitTable(s, Table{Name: c.Name(), Columns: c.Columns(), Rows: rows})
}

// EmitTable replays a collected table into another sink.
func EmitTable(s Sink, t Table) {
	s.BeginTable(t.Name, t.Columns)
	for _, r := range t.Rows {
		s.BeginRow(r.Icon)
		for _, c := range r.Cells {
			s.AddValue(c)
		}
		s.EndRow()
	}
	s.EndTable()
}

// Table is a fully collected table.
type Table struct {
	Name    string            `json:"name" yaml:"name"`
	Columns []category.Column `json:"columns" yaml:"columns"`
	Rows    []category.Row    `json:"rows" yaml:"rows"`
}

// Collector is a Sink that keeps every table it receives.
type Collector struct {
	tables []Table
	cur    *Table
	row    *category.Row
}

func (c *Collector) BeginTable(name string, columns []category.Column) {
	c.cur = &Table{
		Name:    name,
		Columns: append([]category.Column(nil), columns...),
		Rows:    []category.Row{},
	}
}

func (c *Collector) BeginRow(icon category.IconRef) {
	c.row = &category.Row{Icon: icon}
}

func (c *Collector) AddValue(cell category.Cell) {
	if c.row != nil {
		c.row.Cells = append(c.row.Cells, cell)
	}
}

func (c *Collector) EndRow() {
	if c.cur != nil && c.row != nil {
		c.cur.Rows = append(c.cur.Rows, *c.row)
	}
	c.row = nil
}

func (c *Collector) EndTable() {
	if c.cur != nil {
		c.tables = append(c.tables, *c.cur)
	}
	c.cur = nil
}

// Tables returns the completed tables in arrival order.
func (c *Collector) Tables() []Table {
	return c.tables
}

// Last returns the most recently completed table.
func (c *Collector) Last() (Table, bool) {
	if len(c.tables) == 0 {
		return Table{}, false
	}
	return c.tables[len(c.tables)-1], true
}
