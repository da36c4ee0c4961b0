// Package viewer decodes stored category payloads into displayable sections.
package viewer

import (
	"io"
	"time"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/render"
	"github.com/go-tangra/go-tangra-sysinfo/internal/store"
)

// Status says how a section was decoded.
type Status string

const (
	StatusOK              Status = "ok"
	StatusEmpty           Status = "empty"
	StatusIncomplete      Status = "incomplete"
	StatusCollectError    Status = "collect_error"
	StatusDecodeError     Status = "decode_error"
	StatusUnknownCategory Status = "unknown_category"
)

// Section is one category of one host, decoded.
type Section struct {
	SnapshotID  int64            `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	CategoryID  category.ID      `json:"category_id" yaml:"category_id"`
	Name        string           `json:"name" yaml:"name"`
	Icon        category.IconRef `json:"icon,omitempty" yaml:"icon,omitempty"`
	Group       string           `json:"group,omitempty" yaml:"group,omitempty"`
	Status      Status           `json:"status" yaml:"status"`
	Error       string           `json:"error,omitempty" yaml:"error,omitempty"`
	CollectedAt time.Time        `json:"collected_at" yaml:"collected_at"`
	Table       *render.Table    `json:"table,omitempty" yaml:"table,omitempty"`
}

// Decode turns one stored snapshot into a section. It never fails: problems
// are reported through Status and Error.
func Decode(reg *category.Registry, snap store.Snapshot) Section {
	id := category.ID(snap.CategoryID)
	sec := Section{
		SnapshotID:  snap.ID,
		CategoryID:  id,
		Name:        snap.CategoryID,
		CollectedAt: snap.CollectedAt,
	}

	c, ok := reg.Lookup(id)
	if !ok {
		sec.Status = StatusUnknownCategory
		return sec
	}
	sec.Name = c.Name()
	sec.Icon = c.Icon()
	sec.Group = reg.GroupOf(id)

	if snap.CollectError != "" {
		sec.Status = StatusCollectError
		sec.Error = snap.CollectError
		return sec
	}

	rows, err := c.Parse(snap.Payload)
	if err != nil {
		sec.Status = StatusDecodeError
		sec.Error = err.Error()
		return sec
	}

	var sink render.Collector
	render.Emit(&sink, c, rows)
	table, _ := sink.Last()
	sec.Table = &table

	switch {
	case category.IsIncomplete(c):
		sec.Status = StatusIncomplete
	case len(rows) == 0:
		sec.Status = StatusEmpty
	default:
		sec.Status = StatusOK
	}
	return sec
}

// Tables returns the tables of the sections that have one.
func Tables(sections []Section) []render.Table {
	out := make([]render.Table, 0, len(sections))
	for _, s := range sections {
		if s.Table != nil {
			out = append(out, *s.Table)
		}
	}
	return out
}

// Print draws sections on a terminal. Sections without a table get a note
// naming their status.
func Print(t *render.Terminal, sections []Section) error {
	for _, s := range sections {
		switch {
		case s.Table != nil && s.Status != StatusIncomplete:
			render.EmitTable(t, *s.Table)
		case s.Status == StatusIncomplete:
			t.Note(s.Name, "not collected yet")
		case s.Error != "":
			t.Note(s.Name, "%s: %s", s.Status, s.Error)
		default:
			t.Note(s.Name, "%s", s.Status)
		}
	}
	return t.Err()
}

// Write prints rep: a terminal table per section, or the whole report as
// JSON or YAML.
func Write(w io.Writer, format render.Format, rep *Report) error {
	switch format {
	case render.FormatJSON, render.FormatYAML:
		return render.WriteValue(w, format, rep)
	default:
		return Print(render.NewTerminal(w), rep.Sections)
	}
}
