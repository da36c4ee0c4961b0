// Package category defines the unit of host-state collection: a category owns
// a stable GUID, a host-side Serialize step and a viewer-side Parse step, and
// the two sides share nothing but the payload bytes.
package category

import "errors"

var (
	// ErrDecode marks a payload that is not a well-formed instance of the
	// category schema. It is never reported for a valid, empty payload.
	ErrDecode = errors.New("malformed category payload")

	// ErrEnumerate marks a failure of the enumerator that feeds Serialize.
	ErrEnumerate = errors.New("enumerate host state")

	// ErrNoSource is returned by Serialize on a category built without an
	// enumerator, which is how the viewer constructs them.
	ErrNoSource = errors.New("category has no enumerator source")
)

// ID is the GUID of a category. It is the only key shared by host and viewer
// builds, so it is compared verbatim.
type ID string

// IconRef names an icon; the render sink resolves it.
type IconRef string

// Column is a table header with a display width hint.
type Column struct {
	Title string `json:"title" yaml:"title"`
	Width int    `json:"width" yaml:"width"`
}

// Cell is one formatted value. Unit is optional.
type Cell struct {
	Text string `json:"text" yaml:"text"`
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// String joins the value and its unit.
func (c Cell) String() string {
	if c.Unit == "" || c.Text == "" {
		return c.Text
	}
	return c.Text + " " + c.Unit
}

// Row is one decoded record, ready for display.
type Row struct {
	Icon  IconRef `json:"icon" yaml:"icon"`
	Cells []Cell  `json:"cells" yaml:"cells"`
}

// Texts returns the cell texts in column order.
func (r Row) Texts() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Text
	}
	return out
}

// Category is implemented by every collectable category.
type Category interface {
	Name() string
	Icon() IconRef
	ID() ID

	// Columns returns the fixed column order of the rows produced by Parse.
	Columns() []Column

	// Serialize runs the enumerator to completion and encodes its records.
	// An enumerator that yields nothing is a valid, empty payload; an
	// enumerator failure is returned as an error wrapping ErrEnumerate.
	Serialize() ([]byte, error)

	// Parse decodes a payload produced by Serialize, possibly by another
	// build. Malformed input yields an error wrapping ErrDecode and no rows.
	Parse(payload []byte) ([]Row, error)
}

// Incomplete is implemented by categories that are registered but do not
// collect anything yet.
type Incomplete interface {
	Incomplete() bool
}

// IsIncomplete reports whether c is a placeholder category.
func IsIncomplete(c Category) bool {
	i, ok := c.(Incomplete)
	return ok && i.Incomplete()
}

// Descriptor is the identity of a category.
type Descriptor struct {
	ID   ID      `json:"id" yaml:"id"`
	Name string  `json:"name" yaml:"name"`
	Icon IconRef `json:"icon" yaml:"icon"`
}

// DescriptorOf returns the identity of c.
func DescriptorOf(c Category) Descriptor {
	return Descriptor{ID: c.ID(), Name: c.Name(), Icon: c.Icon()}
}

// Group is a named, ordered set of categories.
type Group struct {
	Name       string
	Icon       IconRef
	Categories []Category
}
