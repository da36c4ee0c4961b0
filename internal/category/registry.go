package category

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNilCategory is returned when a nil category is registered.
	ErrNilCategory = errors.New("category: nil category")
	// ErrInvalidID is returned when a category ID is not a GUID.
	ErrInvalidID = errors.New("category: id is not a GUID")
	// ErrEmptyName is returned when a category has no display name.
	ErrEmptyName = errors.New("category: empty name")
	// ErrDuplicateID is returned when a GUID is registered twice.
	ErrDuplicateID = errors.New("category: duplicate id")
)

// Registry maps GUIDs to categories. It is filled at start-up and only read
// afterwards, so lookups need no locking.
type Registry struct {
	byID   map[ID]Category
	order  []Category
	groups []Group
	member map[ID]string
}

// NewRegistry builds a registry from groups, in order.
func NewRegistry(groups ...Group) (*Registry, error) {
	r := &Registry{
		byID:   make(map[ID]Category),
		member: make(map[ID]string),
	}
	for _, g := range groups {
		if err := r.RegisterGroup(g); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c at the end of the registration order.
func (r *Registry) Register(c Category) error {
	if err := r.check(c, nil); err != nil {
		return err
	}
	r.byID[c.ID()] = c
	r.order = append(r.order, c)
	return nil
}

// check validates c against the registry and against pending, the IDs of
// categories about to be registered with it.
func (r *Registry) check(c Category, pending map[ID]Category) error {
	if c == nil {
		return ErrNilCategory
	}
	id := c.ID()
	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if c.Name() == "" {
		return fmt.Errorf("%w: %s", ErrEmptyName, id)
	}
	if old, ok := r.byID[id]; ok {
		return fmt.Errorf("%w: %s is taken by %q", ErrDuplicateID, id, old.Name())
	}
	if old, ok := pending[id]; ok {
		return fmt.Errorf("%w: %s is taken by %q", ErrDuplicateID, id, old.Name())
	}
	return nil
}

// MustRegister is Register for wiring code where a collision is a bug.
func (r *Registry) MustRegister(c Category) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// RegisterGroup registers every category of g and remembers the grouping.
// Nothing is registered when any category of g is rejected.
func (r *Registry) RegisterGroup(g Group) error {
	pending := make(map[ID]Category, len(g.Categories))
	for _, c := range g.Categories {
		if err := r.check(c, pending); err != nil {
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		pending[c.ID()] = c
	}
	for _, c := range g.Categories {
		r.byID[c.ID()] = c
		r.order = append(r.order, c)
		r.member[c.ID()] = g.Name
	}
	r.groups = append(r.groups, g)
	return nil
}

// Lookup returns the category registered under id.
func (r *Registry) Lookup(id ID) (Category, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Find resolves user input: a GUID in any letter case or a display name,
// compared case-insensitively.
func (r *Registry) Find(s string) (Category, bool) {
	if c, ok := r.byID[ID(s)]; ok {
		return c, true
	}
	for _, c := range r.order {
		if strings.EqualFold(string(c.ID()), s) || strings.EqualFold(c.Name(), s) {
			return c, true
		}
	}
	return nil, false
}

// All returns every category in registration order.
func (r *Registry) All() []Category {
	out := make([]Category, len(r.order))
	copy(out, r.order)
	return out
}

// Groups returns the registered groups in order.
func (r *Registry) Groups() []Group {
	out := make([]Group, len(r.groups))
	copy(out, r.groups)
	return out
}

// GroupOf returns the name of the group id was registered with, if any.
func (r *Registry) GroupOf(id ID) string {
	return r.member[id]
}

// Descriptors returns the identity of every category in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.order))
	for i, c := range r.order {
		out[i] = DescriptorOf(c)
	}
	return out
}

// Len returns the number of registered categories.
func (r *Registry) Len() int { return len(r.order) }

// Select resolves ids in request order. An empty request selects everything.
// IDs that are not registered are returned separately.
func (r *Registry) Select(ids []ID) (found []Category, unknown []ID) {
	if len(ids) == 0 {
		return r.All(), nil
	}
	seen := make(map[ID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if c, ok := r.byID[id]; ok {
			found = append(found, c)
		} else {
			unknown = append(unknown, id)
		}
	}
	return found, unknown
}

// Index returns the registration position of id, or -1.
func (r *Registry) Index(id ID) int {
	for i, c := range r.order {
		if c.ID() == id {
			return i
		}
	}
	return -1
}
