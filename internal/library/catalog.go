package library

import (
	"fmt"
	"maps"
	"slices"
)

// Catalog owns every loaded library of a project and hands out descriptor ids.
type Catalog struct {
	libs   map[string]*Library
	byID   map[DescID]*NodeDesc
	nextID DescID
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{libs: make(map[string]*Library), byID: make(map[DescID]*NodeDesc)}
}

// Library returns the named library, or nil.
func (c *Catalog) Library(name string) *Library { return c.libs[name] }

// Has reports whether a library with name is loaded.
func (c *Catalog) Has(name string) bool {
	_, ok := c.libs[name]
	return ok
}

// Names returns the library names, sorted.
func (c *Catalog) Names() []string { return slices.Sorted(maps.Keys(c.libs)) }

// Libraries returns the libraries sorted by name.
func (c *Catalog) Libraries() []*Library {
	out := make([]*Library, 0, len(c.libs))
	for _, name := range c.Names() {
		out = append(out, c.libs[name])
	}
	return out
}

// Len returns the number of libraries.
func (c *Catalog) Len() int { return len(c.libs) }

// AddLibrary registers l and assigns ids to its descriptors. Library names are unique.
func (c *Catalog) AddLibrary(l *Library) error {
	if l.Name == "" {
		return ErrEmptyName
	}
	if c.Has(l.Name) {
		return fmt.Errorf("%w: library %s", ErrDuplicateName, l.Name)
	}
	c.libs[l.Name] = l
	for _, d := range l.Nodes() {
		c.assign(d)
	}
	return nil
}

// RemoveLibrary drops a library and all of its descriptors.
func (c *Catalog) RemoveLibrary(name string) *Library {
	l := c.libs[name]
	if l == nil {
		return nil
	}
	for _, d := range l.nodes {
		delete(c.byID, d.ID)
	}
	delete(c.libs, name)
	return l
}

// RenameLibrary renames a library; its descriptors follow.
func (c *Catalog) RenameLibrary(oldName, newName string) error {
	l := c.libs[oldName]
	if l == nil {
		return fmt.Errorf("%w: library %s", ErrNotFound, oldName)
	}
	if newName == "" {
		return ErrEmptyName
	}
	if oldName == newName {
		return nil
	}
	if c.Has(newName) {
		return fmt.Errorf("%w: library %s", ErrDuplicateName, newName)
	}
	delete(c.libs, oldName)
	l.Name = newName
	for _, d := range l.nodes {
		d.LibName = newName
	}
	c.libs[newName] = l
	return nil
}

// Lookup returns the descriptor lib/name, or nil.
func (c *Catalog) Lookup(lib, name string) *NodeDesc {
	if l := c.libs[lib]; l != nil {
		return l.Get(name)
	}
	return nil
}

// Find returns the first descriptor named name, scanning libraries in name order.
func (c *Catalog) Find(name string) *NodeDesc {
	if all := c.FindAll(name); len(all) > 0 {
		return all[0]
	}
	return nil
}

// FindAll returns every descriptor named name, in library name order.
func (c *Catalog) FindAll(name string) []*NodeDesc {
	var out []*NodeDesc
	for _, l := range c.Libraries() {
		if d := l.Get(name); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// ByID returns the descriptor with id, or nil when it was removed.
func (c *Catalog) ByID(id DescID) *NodeDesc { return c.byID[id] }

// AddNode inserts d into library lib and assigns it an id.
func (c *Catalog) AddNode(lib string, d *NodeDesc) error {
	l := c.libs[lib]
	if l == nil {
		return fmt.Errorf("%w: library %s", ErrNotFound, lib)
	}
	if err := l.Add(d); err != nil {
		return err
	}
	c.assign(d)
	return nil
}

// RemoveNode deletes lib/name and returns it.
func (c *Catalog) RemoveNode(lib, name string) (*NodeDesc, error) {
	l := c.libs[lib]
	if l == nil || l.Get(name) == nil {
		return nil, fmt.Errorf("%w: node %s/%s", ErrNotFound, lib, name)
	}
	d := l.remove(name)
	delete(c.byID, d.ID)
	return d, nil
}

// RenameNode renames lib/oldName. The descriptor keeps its id.
func (c *Catalog) RenameNode(lib, oldName, newName string) error {
	l := c.libs[lib]
	if l == nil {
		return fmt.Errorf("%w: library %s", ErrNotFound, lib)
	}
	return l.rename(oldName, newName)
}

// Clone returns a deep copy with identical ids.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{
		libs:   make(map[string]*Library, len(c.libs)),
		byID:   make(map[DescID]*NodeDesc, len(c.byID)),
		nextID: c.nextID,
	}
	for name, l := range c.libs {
		cl := l.Clone()
		out.libs[name] = cl
		for _, d := range cl.nodes {
			out.byID[d.ID] = d
		}
	}
	return out
}

func (c *Catalog) assign(d *NodeDesc) {
	c.nextID++
	d.ID = c.nextID
	c.byID[d.ID] = d
}
