package library

import (
	"fmt"
	"maps"
	"slices"
)

// Library is a named collection of node descriptors, keyed by node name.
type Library struct {
	Name string
	// Path is the backing file the library is saved to.
	Path string

	nodes map[string]*NodeDesc
}

// New creates an empty library.
func New(name, path string) *Library {
	return &Library{Name: name, Path: path, nodes: make(map[string]*NodeDesc)}
}

// Get returns the named descriptor, or nil.
func (l *Library) Get(name string) *NodeDesc { return l.nodes[name] }

// Len returns the number of descriptors.
func (l *Library) Len() int { return len(l.nodes) }

// Names returns the node names, sorted.
func (l *Library) Names() []string {
	return slices.Sorted(maps.Keys(l.nodes))
}

// Nodes returns the descriptors sorted by name.
func (l *Library) Nodes() []*NodeDesc {
	out := make([]*NodeDesc, 0, len(l.nodes))
	for _, name := range l.Names() {
		out = append(out, l.nodes[name])
	}
	return out
}

// Filter returns descriptors of class and typ sorted by name. Empty arguments match anything.
func (l *Library) Filter(class, typ string) []*NodeDesc {
	var out []*NodeDesc
	for _, d := range l.Nodes() {
		if (class == "" || d.Class == class) && (typ == "" || d.Type == typ) {
			out = append(out, d)
		}
	}
	return out
}

// Add inserts d. Names are unique within a library. Ids are assigned when the library joins a
// Catalog, or by Catalog.AddNode.
func (l *Library) Add(d *NodeDesc) error {
	if d.Name == "" {
		return ErrEmptyName
	}
	if _, exists := l.nodes[d.Name]; exists {
		return fmt.Errorf("%w: node %s in library %s", ErrDuplicateName, d.Name, l.Name)
	}
	if l.nodes == nil {
		l.nodes = make(map[string]*NodeDesc)
	}
	d.LibName = l.Name
	l.nodes[d.Name] = d
	return nil
}

func (l *Library) remove(name string) *NodeDesc {
	d := l.nodes[name]
	delete(l.nodes, name)
	return d
}

func (l *Library) rename(oldName, newName string) error {
	d, ok := l.nodes[oldName]
	if !ok {
		return fmt.Errorf("%w: node %s in library %s", ErrNotFound, oldName, l.Name)
	}
	if newName == "" {
		return ErrEmptyName
	}
	if oldName == newName {
		return nil
	}
	if _, exists := l.nodes[newName]; exists {
		return fmt.Errorf("%w: node %s in library %s", ErrDuplicateName, newName, l.Name)
	}
	delete(l.nodes, oldName)
	d.Name = newName
	l.nodes[newName] = d
	return nil
}

// Clone returns a deep copy; descriptor ids are preserved.
func (l *Library) Clone() *Library {
	c := New(l.Name, l.Path)
	for name, d := range l.nodes {
		c.nodes[name] = d.Clone()
	}
	return c
}
