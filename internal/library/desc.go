// Package library models reusable node definitions (descriptors) grouped into named
// libraries.
package library

import (
	"errors"
	"fmt"
	"slices"

	"github.com/oxhq/btstudio/internal/attr"
)

var (
	ErrDuplicateName = errors.New("duplicate name")
	ErrNotFound      = errors.New("not found")
	ErrEmptyName     = errors.New("empty name")
	ErrForwardRef    = errors.New("dynamic attribute depends on an undefined attribute")
)

// DescID is a process-stable identity of a descriptor. It survives renames, so tree nodes
// bound to a descriptor need no fix-up beyond the cached display name.
type DescID uint32

// NodeDesc is a reusable node definition (class, type, default attributes, allowed
// children).
type NodeDesc struct {
	ID             DescID
	Name           string
	Class          string
	Type           string
	LibName        string
	Creator        string
	Description    string
	Shape          string
	Icon           string
	DebugByDefault bool
	IncomingEvents []string
	OutgoingEvents []string
	// ChildClasses lists the child classes this node accepts, a subset of its type's.
	ChildClasses []string

	attrs map[string]attr.Desc
	order []string
}

// NewNodeDesc creates a descriptor without attributes.
func NewNodeDesc(name, class, typ string) *NodeDesc {
	return &NodeDesc{Name: name, Class: class, Type: typ, attrs: make(map[string]attr.Desc)}
}

// CreatorName is the identifier an external runtime instantiates this node by.
func (d *NodeDesc) CreatorName() string {
	if d.Creator != "" {
		return d.Creator
	}
	return d.Name
}

// AcceptsChildClass reports whether class is among ChildClasses.
func (d *NodeDesc) AcceptsChildClass(class string) bool {
	return slices.Contains(d.ChildClasses, class)
}

// Attr returns the descriptor of attribute name, or nil.
func (d *NodeDesc) Attr(name string) attr.Desc { return d.attrs[name] }

// Attrs returns the attribute descriptors in definition order.
func (d *NodeDesc) Attrs() []attr.Desc {
	out := make([]attr.Desc, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.attrs[name])
	}
	return out
}

// AttrNames returns the attribute names in definition order.
func (d *NodeDesc) AttrNames() []string { return slices.Clone(d.order) }

// AddAttr registers an attribute. Names are unique; a dynamic attribute's control must
// already be defined on this node.
func (d *NodeDesc) AddAttr(a attr.Desc) error {
	name := a.FullName()
	if name == "" {
		return ErrEmptyName
	}
	if _, exists := d.attrs[name]; exists {
		return fmt.Errorf("%w: attribute %s on %s", ErrDuplicateName, name, d.Name)
	}
	if dyn, ok := a.(*attr.DynamicAttrDesc); ok {
		if _, defined := d.attrs[dyn.Control()]; !defined || dyn.Control() == name {
			return fmt.Errorf("%w: %s -> %s", ErrForwardRef, name, dyn.Control())
		}
	}
	if d.attrs == nil {
		d.attrs = make(map[string]attr.Desc)
	}
	d.attrs[name] = a
	d.order = append(d.order, name)
	return nil
}

// RemoveAttr deletes an attribute. Dynamic attributes that depend on it are removed too; the
// removed names are returned.
func (d *NodeDesc) RemoveAttr(name string) []string {
	if _, ok := d.attrs[name]; !ok {
		return nil
	}
	removed := []string{name}
	delete(d.attrs, name)
	d.order = slices.DeleteFunc(d.order, func(s string) bool { return s == name })
	for _, other := range slices.Clone(d.order) {
		if dyn, ok := d.attrs[other].(*attr.DynamicAttrDesc); ok && dyn.Control() == name {
			removed = append(removed, d.RemoveAttr(other)...)
		}
	}
	return removed
}

// RenameAttr renames an attribute and updates dynamic attributes controlled by it.
func (d *NodeDesc) RenameAttr(oldName, newName string) error {
	a, ok := d.attrs[oldName]
	if !ok {
		return fmt.Errorf("%w: attribute %s on %s", ErrNotFound, oldName, d.Name)
	}
	if oldName == newName {
		return nil
	}
	if _, exists := d.attrs[newName]; exists {
		return fmt.Errorf("%w: attribute %s on %s", ErrDuplicateName, newName, d.Name)
	}
	a.SetFullName(newName)
	newName = a.FullName()
	delete(d.attrs, oldName)
	d.attrs[newName] = a
	for i, n := range d.order {
		if n == oldName {
			d.order[i] = newName
		}
	}
	for _, other := range d.attrs {
		if dyn, ok := other.(*attr.DynamicAttrDesc); ok && dyn.Control() == oldName {
			dyn.SetControl(newName)
		}
	}
	return nil
}

// DependentsOf returns the dynamic attributes controlled by name.
func (d *NodeDesc) DependentsOf(name string) []*attr.DynamicAttrDesc {
	var out []*attr.DynamicAttrDesc
	for _, n := range d.order {
		if dyn, ok := d.attrs[n].(*attr.DynamicAttrDesc); ok && dyn.Control() == name {
			out = append(out, dyn)
		}
	}
	return out
}

// Clone returns a deep copy with the same ID.
func (d *NodeDesc) Clone() *NodeDesc {
	c := *d
	c.IncomingEvents = slices.Clone(d.IncomingEvents)
	c.OutgoingEvents = slices.Clone(d.OutgoingEvents)
	c.ChildClasses = slices.Clone(d.ChildClasses)
	c.order = slices.Clone(d.order)
	c.attrs = make(map[string]attr.Desc, len(d.attrs))
	for k, a := range d.attrs {
		c.attrs[k] = a.CloneDesc()
	}
	return &c
}
