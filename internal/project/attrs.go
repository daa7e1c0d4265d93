package project

import (
	"fmt"

	"github.com/oxhq/btstudio/internal/attr"
	"github.com/oxhq/btstudio/internal/events"
	"github.com/oxhq/btstudio/internal/library"
	"github.com/oxhq/btstudio/internal/tree"
)

// attrTarget resolves the node, its descriptor, the attribute holder and the unit that
// currently validates it.
func (p *Project) attrTarget(uid tree.UID, name string) (*tree.Node, *library.NodeDesc, *attr.NodeAttr, *attr.NodeAttrDesc, error) {
	n, err := p.Node(uid)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	d := p.NodeDesc(uid)
	if d == nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: %d", ErrOrphaned, uid)
	}
	ad := d.Attr(name)
	if ad == nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: attribute %s on %s", ErrNotFound, name, d.Name)
	}
	a := n.Attr(ad.FullName())
	if a == nil {
		p.initAttrs(n, d)
		a = n.Attr(ad.FullName())
	}
	unit := ad.Unit(a.Key())
	if unit == nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: no variant %q of %s", ErrNotFound, a.Key(), name)
	}
	return n, d, a, unit, nil
}

// editAttr applies fn to the attribute and, when it reports a change, refreshes the dynamic
// attributes it controls and publishes AttrChanged.
func (p *Project) editAttr(uid tree.UID, name string, fn func(a *attr.NodeAttr, unit *attr.NodeAttrDesc) bool) (bool, error) {
	n, d, a, unit, err := p.attrTarget(uid, name)
	if err != nil {
		return false, err
	}
	if !fn(a, unit) {
		return false, nil
	}
	p.updateDependents(n, d, a.Name())
	p.Modified = true
	p.publish(events.Event{Kind: events.AttrChanged, UID: uint32(uid), Attr: a.Name()})
	return true, nil
}

// SetAttrValue stores v in a scalar attribute. It reports false, leaving the value unchanged,
// when v is out of bounds or not among the available values.
func (p *Project) SetAttrValue(uid tree.UID, name string, v attr.Value) (bool, error) {
	return p.editAttr(uid, name, func(a *attr.NodeAttr, unit *attr.NodeAttrDesc) bool {
		return a.SetValue(unit, v)
	})
}

// SetAttrText parses text with the attribute's type and stores it.
func (p *Project) SetAttrText(uid tree.UID, name, text string) (bool, error) {
	return p.editAttr(uid, name, func(a *attr.NodeAttr, unit *attr.NodeAttrDesc) bool {
		return a.SetText(unit, text)
	})
}

// AppendAttrValue adds v to the end of an array attribute.
func (p *Project) AppendAttrValue(uid tree.UID, name string, v attr.Value) (bool, error) {
	return p.editAttr(uid, name, func(a *attr.NodeAttr, unit *attr.NodeAttrDesc) bool {
		return a.AppendValue(unit, v)
	})
}

// InsertAttrValue inserts v at position i of an array attribute.
func (p *Project) InsertAttrValue(uid tree.UID, name string, i int, v attr.Value) (bool, error) {
	return p.editAttr(uid, name, func(a *attr.NodeAttr, unit *attr.NodeAttrDesc) bool {
		return a.InsertValueAt(unit, i, v)
	})
}

// SetAttrValueAt replaces element i of an array attribute.
func (p *Project) SetAttrValueAt(uid tree.UID, name string, i int, v attr.Value) (bool, error) {
	return p.editAttr(uid, name, func(a *attr.NodeAttr, unit *attr.NodeAttrDesc) bool {
		return a.SetValueAt(unit, i, v)
	})
}

// EraseAttrValueAt removes element i of an array attribute.
func (p *Project) EraseAttrValueAt(uid tree.UID, name string, i int) (bool, error) {
	return p.editAttr(uid, name, func(a *attr.NodeAttr, _ *attr.NodeAttrDesc) bool {
		return a.EraseAt(i)
	})
}

// updateDependents re-derives the variant of every dynamic attribute controlled by name,
// following chains of dynamic attributes controlling each other.
func (p *Project) updateDependents(n *tree.Node, d *library.NodeDesc, name string) {
	for _, dyn := range d.DependentsOf(name) {
		a := n.Attr(dyn.FullName())
		if a == nil {
			a = attr.NewNodeAttr(dyn)
			n.SetAttr(a)
		}
		before := a.Key()
		dyn.Update(a, n.Attrs)
		if a.Key() != before {
			p.updateDependents(n, d, dyn.FullName())
		}
	}
}
