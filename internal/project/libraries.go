package project

import (
	"fmt"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/attr"
	"github.com/oxhq/btstudio/internal/events"
	"github.com/oxhq/btstudio/internal/library"
	"github.com/oxhq/btstudio/internal/tree"
)

// boundTo returns the nodes bound to descriptor id.
func (p *Project) boundTo(id library.DescID) []*tree.Node {
	return p.Store.Find(func(n *tree.Node) bool { return n.DescID == id })
}

func nodeUIDs(nodes []*tree.Node) []tree.UID {
	out := make([]tree.UID, len(nodes))
	for i, n := range nodes {
		out[i] = n.UID
	}
	return out
}

// AddLibrary creates an empty library saved to path.
func (p *Project) AddLibrary(name, path string) error {
	if err := p.Catalog.AddLibrary(library.New(name, filepath.Clean(path))); err != nil {
		return err
	}
	if !slices.Contains(p.LibLayout.Files, filepath.Clean(path)) {
		p.LibLayout.Files = append(p.LibLayout.Files, filepath.Clean(path))
	}
	p.Modified = true
	p.publish(events.Event{Kind: events.LibraryAdded, Library: name})
	return nil
}

// RenameLibrary renames a library. Bound nodes follow through their descriptor; orphaned nodes
// that referenced the old name are pointed at the new one.
func (p *Project) RenameLibrary(oldName, newName string) error {
	if err := p.Catalog.RenameLibrary(oldName, newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	var touched []tree.UID
	for _, n := range p.Store.Find(func(n *tree.Node) bool { return n.LibName == oldName }) {
		n.LibName = newName
		touched = append(touched, n.UID)
	}
	p.Modified = true
	p.log.Info("library renamed", zap.String("from", oldName), zap.String("to", newName),
		zap.Int("nodes", len(touched)))
	p.publish(events.Event{Kind: events.LibraryRenamed, OldName: oldName, NewName: newName, UIDs: uint32s(touched)})
	return nil
}

// AddNodeDesc adds d to library lib. Orphaned nodes that already reference lib/d.Name with a
// matching class and type are bound to it.
func (p *Project) AddNodeDesc(lib string, d *library.NodeDesc) error {
	if p.Alphabet.Type(d.Class, d.Type) == nil {
		return fmt.Errorf("%w: %s/%s", ErrUnknownClass, d.Class, d.Type)
	}
	if err := p.Catalog.AddNode(lib, d); err != nil {
		return err
	}
	orphans := p.Store.Find(func(n *tree.Node) bool {
		return n.DescID == 0 && n.Target == "" && n.LibName == lib && n.NodeName == d.Name &&
			n.Class == d.Class && n.Type == d.Type
	})
	for _, n := range orphans {
		n.Bind(d)
		p.adoptAttrs(n, d)
	}
	p.Modified = true
	p.publish(events.Event{Kind: events.NodeDescAdded, Library: lib, Node: d.Name, UIDs: uint32s(nodeUIDs(orphans))})
	return nil
}

// RenameNodeDesc renames lib/oldName. Every node bound to the descriptor now reports the new
// name and still resolves to the same descriptor.
func (p *Project) RenameNodeDesc(lib, oldName, newName string) error {
	d := p.Catalog.Lookup(lib, oldName)
	if d == nil {
		return fmt.Errorf("%w: node %s/%s", ErrNotFound, lib, oldName)
	}
	if err := p.Catalog.RenameNode(lib, oldName, newName); err != nil {
		return err
	}
	bound := p.boundTo(d.ID)
	for _, n := range bound {
		n.NodeName = d.Name
	}
	p.Modified = true
	p.log.Info("node renamed", zap.String("library", lib), zap.String("from", oldName),
		zap.String("to", newName), zap.Int("nodes", len(bound)))
	p.publish(events.Event{
		Kind: events.NodeDescRenamed, Library: lib, OldName: oldName, NewName: newName,
		UIDs: uint32s(nodeUIDs(bound)),
	})
	return nil
}

// RemoveNodeDesc deletes lib/name from its library. Nodes that used it stay in their trees as
// orphans and keep their library and node names.
func (p *Project) RemoveNodeDesc(lib, name string) error {
	d, err := p.Catalog.RemoveNode(lib, name)
	if err != nil {
		return err
	}
	bound := p.boundTo(d.ID)
	for _, n := range bound {
		n.DescID = 0
	}
	p.Modified = true
	if len(bound) > 0 {
		p.log.Warn("nodes orphaned", zap.String("library", lib), zap.String("node", name), zap.Int("nodes", len(bound)))
	}
	p.publish(events.Event{Kind: events.NodeDescRemoved, Library: lib, Node: name, UIDs: uint32s(nodeUIDs(bound))})
	return nil
}

// RenameAttrDesc renames an attribute of lib/node and rekeys the values held by bound nodes.
func (p *Project) RenameAttrDesc(lib, node, oldName, newName string) error {
	d := p.Catalog.Lookup(lib, node)
	if d == nil {
		return fmt.Errorf("%w: node %s/%s", ErrNotFound, lib, node)
	}
	if err := d.RenameAttr(oldName, newName); err != nil {
		return err
	}
	newName = d.Attr(newName).FullName()
	bound := p.boundTo(d.ID)
	for _, n := range bound {
		if a := n.Attrs[oldName]; a != nil {
			delete(n.Attrs, oldName)
			a.SetName(newName)
			n.SetAttr(a)
		}
	}
	p.Modified = true
	p.publish(events.Event{
		Kind: events.AttrDescChanged, Library: lib, Node: node, OldName: oldName, NewName: newName,
		UIDs: uint32s(nodeUIDs(bound)),
	})
	return nil
}

// RemoveAttrDesc deletes an attribute of lib/node, together with the dynamic attributes it
// controls, and drops the values held by bound nodes.
func (p *Project) RemoveAttrDesc(lib, node, name string) error {
	d := p.Catalog.Lookup(lib, node)
	if d == nil {
		return fmt.Errorf("%w: node %s/%s", ErrNotFound, lib, node)
	}
	removed := d.RemoveAttr(name)
	if len(removed) == 0 {
		return fmt.Errorf("%w: attribute %s on %s/%s", ErrNotFound, name, lib, node)
	}
	bound := p.boundTo(d.ID)
	for _, n := range bound {
		for _, r := range removed {
			delete(n.Attrs, r)
		}
	}
	p.Modified = true
	p.publish(events.Event{Kind: events.AttrDescChanged, Library: lib, Node: node, OldName: name, UIDs: uint32s(nodeUIDs(bound))})
	return nil
}

// initAttrs gives n a value holder with the default value for every attribute of d. Static
// attributes come first so that dynamic ones see their control's value.
func (p *Project) initAttrs(n *tree.Node, d *library.NodeDesc) {
	for _, dynamic := range []bool{false, true} {
		for _, ad := range d.Attrs() {
			if ad.IsDynamic() != dynamic {
				continue
			}
			if n.Attrs[ad.FullName()] != nil {
				continue
			}
			a := attr.NewNodeAttr(ad)
			if dyn, ok := ad.(*attr.DynamicAttrDesc); ok {
				dyn.Update(a, n.Attrs)
			}
			n.SetAttr(a)
		}
	}
}

// adoptAttrs rebuilds the holders of a formerly orphaned node for d. Values the node kept as
// text are parsed with the unit now in effect; unreadable ones fall back to the default.
func (p *Project) adoptAttrs(n *tree.Node, d *library.NodeDesc) {
	kept := n.Attrs
	n.Attrs = nil
	for _, dynamic := range []bool{false, true} {
		for _, ad := range d.Attrs() {
			if ad.IsDynamic() != dynamic {
				continue
			}
			a := attr.NewNodeAttr(ad)
			unit := ad.Unit("")
			if dyn, ok := ad.(*attr.DynamicAttrDesc); ok {
				dyn.Update(a, n.Attrs)
				unit = dyn.Unit(a.Key())
			}
			if old := kept[ad.FullName()]; old != nil && unit != nil {
				values := make([]attr.Value, 0, old.Len())
				for _, v := range old.Values() {
					if pv, err := unit.Parse(v.String()); err == nil {
						values = append(values, pv)
					} else {
						p.log.Warn("orphaned value reset", zap.Uint32("uid", uint32(n.UID)),
							zap.String("attr", ad.FullName()), zap.String("value", v.String()))
					}
				}
				a.Load(unit, values)
			}
			n.SetAttr(a)
		}
	}
}
