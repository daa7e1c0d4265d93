// Package tree holds instantiated behavior-tree nodes: the uid-addressed node store, the branch
// table and layout-only diagram data.
package tree

import (
	"maps"
	"slices"

	"github.com/oxhq/btstudio/internal/attr"
	"github.com/oxhq/btstudio/internal/library"
)

// UID identifies a node within a project. Zero means "no node".
type UID uint32

// Point is a 2D coordinate in diagram space.
type Point struct {
	X, Y float64
}

// DiagramInfo is layout metadata persisted in .dgm files. It carries no logical meaning.
type DiagramInfo struct {
	Expanded bool
	HAuto    bool
	VAuto    bool
	HShift   Point
	VShift   Point
	Scene    Point
	HasScene bool
}

// DefaultDiagram is the layout of a node absent from the .dgm file.
func DefaultDiagram() DiagramInfo {
	return DiagramInfo{Expanded: true, HAuto: true, VAuto: true}
}

// Node is a placed occurrence of a library descriptor.
type Node struct {
	UID   UID
	Class string
	Type  string

	// LibName and NodeName name the bound descriptor; DescID resolves it without string
	// lookups and survives renames. DescID is zero for orphaned nodes.
	LibName  string
	NodeName string
	DescID   library.DescID

	Parent UID
	Attrs  map[string]*attr.NodeAttr

	// Target is the fully qualified branch a link node refers to.
	Target string
	// RefName names the branch this node is the root of.
	RefName string
	Info    string

	SingleBlock bool
	Debug       bool
	Inverse     bool
	Diagram     DiagramInfo

	children map[string][]UID
}

// NewNode creates a node without children or attributes.
func NewNode(uid UID, class, typ string) *Node {
	return &Node{
		UID:      uid,
		Class:    class,
		Type:     typ,
		Attrs:    make(map[string]*attr.NodeAttr),
		Diagram:  DefaultDiagram(),
		children: make(map[string][]UID),
	}
}

// Bind points the node at d and caches its names.
func (n *Node) Bind(d *library.NodeDesc) {
	n.DescID = d.ID
	n.LibName = d.LibName
	n.NodeName = d.Name
}

// Children returns the ordered children of class.
func (n *Node) Children(class string) []UID { return slices.Clone(n.children[class]) }

// ChildClasses returns the classes that have at least one child, sorted.
func (n *Node) ChildClasses() []string {
	var out []string
	for _, class := range slices.Sorted(maps.Keys(n.children)) {
		if len(n.children[class]) > 0 {
			out = append(out, class)
		}
	}
	return out
}

// AllChildren returns every child, grouped by sorted class.
func (n *Node) AllChildren() []UID {
	var out []UID
	for _, class := range n.ChildClasses() {
		out = append(out, n.children[class]...)
	}
	return out
}

// ChildCount returns the number of children over all classes.
func (n *Node) ChildCount() int {
	total := 0
	for _, ids := range n.children {
		total += len(ids)
	}
	return total
}

// Attr returns the attribute value holder, or nil.
func (n *Node) Attr(name string) *attr.NodeAttr { return n.Attrs[name] }

// SetAttr stores a value holder under its name.
func (n *Node) SetAttr(a *attr.NodeAttr) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]*attr.NodeAttr)
	}
	n.Attrs[a.Name()] = a
}

// AttrNames returns the attribute names, sorted.
func (n *Node) AttrNames() []string { return slices.Sorted(maps.Keys(n.Attrs)) }

// IsRoot reports whether the node roots a named branch.
func (n *Node) IsRoot() bool { return n.RefName != "" }

// Clone returns a deep copy keeping the uid and links.
func (n *Node) Clone() *Node {
	c := *n
	c.Attrs = make(map[string]*attr.NodeAttr, len(n.Attrs))
	for k, a := range n.Attrs {
		c.Attrs[k] = a.Clone()
	}
	c.children = make(map[string][]UID, len(n.children))
	for k, ids := range n.children {
		c.children[k] = slices.Clone(ids)
	}
	return &c
}

// Equal compares the logical content of two nodes, ignoring layout.
func (n *Node) Equal(o *Node) bool {
	if n.UID != o.UID || n.Class != o.Class || n.Type != o.Type ||
		n.LibName != o.LibName || n.NodeName != o.NodeName || n.Parent != o.Parent ||
		n.Target != o.Target || n.RefName != o.RefName || n.Info != o.Info ||
		n.SingleBlock != o.SingleBlock || n.Debug != o.Debug || n.Inverse != o.Inverse {
		return false
	}
	if !slices.Equal(n.ChildClasses(), o.ChildClasses()) {
		return false
	}
	for _, class := range n.ChildClasses() {
		if !slices.Equal(n.children[class], o.children[class]) {
			return false
		}
	}
	if len(n.Attrs) != len(o.Attrs) {
		return false
	}
	for k, a := range n.Attrs {
		b, ok := o.Attrs[k]
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}
