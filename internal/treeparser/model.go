// Package treeparser reads and writes behavior tree files and their .dgm layout companions.
package treeparser

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/oxhq/btstudio/internal/alphabet"
	"github.com/oxhq/btstudio/internal/attr"
	"github.com/oxhq/btstudio/internal/library"
	"github.com/oxhq/btstudio/internal/tree"
)

var ErrRootTag = errors.New("unexpected root element")

const (
	// IncludeTag lists a tree file whose branches this file links to.
	IncludeTag = "Include"
	// LibAttr names the library of the bound descriptor.
	LibAttr = "Lib"
	// FileAttr is the relative file of a link target in another file.
	FileAttr = "File"
	// ValueAttr carries one array element.
	ValueAttr = "value"
	// DiagramRootTag is the root element of .dgm files.
	DiagramRootTag = "diagram"

	debugPrefix = "debug "
)

// Model is the project state the codec reads from. Load treats it as read-only; its results
// are merged by the caller.
type Model struct {
	Alphabet *alphabet.Alphabet
	Catalog  *library.Catalog
	Store    *tree.Store
	Branches *tree.BehaviorTree
}

// Layout records the tree files read and the files each included.
type Layout struct {
	Files    []string
	Includes map[string][]string
}

// DiagramPath is the .dgm companion of a tree file.
func DiagramPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".dgm"
}

func descFor(m Model, n *tree.Node) *library.NodeDesc {
	if m.Catalog == nil {
		return nil
	}
	if d := m.Catalog.ByID(n.DescID); d != nil {
		return d
	}
	return m.Catalog.Lookup(n.LibName, n.NodeName)
}

// reservedName reports whether an attribute stored directly on a node element of class would
// collide with the node's own markup: one of its structural XML attributes, or a child element
// that reads back as a node.
func reservedName(a *alphabet.Alphabet, class *alphabet.Class, name string, array bool) bool {
	parts := attr.SplitPath(name)
	if array || len(parts) > 1 {
		return a != nil && a.ClassByTag(parts[0]) != nil
	}
	switch name {
	case "Type", "uid", "Name", "SingleBlock", LibAttr, FileAttr:
		return true
	}
	return name == class.LibraryTag || (class.LinkTag != "" && name == class.LinkTag) ||
		(class.InfoTag != "" && name == class.InfoTag)
}
