package project

import (
	"fmt"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/events"
	"github.com/oxhq/btstudio/internal/tree"
)

// NewNode creates a free node bound to lib/name, with default attribute values and a fresh
// uid. It has no parent until it is attached or made a branch root.
func (p *Project) NewNode(lib, name string) (tree.UID, error) {
	d := p.Catalog.Lookup(lib, name)
	if d == nil {
		return 0, fmt.Errorf("%w: node %s/%s", ErrNotFound, lib, name)
	}
	class := p.Alphabet.Class(d.Class)
	if class == nil || class.Type(d.Type) == nil {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownClass, d.Class, d.Type)
	}
	uid, err := p.Store.NewUID()
	if err != nil {
		return 0, err
	}
	n := tree.NewNode(uid, d.Class, d.Type)
	n.Bind(d)
	n.Debug = d.DebugByDefault && class.Debuggable
	p.initAttrs(n, d)
	if err := p.Store.Add(n); err != nil {
		return 0, err
	}
	p.Modified = true
	p.publish(events.Event{Kind: events.NodeAdded, Library: lib, Node: name, UID: uint32(uid)})
	return uid, nil
}

// NewLink creates a free link node of class/typ pointing at the branch target.
func (p *Project) NewLink(class, typ, target string) (tree.UID, error) {
	t := p.Alphabet.Type(class, typ)
	if t == nil {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownClass, class, typ)
	}
	if !t.Link {
		return 0, fmt.Errorf("%w: %s/%s is not a link type", ErrUnknownClass, class, typ)
	}
	if !p.Branches.Has(target) {
		return 0, fmt.Errorf("%w: branch %s", ErrNotFound, target)
	}
	uid, err := p.Store.NewUID()
	if err != nil {
		return 0, err
	}
	n := tree.NewNode(uid, class, typ)
	n.Target = target
	if err := p.Store.Add(n); err != nil {
		return 0, err
	}
	p.Modified = true
	p.publish(events.Event{Kind: events.NodeAdded, Branch: target, UID: uint32(uid)})
	return uid, nil
}

// AddBranch makes the free node uid the root of branch ref in file.
func (p *Project) AddBranch(file, ref string, uid tree.UID) (string, error) {
	n, err := p.Node(uid)
	if err != nil {
		return "", err
	}
	switch top := p.Alphabet.TopLevel(); {
	case top == nil || n.Class != top.Name:
		return "", fmt.Errorf("%w: %d", ErrNotTopLevel, uid)
	case n.Target != "":
		return "", fmt.Errorf("%w: link %d cannot root a branch", ErrNotTopLevel, uid)
	case n.Parent != 0:
		return "", fmt.Errorf("%w: %d", tree.ErrHasParent, uid)
	case n.IsRoot():
		return "", fmt.Errorf("%w: %d", ErrBranchRoot, uid)
	}
	fq := tree.QualifiedName(file, ref)
	if err := p.Branches.Add(fq, uid); err != nil {
		return "", err
	}
	p.Branches.Reconnect(uid)
	n.RefName = ref
	if path := filepath.Clean(file); !slices.Contains(p.TreeLayout.Files, path) {
		p.TreeLayout.Files = append(p.TreeLayout.Files, path)
	}
	p.Modified = true
	p.publish(events.Event{Kind: events.BranchAdded, Branch: fq, UID: uint32(uid)})
	return fq, nil
}

// RenameBranch changes the reference name of branch fq and retargets every link to it.
func (p *Project) RenameBranch(fq, newRef string) (string, error) {
	renamed, fixed, err := p.Branches.Rename(fq, newRef, p.Store)
	if err != nil {
		return "", err
	}
	if renamed == fq {
		return fq, nil
	}
	p.Modified = true
	p.log.Info("branch renamed", zap.String("from", fq), zap.String("to", renamed), zap.Int("links", len(fixed)))
	p.publish(events.Event{Kind: events.BranchRenamed, OldName: fq, NewName: renamed, UIDs: uint32s(fixed)})
	return renamed, nil
}

// RemoveBranch deletes branch fq with its subtree and disconnected nodes. It fails while link
// nodes still target the branch unless force is set, in which case those links are deleted too.
func (p *Project) RemoveBranch(fq string, force bool) error {
	if !p.Branches.Has(fq) {
		return fmt.Errorf("%w: %s", tree.ErrUnknownBranch, fq)
	}
	links := p.Store.Find(func(n *tree.Node) bool { return n.Target == fq })
	root, _ := p.Branches.Get(fq)
	var external []*tree.Node
	for _, l := range links {
		if p.Store.Root(l.UID) != root {
			external = append(external, l)
		}
	}
	if len(external) > 0 && !force {
		return fmt.Errorf("%w: %s (%d links)", ErrDanglingBranches, fq, len(external))
	}

	_, orphans, _ := p.Branches.Remove(fq)
	removed := p.Store.Remove(root)
	for _, id := range orphans {
		removed = append(removed, p.Store.Remove(id)...)
	}
	for _, l := range external {
		for _, id := range p.Store.Remove(l.UID) {
			p.Branches.Reconnect(id)
			removed = append(removed, id)
		}
	}
	p.Modified = true
	p.publish(events.Event{Kind: events.BranchRemoved, Branch: fq, UIDs: uint32s(removed)})
	return nil
}

// AttachChild inserts child under parent at index (-1 appends), within the cardinality the
// alphabet declares for the parent's type.
func (p *Project) AttachChild(parent, child tree.UID, index int) error {
	pn, err := p.Node(parent)
	if err != nil {
		return err
	}
	cn, err := p.Node(child)
	if err != nil {
		return err
	}
	if cn.IsRoot() {
		return fmt.Errorf("%w: %d", ErrBranchRoot, child)
	}
	t := p.Alphabet.Type(pn.Class, pn.Type)
	if t == nil {
		return fmt.Errorf("%w: %s/%s", ErrUnknownClass, pn.Class, pn.Type)
	}
	rule, ok := t.Child(cn.Class)
	if !ok {
		return fmt.Errorf("%w: %s under %s/%s", ErrChildNotAllowed, cn.Class, pn.Class, pn.Type)
	}
	if d := p.NodeDesc(parent); d != nil && !d.AcceptsChildClass(cn.Class) {
		return fmt.Errorf("%w: %s under %s", ErrChildNotAllowed, cn.Class, d.Name)
	}
	if err := p.Store.AttachChild(parent, child, index, rule.Max); err != nil {
		return err
	}
	p.Branches.Reconnect(child)
	p.Modified = true
	p.publish(events.Event{Kind: events.NodeAttached, UID: uint32(child), UIDs: []uint32{uint32(parent)}})
	return nil
}

// DetachNode unlinks uid from its parent. A permanent detach deletes the subtree; otherwise the
// subtree is parked in the disconnected bucket of its branch until it is reattached or the
// project is saved.
func (p *Project) DetachNode(uid tree.UID, permanent bool) error {
	n, err := p.Node(uid)
	if err != nil {
		return err
	}
	if n.IsRoot() {
		return fmt.Errorf("%w: %d", ErrBranchRoot, uid)
	}
	fq, inBranch := p.BranchOf(uid)
	if err := p.Store.Detach(uid); err != nil {
		return err
	}
	p.Modified = true
	if permanent {
		removed := p.Store.Remove(uid)
		for _, id := range removed {
			p.Branches.Reconnect(id)
		}
		p.publish(events.Event{Kind: events.NodeRemoved, Branch: fq, UID: uint32(uid), UIDs: uint32s(removed)})
		return nil
	}
	if inBranch {
		if err := p.Branches.Disconnect(fq, uid); err != nil {
			return err
		}
	}
	p.publish(events.Event{Kind: events.NodeDetached, Branch: fq, UID: uint32(uid)})
	return nil
}

// ReattachNode moves a disconnected node back under parent.
func (p *Project) ReattachNode(uid, parent tree.UID, index int) error {
	fq, ok := p.Branches.Reconnect(uid)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotDisconnected, uid)
	}
	if err := p.AttachChild(parent, uid, index); err != nil {
		_ = p.Branches.Disconnect(fq, uid)
		return err
	}
	return nil
}

// SetNodeFlags sets the debug, inverse and single block flags. Enabling a flag the class or
// type does not support fails without changing anything.
func (p *Project) SetNodeFlags(uid tree.UID, debug, inverse, singleBlock bool) error {
	n, err := p.Node(uid)
	if err != nil {
		return err
	}
	class := p.Alphabet.Class(n.Class)
	t := p.Alphabet.Type(n.Class, n.Type)
	if class == nil || t == nil {
		return fmt.Errorf("%w: %s/%s", ErrUnknownClass, n.Class, n.Type)
	}
	switch {
	case debug && !class.Debuggable:
		return fmt.Errorf("%w: debug on %s", ErrFlagNotAllowed, n.Class)
	case inverse && !class.Invertible:
		return fmt.Errorf("%w: inverse on %s", ErrFlagNotAllowed, n.Class)
	case singleBlock && !t.SingleBlock:
		return fmt.Errorf("%w: single block on %s/%s", ErrFlagNotAllowed, n.Class, n.Type)
	}
	if n.Debug == debug && n.Inverse == inverse && n.SingleBlock == singleBlock {
		return nil
	}
	n.Debug, n.Inverse, n.SingleBlock = debug, inverse, singleBlock
	p.Modified = true
	p.publish(events.Event{Kind: events.NodeFlagsChanged, UID: uint32(uid)})
	return nil
}
