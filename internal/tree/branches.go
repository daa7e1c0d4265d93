package tree

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrBranchExists  = errors.New("branch already exists")
	ErrUnknownBranch = errors.New("unknown branch")
	ErrBadBranchName = errors.New("invalid branch name")
)

// QualifiedName joins a tree file and a branch reference name.
func QualifiedName(file, ref string) string {
	return path.Clean(filepath.ToSlash(file)) + "/" + ref
}

// SplitQualified splits "<file>/<ref>" at the last separator.
func SplitQualified(fq string) (file, ref string) {
	i := strings.LastIndex(fq, "/")
	if i < 0 {
		return "", fq
	}
	return fq[:i], fq[i+1:]
}

// BehaviorTree maps fully qualified branch names to root uids and keeps, per branch, the nodes
// detached from it but not yet deleted.
type BehaviorTree struct {
	branches     map[string]UID
	disconnected map[string][]UID
}

// NewBehaviorTree creates an empty branch table.
func NewBehaviorTree() *BehaviorTree {
	return &BehaviorTree{branches: make(map[string]UID), disconnected: make(map[string][]UID)}
}

// Add registers a branch root.
func (b *BehaviorTree) Add(fq string, root UID) error {
	if _, ref := SplitQualified(fq); ref == "" {
		return fmt.Errorf("%w: %q", ErrBadBranchName, fq)
	}
	if _, exists := b.branches[fq]; exists {
		return fmt.Errorf("%w: %s", ErrBranchExists, fq)
	}
	b.branches[fq] = root
	return nil
}

// Get returns the root uid of fq.
func (b *BehaviorTree) Get(fq string) (UID, bool) {
	uid, ok := b.branches[fq]
	return uid, ok
}

// Has reports whether fq is registered.
func (b *BehaviorTree) Has(fq string) bool {
	_, ok := b.branches[fq]
	return ok
}

// NameOf returns the branch rooted at uid.
func (b *BehaviorTree) NameOf(root UID) (string, bool) {
	for fq, uid := range b.branches {
		if uid == root {
			return fq, true
		}
	}
	return "", false
}

// Remove drops fq and returns its root and the disconnected nodes that belonged to it.
func (b *BehaviorTree) Remove(fq string) (UID, []UID, bool) {
	uid, ok := b.branches[fq]
	if !ok {
		return 0, nil, false
	}
	orphans := b.disconnected[fq]
	delete(b.branches, fq)
	delete(b.disconnected, fq)
	return uid, orphans, true
}

// Rename changes the reference part of fq, keeping its file, and rewrites every link node in
// store that targeted the old name. It returns the new name and the uids of the fixed links.
func (b *BehaviorTree) Rename(fq, newRef string, store *Store) (string, []UID, error) {
	uid, ok := b.branches[fq]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownBranch, fq)
	}
	if newRef == "" || strings.Contains(newRef, "/") {
		return "", nil, fmt.Errorf("%w: %q", ErrBadBranchName, newRef)
	}
	file, _ := SplitQualified(fq)
	renamed := file + "/" + newRef
	if file == "" {
		renamed = newRef
	}
	if renamed == fq {
		return fq, nil, nil
	}
	if b.Has(renamed) {
		return "", nil, fmt.Errorf("%w: %s", ErrBranchExists, renamed)
	}
	delete(b.branches, fq)
	b.branches[renamed] = uid
	if orphans, ok := b.disconnected[fq]; ok {
		delete(b.disconnected, fq)
		b.disconnected[renamed] = orphans
	}
	if root := store.Get(uid); root != nil {
		root.RefName = newRef
	}
	var fixed []UID
	for _, n := range store.Find(func(n *Node) bool { return n.Target == fq }) {
		n.Target = renamed
		fixed = append(fixed, n.UID)
	}
	return renamed, fixed, nil
}

// Names returns all qualified branch names, sorted.
func (b *BehaviorTree) Names() []string { return slices.Sorted(maps.Keys(b.branches)) }

// Len returns the number of branches.
func (b *BehaviorTree) Len() int { return len(b.branches) }

// Files returns the distinct files that contain branches, sorted.
func (b *BehaviorTree) Files() []string {
	set := make(map[string]bool)
	for fq := range b.branches {
		file, _ := SplitQualified(fq)
		set[file] = true
	}
	return slices.Sorted(maps.Keys(set))
}

// BranchesIn returns the qualified names of the branches in file, sorted.
func (b *BehaviorTree) BranchesIn(file string) []string {
	var out []string
	for _, fq := range b.Names() {
		if f, _ := SplitQualified(fq); f == file {
			out = append(out, fq)
		}
	}
	return out
}

// Disconnect parks uid in the bucket of fq.
func (b *BehaviorTree) Disconnect(fq string, uid UID) error {
	if !b.Has(fq) {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, fq)
	}
	if !slices.Contains(b.disconnected[fq], uid) {
		b.disconnected[fq] = append(b.disconnected[fq], uid)
	}
	return nil
}

// Reconnect takes uid out of whichever bucket holds it.
func (b *BehaviorTree) Reconnect(uid UID) (string, bool) {
	for fq, ids := range b.disconnected {
		if i := slices.Index(ids, uid); i >= 0 {
			b.disconnected[fq] = slices.Delete(ids, i, i+1)
			if len(b.disconnected[fq]) == 0 {
				delete(b.disconnected, fq)
			}
			return fq, true
		}
	}
	return "", false
}

// Disconnected returns the parked nodes of fq.
func (b *BehaviorTree) Disconnected(fq string) []UID { return slices.Clone(b.disconnected[fq]) }

// TakeDisconnected empties every bucket and returns the parked uids in branch order.
func (b *BehaviorTree) TakeDisconnected() []UID {
	var out []UID
	for _, fq := range slices.Sorted(maps.Keys(b.disconnected)) {
		out = append(out, b.disconnected[fq]...)
	}
	clear(b.disconnected)
	return out
}

// Clone returns a deep copy.
func (b *BehaviorTree) Clone() *BehaviorTree {
	c := NewBehaviorTree()
	maps.Copy(c.branches, b.branches)
	for fq, ids := range b.disconnected {
		c.disconnected[fq] = slices.Clone(ids)
	}
	return c
}

// Equal compares branch tables and disconnected buckets.
func (b *BehaviorTree) Equal(o *BehaviorTree) bool {
	if !maps.Equal(b.branches, o.branches) || len(b.disconnected) != len(o.disconnected) {
		return false
	}
	for fq, ids := range b.disconnected {
		if !slices.Equal(ids, o.disconnected[fq]) {
			return false
		}
	}
	return true
}

// Merge adds every branch and bucket of o. Nothing is added when a name is already taken.
func (b *BehaviorTree) Merge(o *BehaviorTree) error {
	for fq := range o.branches {
		if b.Has(fq) {
			return fmt.Errorf("%w: %s", ErrBranchExists, fq)
		}
	}
	maps.Copy(b.branches, o.branches)
	for fq, ids := range o.disconnected {
		b.disconnected[fq] = append(b.disconnected[fq], ids...)
	}
	return nil
}
