package tree

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	ErrDuplicateUID  = errors.New("duplicate uid")
	ErrUnknownUID    = errors.New("unknown uid")
	ErrCardinality   = errors.New("child cardinality exceeded")
	ErrHasParent     = errors.New("node already has a parent")
	ErrCycle         = errors.New("node cannot become its own descendant")
	ErrUIDsExhausted = errors.New("could not allocate a free uid")
)

// Store is the project-wide uid -> node arena. Nodes reference each other only by uid.
type Store struct {
	nodes map[UID]*Node
}

// NewStore creates an empty store.
func NewStore() *Store { return &Store{nodes: make(map[UID]*Node)} }

// Get returns the node with uid, or nil.
func (s *Store) Get(uid UID) *Node { return s.nodes[uid] }

// Has reports whether uid is in use.
func (s *Store) Has(uid UID) bool {
	_, ok := s.nodes[uid]
	return ok
}

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.nodes) }

// UIDs returns all uids in ascending order.
func (s *Store) UIDs() []UID { return slices.Sorted(maps.Keys(s.nodes)) }

// NewUID returns a random uid used neither by this store nor by others.
func (s *Store) NewUID(others ...*Store) (UID, error) {
	for range maxUIDAttempts {
		uid := newRandomUID()
		if uid == 0 || s.Has(uid) {
			continue
		}
		taken := false
		for _, o := range others {
			taken = taken || (o != nil && o.Has(uid))
		}
		if !taken {
			return uid, nil
		}
	}
	return 0, ErrUIDsExhausted
}

// Add inserts n. The uid must be non-zero and unused.
func (s *Store) Add(n *Node) error {
	if n.UID == 0 {
		return fmt.Errorf("%w: 0", ErrUnknownUID)
	}
	if s.Has(n.UID) {
		return fmt.Errorf("%w: %d", ErrDuplicateUID, n.UID)
	}
	s.nodes[n.UID] = n
	return nil
}

// Remove deletes uid and its descendants, unlinking it from its parent. The removed uids are
// returned in pre-order.
func (s *Store) Remove(uid UID) []UID {
	if !s.Has(uid) {
		return nil
	}
	_ = s.Detach(uid)
	removed := s.Descendants(uid)
	for _, id := range removed {
		delete(s.nodes, id)
	}
	return removed
}

// Descendants returns uid and everything below it in pre-order.
func (s *Store) Descendants(uid UID) []UID {
	n := s.nodes[uid]
	if n == nil {
		return nil
	}
	out := []UID{uid}
	for _, child := range n.AllChildren() {
		out = append(out, s.Descendants(child)...)
	}
	return out
}

// Root walks parent links up from uid.
func (s *Store) Root(uid UID) UID {
	n := s.nodes[uid]
	for n != nil && n.Parent != 0 {
		uid = n.Parent
		n = s.nodes[uid]
	}
	return uid
}

// AttachChild inserts child into the parent's group for the child's class at index
// (-1 appends). limit is the group's maximum size.
func (s *Store) AttachChild(parent, child UID, index, limit int) error {
	p, c := s.nodes[parent], s.nodes[child]
	if p == nil || c == nil {
		return fmt.Errorf("%w: %d or %d", ErrUnknownUID, parent, child)
	}
	if c.Parent != 0 {
		return fmt.Errorf("%w: %d", ErrHasParent, child)
	}
	if parent == child || s.Root(parent) == child {
		return fmt.Errorf("%w: %d", ErrCycle, child)
	}
	group := p.children[c.Class]
	if len(group) >= limit {
		return fmt.Errorf("%w: %s under %d allows %d", ErrCardinality, c.Class, parent, limit)
	}
	if index < 0 || index > len(group) {
		index = len(group)
	}
	if p.children == nil {
		p.children = make(map[string][]UID)
	}
	p.children[c.Class] = slices.Insert(group, index, child)
	c.Parent = parent
	return nil
}

// Detach unlinks uid from its parent. The subtree stays in the store.
func (s *Store) Detach(uid UID) error {
	n := s.nodes[uid]
	if n == nil {
		return fmt.Errorf("%w: %d", ErrUnknownUID, uid)
	}
	if n.Parent == 0 {
		return nil
	}
	if p := s.nodes[n.Parent]; p != nil {
		p.children[n.Class] = slices.DeleteFunc(p.children[n.Class], func(id UID) bool { return id == uid })
		if len(p.children[n.Class]) == 0 {
			delete(p.children, n.Class)
		}
	}
	n.Parent = 0
	return nil
}

// IndexOf returns the position of uid within its parent's class group, or -1.
func (s *Store) IndexOf(uid UID) int {
	n := s.nodes[uid]
	if n == nil || n.Parent == 0 {
		return -1
	}
	p := s.nodes[n.Parent]
	if p == nil {
		return -1
	}
	return slices.Index(p.children[n.Class], uid)
}

// Find returns the nodes matching pred in uid order.
func (s *Store) Find(pred func(*Node) bool) []*Node {
	var out []*Node
	for _, uid := range s.UIDs() {
		if n := s.nodes[uid]; pred(n) {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns a deep copy.
func (s *Store) Clone() *Store {
	c := &Store{nodes: make(map[UID]*Node, len(s.nodes))}
	for uid, n := range s.nodes {
		c.nodes[uid] = n.Clone()
	}
	return c
}

// Equal reports whether both stores hold logically equal nodes.
func (s *Store) Equal(o *Store) bool {
	if len(s.nodes) != len(o.nodes) {
		return false
	}
	for uid, n := range s.nodes {
		m := o.nodes[uid]
		if m == nil || !n.Equal(m) {
			return false
		}
	}
	return true
}

// Merge moves every node of o into s. Nothing is moved when a uid is already taken.
func (s *Store) Merge(o *Store) error {
	for uid := range o.nodes {
		if s.Has(uid) {
			return fmt.Errorf("%w: %d", ErrDuplicateUID, uid)
		}
	}
	maps.Copy(s.nodes, o.nodes)
	return nil
}
