package tree

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build creates root(1) with Task children 2,3 and a Condition child 4; 3 has child 5.
func build(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	for _, n := range []*Node{
		NewNode(1, "Task", "Composite"),
		NewNode(2, "Task", "Leaf"),
		NewNode(3, "Task", "Decorator"),
		NewNode(4, "Condition", "Leaf"),
		NewNode(5, "Task", "Leaf"),
	} {
		require.NoError(t, s.Add(n))
	}
	require.NoError(t, s.AttachChild(1, 2, -1, 10))
	require.NoError(t, s.AttachChild(1, 3, -1, 10))
	require.NoError(t, s.AttachChild(1, 4, -1, 10))
	require.NoError(t, s.AttachChild(3, 5, -1, 1))
	return s
}

func TestStoreStructure(t *testing.T) {
	s := build(t)
	root := s.Get(1)
	assert.Equal(t, []string{"Condition", "Task"}, root.ChildClasses())
	assert.Equal(t, []UID{2, 3}, root.Children("Task"))
	assert.Equal(t, []UID{4, 2, 3}, root.AllChildren())
	assert.Equal(t, []UID{1, 4, 2, 3, 5}, s.Descendants(1))
	assert.Equal(t, UID(1), s.Root(5))
	assert.Equal(t, 1, s.IndexOf(3))
	assert.Equal(t, -1, s.IndexOf(1))
}

func TestAttachChildRejections(t *testing.T) {
	s := build(t)
	require.NoError(t, s.Add(NewNode(6, "Task", "Leaf")))

	tests := []struct {
		name          string
		parent, child UID
		limit         int
		want          error
	}{
		{"cardinality", 3, 6, 1, ErrCardinality},
		{"already parented", 3, 2, 5, ErrHasParent},
		{"self", 6, 6, 5, ErrCycle},
		{"ancestor", 5, 1, 5, ErrCycle},
		{"unknown", 1, 99, 5, ErrUnknownUID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.AttachChild(tt.parent, tt.child, -1, tt.limit), tt.want)
		})
	}

	require.NoError(t, s.AttachChild(1, 6, 0, 10))
	assert.Equal(t, []UID{6, 2, 3}, s.Get(1).Children("Task"))
}

func TestDetachAndRemove(t *testing.T) {
	s := build(t)
	require.NoError(t, s.Detach(3))
	assert.Equal(t, UID(0), s.Get(3).Parent)
	assert.Equal(t, []UID{2}, s.Get(1).Children("Task"))
	assert.True(t, s.Has(5))

	require.NoError(t, s.AttachChild(1, 3, 0, 10))
	removed := s.Remove(3)
	assert.Equal(t, []UID{3, 5}, removed)
	assert.False(t, s.Has(5))
	assert.Equal(t, []UID{2}, s.Get(1).Children("Task"))
	assert.Nil(t, s.Remove(3))
}

func TestAddRejectsDuplicateUID(t *testing.T) {
	s := build(t)
	assert.ErrorIs(t, s.Add(NewNode(2, "Task", "Leaf")), ErrDuplicateUID)
	assert.ErrorIs(t, s.Add(NewNode(0, "Task", "Leaf")), ErrUnknownUID)
	assert.Equal(t, "Leaf", s.Get(2).Type)
}

func TestCloneIsIndependent(t *testing.T) {
	s := build(t)
	c := s.Clone()
	require.True(t, s.Equal(c))

	require.NoError(t, c.Detach(2))
	c.Get(4).Debug = true
	assert.Equal(t, []UID{2, 3}, s.Get(1).Children("Task"))
	assert.False(t, s.Get(4).Debug)
	assert.False(t, s.Equal(c))
}

func TestParseUID(t *testing.T) {
	tests := []struct {
		in   string
		want UID
		ok   bool
	}{
		{"100", 100, true},
		{"4294967295", 4294967295, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"4294967296", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseUID(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestUIDUniqueness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("generated uids never collide within a store", prop.ForAll(
		func(count int) bool {
			s := NewStore()
			for range count {
				uid, err := s.NewUID()
				if err != nil || uid == 0 {
					return false
				}
				if s.Add(NewNode(uid, "Task", "Leaf")) != nil {
					return false
				}
			}
			return s.Len() == count
		},
		gen.IntRange(1, 500),
	))

	properties.Property("adding a used uid leaves the original node", prop.ForAll(
		func(raw uint32) bool {
			uid := UID(raw | 1)
			s := NewStore()
			first := NewNode(uid, "Task", "Leaf")
			if s.Add(first) != nil {
				return false
			}
			return s.Add(NewNode(uid, "Task", "Composite")) != nil && s.Get(uid) == first
		},
		gen.UInt32(),
	))

	properties.TestingRun(t)
}

func TestNewUIDAvoidsOtherStores(t *testing.T) {
	s, other := NewStore(), NewStore()
	for range 100 {
		uid, err := s.NewUID(other, nil)
		require.NoError(t, err)
		require.False(t, other.Has(uid))
		require.NoError(t, other.Add(NewNode(uid, "Task", "Leaf")))
	}
	assert.Zero(t, s.Len())
	assert.Equal(t, 100, other.Len())
}
