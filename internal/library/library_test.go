package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/btstudio/internal/attr"
)

func newDesc(t *testing.T, name string) *NodeDesc {
	t.Helper()
	d := NewNodeDesc(name, "Task", "Leaf")
	speed, err := attr.NewNodeAttrDesc("speed", "int", false)
	require.NoError(t, err)
	require.NoError(t, d.AddAttr(speed))
	return d
}

func TestAddAttrRejectsDuplicatesAndForwardRefs(t *testing.T) {
	d := newDesc(t, "MoveTo")

	dup, err := attr.NewNodeAttrDesc("speed", "float", false)
	require.NoError(t, err)
	assert.ErrorIs(t, d.AddAttr(dup), ErrDuplicateName)

	ahead := attr.NewDynamicAttrDesc("param", "mode", false)
	assert.ErrorIs(t, d.AddAttr(ahead), ErrForwardRef)

	mode, err := attr.NewNodeAttrDesc("mode", "string", false)
	require.NoError(t, err)
	require.NoError(t, d.AddAttr(mode))
	require.NoError(t, d.AddAttr(ahead))

	assert.Equal(t, []string{"speed", "mode", "param"}, d.AttrNames())
}

func TestRenameAndRemoveAttrFollowControl(t *testing.T) {
	d := newDesc(t, "MoveTo")
	mode, err := attr.NewNodeAttrDesc("mode", "string", false)
	require.NoError(t, err)
	require.NoError(t, d.AddAttr(mode))
	param := attr.NewDynamicAttrDesc("Tuning/param", "mode", false)
	require.NoError(t, d.AddAttr(param))

	require.NoError(t, d.RenameAttr("mode", "gait"))
	assert.Equal(t, "gait", param.Control())
	assert.Nil(t, d.Attr("mode"))
	assert.ErrorIs(t, d.RenameAttr("gait", "speed"), ErrDuplicateName)
	assert.ErrorIs(t, d.RenameAttr("nope", "x"), ErrNotFound)

	removed := d.RemoveAttr("gait")
	assert.Equal(t, []string{"gait", "Tuning/param"}, removed)
	assert.Equal(t, []string{"speed"}, d.AttrNames())
}

func TestCreatorName(t *testing.T) {
	d := NewNodeDesc("MoveTo", "Task", "Leaf")
	assert.Equal(t, "MoveTo", d.CreatorName())
	d.Creator = "MoveToTask"
	assert.Equal(t, "MoveToTask", d.CreatorName())
}

func TestLibraryFilter(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.AddLibrary(New("core", "core.xml")))
	for _, d := range []*NodeDesc{
		NewNodeDesc("Wait", "Task", "Leaf"),
		NewNodeDesc("Sequence", "Task", "Composite"),
		NewNodeDesc("IsNear", "Condition", "Leaf"),
		NewNodeDesc("MoveTo", "Task", "Leaf"),
	} {
		require.NoError(t, c.AddNode("core", d))
	}
	l := c.Library("core")

	names := func(ds []*NodeDesc) []string {
		var out []string
		for _, d := range ds {
			out = append(out, d.Name)
		}
		return out
	}
	tests := []struct {
		class, typ string
		want       []string
	}{
		{"", "", []string{"IsNear", "MoveTo", "Sequence", "Wait"}},
		{"Task", "", []string{"MoveTo", "Sequence", "Wait"}},
		{"Task", "Leaf", []string{"MoveTo", "Wait"}},
		{"", "Leaf", []string{"IsNear", "MoveTo", "Wait"}},
		{"Decorator", "", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, names(l.Filter(tt.class, tt.typ)), "%s/%s", tt.class, tt.typ)
	}
}

func TestCatalogIDsSurviveRenames(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.AddLibrary(New("core", "core.xml")))
	d := newDesc(t, "Seq1")
	require.NoError(t, c.AddNode("core", d))
	id := d.ID
	require.NotZero(t, id)

	require.NoError(t, c.RenameNode("core", "Seq1", "Seq1b"))
	require.NoError(t, c.RenameLibrary("core", "base"))

	got := c.ByID(id)
	require.Same(t, d, got)
	assert.Equal(t, "Seq1b", got.Name)
	assert.Equal(t, "base", got.LibName)
	assert.Same(t, d, c.Lookup("base", "Seq1b"))
	assert.Nil(t, c.Lookup("core", "Seq1"))
	assert.Same(t, d, c.Find("Seq1b"))
}

func TestCatalogFindAll(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.AddLibrary(New("zeta", "")))
	require.NoError(t, c.AddLibrary(New("alpha", "")))
	z, a := newDesc(t, "Wait"), newDesc(t, "Wait")
	require.NoError(t, c.AddNode("zeta", z))
	require.NoError(t, c.AddNode("alpha", a))

	all := c.FindAll("Wait")
	require.Len(t, all, 2)
	assert.Same(t, a, all[0])
	assert.Same(t, z, all[1])
	assert.Same(t, a, c.Find("Wait"))
	assert.Empty(t, c.FindAll("Ghost"))
	assert.Nil(t, c.Find("Ghost"))
}

func TestCatalogRejections(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.AddLibrary(New("core", "")))
	require.NoError(t, c.AddLibrary(New("extra", "")))

	assert.ErrorIs(t, c.AddLibrary(New("core", "")), ErrDuplicateName)
	assert.ErrorIs(t, c.AddLibrary(New("", "")), ErrEmptyName)
	assert.ErrorIs(t, c.RenameLibrary("core", "extra"), ErrDuplicateName)
	assert.ErrorIs(t, c.RenameLibrary("ghost", "x"), ErrNotFound)
	assert.ErrorIs(t, c.AddNode("ghost", NewNodeDesc("A", "Task", "Leaf")), ErrNotFound)

	require.NoError(t, c.AddNode("core", NewNodeDesc("A", "Task", "Leaf")))
	assert.ErrorIs(t, c.AddNode("core", NewNodeDesc("A", "Task", "Leaf")), ErrDuplicateName)
	require.NoError(t, c.AddNode("core", NewNodeDesc("B", "Task", "Leaf")))
	assert.ErrorIs(t, c.RenameNode("core", "A", "B"), ErrDuplicateName)

	removed, err := c.RemoveNode("core", "A")
	require.NoError(t, err)
	assert.Nil(t, c.ByID(removed.ID))
	_, err = c.RemoveNode("core", "A")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogCloneIsDeep(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.AddLibrary(New("core", "")))
	d := newDesc(t, "MoveTo")
	require.NoError(t, c.AddNode("core", d))

	cp := c.Clone()
	require.NoError(t, cp.RenameNode("core", "MoveTo", "Walk"))
	cp.ByID(d.ID).Attr("speed").SetDescription("changed")

	assert.Equal(t, "MoveTo", d.Name)
	assert.Empty(t, d.Attr("speed").Description())
	assert.Equal(t, "Walk", cp.ByID(d.ID).Name)

	next := NewNodeDesc("Other", "Task", "Leaf")
	require.NoError(t, cp.AddNode("core", next))
	assert.Greater(t, next.ID, d.ID)
}

func TestShapeLib(t *testing.T) {
	s := NewShapeLib()
	assert.True(t, s.Has(DefaultShape))
	assert.False(t, s.Has("hexagon"))
	s.Add("hexagon", "shapes/hex.svg")
	assert.Equal(t, []string{"hexagon", DefaultShape}, s.Names())

	var none *ShapeLib
	assert.True(t, none.Has("anything"))
}
