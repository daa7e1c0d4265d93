package treeparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oxhq/btstudio/internal/alphabet"
	"github.com/oxhq/btstudio/internal/fixture"
	"github.com/oxhq/btstudio/internal/libparser"
	"github.com/oxhq/btstudio/internal/library"
	"github.com/oxhq/btstudio/internal/tree"
)

// newModel loads the fixture alphabet and library into an empty project model.
func newModel(t *testing.T, dir string) Model {
	t.Helper()
	return newModelFrom(t, dir, fixture.Alphabet, fixture.Library)
}

func newModelFrom(t *testing.T, dir, alphabetXML, libraryXML string) Model {
	t.Helper()
	a, err := alphabet.Parse([]byte(alphabetXML), zap.NewNop())
	require.NoError(t, err)
	libPath := fixture.Write(t, dir, "libs/core.xml", libraryXML)
	res, err := libparser.Load(a, []string{libPath}, nil, nil, zap.NewNop())
	require.NoError(t, err)
	cat := library.NewCatalog()
	for _, l := range res.Libraries {
		require.NoError(t, cat.AddLibrary(l))
	}
	return Model{Alphabet: a, Catalog: cat, Store: tree.NewStore(), Branches: tree.NewBehaviorTree()}
}

func treeDoc(version, body string) string {
	v := ""
	if version != "" {
		v = ` version="` + version + `"`
	}
	return `<?xml version="1.0" encoding="UTF-8"?>` + "\n<BehaviorTree" + v + ">\n" + body + "\n</BehaviorTree>\n"
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return zap.New(core), logs
}

// merge applies a load result to the model, as the project does.
func merge(t *testing.T, m Model, res *Result) Model {
	t.Helper()
	require.NoError(t, m.Store.Merge(res.Store))
	require.NoError(t, m.Branches.Merge(res.Branches))
	return m
}

func TestLoadFixture(t *testing.T) {
	dir := t.TempDir()
	m := newModel(t, dir)
	paths := fixture.WriteProject(t, dir)

	res, err := Load(m, []string{paths.Tree}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{paths.Tree}, res.Files)

	patrol := tree.QualifiedName(paths.Tree, "Patrol")
	approach := tree.QualifiedName(paths.Tree, "Approach")
	assert.Equal(t, []string{approach, patrol}, res.Branches.Names())
	s := res.Store
	assert.Equal(t, []tree.UID{100, 101, 102, 103, 200, 201}, s.UIDs())

	root := s.Get(100)
	assert.Equal(t, "Patrol", root.RefName)
	assert.Equal(t, "Sequence", root.NodeName)
	assert.Same(t, m.Catalog.Lookup("core", "Sequence"), m.Catalog.ByID(root.DescID))
	assert.Equal(t, []tree.UID{101, 102}, root.Children("Task"))
	assert.Equal(t, []tree.UID{103}, root.Children("Condition"))
	assert.Equal(t, tree.DiagramInfo{
		Expanded: false, HAuto: true, VAuto: false,
		HShift: tree.Point{X: 1, Y: 2}, VShift: tree.Point{X: 3, Y: 4},
		Scene: tree.Point{X: 10.5, Y: -20}, HasScene: true,
	}, root.Diagram)

	move := s.Get(101)
	assert.True(t, move.Debug)
	assert.Equal(t, tree.UID(100), move.Parent)
	assert.Equal(t, int64(7), move.Attr("speed").Value().Int())
	assert.Equal(t, "run", move.Attr("mode").Value().Str())
	assert.Equal(t, "1;2", move.Attr("Path/point").String())
	param := move.Attr("Tuning/param")
	assert.Equal(t, "run", param.Key())
	assert.Equal(t, int64(4), param.Value().Int())
	assert.Equal(t, tree.DefaultDiagram(), move.Diagram)

	link := s.Get(102)
	assert.Equal(t, approach, link.Target)
	assert.Zero(t, link.ChildCount())
	assert.Empty(t, link.Attrs)

	near := s.Get(103)
	assert.True(t, near.Inverse)
	assert.Equal(t, 4.5, near.Attr("radius").Value().Float())

	assert.Equal(t, uint64(3), s.Get(200).Attr("count").Value().Uint())
	plain := s.Get(201)
	assert.Equal(t, int64(5), plain.Attr("speed").Value().Int())
	assert.Equal(t, "walk", plain.Attr("Tuning/param").Key())
	assert.Equal(t, 1.5, plain.Attr("Tuning/param").Value().Float())
}

func TestMissingTypeDropsOnlyThatNode(t *testing.T) {
	dir := t.TempDir()
	m := newModel(t, dir)
	path := fixture.Write(t, dir, "t.xml", treeDoc("1.2.4", `
  <Task Type="Composite" uid="1" Lib="core" Node="Sequence" BranchName="Main">
    <Task Type="Nonexistent" uid="2" Lib="core" Node="Sequence">
      <Task Type="Leaf" uid="3" Lib="core" Node="MoveTo"/>
    </Task>
    <Task Type="Leaf" uid="4" Lib="core" Node="MoveTo"/>
  </Task>`))
	log, logs := observed()

	res, err := Load(m, []string{path}, log)
	require.NoError(t, err)
	assert.Equal(t, []tree.UID{1, 4}, res.Store.UIDs())
	assert.Equal(t, []tree.UID{4}, res.Store.Get(1).Children("Task"))
	assert.Equal(t, 1, logs.FilterMessage("node dropped: unknown type").Len())
}

func TestDuplicatesAreDropped(t *testing.T) {
	dir := t.TempDir()
	m := newModel(t, dir)
	require.NoError(t, m.Store.Add(tree.NewNode(7, "Task", "Leaf")))
	path := fixture.Write(t, dir, "t.xml", treeDoc("1.2.4", `
  <Task Type="Composite" uid="1" Lib="core" Node="Sequence" BranchName="Main">
    <Task Type="Leaf" uid="7" Lib="core" Node="MoveTo"/>
    <Task Type="Leaf" uid="8" Lib="core" Node="MoveTo"/>
    <Task Type="Leaf" uid="8" Lib="core" Node="MoveTo"/>
  </Task>
  <Task Type="Leaf" uid="9" Lib="core" Node="MoveTo" BranchName="Main"/>
  <Task Type="Leaf" uid="10" Lib="core" Node="MoveTo"/>`))
	log, logs := observed()

	res, err := Load(m, []string{path}, log)
	require.NoError(t, err)
	assert.Equal(t, []tree.UID{1, 8}, res.Store.UIDs())
	assert.Equal(t, 1, res.Branches.Len())
	assert.Equal(t, 2, logs.FilterMessage("node dropped").Len())
	assert.Equal(t, 1, logs.FilterMessage("branch dropped: name already used").Len())
	assert.Equal(t, 1, logs.FilterMessage("branch dropped: missing name").Len())
}

func TestLegacyVersionGetsFreshUIDs(t *testing.T) {
	dir := t.TempDir()
	m := newModel(t, dir)
	paths := fixture.WriteProject(t, dir)
	legacy := strings.Replace(fixture.MainTree, `version="1.2.4"`, `version="1.1"`, 1)
	require.NoError(t, os.WriteFile(paths.Tree, []byte(legacy), 0o644))

	res, err := Load(m, []string{paths.Tree}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Store.Len())
	uid, ok := res.Branches.Get(tree.QualifiedName(paths.Tree, "Patrol"))
	require.True(t, ok)
	root := res.Store.Get(uid)
	assert.Equal(t, tree.DefaultDiagram(), root.Diagram, "diagram items are keyed by file uids")
	link := res.Store.Get(root.Children("Task")[1])
	assert.Equal(t, tree.QualifiedName(paths.Tree, "Approach"), link.Target)
}

func TestCardinality(t *testing.T) {
	dir := t.TempDir()
	m := newModel(t, dir)
	path := fixture.Write(t, dir, "t.xml", treeDoc("1.2.4", `
  <Task Type="Decorator" uid="1" Lib="core" Node="Repeat" BranchName="One">
    <Task Type="Leaf" uid="2" Lib="core" Node="MoveTo"/>
    <Task Type="Leaf" uid="3" Lib="core" Node="MoveTo"/>
    <Task Type="Leaf" uid="4" Lib="core" Node="MoveTo"/>
  </Task>
  <Task Type="Composite" uid="10" Lib="core" Node="Sequence" BranchName="Two">
    <Condition Type="Leaf" uid="11" Lib="core" Node="IsNear"/>
    <Condition Type="Leaf" uid="12" Lib="core" Node="IsNear"/>
    <Condition Type="Leaf" uid="13" Lib="core" Node="IsNear"/>
  </Task>`))
	log, logs := observed()

	res, err := Load(m, []string{path}, log)
	require.NoError(t, err)
	assert.Equal(t, []tree.UID{2}, res.Store.Get(1).Children("Task"))
	assert.Equal(t, []tree.UID{11, 12}, res.Store.Get(10).Children("Condition"))
	assert.False(t, res.Store.Has(3))
	assert.False(t, res.Store.Has(13))
	assert.Equal(t, 1, logs.FilterMessage("too few children").Len(), "Sequence has no Task child")
}

func TestLinksAndIncludes(t *testing.T) {
	dir := t.TempDir()
	m := newModel(t, dir)
	other := fixture.Write(t, dir, "shared/other.xml", treeDoc("1.2.4", `
  <Task Type="Leaf" uid="50" Lib="core" Node="MoveTo" BranchName="Shared"/>`))
	main := fixture.Write(t, dir, "main.xml", treeDoc("1.2.4", `
  <Include file="shared/other.xml"/>
  <Task Type="Composite" uid="1" Lib="core" Node="Sequence" BranchName="Main">
    <Task Type="Link" uid="2" Target="Shared" File="shared/other.xml"/>
    <Task Type="Link" uid="3" Target="Later"/>
    <Task Type="Link" uid="4" Target="Nowhere"/>
    <Task Type="Link" uid="5" Target="Broken"/>
  </Task>
  <Task Type="Leaf" uid="6" Lib="core" Node="MoveTo" BranchName="Later"/>
  <Task Type="Nonexistent" uid="7" BranchName="Broken"/>`))
	log, logs := observed()

	res, err := Load(m, []string{main}, log)
	require.NoError(t, err)
	assert.Equal(t, []string{other, main}, res.Files)
	assert.Equal(t, []string{other}, res.Includes[main])

	assert.Equal(t, tree.QualifiedName(other, "Shared"), res.Store.Get(2).Target)
	assert.Equal(t, tree.QualifiedName(main, "Later"), res.Store.Get(3).Target)
	assert.False(t, res.Store.Has(4))
	assert.False(t, res.Store.Has(5))
	assert.Equal(t, []tree.UID{2, 3}, res.Store.Get(1).Children("Task"))
	assert.Equal(t, 1, logs.FilterMessage("link dropped: unresolved target").Len())
	assert.Equal(t, 1, logs.FilterMessage("link dropped: target branch was not loaded").Len())

	m = merge(t, m, res)
	out, err := Render(m, res.Layout, zap.NewNop())
	require.NoError(t, err)
	text := string(out[main])
	assert.Contains(t, text, `<Include file="shared/other.xml"/>`)
	assert.Contains(t, text, `Target="Shared" File="shared/other.xml"`)
	assert.Less(t, strings.Index(text, `BranchName="Later"`), strings.Index(text, `BranchName="Main"`))
	assert.Contains(t, out, DiagramPath(other))
}

func TestOrphanedNodeIsKept(t *testing.T) {
	dir := t.TempDir()
	m := newModel(t, dir)
	path := fixture.Write(t, dir, "t.xml", treeDoc("1.2.4", `
  <Task Type="Leaf" uid="1" Lib="core" Node="Vanished" Name="Vanished" BranchName="Main">
    <Settings speed="5" mode="fast">
      <Path>
        <point value="1"/>
        <point value="2"/>
      </Path>
      <Tuning param="x"/>
    </Settings>
  </Task>
  <Task Type="Leaf" uid="2" Lib="core" BranchName="NoRef"/>`))
	log, logs := observed()

	res, err := Load(m, []string{path}, log)
	require.NoError(t, err)
	n := res.Store.Get(1)
	require.NotNil(t, n)
	assert.Zero(t, n.DescID)
	assert.Equal(t, "Vanished", n.NodeName)
	assert.False(t, res.Store.Has(2))
	assert.Equal(t, 1, logs.FilterMessage("node descriptor not found, node is orphaned").Len())
	assert.Equal(t, 1, logs.FilterMessage("node dropped: missing library reference").Len())

	want := map[string]string{"Path/point": "1;2", "Tuning/param": "x", "mode": "fast", "speed": "5"}
	assertRaw := func(n *tree.Node) {
		t.Helper()
		require.Equal(t, []string{"Path/point", "Tuning/param", "mode", "speed"}, n.AttrNames())
		for name, text := range want {
			assert.Equal(t, text, n.Attr(name).String(), name)
		}
		assert.True(t, n.Attr("Path/point").IsArray())
	}
	assertRaw(n)

	m = merge(t, m, res)
	out, err := Render(m, res.Layout, zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, string(out[path]), `<Settings mode="fast" speed="5">`)
	for p, data := range out {
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}

	again := newModel(t, dir)
	res2, err := Load(again, []string{path}, zap.NewNop())
	require.NoError(t, err)
	assertRaw(res2.Store.Get(1))
}

func TestAttributesOnNodeElementSkipMarkupNames(t *testing.T) {
	dir := t.TempDir()
	alphabetXML := strings.Replace(fixture.Alphabet, `<attributes tag="Settings" obligatory="no"/>`, "", 1)
	m := newModelFrom(t, dir, alphabetXML, `<?xml version="1.0" encoding="UTF-8"?>
<LibData>
  <library name="core">
    <node class="Task" type="Leaf" name="Tagged">
      <attribute type="int" name="speed" default="1"/>
      <attribute type="string" name="Info" default="lib"/>
      <attribute type="int" name="uid" default="0"/>
    </node>
  </library>
</LibData>
`)
	require.Empty(t, m.Alphabet.Class("Task").AttributesTag)
	path := fixture.Write(t, dir, "t.xml", treeDoc("1.2.4", `
  <Task Type="Leaf" uid="1" Lib="core" Node="Tagged" Name="Tagged" BranchName="Main" Info="note" speed="3"/>
  <Task Type="Leaf" uid="2" Lib="core" Node="Gone" Name="Gone" BranchName="Other" Info="old" gain="7"/>`))

	res, err := Load(m, []string{path}, zap.NewNop())
	require.NoError(t, err)
	tagged := res.Store.Get(1)
	assert.Equal(t, "note", tagged.Info)
	assert.Equal(t, int64(3), tagged.Attr("speed").Value().Int())
	assert.Equal(t, "lib", tagged.Attr("Info").Value().Str())
	assert.Equal(t, int64(0), tagged.Attr("uid").Value().Int())
	assert.Equal(t, []string{"gain"}, res.Store.Get(2).AttrNames())

	log, logs := observed()
	m = merge(t, m, res)
	out, err := Render(m, res.Layout, log)
	require.NoError(t, err)
	text := string(out[path])
	assert.Contains(t, text, `uid="1"`)
	assert.Contains(t, text, `Info="note" speed="3"`)
	assert.Contains(t, text, `Info="old" gain="7"`)
	assert.Equal(t, 2, logs.FilterMessage("attribute not saved: name collides with node markup").Len())
}

func TestAmbiguousLibraryIsReported(t *testing.T) {
	dir := t.TempDir()
	libraryXML := strings.Replace(fixture.Library, "</LibData>",
		`<library name="extra"><node class="Task" type="Leaf" name="MoveTo"/></library>
</LibData>`, 1)
	m := newModelFrom(t, dir, fixture.Alphabet, libraryXML)
	path := fixture.Write(t, dir, "t.xml", treeDoc("1.2.4", `
  <Task Type="Leaf" uid="1" Node="MoveTo" Name="MoveTo" BranchName="Main"/>`))
	log, logs := observed()

	res, err := Load(m, []string{path}, log)
	require.NoError(t, err)
	assert.Same(t, m.Catalog.Lookup("core", "MoveTo"), m.Catalog.ByID(res.Store.Get(1).DescID))
	warned := logs.FilterMessage("node library ambiguous, using the first").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "MoveTo", warned[0].ContextMap()["node"])
	assert.Equal(t, []interface{}{"core", "extra"}, warned[0].ContextMap()["libraries"])
}

func TestDynamicVariantFollowsStoredControl(t *testing.T) {
	dir := t.TempDir()
	m := newModel(t, dir)
	path := fixture.Write(t, dir, "t.xml", treeDoc("1.2.4", `
  <Task Type="Leaf" uid="1" Lib="core" Node="MoveTo" Name="MoveTo" BranchName="Main">
    <Settings mode="run">
      <Tuning param="9"/>
    </Settings>
  </Task>
  <Task Type="Leaf" uid="2" Lib="core" Node="MoveTo" Name="MoveTo" BranchName="Other">
    <Settings>
      <Tuning param="0.25"/>
    </Settings>
  </Task>`))

	res, err := Load(m, []string{path}, zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		uid  tree.UID
		key  string
		want string
	}{
		{1, "run", "9"},
		{2, "walk", "0.25"},
	}
	for _, tt := range tests {
		param := res.Store.Get(tt.uid).Attr("Tuning/param")
		require.NotNil(t, param)
		assert.Equal(t, tt.key, param.Key(), "uid %d", tt.uid)
		assert.Equal(t, tt.want, param.String(), "uid %d", tt.uid)
	}
}

func TestRootTagAndIOErrors(t *testing.T) {
	dir := t.TempDir()
	m := newModel(t, dir)
	bad := fixture.Write(t, dir, "bad.xml", `<Tree/>`)
	_, err := Load(m, []string{bad}, nil)
	assert.ErrorIs(t, err, ErrRootTag)

	_, err = Load(m, []string{filepath.Join(dir, "missing.xml")}, nil)
	assert.Error(t, err)
}

func TestRoundTripIsStable(t *testing.T) {
	dir := t.TempDir()
	paths := fixture.WriteProject(t, dir)

	first := newModel(t, dir)
	res, err := Load(first, []string{paths.Tree}, zap.NewNop())
	require.NoError(t, err)
	first = merge(t, first, res)
	out, err := Render(first, res.Layout, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, out, 2)
	for path, data := range out {
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}

	second := newModel(t, dir)
	res2, err := Load(second, []string{paths.Tree}, zap.NewNop())
	require.NoError(t, err)
	second = merge(t, second, res2)
	again, err := Render(second, res2.Layout, zap.NewNop())
	require.NoError(t, err)

	for path := range out {
		assert.Equal(t, string(out[path]), string(again[path]), path)
	}
	assert.True(t, first.Store.Equal(second.Store))
	assert.True(t, first.Branches.Equal(second.Branches))
	assert.Equal(t, first.Store.Get(100).Diagram, second.Store.Get(100).Diagram)

	text := string(out[paths.Tree])
	assert.Less(t, strings.Index(text, `BranchName="Approach"`), strings.Index(text, `BranchName="Patrol"`))
	assert.Contains(t, text, `Name="!IsNear"`)
	assert.Contains(t, text, `Type="debug Leaf"`)
}

func TestOrderBranches(t *testing.T) {
	log, logs := observed()
	got := orderBranches([]string{"f/A", "f/B", "f/C"}, map[string][]string{
		"f/A": {"f/B"},
		"f/B": {"f/C", "f/C"},
	}, log)
	assert.Equal(t, []string{"f/C", "f/B", "f/A"}, got)
	assert.Zero(t, logs.Len())

	got = orderBranches([]string{"f/X", "f/Y", "f/Z"}, map[string][]string{
		"f/X": {"f/Y"},
		"f/Y": {"f/X"},
		"f/Z": {"f/Z"},
	}, log)
	assert.Equal(t, []string{"f/Z", "f/X", "f/Y"}, got)
	assert.Equal(t, 2, logs.Len())
}
