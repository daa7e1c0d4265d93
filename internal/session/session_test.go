package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/btstudio/core"
	"github.com/oxhq/btstudio/internal/config"
	"github.com/oxhq/btstudio/internal/events"
	"github.com/oxhq/btstudio/internal/fixture"
	"github.com/oxhq/btstudio/internal/project"
)

func openContext(t *testing.T) (*Context, fixture.Paths, *[]events.Kind) {
	t.Helper()
	paths := fixture.WriteProject(t, t.TempDir())
	c := New(&config.Config{HistoryDepth: 4}, nil)
	var kinds []events.Kind
	c.Bus().Subscribe(func(ev events.Event) { kinds = append(kinds, ev.Kind) })
	_, err := c.Open(paths.Manifest)
	require.NoError(t, err)
	return c, paths, &kinds
}

func TestNoProject(t *testing.T) {
	c := New(nil, nil)
	assert.Nil(t, c.Current())
	require.ErrorIs(t, c.Do("x", func(*project.Project) error { return nil }), ErrNoProject)
	_, err := c.Undo()
	require.ErrorIs(t, err, ErrNoProject)
	require.ErrorIs(t, c.Push("x"), ErrNoProject)
	_, err = c.Save(nil)
	require.ErrorIs(t, err, ErrNoProject)
}

func TestDoUndoRedo(t *testing.T) {
	c, _, kinds := openContext(t)
	assert.Equal(t, []events.Kind{events.ProjectOpened}, *kinds)

	require.NoError(t, c.Do("rename", func(p *project.Project) error {
		return p.RenameNodeDesc("core", "MoveTo", "Walk")
	}))
	p := c.Current()
	assert.Equal(t, "Walk", p.NodeDesc(101).Name)
	assert.Equal(t, []events.Kind{events.ProjectOpened, events.HistoryChanged, events.NodeDescRenamed}, *kinds)

	ok, err := c.Undo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "MoveTo", p.NodeDesc(101).Name)

	ok, err = c.Redo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Walk", p.NodeDesc(101).Name)

	ok, err = c.UndoTo(0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.RedoTo(0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Walk", p.NodeDesc(101).Name)
}

func TestFailedDoRollsBack(t *testing.T) {
	c, _, _ := openContext(t)
	boom := errors.New("boom")
	err := c.Do("partial", func(p *project.Project) error {
		require.NoError(t, p.RenameLibrary("core", "base"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"core"}, c.Current().Catalog.Names())
	assert.Empty(t, c.History().UndoMessages())
}

func TestHistoryDepthFromManifest(t *testing.T) {
	c, _, _ := openContext(t)
	for range 20 {
		require.NoError(t, c.Push("edit"))
	}
	assert.Len(t, c.History().UndoMessages(), 16, "manifest historyDepth wins over the config")
}

func TestReopenDeactivatesOldHistory(t *testing.T) {
	c, paths, kinds := openContext(t)
	old := c.History()
	require.NoError(t, c.Push("edit"))

	_, err := c.Open(paths.Manifest)
	require.NoError(t, err)
	assert.False(t, old.Active())
	assert.True(t, c.History().Active())
	assert.Contains(t, *kinds, events.ProjectClosed)

	c.Close()
	assert.Nil(t, c.Current())
	assert.Nil(t, c.History())
}

func TestSave(t *testing.T) {
	c, paths, _ := openContext(t)
	tm, err := core.NewTransactionManager(filepath.Join(paths.Dir, ".tx"), core.NewAtomicWriter(core.DefaultAtomicConfig(), nil), nil)
	require.NoError(t, err)
	require.NoError(t, c.Do("rename", func(p *project.Project) error {
		_, err := p.RenameBranch(filepath.ToSlash(paths.Tree)+"/Approach", "Reach")
		return err
	}))
	written, err := c.Save(tm)
	require.NoError(t, err)
	assert.Contains(t, written, paths.Tree)
	assert.False(t, c.Current().Modified)
}
