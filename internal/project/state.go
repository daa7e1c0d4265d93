package project

import (
	"maps"
	"slices"

	"github.com/oxhq/btstudio/internal/libparser"
	"github.com/oxhq/btstudio/internal/library"
	"github.com/oxhq/btstudio/internal/tree"
	"github.com/oxhq/btstudio/internal/treeparser"
)

// State is a deep copy of everything a mutation can change. The alphabet is immutable once
// loaded and is shared.
type State struct {
	Catalog    *library.Catalog
	Store      *tree.Store
	Branches   *tree.BehaviorTree
	LibLayout  libparser.Layout
	TreeLayout treeparser.Layout
	Modified   bool
}

// Snapshot copies the current state.
func (p *Project) Snapshot() *State {
	live := State{
		Catalog:    p.Catalog,
		Store:      p.Store,
		Branches:   p.Branches,
		LibLayout:  p.LibLayout,
		TreeLayout: p.TreeLayout,
		Modified:   p.Modified,
	}
	return live.clone()
}

// Restore replaces the project state with a copy of s, so s stays reusable.
func (p *Project) Restore(s *State) {
	c := s.clone()
	p.Catalog = c.Catalog
	p.Store = c.Store
	p.Branches = c.Branches
	p.LibLayout = c.LibLayout
	p.TreeLayout = c.TreeLayout
	p.Modified = c.Modified
}

func (s *State) clone() *State {
	return &State{
		Catalog:    s.Catalog.Clone(),
		Store:      s.Store.Clone(),
		Branches:   s.Branches.Clone(),
		LibLayout:  libparser.Layout{Files: slices.Clone(s.LibLayout.Files), Includes: cloneIncludes(s.LibLayout.Includes)},
		TreeLayout: treeparser.Layout{Files: slices.Clone(s.TreeLayout.Files), Includes: cloneIncludes(s.TreeLayout.Includes)},
		Modified:   s.Modified,
	}
}

// Equal compares two states: node store, branch table, descriptor names and ids per library,
// file lists and the modified flag.
func (s *State) Equal(o *State) bool {
	if s.Modified != o.Modified || !s.Store.Equal(o.Store) || !s.Branches.Equal(o.Branches) {
		return false
	}
	if !slices.Equal(s.LibLayout.Files, o.LibLayout.Files) || !slices.Equal(s.TreeLayout.Files, o.TreeLayout.Files) {
		return false
	}
	return catalogEqual(s.Catalog, o.Catalog)
}

func catalogEqual(a, b *library.Catalog) bool {
	if !slices.Equal(a.Names(), b.Names()) {
		return false
	}
	for _, name := range a.Names() {
		la, lb := a.Library(name), b.Library(name)
		if la.Path != lb.Path || !slices.Equal(la.Names(), lb.Names()) {
			return false
		}
		for _, node := range la.Names() {
			da, db := la.Get(node), lb.Get(node)
			if da.ID != db.ID || da.Class != db.Class || da.Type != db.Type ||
				!slices.Equal(da.AttrNames(), db.AttrNames()) {
				return false
			}
		}
	}
	return true
}

func cloneIncludes(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range maps.All(m) {
		out[k] = slices.Clone(v)
	}
	return out
}
