// Package project ties an alphabet, its node libraries and the behavior trees built from them
// into one editable unit, and keeps the cross references between them consistent when things
// are renamed, added or removed.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/alphabet"
	"github.com/oxhq/btstudio/internal/config"
	"github.com/oxhq/btstudio/internal/events"
	"github.com/oxhq/btstudio/internal/libparser"
	"github.com/oxhq/btstudio/internal/library"
	"github.com/oxhq/btstudio/internal/logging"
	"github.com/oxhq/btstudio/internal/tree"
	"github.com/oxhq/btstudio/internal/treeparser"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnknownClass     = errors.New("unknown class or type")
	ErrChildNotAllowed  = errors.New("child class not allowed")
	ErrFlagNotAllowed   = errors.New("flag not allowed")
	ErrOrphaned         = errors.New("node has no descriptor")
	ErrBranchRoot       = errors.New("node is a branch root")
	ErrNotDisconnected  = errors.New("node is not disconnected")
	ErrNotTopLevel      = errors.New("node is not of the top-level class")
	ErrDanglingBranches = errors.New("links still target the branch")
)

// Project is an opened behavior tree project.
type Project struct {
	Manifest *config.Manifest
	Alphabet *alphabet.Alphabet
	Catalog  *library.Catalog
	Shapes   *library.ShapeLib
	Store    *tree.Store
	Branches *tree.BehaviorTree

	LibLayout  libparser.Layout
	TreeLayout treeparser.Layout

	// Modified is set by every mutation and cleared by Save.
	Modified bool

	// Bus receives an event after each completed mutation. It may be nil.
	Bus *events.Bus

	log *zap.Logger
}

// New creates an empty project over a.
func New(a *alphabet.Alphabet, log *zap.Logger) *Project {
	return &Project{
		Alphabet:   a,
		Catalog:    library.NewCatalog(),
		Store:      tree.NewStore(),
		Branches:   tree.NewBehaviorTree(),
		LibLayout:  libparser.Layout{Includes: make(map[string][]string)},
		TreeLayout: treeparser.Layout{Includes: make(map[string][]string)},
		log:        logging.OrNop(log),
	}
}

// Open loads the project described by the manifest at path: the alphabet, then the libraries,
// then the trees. Problems with single elements are only logged; an unreadable or malformed
// file fails the whole open.
func Open(path string, log *zap.Logger) (*Project, error) {
	log = logging.OrNop(log)
	m, err := config.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	a, err := alphabet.Load(m.AlphabetPath(), log)
	if err != nil {
		return nil, fmt.Errorf("project %s did not load: %w", path, err)
	}
	p := New(a, log)
	p.Manifest = m

	libFiles, err := m.LibraryFiles()
	if err != nil {
		return nil, err
	}
	if err := p.LoadLibraries(libFiles); err != nil {
		return nil, fmt.Errorf("project %s did not load: %w", path, err)
	}
	treeFiles, err := m.TreeFiles()
	if err != nil {
		return nil, err
	}
	if err := p.LoadTrees(treeFiles); err != nil {
		return nil, fmt.Errorf("project %s did not load: %w", path, err)
	}
	p.Modified = false

	p.log.Info("project opened",
		zap.String("manifest", path),
		zap.Int("libraries", p.Catalog.Len()),
		zap.Int("branches", p.Branches.Len()),
		zap.Int("nodes", p.Store.Len()))
	p.publish(events.Event{Kind: events.ProjectOpened, Message: m.Name})
	return p, nil
}

// Log returns the project's logger.
func (p *Project) Log() *zap.Logger { return p.log }

// LoadLibraries reads library files into the catalog.
func (p *Project) LoadLibraries(files []string) error {
	res, err := libparser.Load(p.Alphabet, files, p.Catalog, p.Shapes, p.log)
	if err != nil {
		return err
	}
	for _, l := range res.Libraries {
		if err := p.Catalog.AddLibrary(l); err != nil {
			p.log.Error("library dropped", zap.String("library", l.Name), zap.Error(err))
		}
	}
	mergeLayout(&p.LibLayout.Files, p.LibLayout.Includes, res.Files, res.Includes)
	p.Modified = true
	return nil
}

// LoadTrees reads tree files into the store and branch table. Links may target branches that
// are already loaded.
func (p *Project) LoadTrees(files []string) error {
	res, err := treeparser.Load(p.model(), files, p.log)
	if err != nil {
		return err
	}
	if err := p.Store.Merge(res.Store); err != nil {
		return err
	}
	if err := p.Branches.Merge(res.Branches); err != nil {
		return err
	}
	mergeLayout(&p.TreeLayout.Files, p.TreeLayout.Includes, res.Files, res.Includes)
	p.Modified = true
	return nil
}

func mergeLayout(files *[]string, includes map[string][]string, newFiles []string, newIncludes map[string][]string) {
	for _, f := range newFiles {
		if !slices.Contains(*files, f) {
			*files = append(*files, f)
		}
	}
	for f, inc := range newIncludes {
		includes[f] = inc
	}
}

func (p *Project) model() treeparser.Model {
	return treeparser.Model{Alphabet: p.Alphabet, Catalog: p.Catalog, Store: p.Store, Branches: p.Branches}
}

// Node returns the node with uid.
func (p *Project) Node(uid tree.UID) (*tree.Node, error) {
	n := p.Store.Get(uid)
	if n == nil {
		return nil, fmt.Errorf("%w: node %d", ErrNotFound, uid)
	}
	return n, nil
}

// NodeDesc resolves the descriptor a node is bound to, or nil for links and orphans.
func (p *Project) NodeDesc(uid tree.UID) *library.NodeDesc {
	n := p.Store.Get(uid)
	if n == nil || n.DescID == 0 {
		return nil
	}
	return p.Catalog.ByID(n.DescID)
}

// BranchOf returns the branch containing uid.
func (p *Project) BranchOf(uid tree.UID) (string, bool) {
	if !p.Store.Has(uid) {
		return "", false
	}
	return p.Branches.NameOf(p.Store.Root(uid))
}

// Name is the manifest name, or the manifest file name.
func (p *Project) Name() string {
	switch {
	case p.Manifest == nil:
		return ""
	case p.Manifest.Name != "":
		return p.Manifest.Name
	default:
		return filepath.Base(p.Manifest.Path)
	}
}

func (p *Project) publish(ev events.Event) {
	if p.Bus != nil {
		p.Bus.Publish(ev)
	}
}

func uint32s(ids []tree.UID) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}
