package project

import (
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/events"
	"github.com/oxhq/btstudio/internal/libparser"
	"github.com/oxhq/btstudio/internal/tree"
	"github.com/oxhq/btstudio/internal/treeparser"
)

// FileWriter writes a set of files as one unit. core.TransactionManager implements it.
type FileWriter interface {
	WriteAll(description string, files map[string][]byte) ([]string, error)
}

// Render returns the canonical content of every library, tree and diagram file, keyed by path.
// The project is not modified.
func (p *Project) Render() (map[string][]byte, error) {
	libs, err := libparser.Render(p.Alphabet, p.Catalog.Libraries(), p.LibLayout)
	if err != nil {
		return nil, fmt.Errorf("library did not save: %w", err)
	}
	trees, err := treeparser.Render(p.model(), p.TreeLayout, p.log)
	if err != nil {
		return nil, fmt.Errorf("tree did not save: %w", err)
	}
	out := make(map[string][]byte, len(libs)+len(trees))
	maps.Copy(out, libs)
	maps.Copy(out, trees)
	return out, nil
}

// Save drops nodes no branch reaches, renders the project and writes the result through w.
// It returns the paths that were actually written.
func (p *Project) Save(w FileWriter) ([]string, error) {
	if removed := p.CollectGarbage(); len(removed) > 0 {
		p.log.Debug("unreachable nodes removed", zap.Int("nodes", len(removed)))
	}
	files, err := p.Render()
	if err != nil {
		return nil, err
	}
	written, err := w.WriteAll("save "+p.Name(), files)
	if err != nil {
		return nil, fmt.Errorf("project did not save: %w", err)
	}
	p.Modified = false
	p.log.Info("project saved", zap.Int("files", len(files)), zap.Int("written", len(written)))
	p.publish(events.Event{Kind: events.ProjectSaved, Message: p.Name()})
	return written, nil
}

// CollectGarbage removes every node that is not reachable from a branch root, including the
// disconnected buckets, and returns the removed uids.
func (p *Project) CollectGarbage() []tree.UID {
	reachable := make(map[tree.UID]bool, p.Store.Len())
	for _, fq := range p.Branches.Names() {
		root, _ := p.Branches.Get(fq)
		for _, id := range p.Store.Descendants(root) {
			reachable[id] = true
		}
	}
	p.Branches.TakeDisconnected()
	var removed []tree.UID
	for _, uid := range p.Store.UIDs() {
		if !reachable[uid] && p.Store.Has(uid) && p.Store.Get(uid).Parent == 0 {
			removed = append(removed, p.Store.Remove(uid)...)
		}
	}
	return removed
}
