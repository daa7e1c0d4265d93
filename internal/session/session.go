// Package session owns the open project of a process: it serializes mutations behind a single
// writer lock, delivers their notifications on one bus and keeps the undo history.
package session

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/config"
	"github.com/oxhq/btstudio/internal/events"
	"github.com/oxhq/btstudio/internal/history"
	"github.com/oxhq/btstudio/internal/logging"
	"github.com/oxhq/btstudio/internal/project"
)

var ErrNoProject = errors.New("no project is open")

// Context is the explicit owner of the current project. Events are delivered while the writer
// lock is held, so handlers must not call back into the Context.
type Context struct {
	cfg *config.Config
	log *zap.Logger
	bus *events.Bus

	mu      sync.Mutex
	project *project.Project
	history *history.History
}

// New creates a context without a project.
func New(cfg *config.Config, log *zap.Logger) *Context {
	if cfg == nil {
		cfg = config.LoadConfig()
	}
	return &Context{cfg: cfg, log: logging.OrNop(log), bus: events.NewBus()}
}

// Bus is the bus every project event of this context is published on.
func (c *Context) Bus() *events.Bus { return c.bus }

// Open closes the current project, if any, and opens the one described by manifestPath. On
// failure the previous project stays closed.
func (c *Context) Open(manifestPath string) (*project.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()

	p, err := project.Open(manifestPath, c.log)
	if err != nil {
		return nil, err
	}
	c.attachLocked(p)
	c.bus.Publish(events.Event{Kind: events.ProjectOpened, Message: p.Name()})
	return p, nil
}

// Attach makes an already built project current.
func (c *Context) Attach(p *project.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	c.attachLocked(p)
}

func (c *Context) attachLocked(p *project.Project) {
	depth := c.cfg.HistoryDepth
	if p.Manifest != nil && p.Manifest.HistoryDepth > 0 {
		depth = p.Manifest.HistoryDepth
	}
	p.Bus = c.bus
	c.project = p
	c.history = history.New(p, func() *project.Project { return c.project }, depth, c.bus, c.log)
}

// Close drops the current project. Its history deactivates itself on the ProjectClosed event.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Context) closeLocked() {
	if c.project == nil {
		return
	}
	name := c.project.Name()
	c.project.Bus = nil
	c.project, c.history = nil, nil
	c.bus.Publish(events.Event{Kind: events.ProjectClosed, Message: name})
}

// Current returns the open project, or nil.
func (c *Context) Current() *project.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.project
}

// History returns the history of the open project, or nil.
func (c *Context) History() *history.History {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history
}

// Do runs fn against the current project under the writer lock. A non-empty message records
// an undo entry first; if fn fails, that entry is used to roll the project back.
func (c *Context) Do(message string, fn func(p *project.Project) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.project == nil {
		return ErrNoProject
	}
	if message != "" {
		c.history.Push(message)
	}
	if err := fn(c.project); err != nil {
		if message != "" {
			c.history.Cancel()
		}
		return err
	}
	return nil
}

// Push records an undo entry for an edit about to be made outside Do.
func (c *Context) Push(message string) error {
	return c.withHistory(func(h *history.History) bool { h.Push(message); return true })
}

// Undo reverts the newest edit. It reports false when there is nothing to undo.
func (c *Context) Undo() (bool, error) {
	return c.withHistoryResult(func(h *history.History) bool { return h.Undo() })
}

// Redo reapplies the newest undone edit.
func (c *Context) Redo() (bool, error) {
	return c.withHistoryResult(func(h *history.History) bool { return h.Redo() })
}

// UndoTo undoes until undo entry index is restored.
func (c *Context) UndoTo(index int) (bool, error) {
	return c.withHistoryResult(func(h *history.History) bool { return h.UndoTo(index) })
}

// RedoTo redoes until the redo stack has index entries left.
func (c *Context) RedoTo(index int) (bool, error) {
	return c.withHistoryResult(func(h *history.History) bool { return h.RedoTo(index) })
}

func (c *Context) withHistory(fn func(h *history.History) bool) error {
	_, err := c.withHistoryResult(fn)
	return err
}

func (c *Context) withHistoryResult(fn func(h *history.History) bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.project == nil {
		return false, ErrNoProject
	}
	return fn(c.history), nil
}

// Save writes the current project through w under the writer lock.
func (c *Context) Save(w project.FileWriter) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.project == nil {
		return nil, ErrNoProject
	}
	return c.project.Save(w)
}
