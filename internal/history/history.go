// Package history keeps bounded undo and redo stacks of full project snapshots.
package history

import (
	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/events"
	"github.com/oxhq/btstudio/internal/logging"
	"github.com/oxhq/btstudio/internal/project"
)

// Entry is one snapshot and the message of the edit it precedes.
type Entry struct {
	Message string
	State   *project.State
}

// History records snapshots of one project. It acts only while that project is the active one
// reported by current; the first time it is not, the history deactivates itself for good.
type History struct {
	owner   *project.Project
	current func() *project.Project
	max     int
	bus     *events.Bus
	log     *zap.Logger

	undo, redo  []Entry
	active      bool
	unsubscribe func()
}

// New binds a history to owner. max bounds each stack; zero disables recording. When bus is
// non-nil the history deactivates itself on ProjectClosed.
func New(owner *project.Project, current func() *project.Project, max int, bus *events.Bus, log *zap.Logger) *History {
	h := &History{owner: owner, current: current, max: max, bus: bus, log: logging.OrNop(log), active: true}
	if bus != nil {
		h.unsubscribe = bus.Subscribe(func(ev events.Event) {
			if ev.Kind == events.ProjectClosed {
				h.Deactivate()
			}
		})
	}
	return h
}

// Active reports whether the history still acts on its project.
func (h *History) Active() bool { return h.active }

// Deactivate stops the history permanently and drops its stacks.
func (h *History) Deactivate() {
	if !h.active {
		return
	}
	h.active = false
	h.undo, h.redo = nil, nil
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// guard checks that the owner is still the active project.
func (h *History) guard() bool {
	if !h.active {
		return false
	}
	if h.current != nil && h.current() != h.owner {
		h.log.Warn("history deactivated: project is no longer current")
		h.Deactivate()
		return false
	}
	return true
}

// Push records the current state before an edit described by message. The redo stack is
// cleared and the oldest entry evicted when the stack is full.
func (h *History) Push(message string) {
	if h.max <= 0 || !h.guard() {
		return
	}
	h.undo = append(h.undo, Entry{Message: message, State: h.owner.Snapshot()})
	if len(h.undo) > h.max {
		h.undo = h.undo[len(h.undo)-h.max:]
	}
	h.redo = nil
	h.notify(events.HistoryChanged, message)
}

// Cancel drops the newest entry and restores it, undoing a failed edit without touching the
// redo stack or notifying anyone.
func (h *History) Cancel() bool {
	if !h.guard() || len(h.undo) == 0 {
		return false
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.owner.Restore(e.State)
	return true
}

// Undo restores the newest snapshot and moves the current state onto the redo stack.
func (h *History) Undo() bool {
	if !h.guard() {
		return false
	}
	e, ok := h.step(&h.undo, &h.redo)
	if ok {
		h.notify(events.HistoryRestored, e.Message)
	}
	return ok
}

// Redo is the mirror of Undo.
func (h *History) Redo() bool {
	if !h.guard() {
		return false
	}
	e, ok := h.step(&h.redo, &h.undo)
	if ok {
		h.notify(events.HistoryRestored, e.Message)
	}
	return ok
}

// UndoTo undoes until the undo stack has index entries left, i.e. until the state recorded
// by entry index is restored. Only the final step is announced.
func (h *History) UndoTo(index int) bool {
	return h.jump(index, &h.undo, &h.redo)
}

// RedoTo redoes until the redo stack has index entries left.
func (h *History) RedoTo(index int) bool {
	return h.jump(index, &h.redo, &h.undo)
}

func (h *History) jump(index int, from, to *[]Entry) bool {
	if !h.guard() || index < 0 || index >= len(*from) {
		return false
	}
	var last Entry
	for len(*from) > index {
		last, _ = h.step(from, to)
	}
	h.notify(events.HistoryRestored, last.Message)
	return true
}

// step pops from, records the live state on to under the same message and restores the
// popped state.
func (h *History) step(from, to *[]Entry) (Entry, bool) {
	if len(*from) == 0 {
		return Entry{}, false
	}
	e := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	*to = append(*to, Entry{Message: e.Message, State: h.owner.Snapshot()})
	h.owner.Restore(e.State)
	return e, true
}

// UndoMessages lists the undo stack, oldest first.
func (h *History) UndoMessages() []string { return messages(h.undo) }

// RedoMessages lists the redo stack, oldest first.
func (h *History) RedoMessages() []string { return messages(h.redo) }

func messages(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func (h *History) notify(kind events.Kind, message string) {
	if h.bus != nil {
		h.bus.Publish(events.Event{Kind: kind, Message: message})
	}
}
