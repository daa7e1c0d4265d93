// Package events is the synchronous notification bus of a session.
package events

import (
	"sync"
)

// Kind classifies an event.
type Kind int

const (
	ProjectOpened Kind = iota + 1
	ProjectClosed
	ProjectSaved
	LibraryAdded
	LibraryRenamed
	NodeDescAdded
	NodeDescRemoved
	NodeDescRenamed
	AttrDescChanged
	BranchAdded
	BranchRenamed
	BranchRemoved
	NodeAdded
	NodeAttached
	NodeDetached
	NodeRemoved
	AttrChanged
	NodeFlagsChanged
	HistoryChanged
	HistoryRestored
)

var kindNames = map[Kind]string{
	ProjectOpened:    "project-opened",
	ProjectClosed:    "project-closed",
	ProjectSaved:     "project-saved",
	LibraryAdded:     "library-added",
	LibraryRenamed:   "library-renamed",
	NodeDescAdded:    "node-desc-added",
	NodeDescRemoved:  "node-desc-removed",
	NodeDescRenamed:  "node-desc-renamed",
	AttrDescChanged:  "attr-desc-changed",
	BranchAdded:      "branch-added",
	BranchRenamed:    "branch-renamed",
	BranchRemoved:    "branch-removed",
	NodeAdded:        "node-added",
	NodeAttached:     "node-attached",
	NodeDetached:     "node-detached",
	NodeRemoved:      "node-removed",
	AttrChanged:      "attr-changed",
	NodeFlagsChanged: "node-flags-changed",
	HistoryChanged:   "history-changed",
	HistoryRestored:  "history-restored",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event describes a completed mutation. Only the fields relevant to Kind are set.
type Event struct {
	Kind    Kind
	Library string
	Node    string
	OldName string
	NewName string
	Branch  string
	UID     uint32
	UIDs    []uint32
	Attr    string
	Message string
}

// Handler receives events.
type Handler func(Event)

// Bus delivers events synchronously and in publish order. A publish made by a handler is
// queued and delivered after the current event reached every handler, so deliveries never
// interleave.
type Bus struct {
	mu       sync.Mutex
	handlers map[int]Handler
	order    []int
	nextID   int
	queue    []Event
	draining bool
}

// NewBus creates a bus without subscribers.
func NewBus() *Bus { return &Bus{handlers: make(map[int]Handler)} }

// Subscribe registers fn and returns the function that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = fn
	b.order = append(b.order, id)
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers events to every subscriber. It returns once the queue drained, unless it was
// called from inside a handler, in which case delivery happens after that handler's event.
func (b *Bus) Publish(evs ...Event) {
	b.mu.Lock()
	b.queue = append(b.queue, evs...)
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 {
		ev := b.queue[0]
		b.queue = b.queue[1:]
		handlers := make([]Handler, 0, len(b.order))
		for _, id := range b.order {
			handlers = append(handlers, b.handlers[id])
		}
		b.mu.Unlock()
		for _, h := range handlers {
			h(ev)
		}
		b.mu.Lock()
	}
	b.draining = false
	b.mu.Unlock()
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}
