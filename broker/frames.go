package broker

import (
	"log/slog"
	"sync"

	"github.com/casualjim/bricbus/internal/registry"
	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/window"
	"github.com/casualjim/bricbus/wire"
)

// FrameEntry is the bookkeeping kept per managed child context.
type FrameEntry struct {
	Node   window.Element
	Window window.Window

	mu    sync.Mutex
	relay *relay
}

// HasRelay reports whether the frame has subscribed at least once.
func (e *FrameEntry) HasRelay() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.relay != nil
}

func (e *FrameEntry) relayHandler(create func() *relay) *relay {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.relay == nil && create != nil {
		e.relay = create()
	}
	return e.relay
}

// FrameRegistry is the live set of child contexts the broker manages, keyed
// by window id.
type FrameRegistry struct {
	doc    Document
	frames registry.Registry[*FrameEntry]
	logger *slog.Logger
}

// NewFrameRegistry creates an empty registry over doc.
func NewFrameRegistry(doc Document, logger *slog.Logger) *FrameRegistry {
	return &FrameRegistry{
		doc:    doc,
		frames: registry.New[*FrameEntry](),
		logger: slogx.Named(logger, "bricbus.frames"),
	}
}

// CacheFrames scans the document and adds an entry for every matching element
// whose window is not known yet. It returns how many entries were added.
// Elements without a content window are skipped. Existing entries are never
// pruned.
func (r *FrameRegistry) CacheFrames(selector string) (int, error) {
	elements, err := r.doc.QuerySelectorAll(selector)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, el := range elements {
		w := el.ContentWindow()
		if w == nil {
			r.logger.Debug("skipping element without a content window")
			continue
		}
		_, loaded := r.frames.GetOrAdd(w.ID(), func() *FrameEntry {
			return &FrameEntry{Node: el, Window: w}
		})
		if !loaded {
			added++
			r.logger.Debug("frame registered", slogx.Window(w.ID()))
		}
	}
	return added, nil
}

// Entry looks up the frame hosting w.
func (r *FrameRegistry) Entry(w window.Window) (*FrameEntry, bool) {
	if w == nil {
		return nil, false
	}
	return r.frames.Get(w.ID())
}

// Resize sets the width and height of w's frame element. It reports false when
// w is not a managed frame.
func (r *FrameRegistry) Resize(w window.Window, size wire.Size) bool {
	entry, ok := r.Entry(w)
	if !ok {
		return false
	}
	entry.Node.SetStyle("width", wire.Pixels(size.Width))
	entry.Node.SetStyle("height", wire.Pixels(size.Height))
	return true
}

// Forget removes w's entry and returns it.
func (r *FrameRegistry) Forget(w window.Window) (*FrameEntry, bool) {
	if w == nil {
		return nil, false
	}
	return r.frames.Del(w.ID())
}

// Len returns the number of managed frames.
func (r *FrameRegistry) Len() int {
	return r.frames.Len()
}

// Windows returns the managed windows in no particular order.
func (r *FrameRegistry) Windows() []window.Window {
	out := make([]window.Window, 0, r.frames.Len())
	r.frames.Each(func(_ string, e *FrameEntry) bool {
		out = append(out, e.Window)
		return true
	})
	return out
}

// Dispose drops every entry.
func (r *FrameRegistry) Dispose() {
	r.frames.Clear()
}
