package natsx

import (
	"slices"
	"sync"

	"github.com/casualjim/bricbus/internal/selector"
	"github.com/casualjim/bricbus/window"
)

// Document is a host document whose frames are contexts reachable over NATS.
// The host's own inbound traffic arrives on its Endpoint.
type Document struct {
	*Endpoint

	mu     sync.RWMutex
	frames []*Frame
}

// NewDocument wraps the host endpoint.
func NewDocument(host *Endpoint) *Document {
	return &Document{Endpoint: host}
}

// Window is the host endpoint's window.
func (d *Document) Window() window.Window { return d.Endpoint.Window }

// AddFrame registers a remote frame element for the context id.
func (d *Document) AddFrame(id, origin string, classes ...string) *Frame {
	f := &Frame{
		id:      id,
		classes: slices.Clone(classes),
		win:     d.Peer(id, origin),
		style:   make(map[string]string),
	}
	d.mu.Lock()
	d.frames = append(d.frames, f)
	d.mu.Unlock()
	return f
}

// Frames returns the registered frames in order.
func (d *Document) Frames() []*Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.frames)
}

// QuerySelectorAll returns the frames matching sel.
func (d *Document) QuerySelectorAll(sel string) ([]window.Element, error) {
	parsed, err := selector.Parse(sel)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []window.Element
	for _, f := range d.frames {
		if parsed.Match(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Frame is the host's element for a remote context. Its style lives on the
// host; the remote context only sees the effects.
type Frame struct {
	id      string
	classes []string
	win     *Window

	mu    sync.RWMutex
	style map[string]string
}

var _ window.Element = (*Frame)(nil)

func (f *Frame) ID() string                   { return f.id }
func (f *Frame) Tag() string                  { return "iframe" }
func (f *Frame) HasClass(name string) bool    { return slices.Contains(f.classes, name) }
func (f *Frame) ContentWindow() window.Window { return f.win }

func (f *Frame) SetStyle(property, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.style[property] = value
}

func (f *Frame) Style(property string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.style[property]
}
