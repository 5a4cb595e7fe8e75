// Package page is an in-memory host document with real concurrent browsing
// contexts. The host and every frame get their own Context with a goroutine
// event loop, so cross-context traffic is asynchronous and FIFO the same way
// it is between iframes.
package page

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/casualjim/bricbus/internal/registry"
	"github.com/casualjim/bricbus/internal/selector"
	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/window"
	"github.com/fogfish/opts"
)

const (
	TagIFrame = "iframe"
	TagObject = "object"

	// HostID is the id of the host context.
	HostID = "host"
)

// Document is the host document: a host context plus a flat list of frame
// elements.
type Document struct {
	origin      string
	frameOrigin string
	logger      *slog.Logger

	host     *Context
	contexts registry.Registry[*Context]

	mu       sync.RWMutex
	elements []*Element
}

var (
	// Origin sets the host origin. Defaults to "https://host.example.com".
	Origin = opts.ForName[Document, string]("origin")
	// FrameOrigin sets the origin of frame contexts. Defaults to the host origin.
	FrameOrigin = opts.ForName[Document, string]("frameOrigin")
	// WithLogger injects the logger.
	WithLogger = opts.ForName[Document, *slog.Logger]("logger")
)

// New creates a document with a running host context.
func New(options ...opts.Option[Document]) *Document {
	d := &Document{
		origin:   "https://host.example.com",
		contexts: registry.New[*Context](),
	}
	if err := opts.Apply(d, options); err != nil {
		panic(err)
	}
	if d.frameOrigin == "" {
		d.frameOrigin = d.origin
	}
	d.logger = slogx.Named(d.logger, "bricbus.page")
	d.host = newContext(HostID, d.origin, nil, d.logger)
	d.contexts.Add(HostID, d.host)
	return d
}

// Host returns the host context.
func (d *Document) Host() *Context { return d.host }

// Window returns the host context as a window.
func (d *Document) Window() window.Window { return d.host }

// AddMessageListener listens on the host context.
func (d *Document) AddMessageListener(l window.Listener) func() {
	return d.host.AddMessageListener(l)
}

// AddFrame appends an iframe element with its own running context.
func (d *Document) AddFrame(id string, classes ...string) (*Element, error) {
	el, err := d.add(id, TagIFrame, classes)
	if err != nil {
		return nil, err
	}
	d.attach(el)
	return el, nil
}

// AddObject appends a legacy <object> element. It has no content window
// until ConvertObjects turns it into an iframe.
func (d *Document) AddObject(id string, classes ...string) (*Element, error) {
	return d.add(id, TagObject, classes)
}

func (d *Document) add(id, tag string, classes []string) (*Element, error) {
	if id == "" || id == HostID {
		return nil, fmt.Errorf("page: invalid element id %q", id)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if slices.ContainsFunc(d.elements, func(e *Element) bool { return e.id == id }) {
		return nil, fmt.Errorf("page: duplicate element id %q", id)
	}
	el := &Element{
		id:      id,
		tag:     tag,
		classes: slices.Clone(classes),
		style:   make(map[string]string),
	}
	d.elements = append(d.elements, el)
	return el, nil
}

func (d *Document) attach(el *Element) {
	ctx := newContext(el.id, d.frameOrigin, d.host, d.logger)
	el.mu.Lock()
	el.tag = TagIFrame
	el.content = ctx
	el.mu.Unlock()
	d.contexts.Add(el.id, ctx)
}

var objectSelector = selector.MustParse(TagObject)

// ConvertObjects replaces every <object> element with an iframe that hosts a
// fresh context. It returns how many elements were converted.
func (d *Document) ConvertObjects(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.RLock()
	var objects []*Element
	for _, el := range d.elements {
		if objectSelector.Match(el) {
			objects = append(objects, el)
		}
	}
	d.mu.RUnlock()

	for _, el := range objects {
		d.attach(el)
		d.logger.DebugContext(ctx, "converted object to iframe", slogx.Window(el.id))
	}
	return len(objects), nil
}

// QuerySelectorAll returns the elements matching sel in document order.
func (d *Document) QuerySelectorAll(sel string) ([]window.Element, error) {
	parsed, err := selector.Parse(sel)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []window.Element
	for _, el := range d.elements {
		if parsed.Match(el) {
			out = append(out, el)
		}
	}
	return out, nil
}

// Element looks up an element by id.
func (d *Document) Element(id string) (*Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, el := range d.elements {
		if el.id == id {
			return el, true
		}
	}
	return nil, false
}

// Elements returns every element in document order.
func (d *Document) Elements() []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.elements)
}

// Context looks up a running context by id. The host is HostID.
func (d *Document) Context(id string) (*Context, bool) {
	return d.contexts.Get(id)
}

// Remove detaches an element and closes its context. Posting to the removed
// context afterwards fails with window.ErrClosed.
func (d *Document) Remove(id string) bool {
	d.mu.Lock()
	idx := slices.IndexFunc(d.elements, func(e *Element) bool { return e.id == id })
	if idx < 0 {
		d.mu.Unlock()
		return false
	}
	el := d.elements[idx]
	d.elements = slices.Delete(d.elements, idx, idx+1)
	d.mu.Unlock()

	if ctx, ok := d.contexts.Del(id); ok {
		ctx.Close()
	}
	el.mu.Lock()
	el.content = nil
	el.mu.Unlock()
	return true
}

// Settle waits for in-flight traffic between the host and its frames to be
// processed. Every round drains the host and then each frame, which covers a
// publish travelling child to host to child.
func (d *Document) Settle(ctx context.Context) error {
	for range 3 {
		if err := d.host.Sync(ctx); err != nil {
			return err
		}
		for _, el := range d.Elements() {
			c := el.Context()
			if c == nil {
				continue
			}
			if err := c.Sync(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close stops every context.
func (d *Document) Close() {
	d.contexts.Each(func(_ string, c *Context) bool {
		c.Close()
		return true
	})
	d.contexts.Clear()
}
