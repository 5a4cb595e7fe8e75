package broker

import (
	"context"
	"strings"
	"sync"

	"github.com/casualjim/bricbus/window"
)

type post struct {
	data         []byte
	targetOrigin string
	source       window.Window
}

type recordingWindow struct {
	id     string
	origin string

	mu    sync.Mutex
	posts []post
}

func (w *recordingWindow) ID() string     { return w.id }
func (w *recordingWindow) Origin() string { return w.origin }

func (w *recordingWindow) PostMessage(data []byte, targetOrigin string, source window.Window) error {
	if !window.OriginAllowed(w.origin, targetOrigin) {
		return window.ErrOriginMismatch
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posts = append(w.posts, post{data: append([]byte(nil), data...), targetOrigin: targetOrigin, source: source})
	return nil
}

func (w *recordingWindow) Posts() []post {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]post(nil), w.posts...)
}

type fakeElement struct {
	class string
	win   window.Window

	mu    sync.Mutex
	style map[string]string
}

func (e *fakeElement) ContentWindow() window.Window { return e.win }

func (e *fakeElement) SetStyle(property, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.style == nil {
		e.style = make(map[string]string)
	}
	e.style[property] = value
}

func (e *fakeElement) Style(property string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.style[property]
}

type fakeDocument struct {
	host *recordingWindow

	mu        sync.Mutex
	elements  []*fakeElement
	listeners map[int]window.Listener
	next      int
	converted int
	calls     []string
}

func newFakeDocument() *fakeDocument {
	return &fakeDocument{
		host:      &recordingWindow{id: "host", origin: "https://host.example.com"},
		listeners: make(map[int]window.Listener),
	}
}

func (d *fakeDocument) Window() window.Window { return d.host }

func (d *fakeDocument) addFrame(id, class string) *recordingWindow {
	w := &recordingWindow{id: id, origin: "https://bric.example.com"}
	d.mu.Lock()
	d.elements = append(d.elements, &fakeElement{class: class, win: w})
	d.mu.Unlock()
	return w
}

func (d *fakeDocument) element(w window.Window) *fakeElement {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, el := range d.elements {
		if el.win != nil && el.win.ID() == w.ID() {
			return el
		}
	}
	return nil
}

func (d *fakeDocument) QuerySelectorAll(selector string) ([]window.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "query")
	class := strings.TrimPrefix(selector, ".")
	var out []window.Element
	for _, el := range d.elements {
		if el.class == class {
			out = append(out, el)
		}
	}
	return out, nil
}

func (d *fakeDocument) ConvertObjects(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "convert")
	d.converted++
	return 0, nil
}

func (d *fakeDocument) AddMessageListener(l window.Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "listen")
	id := d.next
	d.next++
	d.listeners[id] = l
	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *fakeDocument) listenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// deliver dispatches data to the host listeners as if source had posted it.
func (d *fakeDocument) deliver(source window.Window, data []byte) {
	d.mu.Lock()
	ls := make([]window.Listener, 0, len(d.listeners))
	for _, l := range d.listeners {
		ls = append(ls, l)
	}
	d.mu.Unlock()
	ev := window.MessageEvent{Source: source, Data: data}
	if source != nil {
		ev.Origin = source.Origin()
	}
	for _, l := range ls {
		l(ev)
	}
}
