package page

import (
	"slices"
	"sync"

	"github.com/casualjim/bricbus/window"
)

// Element is a frame element: an iframe hosting a context, or a legacy
// object waiting to be converted.
type Element struct {
	id      string
	classes []string

	mu      sync.RWMutex
	tag     string
	style   map[string]string
	content *Context
}

var _ window.Element = (*Element)(nil)

func (e *Element) ID() string { return e.id }

func (e *Element) Tag() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tag
}

func (e *Element) HasClass(name string) bool {
	return slices.Contains(e.classes, name)
}

func (e *Element) Classes() []string {
	return slices.Clone(e.classes)
}

// Context returns the hosted context, nil for objects and removed elements.
func (e *Element) Context() *Context {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.content
}

// ContentWindow returns the hosted context as a window, or nil.
func (e *Element) ContentWindow() window.Window {
	if c := e.Context(); c != nil {
		return c
	}
	return nil
}

func (e *Element) SetStyle(property, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.style[property] = value
}

func (e *Element) Style(property string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.style[property]
}
