package page

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/window"
)

// Context is an in-memory browsing context. Everything it runs (message
// listeners and tasks queued with Do) runs on its own goroutine, one at a time,
// in the order it was queued.
type Context struct {
	id     string
	origin string
	parent *Context
	logger *slog.Logger

	mu        sync.Mutex
	queue     []func()
	closed    bool
	listeners []*listener

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

type listener struct {
	fn window.Listener
}

var _ window.Window = (*Context)(nil)
var _ window.EventTarget = (*Context)(nil)

func newContext(id, origin string, parent *Context, logger *slog.Logger) *Context {
	c := &Context{
		id:      id,
		origin:  origin,
		parent:  parent,
		logger:  logger.With(slogx.Window(id)),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *Context) ID() string     { return c.id }
func (c *Context) Origin() string { return c.origin }

// Parent returns the embedding context, nil for the host.
func (c *Context) Parent() *Context { return c.parent }

// ParentWindow is Parent as a window.Window. It is a real nil for the host.
func (c *Context) ParentWindow() window.Window {
	if c.parent == nil {
		return nil
	}
	return c.parent
}

func (c *Context) loop() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}
		for {
			task, ok := c.next()
			if !ok {
				break
			}
			c.run(task)
		}
	}
}

func (c *Context) next() (func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.queue) == 0 {
		return nil, false
	}
	task := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return task, true
}

func (c *Context) run(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("task panicked", slogx.Error(fmt.Errorf("%v", rec)))
		}
	}()
	task()
}

func (c *Context) enqueue(task func()) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return window.ErrClosed
	}
	c.queue = append(c.queue, task)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// PostMessage queues data for this context's listeners. The data is copied.
func (c *Context) PostMessage(data []byte, targetOrigin string, source window.Window) error {
	if !window.OriginAllowed(c.origin, targetOrigin) {
		return fmt.Errorf("post to %s (%s) with target %s: %w", c.id, c.origin, targetOrigin, window.ErrOriginMismatch)
	}
	ev := window.MessageEvent{
		Source: source,
		Data:   slices.Clone(data),
	}
	if source != nil {
		ev.Origin = source.Origin()
	}
	return c.enqueue(func() { c.dispatch(ev) })
}

func (c *Context) dispatch(ev window.MessageEvent) {
	c.mu.Lock()
	ls := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, l := range ls {
		c.invoke(l, ev)
	}
}

func (c *Context) invoke(l *listener, ev window.MessageEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("message listener panicked",
				slog.String("source", ev.SourceID()),
				slogx.Error(fmt.Errorf("%v", rec)))
		}
	}()
	l.fn(ev)
}

// AddMessageListener registers l for messages delivered to this context.
func (c *Context) AddMessageListener(l window.Listener) func() {
	entry := &listener{fn: l}
	c.mu.Lock()
	c.listeners = append(c.listeners, entry)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.listeners = slices.DeleteFunc(c.listeners, func(e *listener) bool { return e == entry })
			c.mu.Unlock()
		})
	}
}

// Listeners returns the number of registered message listeners.
func (c *Context) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Do queues fn on the context's event loop.
func (c *Context) Do(fn func()) error {
	return c.enqueue(fn)
}

// Sync waits until everything queued before the call has run.
func (c *Context) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if err := c.enqueue(func() { close(reached) }); err != nil {
		return err
	}
	select {
	case <-reached:
		return nil
	case <-c.stopped:
		return window.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the event loop. Queued work that has not started is dropped.
// It must not be called from the context's own event loop.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.queue = nil
	c.mu.Unlock()

	close(c.done)
	<-c.stopped
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
