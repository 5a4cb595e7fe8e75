package natsx

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/casualjim/bricbus/internal/registry"
	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/window"
	"github.com/fogfish/opts"
	"github.com/nats-io/nats.go"
)

// Window is a handle on a context reachable over NATS. Posting publishes a
// frame on the context's subject.
type Window struct {
	conn    *nats.Conn
	id      string
	origin  string
	subject string
}

var _ window.Window = (*Window)(nil)

// NewWindow returns a handle on the context id listening under prefix.
func NewWindow(conn *nats.Conn, prefix, id, origin string) *Window {
	return &Window{conn: conn, id: id, origin: origin, subject: Subject(prefix, id)}
}

func (w *Window) ID() string     { return w.id }
func (w *Window) Origin() string { return w.origin }

// Subject is the subject this window's endpoint listens on.
func (w *Window) Subject() string { return w.subject }

func (w *Window) PostMessage(data []byte, targetOrigin string, source window.Window) error {
	if !window.OriginAllowed(w.origin, targetOrigin) {
		return fmt.Errorf("post to %s (%s) with target %s: %w", w.id, w.origin, targetOrigin, window.ErrOriginMismatch)
	}
	f := frame{targetOrigin: targetOrigin, data: data}
	if source != nil {
		f.sourceID, f.sourceOrigin = source.ID(), source.Origin()
	}
	payload, err := encodeFrame(f)
	if err != nil {
		return err
	}
	if err := w.conn.Publish(w.subject, payload); err != nil {
		if w.conn.IsClosed() {
			return fmt.Errorf("%w: %w", window.ErrClosed, err)
		}
		return err
	}
	return nil
}

// Endpoint is a context's presence on NATS: its own Window plus the inbound
// side. NATS delivers one subscription's messages sequentially, which gives
// listeners the same one-at-a-time ordering as a page event loop.
type Endpoint struct {
	*Window

	prefix string
	logger *slog.Logger

	peers registry.Registry[*Window]
	sub   *nats.Subscription

	mu        sync.Mutex
	listeners []*listener
}

type listener struct {
	fn window.Listener
}

var _ window.EventTarget = (*Endpoint)(nil)

var (
	// Prefix sets the subject prefix. Defaults to DefaultPrefix.
	Prefix = opts.ForName[Endpoint, string]("prefix")
	// WithLogger injects the logger.
	WithLogger = opts.ForName[Endpoint, *slog.Logger]("logger")
)

// Listen subscribes the context id to its subject.
func Listen(conn *nats.Conn, id, origin string, options ...opts.Option[Endpoint]) (*Endpoint, error) {
	e := &Endpoint{
		prefix: DefaultPrefix,
		peers:  registry.New[*Window](),
	}
	if err := opts.Apply(e, options); err != nil {
		return nil, err
	}
	e.logger = slogx.Named(e.logger, "bricbus.natsx").With(slogx.Window(id))
	e.Window = NewWindow(conn, e.prefix, id, origin)

	sub, err := conn.Subscribe(e.subject, e.onMsg)
	if err != nil {
		return nil, fmt.Errorf("natsx: subscribe %s: %w", e.subject, err)
	}
	e.sub = sub
	return e, nil
}

// Peer returns the handle on another context under the same prefix.
func (e *Endpoint) Peer(id, origin string) *Window {
	if id == e.id {
		return e.Window
	}
	w, _ := e.peers.GetOrAdd(id, func() *Window {
		return NewWindow(e.conn, e.prefix, id, origin)
	})
	return w
}

func (e *Endpoint) onMsg(msg *nats.Msg) {
	f, err := decodeFrame(msg.Data)
	if err != nil {
		e.logger.Warn("dropping invalid frame", slog.String("subject", msg.Subject), slogx.Error(err))
		return
	}
	if !window.OriginAllowed(e.origin, f.targetOrigin) {
		e.logger.Debug("dropping frame for another origin", slog.String("targetOrigin", f.targetOrigin))
		return
	}

	ev := window.MessageEvent{Data: f.data, Origin: f.sourceOrigin}
	if f.sourceID != "" {
		ev.Source = e.Peer(f.sourceID, f.sourceOrigin)
	}

	e.mu.Lock()
	ls := slices.Clone(e.listeners)
	e.mu.Unlock()
	for _, l := range ls {
		e.invoke(l, ev)
	}
}

func (e *Endpoint) invoke(l *listener, ev window.MessageEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("message listener panicked",
				slog.String("source", ev.SourceID()),
				slogx.Error(fmt.Errorf("%v", rec)))
		}
	}()
	l.fn(ev)
}

func (e *Endpoint) AddMessageListener(l window.Listener) func() {
	entry := &listener{fn: l}
	e.mu.Lock()
	e.listeners = append(e.listeners, entry)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			e.listeners = slices.DeleteFunc(e.listeners, func(x *listener) bool { return x == entry })
			e.mu.Unlock()
		})
	}
}

// Close unsubscribes from the endpoint's subject.
func (e *Endpoint) Close() error {
	if e.sub == nil {
		return nil
	}
	if err := e.sub.Unsubscribe(); err != nil && !e.conn.IsClosed() {
		return err
	}
	return nil
}
