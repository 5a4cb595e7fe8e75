package broker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/pubsub"
	"github.com/casualjim/bricbus/window"
	"github.com/casualjim/bricbus/wire"
	"github.com/fogfish/opts"
)

type counters struct {
	messages atomic.Int64
	resizes  atomic.Int64
	relayed  atomic.Int64
	dropped  atomic.Int64
	unknown  atomic.Int64
	rejected atomic.Int64
}

// Broker is the host side coordinator. It tracks which frames subscribed to
// which topics and relays every publish to the subscribed frames other than
// the publisher. Resize requests on the view channel restyle the frame
// element of the requesting context.
type Broker struct {
	doc          Document
	selector     string
	targetOrigin string
	converter    Converter
	isolate      bool
	logger       *slog.Logger

	frames *FrameRegistry
	router *Router
	stats  counters

	mu     sync.Mutex
	state  State
	pubSub *pubsub.Dispatcher
	remove func()
}

var (
	// Selector picks the frame elements to manage. Defaults to DefaultSelector.
	Selector = opts.ForName[Broker, string]("selector")
	// TargetOrigin restricts relayed posts to frames of that origin.
	// Defaults to "*".
	TargetOrigin = opts.ForName[Broker, string]("targetOrigin")
	// WithConverter sets the object to iframe converter run by Initialize.
	// When unset, the document is used if it implements Converter.
	WithConverter = opts.ForName[Broker, Converter]("converter")
	// IsolateRelays keeps one failing relay from stopping the others.
	IsolateRelays = opts.ForName[Broker, bool]("isolate")
	// WithLogger injects the logger.
	WithLogger = opts.ForName[Broker, *slog.Logger]("logger")
)

// New creates an uninitialized broker for doc.
func New(doc Document, options ...opts.Option[Broker]) *Broker {
	b := &Broker{
		doc:          doc,
		selector:     DefaultSelector,
		targetOrigin: window.AnyOrigin,
	}
	if err := opts.Apply(b, options); err != nil {
		panic(err)
	}
	if b.converter == nil {
		if c, ok := doc.(Converter); ok {
			b.converter = c
		}
	}
	b.logger = slogx.Named(b.logger, "bricbus.broker")
	b.frames = NewFrameRegistry(doc, b.logger)
	b.pubSub = pubsub.New(pubsub.IsolateHandlers(b.isolate), pubsub.WithLogger(b.logger))
	b.router = NewRouter(messageChannel{b}, viewChannel{b}, b.logger)
	b.router.stats = &b.stats
	return b
}

// Initialize attaches the inbound listener, converts legacy object elements
// and registers the frames matching the selector. The listener goes in first
// so that nothing a converted frame posts during conversion is missed.
func (b *Broker) Initialize(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case StateInitialized:
		b.mu.Unlock()
		return ErrAlreadyInitialized
	case StateDisposed:
		b.mu.Unlock()
		return ErrDisposed
	case StateUninitialized:
	}
	b.state = StateInitialized
	b.remove = b.doc.AddMessageListener(b.router.Listener(ctx))
	b.mu.Unlock()

	if b.converter != nil {
		n, err := b.converter.ConvertObjects(ctx)
		if err != nil {
			b.logger.WarnContext(ctx, "object conversion failed", slogx.Error(err))
		} else if n > 0 {
			b.logger.DebugContext(ctx, "converted object elements", slog.Int("count", n))
		}
	}

	n, err := b.frames.CacheFrames(b.selector)
	if err != nil {
		return err
	}
	b.logger.InfoContext(ctx, "broker initialized",
		slog.String("selector", b.selector), slog.Int("frames", n))
	return nil
}

// Rescan registers frames added to the document since the last scan.
func (b *Broker) Rescan() (int, error) {
	return b.frames.CacheFrames(b.selector)
}

// State returns the lifecycle state.
func (b *Broker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Frames exposes the frame registry.
func (b *Broker) Frames() *FrameRegistry { return b.frames }

func (b *Broker) index() *pubsub.Dispatcher {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pubSub
}

// Subscribe relays topic to the frame hosting w. It reports false, changing
// nothing, when w is not a managed frame.
func (b *Broker) Subscribe(topic string, w window.Window) bool {
	entry, ok := b.frames.Entry(w)
	if !ok {
		b.stats.rejected.Add(1)
		b.logger.Debug("subscribe from unknown window", slogx.Topic(topic), slogx.Window(windowID(w)))
		return false
	}
	ps := b.index()
	if ps == nil {
		return false
	}
	handler := entry.relayHandler(func() *relay {
		return &relay{
			frame:        entry.Window,
			host:         b.doc.Window(),
			targetOrigin: b.targetOrigin,
			stats:        &b.stats,
			logger:       b.logger,
		}
	})
	ps.Subscribe(topic, handler)
	return true
}

// Unsubscribe removes one relay registration of w's frame from topic. It
// reports false when w is unknown, has never subscribed, or was not
// subscribed to topic.
func (b *Broker) Unsubscribe(topic string, w window.Window) bool {
	entry, ok := b.frames.Entry(w)
	if !ok {
		b.stats.rejected.Add(1)
		b.logger.Debug("unsubscribe from unknown window", slogx.Topic(topic), slogx.Window(windowID(w)))
		return false
	}
	handler := entry.relayHandler(nil)
	if handler == nil {
		return false
	}
	ps := b.index()
	if ps == nil {
		return false
	}
	return ps.Unsubscribe(topic, handler)
}

// Publish relays ev to every frame subscribed to topic except its source.
func (b *Broker) Publish(ctx context.Context, topic string, ev window.MessageEvent) {
	if ps := b.index(); ps != nil {
		ps.PublishLocal(ctx, topic, ev)
	}
}

// Subscribers returns how many relay registrations topic has.
func (b *Broker) Subscribers(topic string) int {
	ps := b.index()
	if ps == nil {
		return 0
	}
	return ps.Count(topic)
}

// Topics lists topics with at least one subscribed frame, oldest first.
func (b *Broker) Topics() []string {
	ps := b.index()
	if ps == nil {
		return nil
	}
	return ps.Topics()
}

// Detach stops managing the frame hosting w and drops all its subscriptions.
func (b *Broker) Detach(w window.Window) bool {
	entry, ok := b.frames.Forget(w)
	if !ok {
		return false
	}
	if handler := entry.relayHandler(nil); handler != nil {
		if ps := b.index(); ps != nil {
			n := ps.RemoveHandler(handler)
			b.logger.Debug("frame detached", slogx.Window(w.ID()), slog.Int("subscriptions", n))
		}
	}
	return true
}

// Dispose removes the listener and forgets every frame and subscription.
// It is safe to call more than once.
func (b *Broker) Dispose() {
	b.mu.Lock()
	if b.state == StateDisposed {
		b.mu.Unlock()
		return
	}
	b.state = StateDisposed
	remove := b.remove
	b.remove = nil
	ps := b.pubSub
	b.pubSub = nil
	b.mu.Unlock()

	if remove != nil {
		remove()
	}
	if ps != nil {
		ps.Clear()
	}
	b.frames.Dispose()
}

// Stats returns the current counters.
func (b *Broker) Stats() Stats {
	s := Stats{
		Frames:   b.frames.Len(),
		Messages: b.stats.messages.Load(),
		Resizes:  b.stats.resizes.Load(),
		Relayed:  b.stats.relayed.Load(),
		Dropped:  b.stats.dropped.Load(),
		Unknown:  b.stats.unknown.Load(),
		Rejected: b.stats.rejected.Load(),
	}
	if ps := b.index(); ps != nil {
		s.Topics = len(ps.Topics())
	}
	return s
}

func windowID(w window.Window) string {
	if w == nil {
		return ""
	}
	return w.ID()
}

type messageChannel struct{ b *Broker }

func (m messageChannel) OnPublish(ctx context.Context, ev window.MessageEvent, msg wire.Message) {
	m.b.stats.messages.Add(1)
	m.b.Publish(ctx, msg.Topic, ev)
}

func (m messageChannel) OnSubscribe(_ context.Context, ev window.MessageEvent, msg wire.Message) {
	m.b.Subscribe(msg.Topic, ev.Source)
}

func (m messageChannel) OnUnsubscribe(_ context.Context, ev window.MessageEvent, msg wire.Message) {
	m.b.Unsubscribe(msg.Topic, ev.Source)
}

type viewChannel struct{ b *Broker }

func (v viewChannel) OnSet(ctx context.Context, ev window.MessageEvent, msg wire.Message) {
	v.b.stats.resizes.Add(1)
	if !v.b.frames.Resize(ev.Source, msg.Size) {
		v.b.logger.DebugContext(ctx, "resize from unknown window", slogx.Window(ev.SourceID()))
	}
}
