package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/window"
	"github.com/casualjim/bricbus/wire"
	"github.com/fogfish/opts"
)

// Remote is the dispatcher that lives inside a child context. It publishes to
// its own subscribers first and then forwards the event to the broker in the
// parent context. Events relayed back by the broker are re-published locally.
type Remote struct {
	local  *Dispatcher
	self   window.Window
	parent window.Window
	inbox  window.EventTarget

	relayToBroker bool
	targetOrigin  string
	legacy        bool
	isolate       bool
	logger        *slog.Logger
	clock         func() time.Time

	relay atomic.Bool

	mu        sync.Mutex
	announced map[string]bool
	remove    func()
}

var (
	// RelayToBroker controls whether publishes and subscriptions are forwarded
	// to the parent context. Defaults to true.
	RelayToBroker = opts.ForName[Remote, bool]("relayToBroker")
	// TargetOrigin restricts which parent origin may receive outbound
	// envelopes. Defaults to "*".
	TargetOrigin = opts.ForName[Remote, string]("targetOrigin")
	// LegacyEnvelopes switches outbound publishes and resizes to the
	// messageType form understood by older hosts.
	LegacyEnvelopes = opts.ForName[Remote, bool]("legacy")
	// IsolateRemoteHandlers is IsolateHandlers for the embedded dispatcher.
	IsolateRemoteHandlers = opts.ForName[Remote, bool]("isolate")
	// WithRemoteLogger injects the logger.
	WithRemoteLogger = opts.ForName[Remote, *slog.Logger]("logger")
	// WithClock overrides the sendTime source.
	WithClock = opts.ForName[Remote, func() time.Time]("clock")
)

// NewRemote builds a dispatcher for the context whose own window is self and
// whose inbound events arrive on inbox. parent is the window hosting the broker.
func NewRemote(self, parent window.Window, inbox window.EventTarget, options ...opts.Option[Remote]) *Remote {
	r := &Remote{
		self:          self,
		parent:        parent,
		inbox:         inbox,
		relayToBroker: true,
		targetOrigin:  window.AnyOrigin,
		clock:         time.Now,
		announced:     make(map[string]bool),
	}
	if err := opts.Apply(r, options); err != nil {
		panic(err)
	}
	r.logger = slogx.Named(r.logger, "bricbus.remote").With(slogx.Window(self.ID()))
	r.local = New(IsolateHandlers(r.isolate), WithLogger(r.logger))
	r.relay.Store(r.relayToBroker)
	return r
}

// Local exposes the embedded dispatcher.
func (r *Remote) Local() *Dispatcher { return r.local }

// Relaying reports whether outbound forwarding is on.
func (r *Remote) Relaying() bool { return r.relay.Load() }

// EnableRelay turns forwarding on and announces every topic that already has
// local subscribers.
func (r *Remote) EnableRelay() {
	if r.relay.Swap(true) {
		return
	}
	for _, topic := range r.local.Topics() {
		r.announce(topic)
	}
}

// DisableRelay turns forwarding off. Subscriptions already announced to the
// broker stay in place until their last local handler is removed.
func (r *Remote) DisableRelay() {
	r.relay.Store(false)
}

// PublishLocal notifies local subscribers only.
func (r *Remote) PublishLocal(ctx context.Context, topic string, details any) {
	r.local.PublishLocal(ctx, topic, details)
}

// Publish notifies local subscribers and then forwards the event to the
// broker. Local delivery always happens, even when forwarding fails.
func (r *Remote) Publish(ctx context.Context, topic string, details any) error {
	r.local.PublishLocal(ctx, topic, details)
	if !r.relay.Load() {
		return nil
	}

	encode := wire.EncodePublish
	if r.legacy {
		encode = wire.EncodeLegacyPublish
	}
	data, err := encode(topic, details, r.clock())
	if err != nil {
		return fmt.Errorf("pubsub: encode publish for %q: %w", topic, err)
	}
	if err := r.post(data); err != nil {
		return fmt.Errorf("pubsub: forward publish for %q: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler locally. The first local subscription for a
// topic asks the broker to relay that topic to this context.
func (r *Remote) Subscribe(topic string, handler Handler) Subscription {
	sub := r.local.Subscribe(topic, handler)
	if r.relay.Load() {
		r.announce(topic)
	}
	return &remoteSubscription{Subscription: sub, owner: r}
}

// SubscribeFunc is Subscribe for plain functions.
func (r *Remote) SubscribeFunc(topic string, fn func(ctx context.Context, topic string, details any)) Subscription {
	return r.Subscribe(topic, HandlerFunc(fn))
}

// Unsubscribe removes one local registration of a comparable handler.
func (r *Remote) Unsubscribe(topic string, handler Handler) bool {
	if !r.local.Unsubscribe(topic, handler) {
		return false
	}
	r.withdraw(topic)
	return true
}

type remoteSubscription struct {
	Subscription
	owner *Remote
}

func (s *remoteSubscription) Unsubscribe() bool {
	if !s.Subscription.Unsubscribe() {
		return false
	}
	s.owner.withdraw(s.Topic())
	return true
}

func (r *Remote) announce(topic string) {
	r.mu.Lock()
	if r.announced[topic] {
		r.mu.Unlock()
		return
	}
	r.announced[topic] = true
	r.mu.Unlock()

	data, err := wire.EncodeSubscribe(topic)
	if err == nil {
		err = r.post(data)
	}
	if err != nil {
		// the next subscribe for this topic tries again
		r.mu.Lock()
		delete(r.announced, topic)
		r.mu.Unlock()
		r.logger.Warn("failed to announce subscription", slogx.Topic(topic), slogx.Error(err))
	}
}

func (r *Remote) withdraw(topic string) {
	if r.local.Count(topic) > 0 {
		return
	}
	r.mu.Lock()
	if !r.announced[topic] {
		r.mu.Unlock()
		return
	}
	delete(r.announced, topic)
	r.mu.Unlock()

	data, err := wire.EncodeUnsubscribe(topic)
	if err == nil {
		err = r.post(data)
	}
	if err != nil {
		r.logger.Warn("failed to withdraw subscription", slogx.Topic(topic), slogx.Error(err))
	}
}

// Resize asks the host to size this context's frame element.
func (r *Remote) Resize(width, height float64) error {
	size := wire.Size{Width: width, Height: height}
	encode := wire.EncodeResize
	if r.legacy {
		encode = wire.EncodeLegacyResize
	}
	data, err := encode(size)
	if err != nil {
		return fmt.Errorf("pubsub: encode resize: %w", err)
	}
	if err := r.post(data); err != nil {
		return fmt.Errorf("pubsub: resize to %s: %w", size, err)
	}
	return nil
}

func (r *Remote) post(data []byte) error {
	if r.parent == nil {
		return window.ErrClosed
	}
	return r.parent.PostMessage(data, r.targetOrigin, r.self)
}

// ListenBroker registers the single inbound listener that re-publishes relayed
// events locally. Calling it again is a no-op. ctx is handed to handlers.
func (r *Remote) ListenBroker(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.remove != nil {
		return
	}
	r.remove = r.inbox.AddMessageListener(func(ev window.MessageEvent) {
		r.onMessage(ctx, ev)
	})
}

func (r *Remote) onMessage(ctx context.Context, ev window.MessageEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "relayed event handler panicked",
				slog.String("source", ev.SourceID()),
				slogx.Error(fmt.Errorf("%v", rec)))
		}
	}()

	msg, err := wire.Parse(ev.Data)
	if err != nil {
		r.logger.WarnContext(ctx, "dropping malformed envelope",
			slog.String("source", ev.SourceID()),
			slogx.ByteString("data", ev.Data),
			slogx.Error(err))
		return
	}
	if !msg.IsPublish() {
		r.logger.DebugContext(ctx, "ignoring non-event envelope",
			slogx.Stringer("format", msg.Format),
			slog.String("channel", msg.RawChannel),
			slog.String("method", msg.RawMethod))
		return
	}
	details, err := msg.EventData()
	if err != nil {
		r.logger.WarnContext(ctx, "dropping envelope with undecodable event data",
			slogx.Topic(msg.Topic), slogx.Error(err))
		return
	}
	r.local.PublishLocal(ctx, msg.Topic, details)
}

// Close removes the inbound listener. Local subscriptions stay intact.
func (r *Remote) Close() {
	r.mu.Lock()
	remove := r.remove
	r.remove = nil
	r.mu.Unlock()
	if remove != nil {
		remove()
	}
}
