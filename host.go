package bricbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/casualjim/bricbus/broker"
	"github.com/casualjim/bricbus/internal/registry"
	"github.com/casualjim/bricbus/page"
	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/pubsub"
	"github.com/fogfish/opts"
)

// Environment is what a demo or scenario needs from a running page: the
// broker, a dispatcher per frame, and a way to wait for in-flight traffic.
type Environment interface {
	Broker() *broker.Broker
	Remote(ctx context.Context, frameID string) (*pubsub.Remote, error)
	Settle(ctx context.Context) error
	Close()
}

// Host is an in-memory page with a broker in the host context and a remote
// dispatcher per frame.
type Host struct {
	origin       string
	frameOrigin  string
	selector     string
	targetOrigin string
	isolate      bool
	legacy       bool
	logger       *slog.Logger

	doc     *page.Document
	broker  *broker.Broker
	remotes registry.Registry[*pubsub.Remote]
}

var _ Environment = (*Host)(nil)

var (
	// Origin is the host document origin.
	Origin = opts.ForName[Host, string]("origin")
	// FrameOrigin is the origin of every frame context.
	FrameOrigin = opts.ForName[Host, string]("frameOrigin")
	// Selector picks the frames the broker manages.
	Selector = opts.ForName[Host, string]("selector")
	// TargetOrigin is used in both directions: for relays from the broker and
	// for posts from the frames.
	TargetOrigin = opts.ForName[Host, string]("targetOrigin")
	// IsolateHandlers recovers panicking handlers on both sides.
	IsolateHandlers = opts.ForName[Host, bool]("isolate")
	// LegacyEnvelopes makes frame dispatchers post the legacy envelope shape.
	LegacyEnvelopes = opts.ForName[Host, bool]("legacy")
	// WithLogger injects the logger.
	WithLogger = opts.ForName[Host, *slog.Logger]("logger")
)

// NewHost creates the page and an uninitialized broker.
func NewHost(options ...opts.Option[Host]) *Host {
	h := configure(options)
	h.remotes = registry.New[*pubsub.Remote]()
	h.doc = page.New(
		page.Origin(h.origin),
		page.FrameOrigin(h.frameOrigin),
		page.WithLogger(h.logger),
	)
	h.broker = broker.New(h.doc, h.brokerOptions()...)
	return h
}

func (h *Host) Document() *page.Document { return h.doc }
func (h *Host) Broker() *broker.Broker   { return h.broker }

// AddFrame adds an iframe. Without classes it gets the "bric" class.
func (h *Host) AddFrame(id string, classes ...string) (*page.Element, error) {
	if len(classes) == 0 {
		classes = []string{"bric"}
	}
	return h.doc.AddFrame(id, classes...)
}

// AddObject adds a legacy object element. Without classes it gets the "bric"
// class.
func (h *Host) AddObject(id string, classes ...string) (*page.Element, error) {
	if len(classes) == 0 {
		classes = []string{"bric"}
	}
	return h.doc.AddObject(id, classes...)
}

func configure(options []opts.Option[Host]) *Host {
	h := &Host{
		origin:       "https://host.example.com",
		selector:     broker.DefaultSelector,
		targetOrigin: "*",
	}
	if err := opts.Apply(h, options); err != nil {
		panic(err)
	}
	if h.frameOrigin == "" {
		h.frameOrigin = h.origin
	}
	h.logger = slogx.Named(h.logger, "bricbus.host")
	return h
}

func (h *Host) remoteOptions() []opts.Option[pubsub.Remote] {
	return []opts.Option[pubsub.Remote]{
		pubsub.TargetOrigin(h.targetOrigin),
		pubsub.LegacyEnvelopes(h.legacy),
		pubsub.IsolateRemoteHandlers(h.isolate),
		pubsub.WithRemoteLogger(h.logger),
	}
}

func (h *Host) brokerOptions() []opts.Option[broker.Broker] {
	return []opts.Option[broker.Broker]{
		broker.Selector(h.selector),
		broker.TargetOrigin(h.targetOrigin),
		broker.IsolateRelays(h.isolate),
		broker.WithLogger(h.logger),
	}
}

// Start initializes the broker.
func (h *Host) Start(ctx context.Context) error {
	return h.broker.Initialize(ctx)
}

// Remote returns the dispatcher of frame id, creating it and attaching its
// broker listener on first use.
func (h *Host) Remote(ctx context.Context, frameID string) (*pubsub.Remote, error) {
	if r, ok := h.remotes.Get(frameID); ok {
		return r, nil
	}
	el, ok := h.doc.Element(frameID)
	if !ok {
		return nil, fmt.Errorf("bricbus: no frame %q", frameID)
	}
	c := el.Context()
	if c == nil {
		return nil, fmt.Errorf("bricbus: frame %q has no context", frameID)
	}

	r, loaded := h.remotes.GetOrAdd(frameID, func() *pubsub.Remote {
		return pubsub.NewRemote(c, c.ParentWindow(), c, h.remoteOptions()...)
	})
	if !loaded {
		r.ListenBroker(ctx)
	}
	return r, nil
}

// Settle waits until traffic queued so far has been handled.
func (h *Host) Settle(ctx context.Context) error {
	return h.doc.Settle(ctx)
}

// Close disposes the broker and stops every context.
func (h *Host) Close() {
	h.remotes.Each(func(_ string, r *pubsub.Remote) bool {
		r.Close()
		return true
	})
	h.remotes.Clear()
	h.broker.Dispose()
	h.doc.Close()
}
