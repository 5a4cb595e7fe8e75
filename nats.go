package bricbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casualjim/bricbus/broker"
	"github.com/casualjim/bricbus/internal/registry"
	"github.com/casualjim/bricbus/pkg/natsx"
	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/pubsub"
	"github.com/fogfish/opts"
	"github.com/nats-io/nats.go"
)

// NATSHost runs the host and its frames as NATS endpoints. Frames still run
// in this process, but every post crosses the NATS server.
type NATSHost struct {
	cfg    *Host
	conn   *nats.Conn
	prefix string

	doc     *natsx.Document
	broker  *broker.Broker
	frames  registry.Registry[*natsx.Endpoint]
	remotes registry.Registry[*pubsub.Remote]
}

var _ Environment = (*NATSHost)(nil)

// NewNATSHost listens for the host under prefix. It accepts the Host options.
func NewNATSHost(conn *nats.Conn, prefix string, options ...opts.Option[Host]) (*NATSHost, error) {
	cfg := configure(options)
	if prefix == "" {
		prefix = natsx.DefaultPrefix
	}
	ep, err := natsx.Listen(conn, "host", cfg.origin, natsx.Prefix(prefix), natsx.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}
	doc := natsx.NewDocument(ep)
	return &NATSHost{
		cfg:     cfg,
		conn:    conn,
		prefix:  prefix,
		doc:     doc,
		broker:  broker.New(doc, cfg.brokerOptions()...),
		frames:  registry.New[*natsx.Endpoint](),
		remotes: registry.New[*pubsub.Remote](),
	}, nil
}

func (h *NATSHost) Broker() *broker.Broker    { return h.broker }
func (h *NATSHost) Document() *natsx.Document { return h.doc }

// AddFrame starts an endpoint for frame id and adds its element to the host
// document. Without classes it gets the "bric" class.
func (h *NATSHost) AddFrame(id string, classes ...string) error {
	if len(classes) == 0 {
		classes = []string{"bric"}
	}
	if _, ok := h.frames.Get(id); ok {
		return fmt.Errorf("bricbus: duplicate frame %q", id)
	}
	ep, err := natsx.Listen(h.conn, id, h.cfg.frameOrigin, natsx.Prefix(h.prefix), natsx.WithLogger(h.cfg.logger))
	if err != nil {
		return err
	}
	h.frames.Add(id, ep)
	h.doc.AddFrame(id, h.cfg.frameOrigin, classes...)
	return nil
}

// Start initializes the broker.
func (h *NATSHost) Start(ctx context.Context) error {
	return h.broker.Initialize(ctx)
}

// Remote returns the dispatcher of frame id.
func (h *NATSHost) Remote(ctx context.Context, frameID string) (*pubsub.Remote, error) {
	if r, ok := h.remotes.Get(frameID); ok {
		return r, nil
	}
	ep, ok := h.frames.Get(frameID)
	if !ok {
		return nil, fmt.Errorf("bricbus: no frame %q", frameID)
	}
	r, loaded := h.remotes.GetOrAdd(frameID, func() *pubsub.Remote {
		parent := ep.Peer("host", h.cfg.origin)
		return pubsub.NewRemote(ep, parent, ep, h.cfg.remoteOptions()...)
	})
	if !loaded {
		r.ListenBroker(ctx)
	}
	return r, nil
}

// settleInterval is how long broker counters must stay unchanged before
// traffic is considered settled.
const settleInterval = 25 * time.Millisecond

// Settle flushes the connection and waits until the broker's counters stop
// moving, then gives the last relays one more interval to land.
func (h *NATSHost) Settle(ctx context.Context) error {
	prev := h.broker.Stats()
	for {
		if err := h.flush(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settleInterval):
		}
		cur := h.broker.Stats()
		if cur == prev {
			break
		}
		prev = cur
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settleInterval):
		return nil
	}
}

func (h *NATSHost) flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return h.conn.FlushWithContext(ctx)
}

// Close disposes the broker and unsubscribes every endpoint.
func (h *NATSHost) Close() {
	h.remotes.Each(func(_ string, r *pubsub.Remote) bool {
		r.Close()
		return true
	})
	h.broker.Dispose()

	var errs []error
	h.frames.Each(func(_ string, ep *natsx.Endpoint) bool {
		errs = append(errs, ep.Close())
		return true
	})
	errs = append(errs, h.doc.Close())
	if err := errors.Join(errs...); err != nil {
		h.cfg.logger.Warn("closing endpoints", slogx.Error(err))
	}
}
