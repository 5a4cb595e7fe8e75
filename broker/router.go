package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/window"
	"github.com/casualjim/bricbus/wire"
)

// MessageChannel handles the methods of the message channel.
type MessageChannel interface {
	OnPublish(ctx context.Context, ev window.MessageEvent, msg wire.Message)
	OnSubscribe(ctx context.Context, ev window.MessageEvent, msg wire.Message)
	OnUnsubscribe(ctx context.Context, ev window.MessageEvent, msg wire.Message)
}

// ViewChannel handles the methods of the view channel.
type ViewChannel interface {
	OnSet(ctx context.Context, ev window.MessageEvent, msg wire.Message)
}

// Router classifies inbound envelopes by channel and method and hands them
// to the matching handler. It is the only entry point for child traffic.
type Router struct {
	message MessageChannel
	view    ViewChannel
	stats   *counters
	logger  *slog.Logger
}

// NewRouter wires the channel handlers.
func NewRouter(message MessageChannel, view ViewChannel, logger *slog.Logger) *Router {
	return &Router{
		message: message,
		view:    view,
		stats:   &counters{},
		logger:  slogx.Named(logger, "bricbus.router"),
	}
}

// Route parses one inbound event and dispatches it. Parse failures are
// returned; unknown channels and methods are logged and reported as
// handled=false.
func (r *Router) Route(ctx context.Context, ev window.MessageEvent) (handled bool, err error) {
	msg, err := wire.Parse(ev.Data)
	if err != nil {
		r.stats.dropped.Add(1)
		return false, err
	}

	switch msg.Channel {
	case wire.ChannelMessage:
		switch msg.Method {
		case wire.MethodPublish:
			r.message.OnPublish(ctx, ev, msg)
			return true, nil
		case wire.MethodSubscribe:
			r.message.OnSubscribe(ctx, ev, msg)
			return true, nil
		case wire.MethodUnsubscribe:
			r.message.OnUnsubscribe(ctx, ev, msg)
			return true, nil
		case wire.MethodUnknown, wire.MethodSet:
		}
	case wire.ChannelView:
		switch msg.Method {
		case wire.MethodSet:
			r.view.OnSet(ctx, ev, msg)
			return true, nil
		case wire.MethodUnknown, wire.MethodPublish, wire.MethodSubscribe, wire.MethodUnsubscribe:
		}
	case wire.ChannelUnknown:
	}

	r.stats.unknown.Add(1)
	r.logger.WarnContext(ctx, "unknown channel or method",
		slog.String("channel", msg.RawChannel),
		slog.String("method", msg.RawMethod),
		slog.String("source", ev.SourceID()))
	return false, nil
}

// Listener returns the window listener that feeds Route. It never lets a
// panic escape, so the host keeps its listener whatever a handler does.
func (r *Router) Listener(ctx context.Context) window.Listener {
	return func(ev window.MessageEvent) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.ErrorContext(ctx, "message routing panicked",
					slog.String("source", ev.SourceID()),
					slogx.Error(fmt.Errorf("%v", rec)))
			}
		}()
		if _, err := r.Route(ctx, ev); err != nil {
			r.logger.WarnContext(ctx, "dropping malformed envelope",
				slog.String("source", ev.SourceID()),
				slogx.ByteString("data", ev.Data),
				slogx.Error(err))
		}
	}
}
