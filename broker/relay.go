package broker

import (
	"context"
	"log/slog"

	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/window"
)

// relay forwards published envelopes to one frame. It is created on the
// frame's first subscribe and shared by all of that frame's topics, which is
// what lets Unsubscribe find it again in the topic index.
type relay struct {
	frame        window.Window
	host         window.Window
	targetOrigin string
	stats        *counters
	logger       *slog.Logger
}

// HandleEvent receives the inbound publish event. Events that came from the
// frame itself are skipped; anything else is posted to the frame unchanged.
func (r *relay) HandleEvent(ctx context.Context, topic string, details any) {
	ev, ok := details.(window.MessageEvent)
	if !ok {
		r.stats.dropped.Add(1)
		r.logger.WarnContext(ctx, "relay received a non message event",
			slogx.Topic(topic), slogx.Window(r.frame.ID()))
		return
	}
	if window.Same(ev.Source, r.frame) {
		return
	}
	if err := r.frame.PostMessage(ev.Data, r.targetOrigin, r.host); err != nil {
		r.stats.dropped.Add(1)
		r.logger.DebugContext(ctx, "relay post failed",
			slogx.Topic(topic), slogx.Window(r.frame.ID()), slogx.Error(err))
		return
	}
	r.stats.relayed.Add(1)
}
