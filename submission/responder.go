package submission

import (
	"context"
	"log/slog"

	"github.com/casualjim/bricbus/pkg/jsonx"
	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/pubsub"
)

// ScoreFunc evaluates one submitted answer.
type ScoreFunc func(ctx context.Context, id string, answer any) (any, error)

// Serve answers requests published on requestTopic by calling score and
// publishing the outcome on responseTopic. It stands in for the scoring
// backend in demos and tests.
func Serve(bus pubsub.PubSub, requestTopic, responseTopic string, score ScoreFunc) pubsub.Subscription {
	logger := slogx.Named(nil, "bricbus.submission")
	return bus.Subscribe(requestTopic, pubsub.HandlerFunc(func(ctx context.Context, _ string, details any) {
		fields, err := jsonx.ToDynamicJSON(details)
		if err != nil {
			logger.WarnContext(ctx, "dropping undecodable request", slogx.Error(err))
			return
		}
		id, _ := fields["id"].(string)
		if id == "" {
			logger.WarnContext(ctx, "dropping request without id")
			return
		}

		resp := map[string]any{"id": id}
		if data, err := score(ctx, id, fields["answer"]); err != nil {
			resp["error"] = err.Error()
		} else {
			resp["data"] = data
		}
		if err := bus.Publish(ctx, responseTopic, resp); err != nil {
			logger.WarnContext(ctx, "failed to publish response", slog.String("id", id), slogx.Error(err))
		}
	}))
}
