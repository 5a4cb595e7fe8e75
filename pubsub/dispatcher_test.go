package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	name  string
	calls *[]string
	seen  []any
}

func (h *recordingHandler) HandleEvent(_ context.Context, topic string, details any) {
	*h.calls = append(*h.calls, h.name+":"+topic)
	h.seen = append(h.seen, details)
}

func TestDispatcher_PublishOrder(t *testing.T) {
	var calls []string
	d := New()
	h1 := &recordingHandler{name: "h1", calls: &calls}
	h2 := &recordingHandler{name: "h2", calls: &calls}
	h3 := &recordingHandler{name: "h3", calls: &calls}
	d.Subscribe("ping", h1)
	d.Subscribe("ping", h2)
	d.Subscribe("pong", h3)

	details := map[string]any{"msg": "hi"}
	d.PublishLocal(context.Background(), "ping", details)

	assert.Equal(t, []string{"h1:ping", "h2:ping"}, calls)
	require.Len(t, h1.seen, 1)
	// the same reference is handed to every handler
	assert.Equal(t, details, h1.seen[0])
	h1.seen[0].(map[string]any)["msg"] = "changed"
	assert.Equal(t, "changed", h2.seen[0].(map[string]any)["msg"])
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	d := New()
	assert.NotPanics(t, func() {
		d.PublishLocal(context.Background(), "nobody", 42)
	})
	assert.Equal(t, 0, d.Count("nobody"))
	assert.Empty(t, d.Topics())
}

func TestDispatcher_SubscribeDuringPublish(t *testing.T) {
	d := New()
	var late int
	var early int
	d.SubscribeFunc("ping", func(ctx context.Context, topic string, details any) {
		early++
		d.SubscribeFunc("ping", func(context.Context, string, any) { late++ })
	})

	d.PublishLocal(context.Background(), "ping", nil)
	assert.Equal(t, 1, early)
	assert.Equal(t, 0, late)

	d.PublishLocal(context.Background(), "ping", nil)
	assert.Equal(t, 2, early)
	assert.Equal(t, 1, late)
}

func TestDispatcher_DuplicateSubscriptionsFireTwice(t *testing.T) {
	var calls []string
	d := New()
	h := &recordingHandler{name: "h", calls: &calls}
	d.Subscribe("ping", h)
	d.Subscribe("ping", h)

	d.PublishLocal(context.Background(), "ping", "x")
	assert.Equal(t, []string{"h:ping", "h:ping"}, calls)
	assert.Equal(t, 2, d.Count("ping"))

	assert.True(t, d.Unsubscribe("ping", h))
	assert.Equal(t, 1, d.Count("ping"))
	assert.True(t, d.Unsubscribe("ping", h))
	assert.False(t, d.Unsubscribe("ping", h))
	assert.Empty(t, d.Topics())
}

func TestDispatcher_SubscriptionHandle(t *testing.T) {
	d := New()
	var n int
	sub := d.SubscribeFunc("ping", func(context.Context, string, any) { n++ })
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, "ping", sub.Topic())

	d.PublishLocal(context.Background(), "ping", nil)
	assert.True(t, sub.Unsubscribe())
	assert.False(t, sub.Unsubscribe())
	d.PublishLocal(context.Background(), "ping", nil)
	assert.Equal(t, 1, n)
}

func TestDispatcher_UnsubscribeFuncHandlerNotMatched(t *testing.T) {
	d := New()
	fn := HandlerFunc(func(context.Context, string, any) {})
	d.Subscribe("ping", fn)
	assert.False(t, d.Unsubscribe("ping", fn))
	assert.Equal(t, 1, d.Count("ping"))
}

func TestDispatcher_RemoveHandler(t *testing.T) {
	var calls []string
	d := New()
	h := &recordingHandler{name: "h", calls: &calls}
	other := &recordingHandler{name: "o", calls: &calls}
	d.Subscribe("a", h)
	d.Subscribe("b", h)
	d.Subscribe("b", other)
	d.Subscribe("b", h)

	assert.Equal(t, 3, d.RemoveHandler(h))
	assert.Equal(t, []string{"b"}, d.Topics())
	assert.Equal(t, 1, d.Count("b"))
}

func TestDispatcher_TopicsOrdered(t *testing.T) {
	d := New()
	for _, topic := range []string{"c", "a", "b"} {
		d.SubscribeFunc(topic, func(context.Context, string, any) {})
	}
	assert.Equal(t, []string{"c", "a", "b"}, d.Topics())

	d.Clear()
	assert.Empty(t, d.Topics())
}

func TestDispatcher_PanicPropagatesByDefault(t *testing.T) {
	d := New()
	var after bool
	d.SubscribeFunc("ping", func(context.Context, string, any) { panic("boom") })
	d.SubscribeFunc("ping", func(context.Context, string, any) { after = true })

	assert.PanicsWithValue(t, "boom", func() {
		d.PublishLocal(context.Background(), "ping", nil)
	})
	assert.False(t, after)
}

func TestDispatcher_IsolateHandlers(t *testing.T) {
	d := New(IsolateHandlers(true))
	var after bool
	d.SubscribeFunc("ping", func(context.Context, string, any) { panic("boom") })
	d.SubscribeFunc("ping", func(context.Context, string, any) { after = true })

	assert.NotPanics(t, func() {
		d.PublishLocal(context.Background(), "ping", nil)
	})
	assert.True(t, after)
}
