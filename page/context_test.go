package page

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/bricbus/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []window.MessageEvent
}

func (c *collector) listen(ev window.MessageEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) data() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, string(ev.Data))
	}
	return out
}

func TestContext_FIFODelivery(t *testing.T) {
	doc := New()
	defer doc.Close()
	frame, err := doc.AddFrame("ALPHA", "bric")
	require.NoError(t, err)
	alpha := frame.Context()

	var got collector
	doc.AddMessageListener(got.listen)

	for _, msg := range []string{"1", "2", "3"} {
		require.NoError(t, doc.Host().PostMessage([]byte(msg), "*", alpha))
	}
	require.NoError(t, doc.Host().Sync(context.Background()))
	assert.Equal(t, []string{"1", "2", "3"}, got.data())

	got.mu.Lock()
	ev := got.events[0]
	got.mu.Unlock()
	assert.Same(t, alpha, ev.Source)
	assert.Equal(t, "https://host.example.com", ev.Origin)
}

func TestContext_DataIsCopied(t *testing.T) {
	doc := New()
	defer doc.Close()
	var got collector
	doc.AddMessageListener(got.listen)

	data := []byte("abc")
	require.NoError(t, doc.Host().PostMessage(data, "*", nil))
	data[0] = 'x'
	require.NoError(t, doc.Host().Sync(context.Background()))
	assert.Equal(t, []string{"abc"}, got.data())
}

func TestContext_OriginCheck(t *testing.T) {
	doc := New(Origin("https://host.example.com"), FrameOrigin("https://bric.example.com"))
	defer doc.Close()
	frame, err := doc.AddFrame("ALPHA")
	require.NoError(t, err)

	alpha := frame.Context()
	assert.Equal(t, "https://bric.example.com", alpha.Origin())
	require.ErrorIs(t, alpha.PostMessage([]byte("x"), "https://host.example.com", nil), window.ErrOriginMismatch)
	require.NoError(t, alpha.PostMessage([]byte("x"), "https://BRIC.example.com/", nil))
}

func TestContext_ListenerRemovalAndPanics(t *testing.T) {
	doc := New()
	defer doc.Close()
	host := doc.Host()

	var got collector
	remove := host.AddMessageListener(func(window.MessageEvent) { panic("listener failed") })
	host.AddMessageListener(got.listen)
	assert.Equal(t, 2, host.Listeners())

	require.NoError(t, host.PostMessage([]byte("a"), "*", nil))
	require.NoError(t, host.Sync(context.Background()))
	assert.Equal(t, []string{"a"}, got.data())

	remove()
	remove()
	assert.Equal(t, 1, host.Listeners())
}

func TestContext_Do(t *testing.T) {
	doc := New()
	defer doc.Close()

	var order []int
	for i := range 5 {
		require.NoError(t, doc.Host().Do(func() { order = append(order, i) }))
	}
	require.NoError(t, doc.Host().Do(func() { panic("task failed") }))
	require.NoError(t, doc.Host().Sync(context.Background()))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestContext_Close(t *testing.T) {
	doc := New()
	frame, err := doc.AddFrame("ALPHA")
	require.NoError(t, err)
	alpha := frame.Context()

	blocked := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, alpha.Do(func() {
		close(blocked)
		<-release
	}))
	<-blocked

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, alpha.Sync(ctx), context.DeadlineExceeded)

	close(release)
	doc.Close()
	assert.True(t, alpha.Closed())
	assert.ErrorIs(t, alpha.PostMessage([]byte("x"), "*", nil), window.ErrClosed)
	assert.ErrorIs(t, alpha.Sync(context.Background()), window.ErrClosed)
}
