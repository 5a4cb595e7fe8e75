package natsx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/bricbus/broker"
	"github.com/casualjim/bricbus/pkg/uuidx"
	"github.com/casualjim/bricbus/pubsub"
	"github.com/casualjim/bricbus/window"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *nats.Conn {
	t.Helper()
	conn, err := nats.Connect(nats.DefaultURL, nats.Timeout(500*time.Millisecond))
	if err != nil {
		t.Skipf("no NATS server at %s: %v", nats.DefaultURL, err)
	}
	t.Cleanup(conn.Close)
	return conn
}

func testPrefix() string {
	return "bricbus.test." + uuidx.NewString()
}

func TestEndpoint_PostMessage(t *testing.T) {
	conn := connect(t)
	prefix := testPrefix()

	host, err := Listen(conn, "host", "https://host.example.com", Prefix(prefix))
	require.NoError(t, err)
	defer host.Close()
	alpha, err := Listen(conn, "ALPHA", "https://bric.example.com", Prefix(prefix))
	require.NoError(t, err)
	defer alpha.Close()

	var mu sync.Mutex
	var got []window.MessageEvent
	host.AddMessageListener(func(ev window.MessageEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	toHost := alpha.Peer("host", "https://host.example.com")
	require.NoError(t, toHost.PostMessage([]byte(`{"n":1}`), "*", alpha))
	require.NoError(t, toHost.PostMessage([]byte(`{"n":2}`), "https://host.example.com", alpha))
	require.ErrorIs(t, toHost.PostMessage([]byte(`{"n":3}`), "https://evil.example.com", alpha), window.ErrOriginMismatch)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, `{"n":1}`, string(got[0].Data))
	assert.Equal(t, `{"n":2}`, string(got[1].Data))
	assert.Equal(t, "ALPHA", got[0].SourceID())
	assert.Equal(t, "https://bric.example.com", got[0].Origin)
}

func TestBrokerOverNATS(t *testing.T) {
	conn := connect(t)
	prefix := testPrefix()
	ctx := context.Background()

	hostEP, err := Listen(conn, "host", "https://host.example.com", Prefix(prefix))
	require.NoError(t, err)
	defer hostEP.Close()
	doc := NewDocument(hostEP)

	remotes := map[string]*pubsub.Remote{}
	for _, id := range []string{"ALPHA", "BETA"} {
		ep, err := Listen(conn, id, "https://bric.example.com", Prefix(prefix))
		require.NoError(t, err)
		defer ep.Close()
		doc.AddFrame(id, "https://bric.example.com", "bric")

		r := pubsub.NewRemote(ep, ep.Peer("host", "https://host.example.com"), ep)
		r.ListenBroker(ctx)
		defer r.Close()
		remotes[id] = r
	}

	b := broker.New(doc)
	require.NoError(t, b.Initialize(ctx))
	defer b.Dispose()
	assert.Equal(t, 2, b.Stats().Frames)

	var mu sync.Mutex
	var received []any
	remotes["BETA"].SubscribeFunc("ping", func(_ context.Context, _ string, details any) {
		mu.Lock()
		received = append(received, details)
		mu.Unlock()
	})
	require.Eventually(t, func() bool { return b.Subscribers("ping") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, remotes["ALPHA"].Publish(ctx, "ping", map[string]any{"msg": "hi"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, map[string]any{"msg": "hi"}, received[0])
	mu.Unlock()

	require.NoError(t, remotes["ALPHA"].Resize(150, 250))
	frame := doc.Frames()[0]
	require.Eventually(t, func() bool { return frame.Style("width") == "150px" }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "250px", frame.Style("height"))
}
