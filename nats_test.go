package bricbus

import (
	"context"
	"testing"
	"time"

	"github.com/casualjim/bricbus/pkg/uuidx"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSHost(t *testing.T) {
	conn, err := nats.Connect(nats.DefaultURL, nats.Timeout(500*time.Millisecond))
	if err != nil {
		t.Skipf("no NATS server at %s: %v", nats.DefaultURL, err)
	}
	defer conn.Close()

	ctx := context.Background()
	h, err := NewNATSHost(conn, "bricbus.test."+uuidx.NewString())
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.AddFrame("ALPHA"))
	require.NoError(t, h.AddFrame("BETA"))
	assert.Error(t, h.AddFrame("BETA"))
	require.NoError(t, h.Start(ctx))

	alpha, err := h.Remote(ctx, "ALPHA")
	require.NoError(t, err)
	beta, err := h.Remote(ctx, "BETA")
	require.NoError(t, err)

	var atBeta inbox
	beta.SubscribeFunc("ping", atBeta.handle)
	require.NoError(t, h.Settle(ctx))
	require.NoError(t, alpha.Publish(ctx, "ping", map[string]any{"msg": "hi"}))

	require.Eventually(t, func() bool { return len(atBeta.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, map[string]any{"msg": "hi"}, atBeta.received()[0])
	assert.EqualValues(t, 1, h.Broker().Stats().Relayed)
}
