package broker

import (
	"context"
	"testing"

	"github.com/casualjim/bricbus/window"
	"github.com/casualjim/bricbus/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannels struct {
	calls []string
	panic bool
}

func (r *recordingChannels) OnPublish(_ context.Context, _ window.MessageEvent, msg wire.Message) {
	if r.panic {
		panic("publish failed")
	}
	r.calls = append(r.calls, "publish:"+msg.Topic)
}

func (r *recordingChannels) OnSubscribe(_ context.Context, _ window.MessageEvent, msg wire.Message) {
	r.calls = append(r.calls, "subscribe:"+msg.Topic)
}

func (r *recordingChannels) OnUnsubscribe(_ context.Context, _ window.MessageEvent, msg wire.Message) {
	r.calls = append(r.calls, "unsubscribe:"+msg.Topic)
}

func (r *recordingChannels) OnSet(_ context.Context, _ window.MessageEvent, msg wire.Message) {
	r.calls = append(r.calls, "set:"+msg.Size.String())
}

func TestRouter_Route(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		handled bool
		call    string
		wantErr error
	}{
		{"publish", `{"type":"message","method":"publish","payload":{"topic":"ping","message":1}}`, true, "publish:ping", nil},
		{"subscribe", `{"type":"message","method":"subscribe","payload":{"topic":"ping"}}`, true, "subscribe:ping", nil},
		{"unsubscribe", `{"type":"message","method":"unsubscribe","payload":{"topic":"ping"}}`, true, "unsubscribe:ping", nil},
		{"view set", `{"type":"view","method":"set","payload":{"width":150,"height":250}}`, true, "set:150pxx250px", nil},
		{"legacy event", `{"messageType":"bricevent","message":{"topic":"ping","eventData":{}}}`, true, "publish:ping", nil},
		{"legacy resize", `{"messageType":"resize","message":{"width":1,"height":2}}`, true, "set:1pxx2px", nil},
		{"unknown channel", `{"type":"audio","method":"play"}`, false, "", nil},
		{"unknown method", `{"type":"message","method":"shout","payload":{"topic":"ping"}}`, false, "", nil},
		{"view publish", `{"type":"view","method":"publish","payload":{"width":1,"height":2}}`, false, "", nil},
		{"unknown legacy", `{"messageType":"wiggle","message":{}}`, false, "", nil},
		{"invalid json", `{"type":`, false, "", wire.ErrInvalidJSON},
		{"missing topic", `{"type":"message","method":"subscribe","payload":{}}`, false, "", wire.ErrMissingTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &recordingChannels{}
			r := NewRouter(ch, ch, nil)
			handled, err := r.Route(context.Background(), window.MessageEvent{Data: []byte(tt.data)})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.handled, handled)
			if tt.call == "" {
				assert.Empty(t, ch.calls)
			} else {
				assert.Equal(t, []string{tt.call}, ch.calls)
			}
		})
	}
}

func TestRouter_ListenerRecovers(t *testing.T) {
	ch := &recordingChannels{panic: true}
	r := NewRouter(ch, ch, nil)
	l := r.Listener(context.Background())
	assert.NotPanics(t, func() {
		l(window.MessageEvent{Data: []byte(`{"type":"message","method":"publish","payload":{"topic":"ping"}}`)})
		l(window.MessageEvent{Data: []byte(`garbage`)})
	})
	assert.EqualValues(t, 1, r.stats.dropped.Load())
}
