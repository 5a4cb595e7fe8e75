package wire

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParse(t *testing.T) {
	t.Run("modern publish", func(t *testing.T) {
		msg, err := Parse([]byte(`{"type":"message","method":"publish","payload":{"sendTime":"2024-05-01T10:00:00.000Z","topic":"ping","message":{"msg":"hi"}}}`))
		require.NoError(t, err)
		assert.Equal(t, FormatModern, msg.Format)
		assert.True(t, msg.IsPublish())
		assert.Equal(t, "ping", msg.Topic)
		assert.JSONEq(t, `{"msg":"hi"}`, string(msg.Data))
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), time.Time(msg.SendTime).UTC())

		data, err := msg.EventData()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"msg": "hi"}, data)
	})

	t.Run("modern publish accepts eventData alias and epoch send time", func(t *testing.T) {
		msg, err := Parse([]byte(`{"type":"message","method":"publish","payload":{"sendTime":1714557600000,"topic":"ping","eventData":[1,2]}}`))
		require.NoError(t, err)
		assert.JSONEq(t, `[1,2]`, string(msg.Data))
		assert.Equal(t, int64(1714557600000), time.Time(msg.SendTime).UnixMilli())
	})

	t.Run("modern subscribe and unsubscribe", func(t *testing.T) {
		msg, err := Parse([]byte(`{"type":"message","method":"subscribe","payload":{"topic":"Q1_itemSelected"}}`))
		require.NoError(t, err)
		assert.Equal(t, MethodSubscribe, msg.Method)
		assert.Equal(t, "Q1_itemSelected", msg.Topic)

		msg, err = Parse([]byte(`{"type":"message","method":"unsubscribe","payload":{"topic":"Q1_itemSelected"}}`))
		require.NoError(t, err)
		assert.Equal(t, MethodUnsubscribe, msg.Method)
	})

	t.Run("modern view set", func(t *testing.T) {
		msg, err := Parse([]byte(`{"type":"view","method":"set","payload":{"width":150,"height":250}}`))
		require.NoError(t, err)
		assert.Equal(t, ChannelView, msg.Channel)
		assert.Equal(t, MethodSet, msg.Method)
		assert.Equal(t, Size{Width: 150, Height: 250}, msg.Size)
	})

	t.Run("legacy bricevent", func(t *testing.T) {
		msg, err := Parse([]byte(`{"messageType":"bricevent","message":{"topic":"ping","eventData":{"msg":"hi"}}}`))
		require.NoError(t, err)
		assert.Equal(t, FormatLegacy, msg.Format)
		assert.True(t, msg.IsPublish())
		assert.Equal(t, "ping", msg.Topic)
		assert.JSONEq(t, `{"msg":"hi"}`, string(msg.Data))
	})

	t.Run("legacy resize", func(t *testing.T) {
		msg, err := Parse([]byte(`{"messageType":"resize","message":{"width":10,"height":20.5}}`))
		require.NoError(t, err)
		assert.Equal(t, ChannelView, msg.Channel)
		assert.Equal(t, Size{Width: 10, Height: 20.5}, msg.Size)
	})

	t.Run("unknown channel and method are not errors", func(t *testing.T) {
		msg, err := Parse([]byte(`{"type":"audio","method":"play","payload":{}}`))
		require.NoError(t, err)
		assert.Equal(t, ChannelUnknown, msg.Channel)
		assert.Equal(t, "audio", msg.RawChannel)

		msg, err = Parse([]byte(`{"type":"message","method":"shout","payload":{"topic":"x"}}`))
		require.NoError(t, err)
		assert.Equal(t, MethodUnknown, msg.Method)
		assert.Equal(t, "shout", msg.RawMethod)

		msg, err = Parse([]byte(`{"messageType":"ping"}`))
		require.NoError(t, err)
		assert.Equal(t, ChannelUnknown, msg.Channel)
	})

	errCases := []struct {
		name string
		raw  string
		err  error
	}{
		{"invalid json", `{nope`, ErrInvalidJSON},
		{"not an object", `[1,2]`, ErrUnknownFormat},
		{"no discriminator", `{"payload":{}}`, ErrUnknownFormat},
		{"missing payload", `{"type":"message","method":"publish"}`, ErrMissingPayload},
		{"missing topic", `{"type":"message","method":"publish","payload":{"message":1}}`, ErrMissingTopic},
		{"empty topic", `{"type":"message","method":"subscribe","payload":{"topic":""}}`, ErrMissingTopic},
		{"missing size", `{"type":"view","method":"set","payload":{"width":"wide"}}`, ErrMissingSize},
		{"legacy missing topic", `{"messageType":"bricevent","message":{"eventData":1}}`, ErrMissingTopic},
		{"legacy missing body", `{"messageType":"resize"}`, ErrMissingPayload},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.err), "got %v", err)
		})
	}
}

func TestEncode(t *testing.T) {
	sent := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("publish round trips", func(t *testing.T) {
		b, err := EncodePublish("ping", map[string]any{"msg": "hi"}, sent)
		require.NoError(t, err)
		assert.Equal(t, "message", gjson.GetBytes(b, "type").String())
		assert.Equal(t, "publish", gjson.GetBytes(b, "method").String())

		msg, err := Parse(b)
		require.NoError(t, err)
		assert.Equal(t, "ping", msg.Topic)
		assert.JSONEq(t, `{"msg":"hi"}`, string(msg.Data))
		assert.True(t, sent.Equal(time.Time(msg.SendTime)))
	})

	t.Run("publish embeds raw data untouched", func(t *testing.T) {
		b, err := EncodePublish("ping", Raw(`{"a":[1,2,3]}`), sent)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":[1,2,3]}`, gjson.GetBytes(b, "payload.message").Raw)

		b, err = EncodePublish("ping", gjson.Parse(`"x"`), sent)
		require.NoError(t, err)
		assert.Equal(t, "x", gjson.GetBytes(b, "payload.message").String())
	})

	t.Run("nil data encodes as null", func(t *testing.T) {
		b, err := EncodePublish("ping", nil, sent)
		require.NoError(t, err)
		assert.Equal(t, gjson.Null, gjson.GetBytes(b, "payload.message").Type)
	})

	t.Run("unmarshalable data fails", func(t *testing.T) {
		_, err := EncodePublish("ping", make(chan int), sent)
		assert.Error(t, err)
	})

	t.Run("legacy publish", func(t *testing.T) {
		b, err := EncodeLegacyPublish("ping", "hi", sent)
		require.NoError(t, err)
		msg, err := Parse(b)
		require.NoError(t, err)
		assert.Equal(t, FormatLegacy, msg.Format)
		assert.Equal(t, "ping", msg.Topic)
		assert.JSONEq(t, `"hi"`, string(msg.Data))
	})

	t.Run("subscribe and unsubscribe", func(t *testing.T) {
		b, err := EncodeSubscribe("a.b")
		require.NoError(t, err)
		msg, err := Parse(b)
		require.NoError(t, err)
		assert.Equal(t, MethodSubscribe, msg.Method)
		assert.Equal(t, "a.b", msg.Topic)

		b, err = EncodeUnsubscribe("a.b")
		require.NoError(t, err)
		msg, err = Parse(b)
		require.NoError(t, err)
		assert.Equal(t, MethodUnsubscribe, msg.Method)
	})

	t.Run("resize", func(t *testing.T) {
		b, err := EncodeResize(Size{Width: 150, Height: 250})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"view","method":"set","payload":{"width":150,"height":250}}`, string(b))

		b, err = EncodeLegacyResize(Size{Width: 1, Height: 2})
		require.NoError(t, err)
		msg, err := Parse(b)
		require.NoError(t, err)
		assert.Equal(t, Size{Width: 1, Height: 2}, msg.Size)
	})
}

func TestEnums(t *testing.T) {
	assert.Equal(t, "message", ChannelMessage.String())
	assert.Equal(t, "view", ChannelView.String())
	assert.Equal(t, "unknown", ChannelUnknown.String())
	assert.Equal(t, ChannelView, ParseChannel("view"))
	assert.Equal(t, MethodSet, ParseMethod("set"))
	assert.Equal(t, "unsubscribe", MethodUnsubscribe.String())
	assert.Equal(t, "legacy", FormatLegacy.String())
	assert.Equal(t, "150px", Pixels(150))
	assert.Equal(t, "12.5px", Pixels(12.5))
	assert.Equal(t, "150pxx250px", Size{Width: 150, Height: 250}.String())
}

func TestSchema(t *testing.T) {
	s := Schema()
	require.NotNil(t, s)
	b, err := s.MarshalJSON()
	require.NoError(t, err)

	props := gjson.GetBytes(b, "properties")
	assert.True(t, props.Get("type").Exists())
	assert.True(t, props.Get("method").Exists())
	assert.Equal(t, "date-time", props.Get("payload.properties.sendTime.format").String())

	lb, err := LegacySchema().MarshalJSON()
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(lb, "properties.messageType").Exists())
}
