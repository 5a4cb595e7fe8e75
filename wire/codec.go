package wire

import (
	"fmt"
	"time"

	"github.com/casualjim/bricbus/pkg/jsonx"
	"github.com/go-openapi/strfmt"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Raw marks event data that is already encoded JSON and must be embedded as is.
type Raw []byte

// Parse classifies and decodes an inbound envelope. The presence of "type"
// selects the modern format, "messageType" the legacy one.
//
// Unknown channels or methods are not errors: the returned Message carries
// ChannelUnknown or MethodUnknown together with the raw wire strings so the
// caller can log and drop it. Errors are reserved for malformed envelopes.
func Parse(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return Message{}, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Message{}, ErrUnknownFormat
	}

	if typ := root.Get("type"); typ.Exists() {
		return parseModern(root, typ.String())
	}
	if mt := root.Get("messageType"); mt.Exists() {
		return parseLegacy(root, mt.String())
	}
	return Message{}, ErrUnknownFormat
}

func parseModern(root gjson.Result, rawChannel string) (Message, error) {
	rawMethod := root.Get("method").String()
	msg := Message{
		Format:     FormatModern,
		Channel:    ParseChannel(rawChannel),
		Method:     ParseMethod(rawMethod),
		RawChannel: rawChannel,
		RawMethod:  rawMethod,
	}
	if msg.Channel == ChannelUnknown || msg.Method == MethodUnknown {
		return msg, nil
	}

	payload := root.Get("payload")
	if !payload.Exists() || !payload.IsObject() {
		return msg, fmt.Errorf("%s/%s: %w", msg.Channel, msg.Method, ErrMissingPayload)
	}

	switch msg.Channel {
	case ChannelMessage:
		topic := payload.Get("topic")
		if !topic.Exists() || topic.String() == "" {
			return msg, fmt.Errorf("%s/%s: %w", msg.Channel, msg.Method, ErrMissingTopic)
		}
		msg.Topic = topic.String()
		if msg.Method == MethodPublish {
			msg.Data = eventData(payload, "message", "eventData")
			msg.SendTime = parseSendTime(payload.Get("sendTime"))
		}
	case ChannelView:
		size, err := parseSize(payload)
		if err != nil {
			return msg, fmt.Errorf("%s/%s: %w", msg.Channel, msg.Method, err)
		}
		msg.Size = size
	}
	return msg, nil
}

func parseLegacy(root gjson.Result, messageType string) (Message, error) {
	msg := Message{
		Format:     FormatLegacy,
		RawChannel: messageType,
	}
	body := root.Get("message")

	switch messageType {
	case legacyEvent:
		msg.Channel, msg.Method = ChannelMessage, MethodPublish
		msg.RawMethod = "publish"
		if !body.Exists() || !body.IsObject() {
			return msg, fmt.Errorf("%s: %w", messageType, ErrMissingPayload)
		}
		topic := body.Get("topic")
		if !topic.Exists() || topic.String() == "" {
			return msg, fmt.Errorf("%s: %w", messageType, ErrMissingTopic)
		}
		msg.Topic = topic.String()
		msg.Data = eventData(body, "eventData", "message")
		msg.SendTime = parseSendTime(body.Get("sendTime"))
	case legacyResize:
		msg.Channel, msg.Method = ChannelView, MethodSet
		msg.RawMethod = "set"
		if !body.Exists() || !body.IsObject() {
			return msg, fmt.Errorf("%s: %w", messageType, ErrMissingPayload)
		}
		size, err := parseSize(body)
		if err != nil {
			return msg, fmt.Errorf("%s: %w", messageType, err)
		}
		msg.Size = size
	}
	return msg, nil
}

// eventData returns the raw JSON of the first present key, or nil.
func eventData(body gjson.Result, keys ...string) []byte {
	for _, k := range keys {
		if v := body.Get(k); v.Exists() {
			return []byte(v.Raw)
		}
	}
	return nil
}

func parseSendTime(v gjson.Result) strfmt.DateTime {
	switch v.Type {
	case gjson.Number:
		return strfmt.DateTime(time.UnixMilli(v.Int()))
	case gjson.String:
		if dt, err := strfmt.ParseDateTime(v.String()); err == nil {
			return dt
		}
	}
	return strfmt.DateTime{}
}

func parseSize(body gjson.Result) (Size, error) {
	w, h := body.Get("width"), body.Get("height")
	if w.Type != gjson.Number || h.Type != gjson.Number {
		return Size{}, ErrMissingSize
	}
	return Size{Width: w.Float(), Height: h.Float()}, nil
}

// EventData decodes the raw event data of a publish into its dynamic Go form.
func (m Message) EventData() (any, error) {
	return jsonx.Decode(m.Data)
}

func rawJSON(data any) ([]byte, error) {
	switch v := data.(type) {
	case Raw:
		if len(v) == 0 {
			return []byte("null"), nil
		}
		return v, nil
	case gjson.Result:
		if !v.Exists() {
			return []byte("null"), nil
		}
		return []byte(v.Raw), nil
	default:
		return jsonx.Encode(data)
	}
}

// EncodePublish builds a modern message/publish envelope.
func EncodePublish(topic string, data any, sent time.Time) ([]byte, error) {
	raw, err := rawJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	result := []byte(`{"type":"message","method":"publish","payload":{}}`)
	result, err = sjson.SetBytes(result, "payload.sendTime", strfmt.DateTime(sent).String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "payload.topic", topic)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(result, "payload.message", raw)
}

// EncodeLegacyPublish builds a legacy bricevent envelope.
func EncodeLegacyPublish(topic string, data any, sent time.Time) ([]byte, error) {
	raw, err := rawJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	result := []byte(`{"messageType":"bricevent","message":{}}`)
	result, err = sjson.SetBytes(result, "message.topic", topic)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetRawBytes(result, "message.eventData", raw)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "message.sendTime", strfmt.DateTime(sent).String())
}

// EncodeSubscribe builds a message/subscribe envelope.
func EncodeSubscribe(topic string) ([]byte, error) {
	return sjson.SetBytes([]byte(`{"type":"message","method":"subscribe","payload":{}}`), "payload.topic", topic)
}

// EncodeUnsubscribe builds a message/unsubscribe envelope.
func EncodeUnsubscribe(topic string) ([]byte, error) {
	return sjson.SetBytes([]byte(`{"type":"message","method":"unsubscribe","payload":{}}`), "payload.topic", topic)
}

// EncodeResize builds a view/set envelope.
func EncodeResize(size Size) ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{"type":"view","method":"set","payload":{}}`), "payload.width", size.Width)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "payload.height", size.Height)
}

// EncodeLegacyResize builds a legacy resize envelope.
func EncodeLegacyResize(size Size) ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{"messageType":"resize","message":{}}`), "message.width", size.Width)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "message.height", size.Height)
}
