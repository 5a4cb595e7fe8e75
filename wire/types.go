package wire

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-openapi/strfmt"
)

var (
	// ErrInvalidJSON is returned when an inbound message is not valid JSON.
	ErrInvalidJSON = errors.New("envelope is not valid json")
	// ErrUnknownFormat is returned when an envelope has neither "type" nor "messageType".
	ErrUnknownFormat = errors.New("envelope has neither type nor messageType")
	// ErrMissingTopic is returned for message channel envelopes without a topic.
	ErrMissingTopic = errors.New("envelope payload is missing topic")
	// ErrMissingPayload is returned when the payload object is absent.
	ErrMissingPayload = errors.New("envelope is missing payload")
	// ErrMissingSize is returned for view envelopes without numeric width and height.
	ErrMissingSize = errors.New("view payload is missing width or height")
)

// Format distinguishes the current envelope shape from the flat legacy shape
// used by dispatchers that predate explicit subscribe/unsubscribe.
type Format int

const (
	FormatModern Format = iota
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatModern:
		return "modern"
	case FormatLegacy:
		return "legacy"
	default:
		return "Format(" + strconv.Itoa(int(f)) + ")"
	}
}

// Channel is the top-level classification of an envelope.
type Channel int

const (
	ChannelUnknown Channel = iota
	ChannelMessage
	ChannelView
)

const (
	channelMessage = "message"
	channelView    = "view"

	legacyEvent  = "bricevent"
	legacyResize = "resize"
)

func (c Channel) String() string {
	switch c {
	case ChannelMessage:
		return channelMessage
	case ChannelView:
		return channelView
	default:
		return "unknown"
	}
}

// ParseChannel maps the wire value of "type" to a Channel.
func ParseChannel(s string) Channel {
	switch s {
	case channelMessage:
		return ChannelMessage
	case channelView:
		return ChannelView
	default:
		return ChannelUnknown
	}
}

// Method is the operation requested within a channel.
type Method int

const (
	MethodUnknown Method = iota
	MethodPublish
	MethodSubscribe
	MethodUnsubscribe
	MethodSet
)

func (m Method) String() string {
	switch m {
	case MethodPublish:
		return "publish"
	case MethodSubscribe:
		return "subscribe"
	case MethodUnsubscribe:
		return "unsubscribe"
	case MethodSet:
		return "set"
	default:
		return "unknown"
	}
}

// ParseMethod maps the wire value of "method" to a Method.
func ParseMethod(s string) Method {
	switch s {
	case "publish":
		return MethodPublish
	case "subscribe":
		return MethodSubscribe
	case "unsubscribe":
		return MethodUnsubscribe
	case "set":
		return MethodSet
	default:
		return MethodUnknown
	}
}

// Size is the body of a view/set envelope, in CSS pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pixels renders a dimension as a CSS pixel value, e.g. 150 -> "150px".
func Pixels(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

func (s Size) String() string {
	return fmt.Sprintf("%sx%s", Pixels(s.Width), Pixels(s.Height))
}

// Message is the decoded, classified form of an inbound envelope.
type Message struct {
	Format  Format
	Channel Channel
	Method  Method
	// RawChannel and RawMethod keep the wire strings so unknown values can be logged.
	RawChannel string
	RawMethod  string

	Topic    string
	Data     []byte // raw JSON of the event data, publish only
	SendTime strfmt.DateTime
	Size     Size
}

// IsPublish reports whether the message is a message channel publish.
func (m Message) IsPublish() bool {
	return m.Channel == ChannelMessage && m.Method == MethodPublish
}

// Envelope is the modern wire shape. It exists to document the format and to
// reflect the JSON schema; encoding and decoding go through gjson and sjson.
type Envelope struct {
	Type    string  `json:"type" jsonschema:"enum=message,enum=view"`
	Method  string  `json:"method" jsonschema:"enum=publish,enum=subscribe,enum=unsubscribe,enum=set"`
	Payload Payload `json:"payload"`
}

// Payload is the union of every method's payload fields.
type Payload struct {
	SendTime strfmt.DateTime `json:"sendTime,omitempty" jsonschema:"description=publish only"`
	Topic    string          `json:"topic,omitempty" jsonschema:"description=publish, subscribe and unsubscribe"`
	Message  any             `json:"message,omitempty" jsonschema:"description=event data, publish only"`
	Width    float64         `json:"width,omitempty" jsonschema:"description=set only, CSS pixels"`
	Height   float64         `json:"height,omitempty" jsonschema:"description=set only, CSS pixels"`
}

// LegacyEnvelope is the flat shape used by older dispatchers.
type LegacyEnvelope struct {
	MessageType string        `json:"messageType" jsonschema:"enum=bricevent,enum=resize"`
	Message     LegacyMessage `json:"message"`
}

// LegacyMessage is the body of a legacy envelope.
type LegacyMessage struct {
	Topic     string  `json:"topic,omitempty"`
	EventData any     `json:"eventData,omitempty"`
	SendTime  string  `json:"sendTime,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
}
