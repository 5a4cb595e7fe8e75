package broker

import (
	"context"
	"errors"
	"strconv"

	"github.com/casualjim/bricbus/window"
)

var (
	// ErrAlreadyInitialized is returned by Initialize on a broker that has
	// already been initialized.
	ErrAlreadyInitialized = errors.New("broker already initialized")
	// ErrDisposed is returned by Initialize after Dispose.
	ErrDisposed = errors.New("broker disposed")
)

// DefaultSelector matches the frame elements hosting bric widgets.
const DefaultSelector = ".bric"

// Document is the host document the broker manages frames in. Its message
// listeners observe the host context's inbound traffic.
type Document interface {
	window.EventTarget
	// Window is the host context's own window. It is the source of every
	// relayed post.
	Window() window.Window
	// QuerySelectorAll returns the elements matching selector in document order.
	QuerySelectorAll(selector string) ([]window.Element, error)
}

// Converter replaces legacy <object> widget elements with iframes. It returns
// how many elements were converted.
type Converter interface {
	ConvertObjects(ctx context.Context) (int, error)
}

// State is the broker lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateDisposed:
		return "disposed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Stats is a point in time view of broker activity.
type Stats struct {
	// Frames is the number of managed frames.
	Frames int `json:"frames"`
	// Topics is the number of topics with at least one subscribed frame.
	Topics int `json:"topics"`
	// Messages counts message channel publishes received.
	Messages int64 `json:"messages"`
	// Resizes counts view channel envelopes received.
	Resizes int64 `json:"resizes"`
	// Relayed counts envelopes posted to subscribed frames.
	Relayed int64 `json:"relayed"`
	// Dropped counts relays that failed to post and inbound envelopes that
	// could not be parsed.
	Dropped int64 `json:"dropped"`
	// Unknown counts envelopes with an unknown channel or method.
	Unknown int64 `json:"unknown"`
	// Rejected counts subscribe and unsubscribe requests from unmanaged windows.
	Rejected int64 `json:"rejected"`
}
