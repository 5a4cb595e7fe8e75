// Package window describes the browsing contexts that bric widgets live in.
//
// A Window is the handle one context holds on another: it can only be posted
// to. An EventTarget is the inbound side of a context: listeners registered on
// it observe every MessageEvent delivered to that context, in delivery order,
// on the context's own event loop.
//
// Implementations live in the page package (in-memory contexts with their own
// goroutine event loops) and in pkg/natsx (contexts reachable over NATS).
package window

import (
	"errors"
	"strings"
)

// AnyOrigin is the wildcard target origin accepted by every window.
const AnyOrigin = "*"

// ErrOriginMismatch is returned by PostMessage when the target window's origin
// does not match the requested target origin. The message is not delivered.
var ErrOriginMismatch = errors.New("target origin does not match window origin")

// ErrClosed is returned when posting to a window whose context has shut down.
var ErrClosed = errors.New("window is closed")

// Window is a handle on a browsing context.
type Window interface {
	// ID uniquely identifies the context for the lifetime of the page.
	ID() string
	// Origin is the context's origin, for example "https://bric.example.com".
	Origin() string
	// PostMessage queues data for delivery to this window. The event observed
	// by the receiver carries source as its Source. Delivery is asynchronous and
	// FIFO per (source, target) pair.
	PostMessage(data []byte, targetOrigin string, source Window) error
}

// MessageEvent is what a listener observes when a message arrives.
type MessageEvent struct {
	Source Window
	Origin string
	Data   []byte
}

// SourceID returns the id of the event source, or "" when the source is unknown.
func (e MessageEvent) SourceID() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.ID()
}

// Listener handles one inbound message.
type Listener func(MessageEvent)

// EventTarget is the inbound message side of a context.
type EventTarget interface {
	// AddMessageListener registers l and returns a function that removes it.
	// Calling the returned function more than once is harmless.
	AddMessageListener(l Listener) (remove func())
}

// Same reports whether a and b refer to the same context.
func Same(a, b Window) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}

// OriginAllowed reports whether a message posted with targetOrigin may be
// delivered to a window whose origin is origin. An empty target origin is
// treated as the wildcard.
func OriginAllowed(origin, targetOrigin string) bool {
	targetOrigin = strings.TrimSpace(targetOrigin)
	if targetOrigin == "" || targetOrigin == AnyOrigin {
		return true
	}
	return strings.EqualFold(strings.TrimSuffix(targetOrigin, "/"), strings.TrimSuffix(origin, "/"))
}

// Element is a frame element in a host document: the node whose style the
// host controls and whose content window is the child context.
type Element interface {
	// ContentWindow is nil until the element hosts a context.
	ContentWindow() Window
	SetStyle(property, value string)
	Style(property string) string
}
