// Package pubsub provides the topic dispatchers used inside a single
// browsing context.
//
// Dispatcher is a plain in-context registry with synchronous delivery.
// Remote wraps a Dispatcher for a child context: it forwards publishes and
// subscription changes to the broker in the parent context and re-publishes
// the events the broker relays back.
package pubsub
