package pubsub

import (
	"context"
	"reflect"
)

// Handler receives the details of one published event. Details are passed
// through unchanged by reference; relayed events arrive in their decoded
// dynamic JSON form (map[string]any, []any, float64, string, bool or nil).
type Handler interface {
	HandleEvent(ctx context.Context, topic string, details any)
}

// HandlerFunc adapts a function to Handler. Function handlers are not
// comparable, so they can only be removed through their Subscription.
type HandlerFunc func(ctx context.Context, topic string, details any)

func (f HandlerFunc) HandleEvent(ctx context.Context, topic string, details any) {
	f(ctx, topic, details)
}

// Subscription is the handle returned by Subscribe.
type Subscription interface {
	ID() string
	Topic() string
	// Unsubscribe removes this registration. It reports false when the
	// registration was already gone.
	Unsubscribe() bool
}

// Publisher is the publishing half of a dispatcher.
type Publisher interface {
	Publish(ctx context.Context, topic string, details any) error
}

// Subscriber is the subscribing half of a dispatcher.
type Subscriber interface {
	Subscribe(topic string, handler Handler) Subscription
}

// PubSub is what widgets and the submission layer depend on.
type PubSub interface {
	Publisher
	Subscriber
}

// sameHandler compares handler identity without panicking on
// non-comparable dynamic types such as HandlerFunc.
func sameHandler(a, b Handler) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
