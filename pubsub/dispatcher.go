package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/pkg/uuidx"
	"github.com/fogfish/opts"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Dispatcher is an in-context topic registry. Handlers for a topic fire in
// subscription order, synchronously, on the publishing goroutine.
//
// A Dispatcher has no cross-context dependency. The broker uses one
// internally as its topic to relay-handler index.
type Dispatcher struct {
	mu      sync.RWMutex
	topics  *orderedmap.OrderedMap[string, []*entry]
	isolate bool
	logger  *slog.Logger
}

var (
	// IsolateHandlers recovers a panicking handler, logs it and carries on with
	// the remaining handlers. When off (the default) a panic propagates to the
	// publisher and later handlers for that publish are skipped.
	IsolateHandlers = opts.ForName[Dispatcher, bool]("isolate")

	// WithLogger sets the logger used for isolated handler failures.
	WithLogger = opts.ForName[Dispatcher, *slog.Logger]("logger")
)

// New creates an empty dispatcher.
func New(options ...opts.Option[Dispatcher]) *Dispatcher {
	d := &Dispatcher{
		topics: orderedmap.New[string, []*entry](),
	}
	if err := opts.Apply(d, options); err != nil {
		panic(err)
	}
	d.logger = slogx.Named(d.logger, "bricbus.pubsub")
	return d
}

type entry struct {
	id      string
	topic   string
	handler Handler
	owner   *Dispatcher
}

func (e *entry) ID() string    { return e.id }
func (e *entry) Topic() string { return e.topic }

func (e *entry) Unsubscribe() bool {
	return e.owner.remove(e.topic, func(c *entry) bool { return c == e })
}

// Subscribe appends handler to the topic's list. Subscribing the same handler
// twice creates two entries and both fire.
func (d *Dispatcher) Subscribe(topic string, handler Handler) Subscription {
	e := &entry{
		id:      uuidx.NewString(),
		topic:   topic,
		handler: handler,
		owner:   d,
	}

	d.mu.Lock()
	list, _ := d.topics.Get(topic)
	d.topics.Set(topic, append(list, e))
	d.mu.Unlock()
	return e
}

// SubscribeFunc is Subscribe for plain functions.
func (d *Dispatcher) SubscribeFunc(topic string, fn func(ctx context.Context, topic string, details any)) Subscription {
	return d.Subscribe(topic, HandlerFunc(fn))
}

// Unsubscribe removes one registration of handler from topic. Only
// comparable handlers (pointers, comparable structs) can be matched; use the
// Subscription for function handlers.
func (d *Dispatcher) Unsubscribe(topic string, handler Handler) bool {
	return d.remove(topic, func(e *entry) bool { return sameHandler(e.handler, handler) })
}

func (d *Dispatcher) remove(topic string, match func(*entry) bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	list, ok := d.topics.Get(topic)
	if !ok {
		return false
	}
	idx := slices.IndexFunc(list, match)
	if idx < 0 {
		return false
	}
	list = slices.Delete(slices.Clone(list), idx, idx+1)
	if len(list) == 0 {
		d.topics.Delete(topic)
	} else {
		d.topics.Set(topic, list)
	}
	return true
}

// RemoveHandler drops every registration of handler across all topics and
// returns how many were removed.
func (d *Dispatcher) RemoveHandler(handler Handler) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	var empty []string
	for pair := d.topics.Oldest(); pair != nil; pair = pair.Next() {
		kept := slices.DeleteFunc(slices.Clone(pair.Value), func(e *entry) bool {
			return sameHandler(e.handler, handler)
		})
		if n := len(pair.Value) - len(kept); n > 0 {
			removed += n
			pair.Value = kept
			if len(kept) == 0 {
				empty = append(empty, pair.Key)
			}
		}
	}
	for _, topic := range empty {
		d.topics.Delete(topic)
	}
	return removed
}

// PublishLocal invokes every handler registered for topic at the time of the
// call, in subscription order. Handlers added while it runs are not invoked.
func (d *Dispatcher) PublishLocal(ctx context.Context, topic string, details any) {
	d.mu.RLock()
	list, _ := d.topics.Get(topic)
	isolate := d.isolate
	d.mu.RUnlock()

	for _, e := range list {
		if isolate {
			d.invokeIsolated(ctx, e, details)
			continue
		}
		e.handler.HandleEvent(ctx, topic, details)
	}
}

// Publish is PublishLocal; it satisfies Publisher.
func (d *Dispatcher) Publish(ctx context.Context, topic string, details any) error {
	d.PublishLocal(ctx, topic, details)
	return nil
}

func (d *Dispatcher) invokeIsolated(ctx context.Context, e *entry, details any) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.ErrorContext(ctx, "event handler panicked",
				slogx.Topic(e.topic),
				slog.String("subscription", e.id),
				slogx.Error(fmt.Errorf("%v", rec)))
		}
	}()
	e.handler.HandleEvent(ctx, e.topic, details)
}

// Count returns the number of registrations for topic.
func (d *Dispatcher) Count(topic string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	list, _ := d.topics.Get(topic)
	return len(list)
}

// Topics lists topics with at least one registration, oldest first.
func (d *Dispatcher) Topics() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, d.topics.Len())
	for pair := d.topics.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Clear drops every registration.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.topics = orderedmap.New[string, []*entry]()
	d.mu.Unlock()
}
