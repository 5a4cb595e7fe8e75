// Package submission correlates answers a widget submits with the responses
// the scoring backend publishes back, over a dispatcher.
//
// A request is published on the request topic as {"id", "answer"}. The
// backend publishes {"id", "data"} or {"id", "error"} on the response topic.
// There are no retries; every submission resolves exactly once, with a
// response, a cancellation or the closing of the manager.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/casualjim/bricbus/internal/registry"
	"github.com/casualjim/bricbus/pkg/jsonx"
	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/pkg/uuidx"
	"github.com/casualjim/bricbus/pubsub"
	"github.com/fogfish/opts"
)

var (
	// ErrDuplicateRequest is returned when a submission with the same id is
	// still outstanding.
	ErrDuplicateRequest = errors.New("submission already outstanding")
	// ErrCanceled resolves submissions dropped with Cancel.
	ErrCanceled = errors.New("submission canceled")
	// ErrClosed resolves submissions still pending when the manager closes.
	ErrClosed = errors.New("submission manager closed")
	// ErrBackend wraps the error text of a failed response.
	ErrBackend = errors.New("backend rejected submission")
)

const (
	DefaultRequestTopic  = "bric.submission.request"
	DefaultResponseTopic = "bric.submission.response"
)

// Alerter surfaces problems the user must see, such as a duplicate submit.
type Alerter interface {
	Alert(ctx context.Context, message string)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(ctx context.Context, message string)

func (f AlertFunc) Alert(ctx context.Context, message string) { f(ctx, message) }

// Manager tracks outstanding submissions by correlation id.
type Manager struct {
	bus           pubsub.PubSub
	requestTopic  string
	responseTopic string
	alerter       Alerter
	logger        *slog.Logger

	pending registry.Registry[*pending]
	sub     pubsub.Subscription
	closed  atomic.Bool
}

var (
	RequestTopic  = opts.ForName[Manager, string]("requestTopic")
	ResponseTopic = opts.ForName[Manager, string]("responseTopic")
	WithAlerter   = opts.ForName[Manager, Alerter]("alerter")
	WithLogger    = opts.ForName[Manager, *slog.Logger]("logger")
)

// New creates a manager and subscribes it to the response topic.
func New(bus pubsub.PubSub, options ...opts.Option[Manager]) *Manager {
	m := &Manager{
		bus:           bus,
		requestTopic:  DefaultRequestTopic,
		responseTopic: DefaultResponseTopic,
		pending:       registry.New[*pending](),
	}
	if err := opts.Apply(m, options); err != nil {
		panic(err)
	}
	m.logger = slogx.Named(m.logger, "bricbus.submission")
	if m.alerter == nil {
		m.alerter = AlertFunc(func(ctx context.Context, message string) {
			m.logger.ErrorContext(ctx, message)
		})
	}
	m.sub = bus.Subscribe(m.responseTopic, pubsub.HandlerFunc(m.onResponse))
	return m
}

// NewRequestID returns a fresh correlation id.
func NewRequestID() string {
	return uuidx.NewString()
}

// Submit publishes answer under id. cb, when not nil, is called exactly once
// with the outcome. When ctx ends first the submission resolves with
// ctx.Err().
func (m *Manager) Submit(ctx context.Context, id string, answer any, cb Callback) (Future, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if id == "" {
		return nil, errors.New("submission: id is required")
	}

	p := newPending(id, cb)
	if _, loaded := m.pending.GetOrAdd(id, func() *pending { return p }); loaded {
		m.alerter.Alert(ctx, fmt.Sprintf("submission %s is already in flight, wait for its result before submitting again", id))
		return nil, fmt.Errorf("submission %s: %w", id, ErrDuplicateRequest)
	}

	request := map[string]any{"id": id, "answer": answer}
	if err := m.bus.Publish(ctx, m.requestTopic, request); err != nil {
		m.drop(id, p)
		return nil, fmt.Errorf("submission %s: publish: %w", id, err)
	}

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				if m.drop(id, p) {
					p.resolve(Response{ID: id}, ctx.Err())
				}
			case <-p.done:
			}
		}()
	}
	return p, nil
}

// drop removes id if it still maps to p.
func (m *Manager) drop(id string, p *pending) bool {
	current, ok := m.pending.Get(id)
	if !ok || current != p {
		return false
	}
	_, ok = m.pending.Del(id)
	return ok
}

// Cancel resolves the outstanding submission id with ErrCanceled.
func (m *Manager) Cancel(id string) bool {
	p, ok := m.pending.Del(id)
	if !ok {
		return false
	}
	return p.resolve(Response{ID: id}, ErrCanceled)
}

// Pending returns the number of outstanding submissions.
func (m *Manager) Pending() int {
	return m.pending.Len()
}

func (m *Manager) onResponse(ctx context.Context, _ string, details any) {
	resp, err := decodeResponse(details)
	if err != nil {
		m.logger.WarnContext(ctx, "dropping undecodable response", slogx.Error(err))
		return
	}
	p, ok := m.pending.Del(resp.ID)
	if !ok {
		m.logger.DebugContext(ctx, "response for unknown submission", slog.String("id", resp.ID))
		return
	}
	if resp.Error != "" {
		p.resolve(resp, fmt.Errorf("%w: %s", ErrBackend, resp.Error))
		return
	}
	p.resolve(resp, nil)
}

func decodeResponse(details any) (Response, error) {
	if r, ok := details.(Response); ok {
		return r, nil
	}
	if r, ok := details.(*Response); ok && r != nil {
		return *r, nil
	}
	fields, err := jsonx.ToDynamicJSON(details)
	if err != nil {
		return Response{}, err
	}
	id, _ := fields["id"].(string)
	if id == "" {
		return Response{}, errors.New("response has no id")
	}
	resp := Response{ID: id, Data: fields["data"]}
	if msg, ok := fields["error"].(string); ok {
		resp.Error = msg
	}
	return resp, nil
}

// Close stops listening for responses and resolves every outstanding
// submission with ErrClosed.
func (m *Manager) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.sub.Unsubscribe()
	var ids []string
	m.pending.Each(func(id string, _ *pending) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		if p, ok := m.pending.Del(id); ok {
			p.resolve(Response{ID: id}, ErrClosed)
		}
	}
}
