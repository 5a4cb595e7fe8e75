package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/casualjim/bricbus"
	"github.com/casualjim/bricbus/broker"
	"github.com/casualjim/bricbus/pubsub"
	"github.com/fogfish/opts"
)

// ErrExpectation is returned when a run does not meet the scenario's Expect.
var ErrExpectation = errors.New("scenario expectation not met")

// Delivery is one event observed by a frame's subscriber.
type Delivery struct {
	Frame string    `json:"frame"`
	Topic string    `json:"topic"`
	Data  any       `json:"data"`
	At    time.Time `json:"at"`
}

// Report is the outcome of a run.
type Report struct {
	Name       string       `json:"name"`
	Steps      []string     `json:"steps"`
	Deliveries []Delivery   `json:"deliveries"`
	Stats      broker.Stats `json:"stats"`
}

// Build creates an in-memory host with the scenario's frames. The host is
// not started.
func Build(sc *Scenario, options ...opts.Option[bricbus.Host]) (*bricbus.Host, error) {
	h := bricbus.NewHost(options...)
	for _, f := range sc.Frames {
		classes := f.Classes
		add := h.AddFrame
		if f.Object {
			add = h.AddObject
		}
		if _, err := add(f.ID, classes...); err != nil {
			h.Close()
			return nil, err
		}
	}
	return h, nil
}

// Run executes the steps against env and waits for traffic to settle after
// each one. env must already be started.
func Run(ctx context.Context, env bricbus.Environment, sc *Scenario) (*Report, error) {
	rec := &recorder{}
	subs := make(map[string][]pubsub.Subscription)
	report := &Report{Name: sc.Name}

	for i, step := range sc.Steps {
		remote, err := env.Remote(ctx, step.Frame)
		if err != nil {
			return report, fmt.Errorf("step %d: %w", i, err)
		}
		key := step.Frame + "\x00"
		switch step.Action() {
		case "subscribe":
			key += step.Subscribe
			subs[key] = append(subs[key], remote.Subscribe(step.Subscribe, rec.handler(step.Frame)))
		case "unsubscribe":
			key += step.Unsubscribe
			list := subs[key]
			if len(list) == 0 {
				return report, fmt.Errorf("step %d: %s has no subscription to %s", i, step.Frame, step.Unsubscribe)
			}
			list[len(list)-1].Unsubscribe()
			subs[key] = list[:len(list)-1]
		case "publish":
			if err := remote.Publish(ctx, step.Publish, step.Data); err != nil {
				return report, fmt.Errorf("step %d: %w", i, err)
			}
		case "resize":
			if err := remote.Resize(step.Resize.Width, step.Resize.Height); err != nil {
				return report, fmt.Errorf("step %d: %w", i, err)
			}
		default:
			return report, fmt.Errorf("step %d: no action", i)
		}
		report.Steps = append(report.Steps, step.String())

		if err := env.Settle(ctx); err != nil {
			return report, fmt.Errorf("step %d: settle: %w", i, err)
		}
	}

	report.Deliveries = rec.snapshot()
	report.Stats = env.Broker().Stats()

	if want := sc.Expect.Deliveries; want != nil && *want != len(report.Deliveries) {
		return report, fmt.Errorf("%w: want %d deliveries, got %d", ErrExpectation, *want, len(report.Deliveries))
	}
	return report, nil
}

type recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (r *recorder) handler(frame string) pubsub.Handler {
	return pubsub.HandlerFunc(func(_ context.Context, topic string, details any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.deliveries = append(r.deliveries, Delivery{Frame: frame, Topic: topic, Data: details, At: time.Now()})
	})
}

func (r *recorder) snapshot() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}
