package submission

import (
	"context"
	"sync"
)

// Response is what the backend answers for one submission.
type Response struct {
	ID    string `json:"id"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Callback receives the outcome of a submission exactly once.
type Callback func(Response, error)

// Future is the read side of a pending submission.
type Future interface {
	// ID is the correlation id.
	ID() string
	// Get blocks until the submission resolves or ctx is done.
	Get(ctx context.Context) (Response, error)
	// Done is closed once the submission has resolved.
	Done() <-chan struct{}
}

type pending struct {
	id   string
	cb   Callback
	once sync.Once
	done chan struct{}

	resp Response
	err  error
}

func newPending(id string, cb Callback) *pending {
	return &pending{id: id, cb: cb, done: make(chan struct{})}
}

func (p *pending) ID() string { return p.id }

func (p *pending) Done() <-chan struct{} { return p.done }

func (p *pending) Get(ctx context.Context) (Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// resolve settles the submission. Only the first call has any effect.
func (p *pending) resolve(resp Response, err error) bool {
	resolved := false
	p.once.Do(func() {
		p.resp, p.err = resp, err
		close(p.done)
		resolved = true
	})
	if resolved && p.cb != nil {
		p.cb(resp, err)
	}
	return resolved
}
