package registry

import "github.com/alphadose/haxmap"

// Registry is a concurrent string keyed store. The broker keys frames by
// window id and the page model keys contexts the same way.
type Registry[T any] interface {
	Get(name string) (T, bool)
	Add(name string, value T)
	GetOrAdd(name string, value func() T) (T, bool)
	Del(name string) (T, bool)
	Len() int
	Each(fn func(name string, value T) bool)
	Clear()
}

type registry[T any] struct {
	values *haxmap.Map[string, T]
}

func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

func (r *registry[T]) Add(name string, value T) {
	r.values.Set(name, value)
}

// GetOrAdd returns the existing value for name, or stores the result of valueFn.
// The boolean reports whether the value was already present.
func (r *registry[T]) GetOrAdd(name string, valueFn func() T) (T, bool) {
	return r.values.GetOrCompute(name, valueFn)
}

// Del removes name and returns the value it held.
func (r *registry[T]) Del(name string) (T, bool) {
	v, ok := r.values.Get(name)
	if ok {
		r.values.Del(name)
	}
	return v, ok
}

func (r *registry[T]) Len() int {
	return int(r.values.Len())
}

// Each visits every entry until fn returns false. Iteration order is unspecified.
func (r *registry[T]) Each(fn func(name string, value T) bool) {
	r.values.ForEach(fn)
}

func (r *registry[T]) Clear() {
	var keys []string
	r.values.ForEach(func(k string, _ T) bool {
		keys = append(keys, k)
		return true
	})
	if len(keys) > 0 {
		r.values.Del(keys...)
	}
}
