// Package generic holds small type-safe wrappers over standard containers.
package generic

import "sync"

// Pool is a typed sync.Pool. Values handed back through Put pass through
// reset first when one is set.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T) T
}

func NewPool[T any](generate func() T, reset func(T) T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
		reset: reset,
	}
}

// NewHotPool pre-fills the pool with hotSize values.
func NewHotPool[T any](generate func() T, reset func(T) T, hotSize int) *Pool[T] {
	p := NewPool(generate, reset)
	for i := 0; i < hotSize; i++ {
		p.pool.Put(generate())
	}
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		value = p.reset(value)
	}
	p.pool.Put(value)
}

// NewBufferPool pools byte slices with at least size capacity. Buffers that
// grew past limit are dropped instead of pooled.
func NewBufferPool(size, limit int) *Pool[*[]byte] {
	return NewPool(
		func() *[]byte {
			b := make([]byte, 0, size)
			return &b
		},
		func(b *[]byte) *[]byte {
			if cap(*b) > limit {
				fresh := make([]byte, 0, size)
				return &fresh
			}
			*b = (*b)[:0]
			return b
		},
	)
}
