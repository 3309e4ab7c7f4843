package state

import "github.com/pkg/errors"

func newRing[T any](capacity uint64) *ring[T] {
	return &ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

type ring[T any] struct {
	items []T

	capacity                  uint64
	getPtr, commitPtr, putPtr uint64
}

func (r *ring[T]) Get() (T, error) {
	if r.getPtr == r.commitPtr {
		var t T
		return t, errors.New("no free item to get")
	}
	item := r.items[r.getPtr%r.capacity]
	r.getPtr++
	return item, nil
}

func (r *ring[T]) Put(item T) {
	if r.putPtr-r.getPtr == r.capacity {
		// This is really critical because it means that we deallocated more than allocated.
		panic("no space left in the ring")
	}

	r.items[r.putPtr%r.capacity] = item
	r.putPtr++
}

func (r *ring[T]) Commit() {
	r.commitPtr = r.putPtr
}
