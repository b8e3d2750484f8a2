// Package observe implements the synchronous subscriber lists the client
// stores use to notify UI observers after each committed mutation.
package observe

import (
	"sort"
	"sync"
)

// Listeners is a set of callbacks receiving values of type T. The zero value
// is ready to use.
type Listeners[T any] struct {
	mu   sync.Mutex
	next uint64
	fns  map[uint64]func(T)
}

// Subscribe registers fn and returns a function that removes it. The
// returned cancel func is idempotent.
func (l *Listeners[T]) Subscribe(fn func(T)) (cancel func()) {
	l.mu.Lock()
	if l.fns == nil {
		l.fns = make(map[uint64]func(T))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

// Notify calls every listener in subscription order on the calling
// goroutine. Callers must not hold their own locks while notifying.
func (l *Listeners[T]) Notify(v T) {
	l.mu.Lock()
	ids := make([]uint64, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered listeners.
func (l *Listeners[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
