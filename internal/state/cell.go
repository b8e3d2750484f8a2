// Package state holds the client-side caches of server-owned state: the
// current repository, the currently opened file and the chat history.
//
// Each cache keeps one JSON snapshot under a well-known tab storage key and
// re-persists the whole snapshot after every mutation. Subscribers are called
// synchronously after the mutation is committed, outside the cache lock.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/repodesk/internal/observe"
	"github.com/p-blackswan/repodesk/pkg/tabstore"
)

// cell is a persisted value of type T.
type cell[T any] struct {
	key     string
	storage tabstore.Storage
	logger  zerolog.Logger
	clone   func(T) T

	mu sync.Mutex
	v  T

	listeners observe.Listeners[T]
}

func newCell[T any](key string, storage tabstore.Storage, logger zerolog.Logger, clone func(T) T) *cell[T] {
	return &cell[T]{
		key:     key,
		storage: storage,
		logger:  logger,
		clone:   clone,
	}
}

func (c *cell[T]) get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clone(c.v)
}

// update applies fn to a copy of the value. When fn returns false nothing is
// persisted or notified.
func (c *cell[T]) update(ctx context.Context, fn func(*T) bool) (bool, error) {
	c.mu.Lock()
	next := c.clone(c.v)
	if !fn(&next) {
		c.mu.Unlock()
		return false, nil
	}
	if err := c.persist(ctx, next); err != nil {
		c.mu.Unlock()
		return false, err
	}
	c.v = next
	c.mu.Unlock()

	c.listeners.Notify(c.clone(next))
	return true, nil
}

func (c *cell[T]) replace(ctx context.Context, v T) error {
	_, err := c.update(ctx, func(cur *T) bool {
		*cur = c.clone(v)
		return true
	})
	return err
}

// reload replaces the value with the persisted snapshot. A missing key
// yields the zero value; an unreadable snapshot is discarded.
func (c *cell[T]) reload(ctx context.Context) error {
	var next T
	raw, err := c.storage.Get(ctx, c.key)
	switch {
	case errors.Is(err, tabstore.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("reading %s: %w", c.key, err)
	default:
		if err := json.Unmarshal([]byte(raw), &next); err != nil {
			c.logger.Warn().Err(err).Str("key", c.key).Msg("discarding unreadable snapshot")
			var zero T
			next = zero
		}
	}

	c.mu.Lock()
	changed := !reflect.DeepEqual(c.v, next)
	c.v = next
	c.mu.Unlock()

	if changed {
		c.listeners.Notify(c.clone(next))
	}
	return nil
}

func (c *cell[T]) persist(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", c.key, err)
	}
	if err := c.storage.Set(ctx, c.key, string(raw)); err != nil {
		return fmt.Errorf("persisting %s: %w", c.key, err)
	}
	return nil
}
