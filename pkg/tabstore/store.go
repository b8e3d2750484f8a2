// Package tabstore provides key/value storage scoped to a single client tab.
//
// A tab is one client process instance. Each store carries its own tab id and
// never exposes entries written under another tab id, so two tabs can hold
// independent sessions even when they share a backing database.
package tabstore

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("tab store closed")
)

// Well-known keys persisted by the client stores.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyCurrentRepo  = "currentRepo"
	KeyCurrentFile  = "currentFile"
	KeyChatHistory  = "chatHistory"
)

// Storage defines the tab-scoped storage interface.
type Storage interface {
	// TabID returns the ephemeral identifier this store is scoped to.
	TabID() string
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists the keys currently stored for this tab.
	Keys(ctx context.Context) ([]string, error)
	// Clear removes every entry for this tab.
	Clear(ctx context.Context) error
}
