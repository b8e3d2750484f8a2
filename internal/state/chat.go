package state

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/pkg/tabstore"
)

// ChatStore holds the chat history of the current repository. Exchanges are
// only ever appended.
type ChatStore struct {
	c *cell[models.ChatHistory]
}

func NewChatStore(storage tabstore.Storage, logger zerolog.Logger) *ChatStore {
	logger = logger.With().Str("component", "chat_store").Logger()
	return &ChatStore{c: newCell(tabstore.KeyChatHistory, storage, logger, models.ChatHistory.Clone)}
}

func (s *ChatStore) Current() models.ChatHistory { return s.c.get() }

// Set replaces the history, typically with the one fetched from the server.
func (s *ChatStore) Set(ctx context.Context, h models.ChatHistory) error {
	return s.c.replace(ctx, h)
}

// Append adds one exchange to the end of the history.
func (s *ChatStore) Append(ctx context.Context, ex models.Exchange) error {
	_, err := s.c.update(ctx, func(h *models.ChatHistory) bool {
		h.Texts = append(h.Texts, ex)
		return true
	})
	return err
}

func (s *ChatStore) Clear(ctx context.Context) error {
	return s.c.replace(ctx, models.ChatHistory{})
}

func (s *ChatStore) Reload(ctx context.Context) error { return s.c.reload(ctx) }

func (s *ChatStore) Subscribe(fn func(models.ChatHistory)) (cancel func()) {
	return s.c.listeners.Subscribe(fn)
}
