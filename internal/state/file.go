package state

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/pkg/tabstore"
)

// FileCache holds the file the user has opened together with its
// structured result.
type FileCache struct {
	c *cell[models.FileView]
}

func NewFileCache(storage tabstore.Storage, logger zerolog.Logger) *FileCache {
	logger = logger.With().Str("component", "file_cache").Logger()
	return &FileCache{c: newCell(tabstore.KeyCurrentFile, storage, logger, models.FileView.Clone)}
}

func (f *FileCache) Current() models.FileView { return f.c.get() }

func (f *FileCache) Set(ctx context.Context, file models.File, data models.ResultData) error {
	return f.c.replace(ctx, models.FileView{File: file, ResultData: data})
}

func (f *FileCache) Clear(ctx context.Context) error {
	return f.c.replace(ctx, models.FileView{})
}

func (f *FileCache) Reload(ctx context.Context) error { return f.c.reload(ctx) }

func (f *FileCache) Subscribe(fn func(models.FileView)) (cancel func()) {
	return f.c.listeners.Subscribe(fn)
}
