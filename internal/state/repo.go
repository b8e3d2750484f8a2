package state

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/pkg/tabstore"
)

// RepoCache holds the repository the user is currently working in. The zero
// Repository (empty ID) means no repository is current.
type RepoCache struct {
	c      *cell[models.Repository]
	logger zerolog.Logger
}

func NewRepoCache(storage tabstore.Storage, logger zerolog.Logger) *RepoCache {
	logger = logger.With().Str("component", "repo_cache").Logger()
	return &RepoCache{
		c:      newCell(tabstore.KeyCurrentRepo, storage, logger, models.Repository.Clone),
		logger: logger,
	}
}

// Current returns a deep copy of the current repository.
func (r *RepoCache) Current() models.Repository { return r.c.get() }

// CurrentID returns the id of the current repository, or "".
func (r *RepoCache) CurrentID() string { return r.c.get().ID }

// Subscribe registers fn to be called after every committed mutation.
func (r *RepoCache) Subscribe(fn func(models.Repository)) (cancel func()) {
	return r.c.listeners.Subscribe(fn)
}

// SetCurrent replaces the current repository wholesale.
func (r *RepoCache) SetCurrent(ctx context.Context, repo models.Repository) error {
	if err := r.c.replace(ctx, repo); err != nil {
		return err
	}
	r.logger.Debug().Str("repo_id", repo.ID).Int("files", len(repo.Files)).Msg("current repository set")
	return nil
}

// Clear unsets the current repository and persists the empty snapshot.
func (r *RepoCache) Clear(ctx context.Context) error {
	return r.c.replace(ctx, models.Repository{})
}

// Reload resynchronises the cache from storage.
func (r *RepoCache) Reload(ctx context.Context) error { return r.c.reload(ctx) }

func (r *RepoCache) UpdateFiles(ctx context.Context, files []models.File) error {
	_, err := r.c.update(ctx, func(repo *models.Repository) bool {
		repo.Files = models.CloneFiles(files)
		return true
	})
	return err
}

func (r *RepoCache) UpdateResults(ctx context.Context, results []models.Result) error {
	_, err := r.c.update(ctx, func(repo *models.Repository) bool {
		repo.Results = models.CloneResults(results)
		return true
	})
	return err
}

func (r *RepoCache) UpdateNameAndDescription(ctx context.Context, name, desc string) error {
	_, err := r.c.update(ctx, func(repo *models.Repository) bool {
		repo.Name = name
		repo.Description = desc
		return true
	})
	return err
}

func (r *RepoCache) UpdateCollaborators(ctx context.Context, ids []string) error {
	_, err := r.c.update(ctx, func(repo *models.Repository) bool {
		repo.Collaborators = append([]string{}, ids...)
		return true
	})
	return err
}

// ReplaceFilesFor replaces the file list only when repoID is current.
func (r *RepoCache) ReplaceFilesFor(ctx context.Context, repoID string, files []models.File) (bool, error) {
	return r.c.update(ctx, func(repo *models.Repository) bool {
		if repoID == "" || repo.ID != repoID {
			return false
		}
		repo.Files = models.CloneFiles(files)
		return true
	})
}

// PatchFileStatusFor sets the status of one file when repoID is current and
// the file is listed. Every other field and the file order are kept.
func (r *RepoCache) PatchFileStatusFor(ctx context.Context, repoID, fileID, status string) (bool, error) {
	return r.c.update(ctx, func(repo *models.Repository) bool {
		if repoID == "" || repo.ID != repoID {
			return false
		}
		i := repo.FileIndex(fileID)
		if i < 0 {
			return false
		}
		repo.Files[i].Status = status
		return true
	})
}

// ReplaceResultsFor replaces the result list only when repoID is current.
func (r *RepoCache) ReplaceResultsFor(ctx context.Context, repoID string, results []models.Result) (bool, error) {
	return r.c.update(ctx, func(repo *models.Repository) bool {
		if repoID == "" || repo.ID != repoID {
			return false
		}
		repo.Results = models.CloneResults(results)
		return true
	})
}
