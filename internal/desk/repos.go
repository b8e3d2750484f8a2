package desk

import (
	"context"
	"errors"
	"slices"

	perrors "github.com/p-blackswan/repodesk/internal/errors"
	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/internal/retry"
)

// OpenRepo makes repoID the current repository, opens its push channel and
// loads the chat history when it can.
func (d *Desk) OpenRepo(ctx context.Context, repoID string) (models.Repository, error) {
	repo, err := retry.Value(ctx, d.retry, func(ctx context.Context) (models.Repository, error) {
		return d.API.GetRepo(ctx, repoID)
	})
	if err != nil {
		return models.Repository{}, err
	}
	if repo.ID == "" {
		repo.ID = repoID
	}
	if err := d.Repo.SetCurrent(ctx, repo); err != nil {
		return models.Repository{}, err
	}
	if err := d.File.Clear(ctx); err != nil {
		return models.Repository{}, err
	}
	if err := d.Channel.Connect(ctx, repo.ID); err != nil {
		return models.Repository{}, err
	}
	d.loadChat(ctx, repo.ID)
	return d.Repo.Current(), nil
}

func (d *Desk) loadChat(ctx context.Context, repoID string) {
	empty := models.ChatHistory{RepoID: repoID}
	userID, err := d.userID()
	if err != nil {
		if err := d.Chat.Set(ctx, empty); err != nil {
			d.logger.Warn().Err(err).Msg("failed to store chat history")
		}
		return
	}
	empty.UserID = userID

	h, err := retry.Value(ctx, d.retry, func(ctx context.Context) (models.ChatHistory, error) {
		return d.API.ChatHistory(ctx, userID, repoID)
	})
	if err != nil {
		if !errors.Is(err, perrors.ErrNotFound) {
			d.logger.Warn().Err(err).Str("repo_id", repoID).Msg("failed to load chat history")
		}
		h = empty
	}
	if err := d.Chat.Set(ctx, h); err != nil {
		d.logger.Warn().Err(err).Msg("failed to store chat history")
	}
}

// CloseRepo leaves the current repository.
func (d *Desk) CloseRepo(ctx context.Context) error {
	d.Channel.Disconnect()
	d.Results.Clear()
	return errors.Join(d.Repo.Clear(ctx), d.File.Clear(ctx), d.Chat.Clear(ctx))
}

// CreateRepo creates a repository owned by the signed-in user.
func (d *Desk) CreateRepo(ctx context.Context, name, desc string) (models.Repository, error) {
	ownerID, err := d.userID()
	if err != nil {
		return models.Repository{}, err
	}
	repo, err := d.API.CreateRepo(ctx, ownerID, name, desc)
	if err != nil {
		return models.Repository{}, err
	}
	if repo.ID != "" {
		owned := d.Session.Snapshot().Repos
		if !slices.Contains(owned, repo.ID) {
			if err := d.Session.UpdateRepos(ctx, append(owned, repo.ID)); err != nil {
				return repo, err
			}
		}
	}
	return repo, nil
}

// DeleteRepo deletes a repository and closes it when it is the current one.
func (d *Desk) DeleteRepo(ctx context.Context, repoID string) error {
	if err := d.API.DeleteRepo(ctx, repoID); err != nil {
		return err
	}
	owned := d.Session.Snapshot().Repos
	if i := slices.Index(owned, repoID); i >= 0 {
		if err := d.Session.UpdateRepos(ctx, slices.Delete(owned, i, i+1)); err != nil {
			return err
		}
	}
	if d.Repo.CurrentID() == repoID {
		return d.CloseRepo(ctx)
	}
	return nil
}

// UpdateRepo renames and/or redescribes the current repository. Only the
// fields that changed are sent.
func (d *Desk) UpdateRepo(ctx context.Context, name, desc string) error {
	cur := d.Repo.Current()
	if cur.ID == "" {
		return ErrNoRepository
	}
	if name == cur.Name && desc == cur.Description {
		return nil
	}
	if name != cur.Name {
		if err := d.API.UpdateRepoName(ctx, cur.ID, name, desc); err != nil {
			return err
		}
	}
	if desc != cur.Description {
		if err := d.API.UpdateRepoDesc(ctx, cur.ID, name, desc); err != nil {
			// The rename already landed on the server.
			if name != cur.Name {
				return errors.Join(err, d.Repo.UpdateNameAndDescription(ctx, name, cur.Description))
			}
			return err
		}
	}
	return d.Repo.UpdateNameAndDescription(ctx, name, desc)
}

// AddCollaborator grants userID access to the current repository.
func (d *Desk) AddCollaborator(ctx context.Context, userID string) error {
	cur := d.Repo.Current()
	if cur.ID == "" {
		return ErrNoRepository
	}
	if err := d.API.AddCollaborator(ctx, cur.ID, userID); err != nil {
		return err
	}
	if slices.Contains(cur.Collaborators, userID) {
		return nil
	}
	return d.Repo.UpdateCollaborators(ctx, append(cur.Collaborators, userID))
}
