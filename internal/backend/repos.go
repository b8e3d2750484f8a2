package backend

import (
	"context"

	"github.com/p-blackswan/repodesk/internal/apiclient"
	"github.com/p-blackswan/repodesk/internal/models"
)

func (a *API) GetRepo(ctx context.Context, repoID string) (models.Repository, error) {
	var repo models.Repository
	err := a.client.Get(ctx, "/repos/"+seg(repoID), &repo)
	return repo, err
}

func (a *API) CreateRepo(ctx context.Context, ownerID, name, desc string) (models.Repository, error) {
	var repo models.Repository
	err := a.client.Post(ctx, "/repos/", models.CreateRepoRequest{Name: name, Description: desc}, &repo,
		apiclient.WithQuery("owner_id", ownerID))
	return repo, err
}

func (a *API) DeleteRepo(ctx context.Context, repoID string) error {
	return a.client.Delete(ctx, "/repos/"+seg(repoID), nil)
}

// UpdateRepoName and UpdateRepoDesc both send the full pair; the backend
// reads the field matching the endpoint.
func (a *API) UpdateRepoName(ctx context.Context, repoID, name, desc string) error {
	req := models.UpdateRepoRequest{NewName: name, NewDescription: desc}
	return a.client.Put(ctx, "/repos/"+seg(repoID)+"/name", req, nil)
}

func (a *API) UpdateRepoDesc(ctx context.Context, repoID, name, desc string) error {
	req := models.UpdateRepoRequest{NewName: name, NewDescription: desc}
	return a.client.Put(ctx, "/repos/"+seg(repoID)+"/desc", req, nil)
}

func (a *API) AddCollaborator(ctx context.Context, repoID, userID string) error {
	return a.client.Post(ctx, "/repos/"+seg(repoID)+"/collaborators",
		models.CollaboratorRequest{CollaboratorID: userID}, nil)
}
