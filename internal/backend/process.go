package backend

import (
	"context"

	"github.com/p-blackswan/repodesk/internal/apiclient"
	"github.com/p-blackswan/repodesk/internal/models"
)

// ProcessFile starts single-pass processing of a file.
func (a *API) ProcessFile(ctx context.Context, repoID, fileID string) (models.ProcessTask, error) {
	return a.process(ctx, repoID, fileID, "process")
}

// MultiProcessFile starts the multi-stage pipeline on a file.
func (a *API) MultiProcessFile(ctx context.Context, repoID, fileID string) (models.ProcessTask, error) {
	return a.process(ctx, repoID, fileID, "multiprocess")
}

func (a *API) process(ctx context.Context, repoID, fileID, op string) (models.ProcessTask, error) {
	var task models.ProcessTask
	err := a.client.Post(ctx, "/process/"+seg(fileID)+"/"+op, nil, &task,
		apiclient.WithQuery("repo_id", repoID))
	return task, err
}

func (a *API) ListTasks(ctx context.Context, fileID string) (models.TaskList, error) {
	var list models.TaskList
	err := a.client.Get(ctx, "/process/files/"+seg(fileID)+"/tasks", &list)
	return list, err
}

func (a *API) CancelTask(ctx context.Context, taskID string) error {
	return a.client.Delete(ctx, "/process/task/"+seg(taskID)+"/cancel", nil)
}
