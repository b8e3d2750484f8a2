package desk

import (
	"context"
	"errors"
	"io"

	perrors "github.com/p-blackswan/repodesk/internal/errors"
	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/internal/realtime"
	"github.com/p-blackswan/repodesk/internal/retry"
)

// Upload stores a file in the current repository, refreshes the file list
// and tells the push channel about it. A failed upload leaves the cache as
// it was.
func (d *Desk) Upload(ctx context.Context, filename string, content io.Reader, source bool) (models.File, error) {
	repoID, err := d.currentRepoID()
	if err != nil {
		return models.File{}, err
	}
	file, err := d.API.UploadFile(ctx, repoID, filename, content, source)
	if err != nil {
		return models.File{}, err
	}

	files, err := d.refetchFiles(ctx, repoID)
	if err != nil {
		d.logger.Warn().Err(err).Msg("failed to refetch files after upload")
		files = d.Repo.Current().Files
		if file.FileID != "" && indexOf(files, file.FileID) < 0 {
			files = append(files, file)
		}
	}
	if _, err := d.Repo.ReplaceFilesFor(ctx, repoID, files); err != nil {
		return file, err
	}

	err = d.Channel.Send(ctx, realtime.EventFileUploaded, map[string]any{
		"repo_id": repoID,
		"files":   files,
	})
	if err != nil && !errors.Is(err, realtime.ErrNotConnected) {
		d.logger.Warn().Err(err).Msg("failed to announce upload")
	}
	return file, nil
}

func (d *Desk) refetchFiles(ctx context.Context, repoID string) ([]models.File, error) {
	repo, err := retry.Value(ctx, d.retry, func(ctx context.Context) (models.Repository, error) {
		return d.API.GetRepo(ctx, repoID)
	})
	if err != nil {
		return nil, err
	}
	return repo.Files, nil
}

// DeleteFile removes a file from the current repository.
func (d *Desk) DeleteFile(ctx context.Context, fileID string) error {
	repoID, err := d.currentRepoID()
	if err != nil {
		return err
	}
	if err := d.API.DeleteFile(ctx, fileID); err != nil {
		return err
	}

	files := d.Repo.Current().Files
	if i := indexOf(files, fileID); i >= 0 {
		files = append(files[:i], files[i+1:]...)
		if _, err := d.Repo.ReplaceFilesFor(ctx, repoID, files); err != nil {
			return err
		}
	}
	d.Results.Invalidate(fileID)
	if d.File.Current().FileID == fileID {
		return d.File.Clear(ctx)
	}
	return nil
}

// Process starts server-side processing of a file. Progress arrives over
// the push channel; a failure leaves the cache as it was.
func (d *Desk) Process(ctx context.Context, fileID string, multi bool) (models.ProcessTask, error) {
	repoID, err := d.currentRepoID()
	if err != nil {
		return models.ProcessTask{}, err
	}
	if multi {
		return d.API.MultiProcessFile(ctx, repoID, fileID)
	}
	return d.API.ProcessFile(ctx, repoID, fileID)
}

func (d *Desk) Tasks(ctx context.Context, fileID string) (models.TaskList, error) {
	return d.API.ListTasks(ctx, fileID)
}

func (d *Desk) CancelTask(ctx context.Context, taskID string) error {
	return d.API.CancelTask(ctx, taskID)
}

// SelectFile opens a file of the current repository together with its
// structured result. A file that has not been processed yet has an empty
// result.
func (d *Desk) SelectFile(ctx context.Context, fileID string) (models.FileView, error) {
	repoID, err := d.currentRepoID()
	if err != nil {
		return models.FileView{}, err
	}

	files := d.Repo.Current().Files
	var file models.File
	if i := indexOf(files, fileID); i >= 0 {
		file = files[i]
	} else if file, err = d.API.GetFileMetadata(ctx, repoID, fileID, false); err != nil {
		return models.FileView{}, err
	}

	data, err := d.result(ctx, fileID)
	if err != nil {
		return models.FileView{}, err
	}
	if err := d.File.Set(ctx, file, data); err != nil {
		return models.FileView{}, err
	}
	return d.File.Current(), nil
}

// result returns the extraction result of fileID, served from the result
// cache when possible. A file without a result yet yields an empty value
// that is not cached.
func (d *Desk) result(ctx context.Context, fileID string) (models.ResultData, error) {
	if data, ok := d.Results.Get(fileID); ok {
		return data, nil
	}
	data, err := retry.Value(ctx, d.retry, func(ctx context.Context) (models.ResultData, error) {
		return d.API.GetFileJSONResult(ctx, fileID)
	})
	if errors.Is(err, perrors.ErrNotFound) {
		return models.ResultData{}, nil
	}
	if err != nil {
		return models.ResultData{}, err
	}
	if len(data.Content) > 0 {
		d.Results.Put(fileID, data)
	}
	return data, nil
}

// Download returns the content of a file.
func (d *Desk) Download(ctx context.Context, fileID string) ([]byte, error) {
	return retry.Value(ctx, d.retry, func(ctx context.Context) ([]byte, error) {
		return d.API.DownloadFile(ctx, fileID)
	})
}

func indexOf(files []models.File, fileID string) int {
	for i := range files {
		if files[i].FileID == fileID {
			return i
		}
	}
	return -1
}
