package backend

import (
	"context"
	"io"

	"github.com/p-blackswan/repodesk/internal/apiclient"
	"github.com/p-blackswan/repodesk/internal/models"
)

// UploadFile sends content as the multipart field cur_file. source marks
// the file as an original input rather than a derived document.
func (a *API) UploadFile(ctx context.Context, repoID, filename string, content io.Reader, source bool) (models.File, error) {
	body := &apiclient.Multipart{
		Files: []apiclient.FilePart{{Field: "cur_file", Filename: filename, Content: content}},
	}
	var f models.File
	err := a.client.Post(ctx, "/files/upload", body, &f,
		apiclient.WithQuery("repo_id", repoID),
		apiclient.WithQuery("source", boolString(source)))
	return f, err
}

func (a *API) GetFileMetadata(ctx context.Context, repoID, fileID string, source bool) (models.File, error) {
	var f models.File
	err := a.client.Get(ctx, "/files/"+seg(fileID), &f,
		apiclient.WithQuery("repo_id", repoID),
		apiclient.WithQuery("source", boolString(source)))
	return f, err
}

// DownloadFile returns the raw file content.
func (a *API) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	var data []byte
	err := a.client.Get(ctx, "/files/"+seg(fileID)+"/download", &data,
		apiclient.WithHeader("Accept", "application/octet-stream"))
	return data, err
}

func (a *API) DeleteFile(ctx context.Context, fileID string) error {
	return a.client.Delete(ctx, "/files/"+seg(fileID), nil)
}

// GetFileJSONResult returns the structured processing result of a file.
func (a *API) GetFileJSONResult(ctx context.Context, fileID string) (models.ResultData, error) {
	var rd models.ResultData
	err := a.client.Get(ctx, "/files/json_res/"+seg(fileID), &rd)
	return rd, err
}
