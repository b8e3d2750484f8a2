package backend

import (
	"context"
	"io"

	"github.com/p-blackswan/repodesk/internal/apiclient"
	"github.com/p-blackswan/repodesk/internal/models"
)

func (a *API) ChatHistory(ctx context.Context, userID, repoID string) (models.ChatHistory, error) {
	var h models.ChatHistory
	err := a.client.Get(ctx, "/chat/", &h,
		apiclient.WithQuery("user_id", userID),
		apiclient.WithQuery("repo_id", repoID))
	return h, err
}

func chatPath(userID, repoID string) string {
	return "/chat/" + seg(userID) + "/" + seg(repoID)
}

// Ask sends a question about the repository and returns the assistant reply.
func (a *API) Ask(ctx context.Context, userID, repoID, message string) (models.ChatMessage, error) {
	var reply models.ChatMessage
	err := a.client.Post(ctx, chatPath(userID, repoID), nil, &reply,
		apiclient.WithQuery("message", message))
	return reply, err
}

// AskWithUpload attaches a file that is not part of the repository.
func (a *API) AskWithUpload(ctx context.Context, userID, repoID, message, filename string, content io.Reader) (models.ChatMessage, error) {
	body := &apiclient.Multipart{
		Files: []apiclient.FilePart{{Field: "file", Filename: filename, Content: content}},
	}
	var reply models.ChatMessage
	err := a.client.Post(ctx, chatPath(userID, repoID)+"/with-file", body, &reply,
		apiclient.WithQuery("message", message),
		apiclient.WithTimeout(ChatFileTimeout))
	return reply, err
}

// AskAboutFile asks about one file already in the repository.
func (a *API) AskAboutFile(ctx context.Context, userID, repoID, message, fileID string) (models.ChatMessage, error) {
	var reply models.ChatMessage
	err := a.client.Post(ctx, chatPath(userID, repoID)+"/file", nil, &reply,
		apiclient.WithQuery("file_id", fileID),
		apiclient.WithQuery("message", message),
		apiclient.WithTimeout(ChatFileTimeout))
	return reply, err
}

// AskAboutFiles asks about several repository files at once.
func (a *API) AskAboutFiles(ctx context.Context, userID, repoID, message string, fileIDs []string) (models.ChatMessage, error) {
	if fileIDs == nil {
		fileIDs = []string{}
	}
	var reply models.ChatMessage
	err := a.client.Post(ctx, chatPath(userID, repoID)+"/multiple_files", fileIDs, &reply,
		apiclient.WithQuery("message", message),
		apiclient.WithTimeout(ChatMultiFileTimeout))
	return reply, err
}
