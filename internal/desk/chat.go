package desk

import (
	"context"
	"io"
	"time"

	"github.com/p-blackswan/repodesk/internal/models"
)

// Ask asks the assistant about the current repository.
func (d *Desk) Ask(ctx context.Context, message string) (models.Exchange, error) {
	return d.ask(ctx, message, func(userID, repoID string) (models.ChatMessage, error) {
		return d.API.Ask(ctx, userID, repoID, message)
	})
}

// AskAboutFile asks about one file of the current repository.
func (d *Desk) AskAboutFile(ctx context.Context, message, fileID string) (models.Exchange, error) {
	return d.ask(ctx, message, func(userID, repoID string) (models.ChatMessage, error) {
		return d.API.AskAboutFile(ctx, userID, repoID, message, fileID)
	})
}

// AskAboutFiles asks about several files of the current repository.
func (d *Desk) AskAboutFiles(ctx context.Context, message string, fileIDs []string) (models.Exchange, error) {
	return d.ask(ctx, message, func(userID, repoID string) (models.ChatMessage, error) {
		return d.API.AskAboutFiles(ctx, userID, repoID, message, fileIDs)
	})
}

// AskWithUpload asks about a file that is not stored in the repository.
func (d *Desk) AskWithUpload(ctx context.Context, message, filename string, content io.Reader) (models.Exchange, error) {
	return d.ask(ctx, message, func(userID, repoID string) (models.ChatMessage, error) {
		return d.API.AskWithUpload(ctx, userID, repoID, message, filename, content)
	})
}

func (d *Desk) ask(ctx context.Context, message string, call func(userID, repoID string) (models.ChatMessage, error)) (models.Exchange, error) {
	userID, err := d.userID()
	if err != nil {
		return models.Exchange{}, err
	}
	repoID, err := d.currentRepoID()
	if err != nil {
		return models.Exchange{}, err
	}

	question := models.ChatMessage{
		Sayer:     models.SayerUser,
		Text:      message,
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}
	answer, err := call(userID, repoID)
	if err != nil {
		return models.Exchange{}, err
	}
	if !answer.Sayer.Valid() {
		answer.Sayer = models.SayerAssistant
	}
	ex := models.Exchange{Question: question, Answer: answer}

	if h := d.Chat.Current(); h.RepoID != repoID {
		if err := d.Chat.Set(ctx, models.ChatHistory{UserID: userID, RepoID: repoID}); err != nil {
			return ex, err
		}
	}
	return ex, d.Chat.Append(ctx, ex)
}

// ChatHistory reloads the conversation of the current repository from the server.
func (d *Desk) ChatHistory(ctx context.Context) (models.ChatHistory, error) {
	userID, err := d.userID()
	if err != nil {
		return models.ChatHistory{}, err
	}
	repoID, err := d.currentRepoID()
	if err != nil {
		return models.ChatHistory{}, err
	}
	h, err := d.API.ChatHistory(ctx, userID, repoID)
	if err != nil {
		return models.ChatHistory{}, err
	}
	if err := d.Chat.Set(ctx, h); err != nil {
		return models.ChatHistory{}, err
	}
	return d.Chat.Current(), nil
}
