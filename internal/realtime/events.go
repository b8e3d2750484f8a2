package realtime

import "github.com/p-blackswan/repodesk/internal/models"

// Push event types sent by the backend.
const (
	EventFileUploaded           = "FILE_UPLOADED"
	EventFileStatusChanged      = "FILE_STATUS_CHANGED"
	EventFileProcessingComplete = "FILE_PROCESSING_COMPLETE"
)

// Event is one push message: {type, repo_id, ...payload}. Files is nil when
// the frame carries no files array, which is not the same as an empty list.
type Event struct {
	Type    string          `json:"type"`
	RepoID  string          `json:"repo_id"`
	FileID  string          `json:"file_id,omitempty"`
	Status  string          `json:"status,omitempty"`
	Files   *[]models.File  `json:"files,omitempty"`
	Results []models.Result `json:"results,omitempty"`
}

// Event application outcomes, used as the metrics result label.
const (
	resultApplied   = "applied"
	resultIgnored   = "ignored"
	resultFailed    = "failed"
	resultUnknown   = "unknown"
	resultMalformed = "malformed"
)
