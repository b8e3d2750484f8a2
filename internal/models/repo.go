package models

import (
	"strconv"
	"time"
)

// File is an uploaded file as listed in a repository.
type File struct {
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploaded_at"`
	// Status is a progress fraction in [0,1] encoded as a string while the
	// server is working, or a terminal token once it is done.
	Status string `json:"status"`
}

// Progress parses Status as a fraction. ok is false for terminal tokens.
func (f File) Progress() (fraction float64, ok bool) {
	return parseProgress(f.Status)
}

// UploadedTime parses UploadedAt, accepting RFC 3339 with or without a zone.
func (f File) UploadedTime() (time.Time, bool) {
	return parseTimestamp(f.UploadedAt)
}

// Result is a file produced by server-side processing.
type Result struct {
	SourceFile bool   `json:"source_file"`
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploaded_at"`
	Status     string `json:"status"`
}

// Repository groups uploaded files, derived results and collaborators.
type Repository struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"desc"`
	OwnerID       string   `json:"owner_id"`
	Collaborators []string `json:"collaborators"`
	Files         []File   `json:"files"`
	Results       []Result `json:"results"`
}

// Clone returns a deep copy so callers can never alias cache internals.
func (r Repository) Clone() Repository {
	r.Collaborators = cloneStrings(r.Collaborators)
	r.Files = CloneFiles(r.Files)
	r.Results = CloneResults(r.Results)
	return r
}

// FileIndex returns the position of fileID in Files, or -1.
func (r Repository) FileIndex(fileID string) int {
	for i := range r.Files {
		if r.Files[i].FileID == fileID {
			return i
		}
	}
	return -1
}

func CloneFiles(in []File) []File {
	if in == nil {
		return nil
	}
	out := make([]File, len(in))
	copy(out, in)
	return out
}

func CloneResults(in []Result) []Result {
	if in == nil {
		return nil
	}
	out := make([]Result, len(in))
	copy(out, in)
	return out
}

// CreateRepoRequest is the body of POST /repos/.
type CreateRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"desc"`
}

// UpdateRepoRequest is the body of PUT /repos/{id}/name and /desc. The backend
// expects both fields on either endpoint.
type UpdateRepoRequest struct {
	NewName        string `json:"new_name"`
	NewDescription string `json:"new_desc"`
}

// CollaboratorRequest is the body of POST /repos/{id}/collaborators.
type CollaboratorRequest struct {
	CollaboratorID string `json:"collaborator_id"`
}

// ResultItem is one key/value row of a processed result section.
type ResultItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ResultData is the structured output attached to the current file.
type ResultData struct {
	ResID   string                  `json:"res_id"`
	FileID  string                  `json:"file_id"`
	Content map[string][]ResultItem `json:"content"`
}

// FileView is the file currently opened by the user.
type FileView struct {
	File
	ResultData ResultData `json:"resultData"`
}

// Clone returns a deep copy.
func (v FileView) Clone() FileView {
	if v.ResultData.Content != nil {
		content := make(map[string][]ResultItem, len(v.ResultData.Content))
		for k, items := range v.ResultData.Content {
			cp := make([]ResultItem, len(items))
			copy(cp, items)
			content[k] = cp
		}
		v.ResultData.Content = content
	}
	return v
}

// ProcessTask is returned when processing is triggered.
type ProcessTask struct {
	Message string `json:"message"`
	FileID  string `json:"file_id"`
	TaskID  string `json:"task_id"`
	RepoID  string `json:"repo_id"`
}

// TaskStatus is one entry of GET /process/files/{id}/tasks.
type TaskStatus struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// TaskList lists processing tasks of a file, newest first.
type TaskList struct {
	FileID string       `json:"file_id"`
	Tasks  []TaskStatus `json:"tasks"`
}

func parseProgress(status string) (float64, bool) {
	f, err := strconv.ParseFloat(status, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
