package shared

import (
	"encoding/json"

	"github.com/freekieb7/go-drawer/internal/storage"
)

const (
	// Error messages
	ErrInvalidRequestBody = "Invalid request body"
	ErrInvalidRequest     = "Invalid request"
	ErrInvalidFields      = "Invalid request fields"
	ErrPathNotFound       = "Path not found"
	ErrPathConflict       = "A file or folder already exists at that path"
	ErrUploadTooLarge     = "Upload exceeds the maximum size"
	ErrInvalidDocument    = "Document must be valid JSON"
	ErrUnknownDocument    = "Unknown app data document"
	ErrNotAFile           = "Path is a folder"
)

// File-related types
type ListFilesResponse struct {
	Path    string          `json:"path"`
	Entries []storage.Entry `json:"entries"`
}

type MoveRequest struct {
	From string `json:"from" validate:"required,startswith=/,max=4096"`
	To   string `json:"to" validate:"required,startswith=/,max=4096,nefield=From"`
}

type CreateFolderRequest struct {
	Path string `json:"path" validate:"required,startswith=/,max=4096"`
}

type PreviewResponse struct {
	URL   string        `json:"url"`
	Entry storage.Entry `json:"entry"`
}

type RevisionsResponse struct {
	Path      string          `json:"path"`
	Revisions []storage.Entry `json:"revisions"`
}

type QuotaResponse struct {
	Used      uint64  `json:"used"`
	Allocated uint64  `json:"allocated"`
	Percent   float64 `json:"percent"`
}

// Tag-related types
type TagsResponse struct {
	Path string   `json:"path"`
	Tags []string `json:"tags"`
}

type TagRequest struct {
	Path string `json:"path" validate:"required,startswith=/,max=4096"`
	// Tags are lowercase words, as the storage provider normalises them.
	Tag string `json:"tag" validate:"required,min=1,max=32,alphanum"`
}

// App data types
type AppDataResponse struct {
	Name     string          `json:"name"`
	Document json.RawMessage `json:"document"`
}

// Summary types
type SummaryRequest struct {
	Path string `json:"path" validate:"required,startswith=/,max=4096"`
}

type SummaryResponse struct {
	Path      string `json:"path"`
	Summary   string `json:"summary"`
	Truncated bool   `json:"truncated"`
}
