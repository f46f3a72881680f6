package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrUnauthorized = errors.New("storage: access token rejected")
	ErrNotFound     = errors.New("storage: path not found")
	ErrConflict     = errors.New("storage: path conflict")
	ErrRateLimited  = errors.New("storage: rate limited")
	ErrUnavailable  = errors.New("storage: temporarily unavailable")
	ErrUpstream     = errors.New("storage: request failed")
)

// Entry is a file or folder.
type Entry struct {
	Type           string     `json:"type"`
	ID             string     `json:"id,omitempty"`
	Name           string     `json:"name"`
	Path           string     `json:"path"`
	Size           uint64     `json:"size,omitempty"`
	Rev            string     `json:"rev,omitempty"`
	ServerModified *time.Time `json:"server_modified,omitempty"`
	ContentHash    string     `json:"content_hash,omitempty"`
}

const (
	EntryFile    = "file"
	EntryFolder  = "folder"
	EntryDeleted = "deleted"
)

type Link struct {
	URL   string `json:"url"`
	Entry Entry  `json:"entry"`
}

type Usage struct {
	Used      uint64 `json:"used"`
	Allocated uint64 `json:"allocated"`
}

// Client is the storage provider API. Every call authenticates with accessToken.
type Client interface {
	ListFolder(ctx context.Context, accessToken, path string) ([]Entry, error)
	CreateFolder(ctx context.Context, accessToken, path string) (Entry, error)
	Delete(ctx context.Context, accessToken, path string) (Entry, error)
	Move(ctx context.Context, accessToken, from, to string) (Entry, error)
	Upload(ctx context.Context, accessToken, path string, content io.Reader, overwrite bool) (Entry, error)
	// Download returns the file content; the caller closes it.
	Download(ctx context.Context, accessToken, path string) (io.ReadCloser, Entry, error)
	TemporaryLink(ctx context.Context, accessToken, path string) (Link, error)
	ListRevisions(ctx context.Context, accessToken, path string, limit int) ([]Entry, error)
	SpaceUsage(ctx context.Context, accessToken string) (Usage, error)
	GetTags(ctx context.Context, accessToken, path string) ([]string, error)
	AddTag(ctx context.Context, accessToken, path, tag string) error
	RemoveTag(ctx context.Context, accessToken, path, tag string) error
}
