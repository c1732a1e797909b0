// Package drive resolves folders and files in external document storage and
// fetches their text content.
package drive

import (
	"context"
	"errors"
)

// maxContentBytes caps the size of a fetched document.
const maxContentBytes = 10 << 20

var (
	ErrTooLarge      = errors.New("drive: file content exceeds size limit")
	ErrNotConfigured = errors.New("drive: file source not configured")
)

type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type FileMeta struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MimeType   string `json:"mimeType,omitempty"`
	Size       int64  `json:"size"`
	URL        string `json:"url,omitempty"`
	ModifiedAt string `json:"modifiedAt,omitempty"`
}

// Source looks up documents by name. FindFolder and FindFile return nil and
// no error when nothing matches.
type Source interface {
	FindFolder(ctx context.Context, name string) (*Folder, error)
	ListFiles(ctx context.Context, folder Folder) ([]FileMeta, error)
	FindFile(ctx context.Context, folder Folder, name string) (*FileMeta, error)
	GetContent(ctx context.Context, file FileMeta) (string, error)
}
