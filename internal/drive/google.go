package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	docMimeType    = "application/vnd.google-apps.document"
	sheetMimeType  = "application/vnd.google-apps.spreadsheet"
	fileFields     = "id, name, mimeType, size, webViewLink, modifiedTime"
)

// GoogleSource reads from Google Drive.
type GoogleSource struct {
	svc *gdrive.Service
}

type GoogleConfig struct {
	CredentialsFile string
	APIKey          string
}

// NewGoogleSource authenticates with a service account file when set,
// otherwise with an API key.
func NewGoogleSource(ctx context.Context, cfg GoogleConfig) (*GoogleSource, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(gdrive.DriveReadonlyScope))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		return nil, fmt.Errorf("drive: credentials_file or api_key is required")
	}
	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: new service: %w", err)
	}
	return &GoogleSource{svc: svc}, nil
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func toMeta(f *gdrive.File) FileMeta {
	return FileMeta{
		ID:         f.Id,
		Name:       f.Name,
		MimeType:   f.MimeType,
		Size:       f.Size,
		URL:        f.WebViewLink,
		ModifiedAt: f.ModifiedTime,
	}
}

func (g *GoogleSource) FindFolder(ctx context.Context, name string) (*Folder, error) {
	q := fmt.Sprintf("name = %s and mimeType = '%s' and trashed = false", quote(name), folderMimeType)
	res, err := g.svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("drive: find folder: %w", err)
	}
	if len(res.Files) == 0 {
		return nil, nil
	}
	return &Folder{ID: res.Files[0].Id, Name: res.Files[0].Name}, nil
}

func (g *GoogleSource) ListFiles(ctx context.Context, folder Folder) ([]FileMeta, error) {
	q := fmt.Sprintf("%s in parents and mimeType != '%s' and trashed = false", quote(folder.ID), folderMimeType)
	var out []FileMeta
	err := g.svc.Files.List().Q(q).Fields("nextPageToken, files("+fileFields+")").OrderBy("name").PageSize(100).
		Pages(ctx, func(page *gdrive.FileList) error {
			for _, f := range page.Files {
				out = append(out, toMeta(f))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("drive: list files: %w", err)
	}
	return out, nil
}

func (g *GoogleSource) FindFile(ctx context.Context, folder Folder, name string) (*FileMeta, error) {
	q := fmt.Sprintf("name = %s and %s in parents and trashed = false", quote(name), quote(folder.ID))
	res, err := g.svc.Files.List().Q(q).Fields("files("+fileFields+")").PageSize(1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("drive: find file: %w", err)
	}
	if len(res.Files) == 0 {
		return nil, nil
	}
	meta := toMeta(res.Files[0])
	return &meta, nil
}

// GetContent exports Google Docs as plain text and Sheets as CSV. Other
// files are downloaded as stored.
func (g *GoogleSource) GetContent(ctx context.Context, file FileMeta) (string, error) {
	var (
		resp *http.Response
		err  error
	)
	switch file.MimeType {
	case docMimeType:
		resp, err = g.svc.Files.Export(file.ID, "text/plain").Context(ctx).Download()
	case sheetMimeType:
		resp, err = g.svc.Files.Export(file.ID, "text/csv").Context(ctx).Download()
	default:
		resp, err = g.svc.Files.Get(file.ID).Context(ctx).Download()
	}
	if err != nil {
		return "", fmt.Errorf("drive: download %s: %w", file.Name, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes+1))
	if err != nil {
		return "", fmt.Errorf("drive: read %s: %w", file.Name, err)
	}
	if len(data) > maxContentBytes {
		return "", ErrTooLarge
	}
	return string(data), nil
}
