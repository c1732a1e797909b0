package engine

import (
	"context"
	"database/sql"
	"mime"
	"path/filepath"
	"strings"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/events"
	"digitalcoo/internal/repo"
)

type FileInput struct {
	Name      *string
	ProjectID *string
	MimeType  *string
	Type      *string
	Content   *string
}

func applyFileInput(f *domain.File, in FileInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return invalid("name", "is required")
		}
		f.Name = name
	}
	if in.ProjectID != nil {
		f.ProjectID = trimmedPtr(in.ProjectID)
	}
	if in.MimeType != nil {
		f.MimeType = strings.TrimSpace(*in.MimeType)
	}
	if in.Type != nil {
		if !domain.OneOf(*in.Type, domain.FileTypes) {
			return invalid("type", "must be one of "+strings.Join(domain.FileTypes, ", "))
		}
		f.Type = *in.Type
	}
	if in.Content != nil {
		f.Content = *in.Content
		f.Size = int64(len(f.Content))
	}
	f.IsMasterDocument = f.Type == domain.FileTypeMasterDocument
	if f.MimeType == "" {
		f.MimeType = mime.TypeByExtension(filepath.Ext(f.Name))
	}
	return nil
}

func (e Engine) checkProject(ctx context.Context, tx *sql.Tx, userID string, projectID *string) error {
	if projectID == nil {
		return nil
	}
	if _, err := e.Repo.GetProject(ctx, tx, userID, *projectID); err != nil {
		return notFound(err, "project", *projectID)
	}
	return nil
}

// CreateFile stores an uploaded document. Master documents are the source
// material for social posts.
func (e Engine) CreateFile(ctx context.Context, userID string, in FileInput) (domain.File, error) {
	if in.Name == nil {
		return domain.File{}, invalid("name", "is required")
	}
	now := e.stamp()
	f := domain.File{
		ID:        newID(),
		UserID:    userID,
		Type:      domain.FileTypeInput,
		Source:    domain.FileSourceUpload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyFileInput(&f, in); err != nil {
		return domain.File{}, err
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.checkProject(ctx, tx, userID, f.ProjectID); err != nil {
			return err
		}
		if err := e.Repo.InsertFile(ctx, tx, f); err != nil {
			return err
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.FileUploaded,
			Description: "Uploaded file: " + f.Name,
			EntityType:  "file",
			EntityID:    f.ID,
			Metadata:    events.Metadata{"type": f.Type, "size": f.Size},
		})
	})
	if err != nil {
		return domain.File{}, err
	}
	return f, nil
}

func (e Engine) GetFile(ctx context.Context, userID, id string) (domain.File, error) {
	f, err := e.Repo.GetFile(ctx, nil, userID, id)
	if err != nil {
		return f, notFound(err, "file", id)
	}
	return f, nil
}

func (e Engine) ListFiles(ctx context.Context, f repo.FileFilters) ([]domain.File, error) {
	if f.Type != "" && !domain.OneOf(f.Type, domain.FileTypes) {
		return nil, invalid("type", "unknown file type")
	}
	return e.Repo.ListFiles(ctx, f)
}

func (e Engine) UpdateFile(ctx context.Context, userID, id string, in FileInput) (domain.File, error) {
	var out domain.File
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		f, err := e.Repo.GetFile(ctx, tx, userID, id)
		if err != nil {
			return notFound(err, "file", id)
		}
		if err := applyFileInput(&f, in); err != nil {
			return err
		}
		if err := e.checkProject(ctx, tx, userID, f.ProjectID); err != nil {
			return err
		}
		f.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateFile(ctx, tx, f); err != nil {
			return notFound(err, "file", id)
		}
		out = f
		return nil
	})
	return out, err
}

// DeleteFile removes a file along with the social posts generated from it.
func (e Engine) DeleteFile(ctx context.Context, userID, id string) error {
	return notFound(e.Repo.DeleteFile(ctx, nil, userID, id), "file", id)
}
