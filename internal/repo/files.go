package repo

import (
	"context"
	"database/sql"
	"strings"

	"digitalcoo/internal/domain"
)

const fileColumns = `id,user_id,project_id,name,mime_type,size,type,source,external_id,external_url,content,is_master_document,created_at,updated_at`

func scanFile(row scanner) (domain.File, error) {
	var f domain.File
	var projectID, mime, extID, extURL, content sql.NullString
	err := row.Scan(&f.ID, &f.UserID, &projectID, &f.Name, &mime, &f.Size, &f.Type, &f.Source, &extID, &extURL, &content, &f.IsMasterDocument, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	if err != nil {
		return f, err
	}
	f.ProjectID = stringPtr(projectID)
	f.MimeType = mime.String
	f.ExternalID = stringPtr(extID)
	f.ExternalURL = stringPtr(extURL)
	f.Content = content.String
	return f, nil
}

func (r Repo) InsertFile(ctx context.Context, tx *sql.Tx, f domain.File) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO files(`+fileColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.UserID, nullableStringPtr(f.ProjectID), f.Name, nullable(f.MimeType), f.Size, f.Type, f.Source,
		nullableStringPtr(f.ExternalID), nullableStringPtr(f.ExternalURL), nullable(f.Content), boolInt(f.IsMasterDocument), f.CreatedAt, f.UpdatedAt)
	return err
}

func (r Repo) GetFile(ctx context.Context, tx *sql.Tx, userID, id string) (domain.File, error) {
	return scanFile(r.on(tx).QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id=? AND user_id=?`, id, userID))
}

type FileFilters struct {
	UserID     string
	ProjectID  string
	Type       string
	MasterOnly bool
}

func (r Repo) ListFiles(ctx context.Context, f FileFilters) ([]domain.File, error) {
	clauses := []string{"user_id=?"}
	args := []any{f.UserID}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.MasterOnly {
		clauses = append(clauses, "is_master_document=1")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+fileColumns+` FROM files WHERE `+strings.Join(clauses, " AND ")+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, file)
	}
	return res, rows.Err()
}

func (r Repo) UpdateFile(ctx context.Context, tx *sql.Tx, f domain.File) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `UPDATE files SET project_id=?, name=?, mime_type=?, size=?, type=?, content=?, is_master_document=?, updated_at=? WHERE id=? AND user_id=?`,
		nullableStringPtr(f.ProjectID), f.Name, nullable(f.MimeType), f.Size, f.Type, nullable(f.Content), boolInt(f.IsMasterDocument), f.UpdatedAt, f.ID, f.UserID))
}

func (r Repo) DeleteFile(ctx context.Context, tx *sql.Tx, userID, id string) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `DELETE FROM files WHERE id=? AND user_id=?`, id, userID))
}

const postColumns = `id,user_id,master_document_id,platform,content,status,created_at,updated_at`

func scanPost(row scanner) (domain.SocialPost, error) {
	var p domain.SocialPost
	err := row.Scan(&p.ID, &p.UserID, &p.MasterDocumentID, &p.Platform, &p.Content, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertSocialPost(ctx context.Context, tx *sql.Tx, p domain.SocialPost) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO social_posts(`+postColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.UserID, p.MasterDocumentID, p.Platform, p.Content, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetSocialPost(ctx context.Context, tx *sql.Tx, userID, id string) (domain.SocialPost, error) {
	return scanPost(r.on(tx).QueryRowContext(ctx, `SELECT `+postColumns+` FROM social_posts WHERE id=? AND user_id=?`, id, userID))
}

// ListSocialPosts lists posts of userID, narrowed to one file or platform when set.
func (r Repo) ListSocialPosts(ctx context.Context, userID, fileID, platform string) ([]domain.SocialPost, error) {
	clauses := []string{"user_id=?"}
	args := []any{userID}
	if fileID != "" {
		clauses = append(clauses, "master_document_id=?")
		args = append(args, fileID)
	}
	if platform != "" {
		clauses = append(clauses, "platform=?")
		args = append(args, platform)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+postColumns+` FROM social_posts WHERE `+strings.Join(clauses, " AND ")+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SocialPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateSocialPost(ctx context.Context, tx *sql.Tx, p domain.SocialPost) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `UPDATE social_posts SET content=?, status=?, updated_at=? WHERE id=? AND user_id=?`,
		p.Content, p.Status, p.UpdatedAt, p.ID, p.UserID))
}

func (r Repo) DeleteSocialPost(ctx context.Context, tx *sql.Tx, userID, id string) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `DELETE FROM social_posts WHERE id=? AND user_id=?`, id, userID))
}
