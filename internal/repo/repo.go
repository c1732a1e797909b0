package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"digitalcoo/internal/domain"
)

// Repo is the persistence layer. Every read and write is scoped to the
// owning user id passed by the caller.
type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("version conflict")
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// on returns tx when set, the pool otherwise.
func (r Repo) on(tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return r.DB
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const projectColumns = `id,user_id,name,description,status,drive_folder_id,sheet_id,created_at,updated_at`

func scanProject(row scanner) (domain.Project, error) {
	var p domain.Project
	var desc, folder, sheet sql.NullString
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &desc, &p.Status, &folder, &sheet, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Description = desc.String
	p.DriveFolderID = stringPtr(folder)
	p.SheetID = stringPtr(sheet)
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.UserID, p.Name, nullable(p.Description), p.Status, nullableStringPtr(p.DriveFolderID), nullableStringPtr(p.SheetID), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, tx *sql.Tx, userID, id string) (domain.Project, error) {
	return scanProject(r.on(tx).QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=? AND user_id=?`, id, userID))
}

func (r Repo) ListProjects(ctx context.Context, userID, status string) ([]domain.Project, error) {
	clauses := []string{"user_id=?"}
	args := []any{userID}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE `+strings.Join(clauses, " AND ")+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// FindProjectByName returns the oldest project of userID whose name contains
// fragment, ignoring case. Case is folded in Go since SQLite lower() only
// folds ASCII. It returns ErrNotFound when nothing matches.
func (r Repo) FindProjectByName(ctx context.Context, userID, fragment string) (domain.Project, error) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return domain.Project{}, ErrNotFound
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE user_id=? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return domain.Project{}, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return domain.Project{}, err
		}
		if strings.Contains(strings.ToLower(p.Name), fragment) {
			return p, nil
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Project{}, err
	}
	return domain.Project{}, ErrNotFound
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `UPDATE projects SET name=?, description=?, status=?, drive_folder_id=?, sheet_id=?, updated_at=? WHERE id=? AND user_id=?`,
		p.Name, nullable(p.Description), p.Status, nullableStringPtr(p.DriveFolderID), nullableStringPtr(p.SheetID), p.UpdatedAt, p.ID, p.UserID))
}

func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, userID, id string) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `DELETE FROM projects WHERE id=? AND user_id=?`, id, userID))
}

func (r Repo) countWhere(ctx context.Context, table, where string, args ...any) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s`, table, where), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r Repo) CountProjects(ctx context.Context, userID string) (int, error) {
	return r.countWhere(ctx, "projects", "user_id=?", userID)
}
