package repo

import (
	"context"
	"database/sql"
	"strings"

	"digitalcoo/internal/domain"
)

const taskColumns = `id,user_id,project_id,title,description,category,status,priority,source_file,assigned_agent_id,result,error_message,due_date,completed_at,version,created_at,updated_at`

func scanTask(row scanner) (domain.Task, error) {
	var t domain.Task
	var projectID, description, sourceFile, agentID, result, errMsg, dueDate, completedAt sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &projectID, &t.Title, &description, &t.Category, &t.Status, &t.Priority,
		&sourceFile, &agentID, &result, &errMsg, &dueDate, &completedAt, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Description = description.String
	t.ProjectID = stringPtr(projectID)
	t.SourceFile = stringPtr(sourceFile)
	t.AssignedAgentID = stringPtr(agentID)
	t.Result = stringPtr(result)
	t.ErrorMessage = stringPtr(errMsg)
	t.DueDate = stringPtr(dueDate)
	t.CompletedAt = stringPtr(completedAt)
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.UserID, nullableStringPtr(t.ProjectID), t.Title, nullable(t.Description), t.Category, t.Status, t.Priority,
		nullableStringPtr(t.SourceFile), nullableStringPtr(t.AssignedAgentID), nullableStringPtr(t.Result), nullableStringPtr(t.ErrorMessage),
		nullableStringPtr(t.DueDate), nullableStringPtr(t.CompletedAt), t.Version, t.CreatedAt, t.UpdatedAt)
	return err
}

// UpdateTask writes t if the stored version still equals t.Version and bumps
// the stored version. A stale version yields ErrConflict.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	q := r.on(tx)
	res, err := q.ExecContext(ctx, `UPDATE tasks SET project_id=?, title=?, description=?, category=?, status=?, priority=?, source_file=?, assigned_agent_id=?,
result=?, error_message=?, due_date=?, completed_at=?, version=version+1, updated_at=?
WHERE id=? AND user_id=? AND version=?`,
		nullableStringPtr(t.ProjectID), t.Title, nullable(t.Description), t.Category, t.Status, t.Priority, nullableStringPtr(t.SourceFile),
		nullableStringPtr(t.AssignedAgentID), nullableStringPtr(t.Result), nullableStringPtr(t.ErrorMessage), nullableStringPtr(t.DueDate),
		nullableStringPtr(t.CompletedAt), t.UpdatedAt, t.ID, t.UserID, t.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id=? AND user_id=?`, t.ID, t.UserID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

// FinishTask records an execution outcome on a task that is still
// in_progress. Other fields, and edits made while the task ran, are left
// alone. ErrConflict means the task has left in_progress.
func (r Repo) FinishTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	q := r.on(tx)
	res, err := q.ExecContext(ctx, `UPDATE tasks SET status=?, result=?, error_message=?, completed_at=?, version=version+1, updated_at=?
WHERE id=? AND user_id=? AND status=?`,
		t.Status, nullableStringPtr(t.Result), nullableStringPtr(t.ErrorMessage), nullableStringPtr(t.CompletedAt), t.UpdatedAt,
		t.ID, t.UserID, domain.StatusInProgress)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id=? AND user_id=?`, t.ID, t.UserID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

// SetTaskCategory changes only the category of a task.
func (r Repo) SetTaskCategory(ctx context.Context, tx *sql.Tx, userID, id, category, updatedAt string) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `UPDATE tasks SET category=?, version=version+1, updated_at=? WHERE id=? AND user_id=?`,
		category, updatedAt, id, userID))
}

func (r Repo) GetTask(ctx context.Context, tx *sql.Tx, userID, id string) (domain.Task, error) {
	return scanTask(r.on(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND user_id=?`, id, userID))
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, userID, id string) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND user_id=?`, id, userID))
}

type TaskFilters struct {
	UserID          string
	ProjectID       string
	Category        string
	Status          string
	Priority        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

// ListTasks never returns rows of another user; an empty UserID matches nothing.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"user_id=?"}
	args := []any{f.UserID}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

type TaskCounts struct {
	Total            int
	CompletedSince   int
	PendingAttention int
	Failed           int
}

// CountTasks aggregates the dashboard task counters for userID. Completed
// tasks count toward CompletedSince when completed_at >= since.
func (r Repo) CountTasks(ctx context.Context, userID, since string) (TaskCounts, error) {
	var c TaskCounts
	err := r.DB.QueryRowContext(ctx, `SELECT
  count(*),
  COALESCE(SUM(CASE WHEN status='completed' AND completed_at >= ? THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN category='human_required' AND status='pending' THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END),0)
FROM tasks WHERE user_id=?`, since, userID).Scan(&c.Total, &c.CompletedSince, &c.PendingAttention, &c.Failed)
	return c, err
}

func (r Repo) CountTasksByCategory(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT category, count(*) FROM tasks WHERE user_id=? GROUP BY category`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		res[category] = count
	}
	return res, rows.Err()
}
