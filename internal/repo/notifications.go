package repo

import (
	"context"
	"database/sql"
	"strings"

	"digitalcoo/internal/domain"
)

const notificationColumns = `id,user_id,type,title,message,related_task_id,related_project_id,is_read,email_sent,created_at`

func scanNotification(row scanner) (domain.Notification, error) {
	var n domain.Notification
	var taskID, projectID sql.NullString
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &taskID, &projectID, &n.IsRead, &n.EmailSent, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	if err != nil {
		return n, err
	}
	n.RelatedTaskID = stringPtr(taskID)
	n.RelatedProjectID = stringPtr(projectID)
	return n, nil
}

func (r Repo) InsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO notifications(`+notificationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, nullableStringPtr(n.RelatedTaskID), nullableStringPtr(n.RelatedProjectID),
		boolInt(n.IsRead), boolInt(n.EmailSent), n.CreatedAt)
	return err
}

func (r Repo) GetNotification(ctx context.Context, userID, id string) (domain.Notification, error) {
	return scanNotification(r.DB.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=? AND user_id=?`, id, userID))
}

func (r Repo) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id=?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read=0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return affectedOrNotFound(r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE id=? AND user_id=?`, id, userID))
}

// MarkAllNotificationsRead returns the number of notifications flipped to read.
func (r Repo) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE user_id=? AND is_read=0`, userID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r Repo) DeleteNotification(ctx context.Context, userID, id string) error {
	return affectedOrNotFound(r.DB.ExecContext(ctx, `DELETE FROM notifications WHERE id=? AND user_id=?`, id, userID))
}

func (r Repo) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	return r.countWhere(ctx, "notifications", "user_id=? AND is_read=0", userID)
}

type ActivityFilters struct {
	UserID     string
	Action     string
	EntityType string
	EntityID   string
	Limit      int
	Cursor     int64
}

// ListActivity returns activity entries newest first. Cursor, when set, is
// the id of the last entry of the previous page.
func (r Repo) ListActivity(ctx context.Context, f ActivityFilters) ([]domain.ActivityLog, error) {
	clauses := []string{"user_id=?"}
	args := []any{f.UserID}
	if f.Action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, f.Action)
	}
	if f.EntityType != "" {
		clauses = append(clauses, "entity_type=?")
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,action,description,entity_type,entity_id,metadata,created_at FROM activity_logs WHERE `+
		strings.Join(clauses, " AND ")+` ORDER BY id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityLog
	for rows.Next() {
		var a domain.ActivityLog
		var entityType, entityID, metadata sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Description, &entityType, &entityID, &metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.EntityType = entityType.String
		a.EntityID = entityID.String
		a.Metadata = metadata.String
		res = append(res, a)
	}
	return res, rows.Err()
}

// MarkNotificationSent records that the notification left the system.
func (r Repo) MarkNotificationSent(ctx context.Context, userID, id string) error {
	return affectedOrNotFound(r.DB.ExecContext(ctx, `UPDATE notifications SET email_sent=1 WHERE id=? AND user_id=?`, id, userID))
}
