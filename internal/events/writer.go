package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"digitalcoo/internal/domain"
)

// Activity actions recorded by the pipeline.
const (
	TaskCreated    = "task_created"
	TaskUpdated    = "task_updated"
	TaskDeleted    = "task_deleted"
	TaskTriaged    = "task_triaged"
	TaskStarted    = "task_started"
	TaskCompleted  = "task_completed"
	TaskFailed     = "task_failed"
	FileProcessed  = "file_processed"
	FileUploaded   = "file_uploaded"
	PostsGenerated = "posts_generated"
	ProjectCreated = "project_created"
	ProjectUpdated = "project_updated"
	ProjectDeleted = "project_deleted"
	AgentCreated   = "agent_created"
	AgentUpdated   = "agent_updated"
	AgentDeleted   = "agent_deleted"
	MemberInvited  = "member_invited"
	MemberRemoved  = "member_removed"
)

// Writer appends activity log rows. Entries are never updated or deleted.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Metadata map[string]any

type Entry struct {
	UserID      string
	Action      string
	Description string
	EntityType  string
	EntityID    string
	Metadata    Metadata
}

// Append writes e through tx when set, through the pool otherwise.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := domain.FormatTime(w.Now())
	var meta any
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal activity metadata: %w", err)
		}
		meta = string(data)
	}
	const q = `INSERT INTO activity_logs(user_id,action,description,entity_type,entity_id,metadata,created_at) VALUES (?,?,?,?,?,?,?)`
	args := []any{e.UserID, e.Action, e.Description, nullable(e.EntityType), nullable(e.EntityID), meta, ts}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, q, args...)
	} else {
		_, err = w.DB.ExecContext(ctx, q, args...)
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
