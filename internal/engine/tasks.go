package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/events"
	"digitalcoo/internal/repo"
)

// TaskInput carries the writable task fields. Nil means "not provided"; on
// update an empty string clears an optional reference.
type TaskInput struct {
	Title           *string
	Description     *string
	ProjectID       *string
	Category        *string
	Status          *string
	Priority        *string
	SourceFile      *string
	AssignedAgentID *string
	Result          *string
	ErrorMessage    *string
	DueDate         *string
	// Version, when set, must match the stored version.
	Version *int
}

const defaultFailureMessage = "marked as failed"

// normalizeTaskState enforces that completedAt is set only when completed and
// errorMessage only when failed.
func normalizeTaskState(t *domain.Task, now string) {
	switch t.Status {
	case domain.StatusCompleted:
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
		t.ErrorMessage = nil
	case domain.StatusFailed:
		t.CompletedAt = nil
		if t.ErrorMessage == nil || strings.TrimSpace(*t.ErrorMessage) == "" {
			msg := defaultFailureMessage
			t.ErrorMessage = &msg
		}
	default:
		t.CompletedAt = nil
		t.ErrorMessage = nil
	}
}

func normalizeDate(field string, v *string) (*string, error) {
	v = trimmedPtr(v)
	if v == nil {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if ts, err := time.Parse(layout, *v); err == nil {
			s := domain.FormatTime(ts)
			return &s, nil
		}
	}
	return nil, invalid(field, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

// checkRefs verifies that project and agent references belong to userID.
func (e Engine) checkRefs(ctx context.Context, tx *sql.Tx, userID string, t domain.Task) error {
	if t.ProjectID != nil {
		if _, err := e.Repo.GetProject(ctx, tx, userID, *t.ProjectID); err != nil {
			return notFound(err, "project", *t.ProjectID)
		}
	}
	if t.AssignedAgentID != nil {
		if _, err := e.Repo.GetAgent(ctx, tx, userID, *t.AssignedAgentID); err != nil {
			return notFound(err, "agent", *t.AssignedAgentID)
		}
	}
	return nil
}

func applyTaskInput(t *domain.Task, in TaskInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return invalid("title", "is required")
		}
		t.Title = title
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.ProjectID != nil {
		t.ProjectID = trimmedPtr(in.ProjectID)
	}
	if in.Category != nil {
		if !domain.OneOf(*in.Category, domain.TaskCategories) {
			return invalid("category", "must be one of "+strings.Join(domain.TaskCategories, ", "))
		}
		t.Category = *in.Category
	}
	if in.Status != nil {
		if !domain.OneOf(*in.Status, domain.TaskStatuses) {
			return invalid("status", "must be one of "+strings.Join(domain.TaskStatuses, ", "))
		}
		t.Status = *in.Status
	}
	if in.Priority != nil {
		if !domain.OneOf(*in.Priority, domain.TaskPriorities) {
			return invalid("priority", "must be one of "+strings.Join(domain.TaskPriorities, ", "))
		}
		t.Priority = *in.Priority
	}
	if in.SourceFile != nil {
		t.SourceFile = trimmedPtr(in.SourceFile)
	}
	if in.AssignedAgentID != nil {
		t.AssignedAgentID = trimmedPtr(in.AssignedAgentID)
	}
	if in.Result != nil {
		t.Result = trimmedPtr(in.Result)
	}
	if in.ErrorMessage != nil {
		t.ErrorMessage = trimmedPtr(in.ErrorMessage)
	}
	if in.DueDate != nil {
		due, err := normalizeDate("dueDate", in.DueDate)
		if err != nil {
			return err
		}
		t.DueDate = due
	}
	return nil
}

// CreateTask creates a manually entered task. New tasks start pending; the
// category may be set explicitly.
func (e Engine) CreateTask(ctx context.Context, userID string, in TaskInput) (domain.Task, error) {
	if in.Title == nil {
		return domain.Task{}, invalid("title", "is required")
	}
	if in.Status != nil && *in.Status != domain.StatusPending {
		return domain.Task{}, invalid("status", "new tasks start pending")
	}
	now := e.stamp()
	t := domain.Task{
		ID:        newID(),
		UserID:    userID,
		Category:  domain.CategoryPending,
		Status:    domain.StatusPending,
		Priority:  domain.PriorityMedium,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.Result, in.ErrorMessage = nil, nil
	if err := applyTaskInput(&t, in); err != nil {
		return domain.Task{}, err
	}
	normalizeTaskState(&t, now)
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.checkRefs(ctx, tx, userID, t); err != nil {
			return err
		}
		if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
			return err
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.TaskCreated,
			Description: "Created task: " + t.Title,
			EntityType:  "task",
			EntityID:    t.ID,
			Metadata:    events.Metadata{"category": t.Category, "priority": t.Priority},
		})
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, userID, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, nil, userID, id)
	if err != nil {
		return t, notFound(err, "task", id)
	}
	return t, nil
}

// ListTasks returns userID's tasks. Filters are validated against the enums.
func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	if f.Category != "" && !domain.OneOf(f.Category, domain.TaskCategories) {
		return nil, invalid("category", "unknown category")
	}
	if f.Status != "" && !domain.OneOf(f.Status, domain.TaskStatuses) {
		return nil, invalid("status", "unknown status")
	}
	if f.Priority != "" && !domain.OneOf(f.Priority, domain.TaskPriorities) {
		return nil, invalid("priority", "unknown priority")
	}
	return e.Repo.ListTasks(ctx, f)
}

// UpdateTask applies a manual edit. Any field may change; completion and
// failure fields are re-normalized against the resulting status.
func (e Engine) UpdateTask(ctx context.Context, userID, id string, in TaskInput) (domain.Task, error) {
	var out domain.Task
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		t, err := e.Repo.GetTask(ctx, tx, userID, id)
		if err != nil {
			return notFound(err, "task", id)
		}
		if in.Version != nil && *in.Version != t.Version {
			return &ConflictError{Entity: "task", ID: id}
		}
		prevStatus := t.Status
		if err := applyTaskInput(&t, in); err != nil {
			return err
		}
		now := e.stamp()
		if t.Status != prevStatus && t.Status == domain.StatusCompleted {
			// a fresh completion gets a fresh timestamp
			t.CompletedAt = nil
		}
		normalizeTaskState(&t, now)
		if err := e.checkRefs(ctx, tx, userID, t); err != nil {
			return err
		}
		t.UpdatedAt = now
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return writeErr(err, id)
		}
		t.Version++
		meta := events.Metadata{"status": t.Status, "category": t.Category}
		if prevStatus != t.Status {
			meta["previousStatus"] = prevStatus
		}
		if err := e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.TaskUpdated,
			Description: "Updated task: " + t.Title,
			EntityType:  "task",
			EntityID:    t.ID,
			Metadata:    meta,
		}); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

func (e Engine) DeleteTask(ctx context.Context, userID, id string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		t, err := e.Repo.GetTask(ctx, tx, userID, id)
		if err != nil {
			return notFound(err, "task", id)
		}
		if err := e.Repo.DeleteTask(ctx, tx, userID, id); err != nil {
			return notFound(err, "task", id)
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.TaskDeleted,
			Description: "Deleted task: " + t.Title,
			EntityType:  "task",
			EntityID:    id,
		})
	})
}

