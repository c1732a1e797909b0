package engine

import (
	"context"
	"database/sql"
	"strings"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/events"
)

type ProjectInput struct {
	Name          *string
	Description   *string
	Status        *string
	DriveFolderID *string
	SheetID       *string
}

func applyProjectInput(p *domain.Project, in ProjectInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return invalid("name", "is required")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		if !domain.OneOf(*in.Status, domain.ProjectStatuses) {
			return invalid("status", "must be one of "+strings.Join(domain.ProjectStatuses, ", "))
		}
		p.Status = *in.Status
	}
	if in.DriveFolderID != nil {
		p.DriveFolderID = trimmedPtr(in.DriveFolderID)
	}
	if in.SheetID != nil {
		p.SheetID = trimmedPtr(in.SheetID)
	}
	return nil
}

func (e Engine) CreateProject(ctx context.Context, userID string, in ProjectInput) (domain.Project, error) {
	if in.Name == nil {
		return domain.Project{}, invalid("name", "is required")
	}
	now := e.stamp()
	p := domain.Project{ID: newID(), UserID: userID, Status: "active", CreatedAt: now, UpdatedAt: now}
	if err := applyProjectInput(&p, in); err != nil {
		return domain.Project{}, err
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
			return err
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.ProjectCreated,
			Description: "Created project: " + p.Name,
			EntityType:  "project",
			EntityID:    p.ID,
		})
	})
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, userID, id string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, nil, userID, id)
	if err != nil {
		return p, notFound(err, "project", id)
	}
	return p, nil
}

func (e Engine) ListProjects(ctx context.Context, userID, status string) ([]domain.Project, error) {
	if status != "" && !domain.OneOf(status, domain.ProjectStatuses) {
		return nil, invalid("status", "unknown status")
	}
	return e.Repo.ListProjects(ctx, userID, status)
}

func (e Engine) UpdateProject(ctx context.Context, userID, id string, in ProjectInput) (domain.Project, error) {
	var out domain.Project
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		p, err := e.Repo.GetProject(ctx, tx, userID, id)
		if err != nil {
			return notFound(err, "project", id)
		}
		prevStatus := p.Status
		if err := applyProjectInput(&p, in); err != nil {
			return err
		}
		p.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
			return notFound(err, "project", id)
		}
		meta := events.Metadata{"status": p.Status}
		if prevStatus != p.Status {
			meta["previousStatus"] = prevStatus
		}
		out = p
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.ProjectUpdated,
			Description: "Updated project: " + p.Name,
			EntityType:  "project",
			EntityID:    p.ID,
			Metadata:    meta,
		})
	})
	return out, err
}

// DeleteProject removes a project. Its tasks and files are kept and lose
// their project reference.
func (e Engine) DeleteProject(ctx context.Context, userID, id string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		p, err := e.Repo.GetProject(ctx, tx, userID, id)
		if err != nil {
			return notFound(err, "project", id)
		}
		if err := e.Repo.DeleteProject(ctx, tx, userID, id); err != nil {
			return notFound(err, "project", id)
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.ProjectDeleted,
			Description: "Deleted project: " + p.Name,
			EntityType:  "project",
			EntityID:    id,
		})
	})
}
