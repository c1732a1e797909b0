package engine

import (
	"context"
	"database/sql"
	"strings"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/events"
)

type AgentInput struct {
	Name        *string
	Description *string
	Type        *string
	CreatedBy   *string
	Prompt      *string
	Script      *string
	Readme      *string
	IsActive    *bool
}

func applyAgentInput(a *domain.Agent, in AgentInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return invalid("name", "is required")
		}
		a.Name = name
	}
	if in.Description != nil {
		a.Description = strings.TrimSpace(*in.Description)
	}
	if in.Type != nil {
		if !domain.OneOf(*in.Type, domain.AgentTypes) {
			return invalid("type", "must be one of "+strings.Join(domain.AgentTypes, ", "))
		}
		a.Type = *in.Type
	}
	if in.Prompt != nil {
		a.Prompt = *in.Prompt
	}
	if in.Script != nil {
		a.Script = *in.Script
	}
	if in.Readme != nil {
		a.Readme = *in.Readme
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
	return nil
}

func (e Engine) CreateAgent(ctx context.Context, userID string, in AgentInput) (domain.Agent, error) {
	if in.Name == nil {
		return domain.Agent{}, invalid("name", "is required")
	}
	now := e.stamp()
	a := domain.Agent{
		ID:        newID(),
		UserID:    userID,
		Type:      "prompt",
		CreatedBy: "user",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.CreatedBy != nil {
		if !domain.OneOf(*in.CreatedBy, domain.AgentCreators) {
			return domain.Agent{}, invalid("createdBy", "must be one of "+strings.Join(domain.AgentCreators, ", "))
		}
		a.CreatedBy = *in.CreatedBy
	}
	if err := applyAgentInput(&a, in); err != nil {
		return domain.Agent{}, err
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertAgent(ctx, tx, a); err != nil {
			return err
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.AgentCreated,
			Description: "Created agent: " + a.Name,
			EntityType:  "agent",
			EntityID:    a.ID,
			Metadata:    events.Metadata{"type": a.Type, "createdBy": a.CreatedBy},
		})
	})
	if err != nil {
		return domain.Agent{}, err
	}
	return a, nil
}

func (e Engine) GetAgent(ctx context.Context, userID, id string) (domain.Agent, error) {
	a, err := e.Repo.GetAgent(ctx, nil, userID, id)
	if err != nil {
		return a, notFound(err, "agent", id)
	}
	return a, nil
}

func (e Engine) ListAgents(ctx context.Context, userID string, activeOnly bool) ([]domain.Agent, error) {
	return e.Repo.ListAgents(ctx, userID, activeOnly)
}

// UpdateAgent edits an agent. Its creator and usage counter are fixed.
func (e Engine) UpdateAgent(ctx context.Context, userID, id string, in AgentInput) (domain.Agent, error) {
	var out domain.Agent
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Repo.GetAgent(ctx, tx, userID, id)
		if err != nil {
			return notFound(err, "agent", id)
		}
		in.CreatedBy = nil
		if err := applyAgentInput(&a, in); err != nil {
			return err
		}
		a.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateAgent(ctx, tx, a); err != nil {
			return notFound(err, "agent", id)
		}
		out = a
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.AgentUpdated,
			Description: "Updated agent: " + a.Name,
			EntityType:  "agent",
			EntityID:    a.ID,
			Metadata:    events.Metadata{"isActive": a.IsActive},
		})
	})
	return out, err
}

// DeleteAgent removes an agent; tasks assigned to it become unassigned.
func (e Engine) DeleteAgent(ctx context.Context, userID, id string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Repo.GetAgent(ctx, tx, userID, id)
		if err != nil {
			return notFound(err, "agent", id)
		}
		if err := e.Repo.DeleteAgent(ctx, tx, userID, id); err != nil {
			return notFound(err, "agent", id)
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.AgentDeleted,
			Description: "Deleted agent: " + a.Name,
			EntityType:  "agent",
			EntityID:    id,
		})
	})
}
