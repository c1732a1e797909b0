package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/events"
	"digitalcoo/internal/repo"
)

const maxListLimit = 200

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func (e Engine) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	return e.Repo.ListNotifications(ctx, userID, unreadOnly, clampLimit(limit, 50))
}

func (e Engine) MarkNotificationRead(ctx context.Context, userID, id string) (domain.Notification, error) {
	if err := e.Repo.MarkNotificationRead(ctx, userID, id); err != nil {
		return domain.Notification{}, notFound(err, "notification", id)
	}
	n, err := e.Repo.GetNotification(ctx, userID, id)
	return n, notFound(err, "notification", id)
}

func (e Engine) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	return e.Repo.MarkAllNotificationsRead(ctx, userID)
}

func (e Engine) DeleteNotification(ctx context.Context, userID, id string) error {
	return notFound(e.Repo.DeleteNotification(ctx, userID, id), "notification", id)
}

// ListActivity pages the activity log newest first.
func (e Engine) ListActivity(ctx context.Context, f repo.ActivityFilters) ([]domain.ActivityLog, error) {
	f.Limit = clampLimit(f.Limit, 50)
	return e.Repo.ListActivity(ctx, f)
}

var validate = validator.New()

type MemberInput struct {
	Email  *string
	Role   *string
	Status *string
}

// InviteMember records a pending invitation. Emails are unique per owner.
func (e Engine) InviteMember(ctx context.Context, ownerID string, in MemberInput) (domain.TeamMember, error) {
	if in.Email == nil {
		return domain.TeamMember{}, invalid("email", "is required")
	}
	email := strings.ToLower(strings.TrimSpace(*in.Email))
	if err := validate.Var(email, "required,email"); err != nil {
		return domain.TeamMember{}, invalid("email", "must be a valid email address")
	}
	m := domain.TeamMember{
		ID:        newID(),
		OwnerID:   ownerID,
		Email:     email,
		Role:      "member",
		Status:    "pending",
		InvitedAt: e.stamp(),
	}
	if in.Role != nil {
		if !domain.OneOf(*in.Role, domain.TeamRoles) {
			return domain.TeamMember{}, invalid("role", "must be one of "+strings.Join(domain.TeamRoles, ", "))
		}
		m.Role = *in.Role
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertTeamMember(ctx, tx, m); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return invalid("email", "already invited")
			}
			return err
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      ownerID,
			Action:      events.MemberInvited,
			Description: "Invited " + m.Email,
			EntityType:  "team_member",
			EntityID:    m.ID,
			Metadata:    events.Metadata{"role": m.Role},
		})
	})
	if err != nil {
		return domain.TeamMember{}, err
	}
	return m, nil
}

func (e Engine) ListTeam(ctx context.Context, ownerID string) ([]domain.TeamMember, error) {
	return e.Repo.ListTeamMembers(ctx, ownerID)
}

func (e Engine) GetMember(ctx context.Context, ownerID, id string) (domain.TeamMember, error) {
	m, err := e.Repo.GetTeamMember(ctx, nil, ownerID, id)
	if err != nil {
		return m, notFound(err, "team member", id)
	}
	return m, nil
}

// UpdateMember changes role or status. Moving to active stamps acceptedAt
// once.
func (e Engine) UpdateMember(ctx context.Context, ownerID, id string, in MemberInput) (domain.TeamMember, error) {
	if in.Role != nil && !domain.OneOf(*in.Role, domain.TeamRoles) {
		return domain.TeamMember{}, invalid("role", "must be one of "+strings.Join(domain.TeamRoles, ", "))
	}
	if in.Status != nil && !domain.OneOf(*in.Status, domain.TeamMemberStatuses) {
		return domain.TeamMember{}, invalid("status", "must be one of "+strings.Join(domain.TeamMemberStatuses, ", "))
	}
	if in.Email != nil {
		return domain.TeamMember{}, invalid("email", "cannot be changed")
	}
	var out domain.TeamMember
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		m, err := e.Repo.GetTeamMember(ctx, tx, ownerID, id)
		if err != nil {
			return notFound(err, "team member", id)
		}
		if in.Role != nil {
			m.Role = *in.Role
		}
		if in.Status != nil {
			m.Status = *in.Status
		}
		if m.Status == "active" && m.AcceptedAt == nil {
			now := e.stamp()
			m.AcceptedAt = &now
		}
		if err := e.Repo.UpdateTeamMember(ctx, tx, m); err != nil {
			return notFound(err, "team member", id)
		}
		out = m
		return nil
	})
	return out, err
}

func (e Engine) RemoveMember(ctx context.Context, ownerID, id string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		m, err := e.Repo.GetTeamMember(ctx, tx, ownerID, id)
		if err != nil {
			return notFound(err, "team member", id)
		}
		if err := e.Repo.DeleteTeamMember(ctx, tx, ownerID, id); err != nil {
			return notFound(err, "team member", id)
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      ownerID,
			Action:      events.MemberRemoved,
			Description: "Removed " + m.Email,
			EntityType:  "team_member",
			EntityID:    id,
		})
	})
}
