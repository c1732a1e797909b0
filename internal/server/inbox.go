package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/engine"
	"digitalcoo/internal/repo"
)

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List notifications, newest first",
	}, func(ctx context.Context, input *struct {
		Unread bool `query:"unread" doc:"Only unread notifications"`
		Limit  int  `query:"limit" default:"50"`
	}) (*listBody[domain.Notification], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListNotifications(ctx, userID, input.Unread, input.Limit)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return list(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPost,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark notification read",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.Notification `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.MarkNotificationRead(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Notification `json:"body"`
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-all-notifications-read",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark every notification read",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MarkAllReadResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.MarkAllNotificationsRead(ctx, userID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body MarkAllReadResponse `json:"body"`
		}{Body: MarkAllReadResponse{Updated: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-notification",
		Method:        http.MethodDelete,
		Path:          "/notifications/{id}",
		Summary:       "Delete notification",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteNotification(ctx, userID, input.ID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Activity log, newest first",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" default:"50"`
		Action     string `query:"action"`
		EntityType string `query:"entityType"`
		EntityID   string `query:"entityId"`
		Cursor     int64  `query:"cursor" doc:"Id of the last entry of the previous page"`
	}) (*listBody[domain.ActivityLog], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListActivity(ctx, repo.ActivityFilters{
			UserID:     userID,
			Action:     input.Action,
			EntityType: input.EntityType,
			EntityID:   input.EntityID,
			Limit:      input.Limit,
			Cursor:     input.Cursor,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return list(items), nil
	})
}

func registerTeam(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "invite-member",
		Method:        http.MethodPost,
		Path:          "/team",
		Summary:       "Invite team member",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body MemberRequest `json:"body"`
	}) (*struct {
		Body domain.TeamMember `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		m, err := e.InviteMember(ctx, userID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.TeamMember `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-team",
		Method:      http.MethodGet,
		Path:        "/team",
		Summary:     "List team members",
	}, func(ctx context.Context, _ *struct{}) (*listBody[domain.TeamMember], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTeam(ctx, userID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return list(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-member",
		Method:      http.MethodGet,
		Path:        "/team/{id}",
		Summary:     "Get team member",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.TeamMember `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.GetMember(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.TeamMember `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-member",
		Method:      http.MethodPut,
		Path:        "/team/{id}",
		Summary:     "Change a member's role or status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body MemberRequest `json:"body"`
	}) (*struct {
		Body domain.TeamMember `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		m, err := e.UpdateMember(ctx, userID, input.ID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.TeamMember `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-member",
		Method:        http.MethodDelete,
		Path:          "/team/{id}",
		Summary:       "Remove team member",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveMember(ctx, userID, input.ID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})
}
