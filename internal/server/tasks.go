package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/engine"
	"digitalcoo/internal/repo"
)

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body TaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		t, err := e.CreateTask(ctx, userID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"projectId"`
		Category  string `query:"category"`
		Status    string `query:"status"`
		Priority  string `query:"priority"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*struct {
		Body TaskPage `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		tasks, err := e.ListTasks(ctx, repo.TaskFilters{
			UserID:          userID,
			ProjectID:       input.ProjectID,
			Category:        input.Category,
			Status:          input.Status,
			Priority:        input.Priority,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		resp := TaskPage{Items: []domain.Task{}}
		if len(tasks) > limit {
			last := tasks[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
			tasks = tasks[:limit]
		}
		resp.Items = nonNil(tasks)
		return &struct {
			Body TaskPage `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string      `path:"id"`
		Body TaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		t, err := e.UpdateTask(ctx, userID, input.ID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, userID, input.ID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "triage-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/triage",
		Summary:     "Classify a task into an execution category",
		Errors: []int{
			http.StatusNotFound,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body TriageResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		out, err := e.Triage(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body TriageResponse `json:"body"`
		}{Body: TriageResponse{
			Category:       out.Triage.Category,
			Confidence:     out.Triage.Confidence,
			Reasoning:      out.Triage.Reasoning,
			SuggestedAgent: out.Triage.SuggestedAgent,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "execute-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/execute",
		Summary:     "Run the executor on a task",
		Description: "An executor failure is recorded on the task and reported with success=false and HTTP 200.",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body engine.ExecuteResult `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.Execute(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body engine.ExecuteResult `json:"body"`
		}{Body: res}, nil
	})
}
