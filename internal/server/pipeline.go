package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/drive"
	"digitalcoo/internal/engine"
)

func registerDrive(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-drive-files",
		Method:      http.MethodGet,
		Path:        "/drive/files",
		Summary:     "List documents in a source folder",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Folder string `query:"folder" doc:"Folder name"`
	}) (*listBody[drive.FileMeta], error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		files, err := e.ListSourceFiles(ctx, input.Folder)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return list(files), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-tasks",
		Method:      http.MethodPost,
		Path:        "/drive/import-tasks",
		Summary:     "Import a task list document, then parse and triage its tasks",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Body ImportTasksRequest `json:"body"`
	}) (*struct {
		Body engine.ImportResult `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		res, err := e.ImportTasks(ctx, userID, input.Body.FolderName, input.Body.FileName)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body engine.ImportResult `json:"body"`
		}{Body: res}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-stats",
		Method:      http.MethodGet,
		Path:        "/dashboard/stats",
		Summary:     "Dashboard counters",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.DashboardStats `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := e.DashboardStats(ctx, userID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body engine.DashboardStats `json:"body"`
		}{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-urgent",
		Method:      http.MethodGet,
		Path:        "/dashboard/urgent",
		Summary:     "Pending tasks that need a human, most urgent first",
	}, func(ctx context.Context, _ *struct{}) (*listBody[domain.Task], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.UrgentTasks(ctx, userID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return list(tasks), nil
	})
}
