package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/engine"
	"digitalcoo/internal/repo"
)

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, err := e.CreateProject(ctx, userID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*listBody[domain.Project], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListProjects(ctx, userID, input.Status)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return list(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.GetProject(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPut,
		Path:        "/projects/{id}",
		Summary:     "Update project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body ProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, err := e.UpdateProject(ctx, userID, input.ID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{id}",
		Summary:       "Delete project; its tasks and files are kept without a project",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteProject(ctx, userID, input.ID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})
}

func registerAgents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-agent",
		Method:        http.MethodPost,
		Path:          "/agents",
		Summary:       "Create agent",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body AgentRequest `json:"body"`
	}) (*struct {
		Body domain.Agent `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		a, err := e.CreateAgent(ctx, userID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Agent `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-agents",
		Method:      http.MethodGet,
		Path:        "/agents",
		Summary:     "List agents",
	}, func(ctx context.Context, input *struct {
		Active bool `query:"active" doc:"Only active agents"`
	}) (*listBody[domain.Agent], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAgents(ctx, userID, input.Active)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return list(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agent",
		Method:      http.MethodGet,
		Path:        "/agents/{id}",
		Summary:     "Get agent",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.Agent `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.GetAgent(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Agent `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-agent",
		Method:      http.MethodPut,
		Path:        "/agents/{id}",
		Summary:     "Update agent",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string       `path:"id"`
		Body AgentRequest `json:"body"`
	}) (*struct {
		Body domain.Agent `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		a, err := e.UpdateAgent(ctx, userID, input.ID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.Agent `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-agent",
		Method:        http.MethodDelete,
		Path:          "/agents/{id}",
		Summary:       "Delete agent",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAgent(ctx, userID, input.ID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})
}

func registerFiles(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-file",
		Method:        http.MethodPost,
		Path:          "/files",
		Summary:       "Upload file with inline content",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body FileRequest `json:"body"`
	}) (*struct {
		Body domain.File `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		f, err := e.CreateFile(ctx, userID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.File `json:"body"`
		}{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-files",
		Method:      http.MethodGet,
		Path:        "/files",
		Summary:     "List files",
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"projectId"`
		Type      string `query:"type"`
		Master    bool   `query:"master" doc:"Only master documents"`
	}) (*listBody[domain.File], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListFiles(ctx, repo.FileFilters{
			UserID:     userID,
			ProjectID:  input.ProjectID,
			Type:       input.Type,
			MasterOnly: input.Master,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return list(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-file",
		Method:      http.MethodGet,
		Path:        "/files/{id}",
		Summary:     "Get file",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.File `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.GetFile(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.File `json:"body"`
		}{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-file",
		Method:      http.MethodPut,
		Path:        "/files/{id}",
		Summary:     "Update file",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string      `path:"id"`
		Body FileRequest `json:"body"`
	}) (*struct {
		Body domain.File `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		f, err := e.UpdateFile(ctx, userID, input.ID, input.Body.input())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.File `json:"body"`
		}{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-file",
		Method:        http.MethodDelete,
		Path:          "/files/{id}",
		Summary:       "Delete file and its social posts",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteFile(ctx, userID, input.ID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-posts",
		Method:      http.MethodPost,
		Path:        "/files/{id}/generate-posts",
		Summary:     "Generate social posts for every platform from a document",
		Errors: []int{
			http.StatusNotFound,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body engine.GeneratePostsResult `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.GeneratePosts(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body engine.GeneratePostsResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-file-social-posts",
		Method:      http.MethodGet,
		Path:        "/files/{id}/social-posts",
		Summary:     "List social posts generated from a file",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID       string `path:"id"`
		Platform string `query:"platform"`
	}) (*listBody[domain.SocialPost], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListSocialPosts(ctx, userID, input.ID, input.Platform)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return list(items), nil
	})
}

func registerSocialPosts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-social-posts",
		Method:      http.MethodGet,
		Path:        "/social-posts",
		Summary:     "List social posts",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FileID   string `query:"fileId"`
		Platform string `query:"platform"`
	}) (*listBody[domain.SocialPost], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListSocialPosts(ctx, userID, input.FileID, input.Platform)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return list(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-social-post",
		Method:      http.MethodGet,
		Path:        "/social-posts/{id}",
		Summary:     "Get social post",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.SocialPost `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.GetSocialPost(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.SocialPost `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-social-post",
		Method:      http.MethodPut,
		Path:        "/social-posts/{id}",
		Summary:     "Edit a social post or change its status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body SocialPostRequest `json:"body"`
	}) (*struct {
		Body domain.SocialPost `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, err := e.UpdateSocialPost(ctx, userID, input.ID, engine.SocialPostInput{
			Content: input.Body.Content,
			Status:  input.Body.Status,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body domain.SocialPost `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-social-post",
		Method:        http.MethodDelete,
		Path:          "/social-posts/{id}",
		Summary:       "Delete social post",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteSocialPost(ctx, userID, input.ID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})
}
