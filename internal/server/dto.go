package server

import (
	"digitalcoo/internal/domain"
	"digitalcoo/internal/engine"
)

// Request payloads. Optional fields are pointers so that an update can tell
// "absent" from "cleared".

type ProjectRequest struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	Status        *string `json:"status,omitempty" enum:"active,completed,archived"`
	DriveFolderID *string `json:"driveFolderId,omitempty"`
	SheetID       *string `json:"sheetId,omitempty"`
}

func (r ProjectRequest) input() engine.ProjectInput {
	return engine.ProjectInput{
		Name:          r.Name,
		Description:   r.Description,
		Status:        r.Status,
		DriveFolderID: r.DriveFolderID,
		SheetID:       r.SheetID,
	}
}

type TaskRequest struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	ProjectID       *string `json:"projectId,omitempty"`
	Category        *string `json:"category,omitempty" enum:"pending,auto_execute,delegate_agent,human_required"`
	Status          *string `json:"status,omitempty" enum:"pending,in_progress,completed,failed,cancelled"`
	Priority        *string `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	SourceFile      *string `json:"sourceFile,omitempty"`
	AssignedAgentID *string `json:"assignedAgentId,omitempty"`
	Result          *string `json:"result,omitempty"`
	ErrorMessage    *string `json:"errorMessage,omitempty"`
	DueDate         *string `json:"dueDate,omitempty"`
	Version         *int    `json:"version,omitempty" doc:"Expected current version; a mismatch is rejected with 409"`
}

func (r TaskRequest) input() engine.TaskInput {
	return engine.TaskInput{
		Title:           r.Title,
		Description:     r.Description,
		ProjectID:       r.ProjectID,
		Category:        r.Category,
		Status:          r.Status,
		Priority:        r.Priority,
		SourceFile:      r.SourceFile,
		AssignedAgentID: r.AssignedAgentID,
		Result:          r.Result,
		ErrorMessage:    r.ErrorMessage,
		DueDate:         r.DueDate,
		Version:         r.Version,
	}
}

type AgentRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Type        *string `json:"type,omitempty" enum:"prompt,script,automation"`
	CreatedBy   *string `json:"createdBy,omitempty" enum:"user,digital_coo"`
	Prompt      *string `json:"prompt,omitempty"`
	Script      *string `json:"script,omitempty"`
	Readme      *string `json:"readme,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

func (r AgentRequest) input() engine.AgentInput {
	return engine.AgentInput{
		Name:        r.Name,
		Description: r.Description,
		Type:        r.Type,
		CreatedBy:   r.CreatedBy,
		Prompt:      r.Prompt,
		Script:      r.Script,
		Readme:      r.Readme,
		IsActive:    r.IsActive,
	}
}

type FileRequest struct {
	Name      *string `json:"name,omitempty"`
	ProjectID *string `json:"projectId,omitempty"`
	MimeType  *string `json:"mimeType,omitempty"`
	Type      *string `json:"type,omitempty" enum:"input,output,master_document"`
	Content   *string `json:"content,omitempty"`
}

func (r FileRequest) input() engine.FileInput {
	return engine.FileInput{
		Name:      r.Name,
		ProjectID: r.ProjectID,
		MimeType:  r.MimeType,
		Type:      r.Type,
		Content:   r.Content,
	}
}

type SocialPostRequest struct {
	Content *string `json:"content,omitempty"`
	Status  *string `json:"status,omitempty" enum:"draft,ready,published"`
}

type MemberRequest struct {
	Email  *string `json:"email,omitempty"`
	Role   *string `json:"role,omitempty" enum:"member,admin"`
	Status *string `json:"status,omitempty" enum:"pending,active,inactive"`
}

func (r MemberRequest) input() engine.MemberInput {
	return engine.MemberInput{Email: r.Email, Role: r.Role, Status: r.Status}
}

type ImportTasksRequest struct {
	FolderName string `json:"folderName" doc:"Name of the source folder"`
	FileName   string `json:"fileName" doc:"Name of the document inside the folder"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevTokenRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

// Response payloads

type listBody[T any] struct {
	Body []T `json:"body"`
}

func list[T any](items []T) *listBody[T] {
	return &listBody[T]{Body: nonNil(items)}
}

type TaskPage struct {
	Items      []domain.Task `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

type TriageResponse struct {
	Category       string  `json:"category" enum:"auto_execute,delegate_agent,human_required"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	SuggestedAgent *string `json:"suggestedAgent,omitempty"`
}

type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

type APIKeyCreatedResponse struct {
	APIKey domain.APIKey `json:"apiKey"`
	Key    string        `json:"key" doc:"Plaintext key, shown only once"`
}

type DevTokenResponse struct {
	Token string `json:"token"`
}

type idPath struct {
	ID string `path:"id"`
}
