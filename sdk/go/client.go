package coosdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Digital COO HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api",
		Timeout:  60 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID           string  `json:"id"`
	ProjectID    *string `json:"projectId,omitempty"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Category     string  `json:"category"`
	Status       string  `json:"status"`
	Priority     string  `json:"priority"`
	Result       *string `json:"result,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
	CompletedAt  *string `json:"completedAt,omitempty"`
	Version      int     `json:"version"`
	CreatedAt    string  `json:"createdAt"`
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Items      []Task `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// TaskFilter narrows ListTasks. Zero values are ignored.
type TaskFilter struct {
	ProjectID string
	Category  string
	Status    string
	Priority  string
	Limit     int
	Cursor    string
}

// Triage is the classifier verdict for a task.
type Triage struct {
	Category       string  `json:"category"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	SuggestedAgent *string `json:"suggestedAgent,omitempty"`
}

// Execution reports an execute call. Success=false is a recorded task
// failure, not a transport error.
type Execution struct {
	Success bool    `json:"success"`
	Result  *string `json:"result,omitempty"`
	Error   *string `json:"error,omitempty"`
	Task    Task    `json:"task"`
}

type ImportSummary struct {
	Total         int `json:"total"`
	Pending       int `json:"pending"`
	AutoExecute   int `json:"autoExecute"`
	DelegateAgent int `json:"delegateAgent"`
	HumanRequired int `json:"humanRequired"`
}

type ImportResult struct {
	File struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"file"`
	Tasks   []Task        `json:"tasks"`
	Summary ImportSummary `json:"summary"`
}

type SocialPost struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	Content  string `json:"content"`
	Status   string `json:"status"`
}

type PlatformStatus struct {
	Platform string `json:"platform"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type GeneratedPosts struct {
	Posts     []SocialPost     `json:"posts"`
	Platforms []PlatformStatus `json:"platforms"`
}

type DashboardStats struct {
	TotalTasks          int            `json:"totalTasks"`
	CompletedToday      int            `json:"completedToday"`
	PendingAttention    int            `json:"pendingAttention"`
	ErrorCount          int            `json:"errorCount"`
	ProjectCount        int            `json:"projectCount"`
	AgentCount          int            `json:"agentCount"`
	UnreadNotifications int            `json:"unreadNotifications"`
	ByCategory          map[string]int `json:"byCategory"`
}

type Notification struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// CreateTask creates a pending task.
func (c *Client) CreateTask(ctx context.Context, title, description, priority string) (Task, error) {
	body := map[string]any{"title": title}
	if description != "" {
		body["description"] = description
	}
	if priority != "" {
		body["priority"] = priority
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListTasks returns one page of tasks, newest first.
func (c *Client) ListTasks(ctx context.Context, f TaskFilter) (TaskPage, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("projectId", f.ProjectID)
	set("category", f.Category)
	set("status", f.Status)
	set("priority", f.Priority)
	set("cursor", f.Cursor)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp TaskPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Triage classifies a task.
func (c *Client) Triage(ctx context.Context, taskID string) (Triage, error) {
	var resp Triage
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%s/triage", url.PathEscape(taskID)), nil, &resp)
	return resp, err
}

// Execute runs the executor on a task.
func (c *Client) Execute(ctx context.Context, taskID string) (Execution, error) {
	var resp Execution
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%s/execute", url.PathEscape(taskID)), nil, &resp)
	return resp, err
}

// ImportTasks imports fileName from folderName and triages its tasks.
func (c *Client) ImportTasks(ctx context.Context, folderName, fileName string) (ImportResult, error) {
	body := map[string]any{"folderName": folderName, "fileName": fileName}
	var resp ImportResult
	err := c.do(ctx, http.MethodPost, "drive/import-tasks", body, &resp)
	return resp, err
}

// GeneratePosts drafts social posts from a master document.
func (c *Client) GeneratePosts(ctx context.Context, fileID string) (GeneratedPosts, error) {
	var resp GeneratedPosts
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("files/%s/generate-posts", url.PathEscape(fileID)), nil, &resp)
	return resp, err
}

// Dashboard returns the dashboard counters.
func (c *Client) Dashboard(ctx context.Context) (DashboardStats, error) {
	var resp DashboardStats
	err := c.do(ctx, http.MethodGet, "dashboard/stats", nil, &resp)
	return resp, err
}

// Notifications lists notifications, newest first.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	endpoint := "notifications"
	if unreadOnly {
		endpoint += "?unread=true"
	}
	var resp []Notification
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
