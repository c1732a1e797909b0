package domain

import "time"

// TimeLayout is fixed width so stored timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

const (
	CategoryPending       = "pending"
	CategoryAutoExecute   = "auto_execute"
	CategoryDelegateAgent = "delegate_agent"
	CategoryHumanRequired = "human_required"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	NotificationTaskUpdate     = "task_update"
	NotificationError          = "error"
	NotificationInfo           = "info"
	NotificationActionRequired = "action_required"
)

const (
	FileSourceUpload      = "upload"
	FileSourceGoogleDrive = "google_drive"
	FileSourceGenerated   = "generated"

	FileTypeInput          = "input"
	FileTypeOutput         = "output"
	FileTypeMasterDocument = "master_document"
)

// Platforms lists the social platforms posts are generated for, in order.
var Platforms = []string{"x", "facebook", "linkedin", "instagram", "tiktok_script", "youtube_script"}

var (
	TaskCategories     = []string{CategoryPending, CategoryAutoExecute, CategoryDelegateAgent, CategoryHumanRequired}
	TaskStatuses       = []string{StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled}
	TaskPriorities     = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
	ProjectStatuses    = []string{"active", "completed", "archived"}
	AgentTypes         = []string{"prompt", "script", "automation"}
	AgentCreators      = []string{"user", "digital_coo"}
	FileTypes          = []string{FileTypeInput, FileTypeOutput, FileTypeMasterDocument}
	FileSources        = []string{FileSourceUpload, FileSourceGoogleDrive, FileSourceGenerated}
	PostStatuses       = []string{"draft", "ready", "published"}
	NotificationTypes  = []string{NotificationTaskUpdate, NotificationError, NotificationInfo, NotificationActionRequired}
	TeamRoles          = []string{"member", "admin"}
	TeamMemberStatuses = []string{"pending", "active", "inactive"}
)

// OneOf reports whether v is one of allowed.
func OneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

type Project struct {
	ID            string  `json:"id"`
	UserID        string  `json:"userId"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Status        string  `json:"status" enum:"active,completed,archived"`
	DriveFolderID *string `json:"driveFolderId,omitempty"`
	SheetID       *string `json:"sheetId,omitempty"`
	CreatedAt     string  `json:"createdAt" format:"date-time"`
	UpdatedAt     string  `json:"updatedAt" format:"date-time"`
}

type Task struct {
	ID              string  `json:"id"`
	UserID          string  `json:"userId"`
	ProjectID       *string `json:"projectId,omitempty"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	Category        string  `json:"category" enum:"pending,auto_execute,delegate_agent,human_required"`
	Status          string  `json:"status" enum:"pending,in_progress,completed,failed,cancelled"`
	Priority        string  `json:"priority" enum:"low,medium,high,urgent"`
	SourceFile      *string `json:"sourceFile,omitempty"`
	AssignedAgentID *string `json:"assignedAgentId,omitempty"`
	Result          *string `json:"result,omitempty"`
	ErrorMessage    *string `json:"errorMessage,omitempty"`
	DueDate         *string `json:"dueDate,omitempty" format:"date-time"`
	CompletedAt     *string `json:"completedAt,omitempty" format:"date-time"`
	Version         int     `json:"version"`
	CreatedAt       string  `json:"createdAt" format:"date-time"`
	UpdatedAt       string  `json:"updatedAt" format:"date-time"`
}

type Agent struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type" enum:"prompt,script,automation"`
	CreatedBy   string `json:"createdBy" enum:"user,digital_coo"`
	Prompt      string `json:"prompt,omitempty"`
	Script      string `json:"script,omitempty"`
	Readme      string `json:"readme,omitempty"`
	UsageCount  int    `json:"usageCount"`
	IsActive    bool   `json:"isActive"`
	CreatedAt   string `json:"createdAt" format:"date-time"`
	UpdatedAt   string `json:"updatedAt" format:"date-time"`
}

type File struct {
	ID               string  `json:"id"`
	UserID           string  `json:"userId"`
	ProjectID        *string `json:"projectId,omitempty"`
	Name             string  `json:"name"`
	MimeType         string  `json:"mimeType,omitempty"`
	Size             int64   `json:"size"`
	Type             string  `json:"type" enum:"input,output,master_document"`
	Source           string  `json:"source" enum:"upload,google_drive,generated"`
	ExternalID       *string `json:"externalId,omitempty"`
	ExternalURL      *string `json:"externalUrl,omitempty"`
	Content          string  `json:"content,omitempty"`
	IsMasterDocument bool    `json:"isMasterDocument"`
	CreatedAt        string  `json:"createdAt" format:"date-time"`
	UpdatedAt        string  `json:"updatedAt" format:"date-time"`
}

type SocialPost struct {
	ID               string `json:"id"`
	UserID           string `json:"userId"`
	MasterDocumentID string `json:"masterDocumentId"`
	Platform         string `json:"platform" enum:"x,facebook,linkedin,instagram,tiktok_script,youtube_script"`
	Content          string `json:"content"`
	Status           string `json:"status" enum:"draft,ready,published"`
	CreatedAt        string `json:"createdAt" format:"date-time"`
	UpdatedAt        string `json:"updatedAt" format:"date-time"`
}

type Notification struct {
	ID               string  `json:"id"`
	UserID           string  `json:"userId"`
	Type             string  `json:"type" enum:"task_update,error,info,action_required"`
	Title            string  `json:"title"`
	Message          string  `json:"message"`
	RelatedTaskID    *string `json:"relatedTaskId,omitempty"`
	RelatedProjectID *string `json:"relatedProjectId,omitempty"`
	IsRead           bool    `json:"isRead"`
	EmailSent        bool    `json:"emailSent"`
	CreatedAt        string  `json:"createdAt" format:"date-time"`
}

type ActivityLog struct {
	ID          int64  `json:"id"`
	UserID      string `json:"userId"`
	Action      string `json:"action"`
	Description string `json:"description"`
	EntityType  string `json:"entityType,omitempty"`
	EntityID    string `json:"entityId,omitempty"`
	Metadata    string `json:"metadata,omitempty"`
	CreatedAt   string `json:"createdAt" format:"date-time"`
}

type TeamMember struct {
	ID         string  `json:"id"`
	OwnerID    string  `json:"ownerId"`
	MemberID   *string `json:"memberId,omitempty"`
	Email      string  `json:"email"`
	Role       string  `json:"role" enum:"member,admin"`
	Status     string  `json:"status" enum:"pending,active,inactive"`
	InvitedAt  string  `json:"invitedAt" format:"date-time"`
	AcceptedAt *string `json:"acceptedAt,omitempty" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}
