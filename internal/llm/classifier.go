package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrNotConfigured is returned when no chat model backs a collaborator.
var ErrNotConfigured = errors.New("llm: model not configured")

// TriageResult is the classifier verdict for a single task.
type TriageResult struct {
	Category       string  `json:"category"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	SuggestedAgent *string `json:"suggestedAgent,omitempty"`
}

// ParsedTask is one candidate task extracted from a source document.
type ParsedTask struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	ProjectName string `json:"projectName,omitempty"`
}

// ClassificationError reports a triage reply that is not a usable verdict.
type ClassificationError struct {
	Reason string
}

func (e *ClassificationError) Error() string {
	return "classification failed: " + e.Reason
}

// ParseError reports a task-file reply that is not a usable task list.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "task file parse failed: " + e.Reason
}

// Classifier assigns execution categories and extracts tasks from documents.
type Classifier interface {
	ClassifyTask(ctx context.Context, title, description string) (TriageResult, error)
	ParseTaskFile(ctx context.Context, rawText string) ([]ParsedTask, error)
}

// ChatClassifier implements Classifier on top of a chat model.
type ChatClassifier struct {
	Model model.BaseChatModel
}

func NewClassifier(m model.BaseChatModel) *ChatClassifier {
	return &ChatClassifier{Model: m}
}

type triageReply struct {
	Category       string   `json:"category" validate:"required,oneof=auto_execute delegate_agent human_required"`
	Confidence     *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
	Reasoning      string   `json:"reasoning"`
	SuggestedAgent *string  `json:"suggestedAgent"`
}

type parseReply struct {
	Tasks []ParsedTask `validate:"dive"`
}

const triageSystemPrompt = `You are the chief operating officer of a small company. You triage incoming tasks.
Choose exactly one category:
- auto_execute: the task can be completed entirely by writing text (research summaries, drafts, descriptions, plans).
- delegate_agent: the task is repetitive or needs a reusable automation, script or specialised agent.
- human_required: the task needs a human decision, physical action, credentials, money or a relationship.
Reply with JSON only, no prose:
{"category":"auto_execute|delegate_agent|human_required","confidence":0.0-1.0,"reasoning":"one or two sentences","suggestedAgent":"optional agent name"}`

const parseSystemPrompt = `You extract actionable tasks from a document.
Reply with a JSON array only, no prose. Each element:
{"title":"short imperative title","description":"optional details","priority":"low|medium|high|urgent","projectName":"optional project the task belongs to"}
Omit fields you cannot infer. Return [] when the document contains no tasks.`

func (c *ChatClassifier) generate(ctx context.Context, system, user string) (string, error) {
	if c == nil || c.Model == nil {
		return "", ErrNotConfigured
	}
	resp, err := c.Model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("empty response from model")
	}
	return resp.Content, nil
}

// ClassifyTask asks the model for a category. Transport failures are returned
// as is; a reply that does not validate yields *ClassificationError.
func (c *ChatClassifier) ClassifyTask(ctx context.Context, title, description string) (TriageResult, error) {
	prompt := "Task title: " + title
	if strings.TrimSpace(description) != "" {
		prompt += "\nTask description: " + description
	}
	out, err := c.generate(ctx, triageSystemPrompt, prompt)
	if err != nil {
		return TriageResult{}, fmt.Errorf("classifier call: %w", err)
	}
	return DecodeTriage(out)
}

// DecodeTriage strictly decodes a classifier reply.
func DecodeTriage(out string) (TriageResult, error) {
	reply, err := extractJSON[triageReply](out, "{")
	if err != nil {
		return TriageResult{}, &ClassificationError{Reason: err.Error()}
	}
	reply.Category = strings.TrimSpace(reply.Category)
	if err := validateStruct(reply); err != nil {
		return TriageResult{}, &ClassificationError{Reason: err.Error()}
	}
	res := TriageResult{
		Category:   reply.Category,
		Confidence: *reply.Confidence,
		Reasoning:  strings.TrimSpace(reply.Reasoning),
	}
	if reply.SuggestedAgent != nil && strings.TrimSpace(*reply.SuggestedAgent) != "" {
		s := strings.TrimSpace(*reply.SuggestedAgent)
		res.SuggestedAgent = &s
	}
	return res, nil
}

// ParseTaskFile asks the model to extract tasks from rawText.
func (c *ChatClassifier) ParseTaskFile(ctx context.Context, rawText string) ([]ParsedTask, error) {
	out, err := c.generate(ctx, parseSystemPrompt, "Document:\n"+rawText)
	if err != nil {
		return nil, fmt.Errorf("parser call: %w", err)
	}
	return DecodeTaskList(out)
}

// DecodeTaskList strictly decodes a task list reply. Both a bare array and
// an object with a "tasks" array are accepted.
func DecodeTaskList(out string) ([]ParsedTask, error) {
	raw, err := extractJSON[json.RawMessage](out, "[{")
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	var reply parseReply
	switch firstByte(raw) {
	case '[':
		err = json.Unmarshal(raw, &reply.Tasks)
	case '{':
		var wrapped struct {
			Tasks *[]ParsedTask `json:"tasks"`
		}
		err = json.Unmarshal(raw, &wrapped)
		if err == nil && wrapped.Tasks == nil {
			err = errors.New(`object reply has no "tasks" array`)
		}
		if wrapped.Tasks != nil {
			reply.Tasks = *wrapped.Tasks
		}
	default:
		err = errors.New("reply is not a list of tasks")
	}
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	for i := range reply.Tasks {
		reply.Tasks[i].Title = strings.TrimSpace(reply.Tasks[i].Title)
		reply.Tasks[i].Priority = strings.ToLower(strings.TrimSpace(reply.Tasks[i].Priority))
		reply.Tasks[i].ProjectName = strings.TrimSpace(reply.Tasks[i].ProjectName)
	}
	if err := validateStruct(reply); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	return reply.Tasks, nil
}

func firstByte(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}
