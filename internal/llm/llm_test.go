package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type mockChatModel struct {
	Response *schema.Message
	Err      error
	Inputs   [][]*schema.Message
}

func (m *mockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.Inputs = append(m.Inputs, input)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *mockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func reply(content string) *mockChatModel {
	return &mockChatModel{Response: &schema.Message{Role: schema.Assistant, Content: content}}
}

func TestClassifyTaskValid(t *testing.T) {
	m := reply("```json\n{\"category\":\"auto_execute\",\"confidence\":0.9,\"reasoning\":\"writing only\"}\n```")
	c := NewClassifier(m)
	res, err := c.ClassifyTask(context.Background(), "Generate startup descriptions", "scrape site, <500 words")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.Category != "auto_execute" || res.Confidence != 0.9 || res.Reasoning != "writing only" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.SuggestedAgent != nil {
		t.Fatalf("expected no suggested agent")
	}
	if len(m.Inputs) != 1 || len(m.Inputs[0]) != 2 {
		t.Fatalf("expected system and user message, got %+v", m.Inputs)
	}
	if !strings.Contains(m.Inputs[0][1].Content, "scrape site") {
		t.Fatalf("description missing from prompt: %q", m.Inputs[0][1].Content)
	}
}

func TestClassifyTaskRejectsMalformedOutput(t *testing.T) {
	cases := map[string]string{
		"not json":         "I think this is auto_execute",
		"unknown category": `{"category":"maybe","confidence":0.5,"reasoning":"x"}`,
		"pending category": `{"category":"pending","confidence":0.5,"reasoning":"x"}`,
		"confidence range": `{"category":"human_required","confidence":1.5,"reasoning":"x"}`,
		"no confidence":    `{"category":"human_required","reasoning":"x"}`,
		"truncated":        `{"category":"human_requ`,
	}
	for name, out := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewClassifier(reply(out)).ClassifyTask(context.Background(), "t", "")
			var ce *ClassificationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ClassificationError, got %v", err)
			}
		})
	}
}

func TestDecodeSkipsBracketedProse(t *testing.T) {
	verdict, err := DecodeTriage(`Note [draft]: {"category":"human_required","confidence":0.9,"reasoning":"needs a signature"}`)
	if err != nil {
		t.Fatalf("triage: %v", err)
	}
	if verdict.Category != "human_required" || verdict.Reasoning != "needs a signature" {
		t.Fatalf("unexpected verdict %+v", verdict)
	}
	if _, err := DecodeTriage(`Answer [1, 2] only`); err == nil {
		t.Fatalf("an array is not a triage reply")
	}
	tasks, err := DecodeTaskList(`Extracted {2} items [v1]: [{"title":"Call Acme"},{"title":"Ship invoice"}]`)
	if err != nil {
		t.Fatalf("task list: %v", err)
	}
	if len(tasks) != 2 || tasks[1].Title != "Ship invoice" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
}

func TestClassifyTaskTransportErrorIsNotClassificationError(t *testing.T) {
	m := &mockChatModel{Err: errors.New("quota exceeded")}
	_, err := NewClassifier(m).ClassifyTask(context.Background(), "t", "")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected transport error, got %v", err)
	}
	var ce *ClassificationError
	if errors.As(err, &ce) {
		t.Fatalf("transport failure must not be reported as ClassificationError")
	}
}

func TestParseTaskFileShapes(t *testing.T) {
	array := `Here you go: [{"title":" Call Acme ","priority":"HIGH","projectName":"Acme"},{"title":"Write blog post"}] thanks`
	tasks, err := NewClassifier(reply(array)).ParseTaskFile(context.Background(), "raw")
	if err != nil {
		t.Fatalf("parse array: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "Call Acme" || tasks[0].Priority != "high" || tasks[0].ProjectName != "Acme" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}

	wrapped := `{"tasks":[{"title":"One"}]}`
	tasks, err = NewClassifier(reply(wrapped)).ParseTaskFile(context.Background(), "raw")
	if err != nil || len(tasks) != 1 || tasks[0].Title != "One" {
		t.Fatalf("parse wrapped: %v %+v", err, tasks)
	}

	tasks, err = NewClassifier(reply("[]")).ParseTaskFile(context.Background(), "raw")
	if err != nil || len(tasks) != 0 {
		t.Fatalf("empty list: %v %+v", err, tasks)
	}
}

func TestParseTaskFileRejectsMalformedOutput(t *testing.T) {
	cases := map[string]string{
		"prose":         "no tasks here",
		"missing title": `[{"description":"x"}]`,
		"object":        `{"title":"x"}`,
		"wrong type":    `[{"title":42}]`,
	}
	for name, out := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewClassifier(reply(out)).ParseTaskFile(context.Background(), "raw")
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
		})
	}
}

func TestGenerator(t *testing.T) {
	out, err := NewGenerator(reply("  Report generated.\n")).Generate(context.Background(), "do it")
	if err != nil || out != "Report generated." {
		t.Fatalf("generate: %q %v", out, err)
	}
	if _, err := NewGenerator(reply("   ")).Generate(context.Background(), "do it"); err == nil {
		t.Fatalf("expected error for empty reply")
	}
	if _, err := NewGenerator(nil).Generate(context.Background(), "do it"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewChatModelNone(t *testing.T) {
	m, err := NewChatModel(context.Background(), Config{Provider: ProviderNone})
	if err != nil || m != nil {
		t.Fatalf("expected nil model, got %v %v", m, err)
	}
	if _, err := NewChatModel(context.Background(), Config{Provider: ProviderOpenAI, Model: "gpt"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewChatModel(context.Background(), Config{Provider: "cohere"}); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
}
