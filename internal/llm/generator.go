package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatGenerator implements Generator with a single user turn.
type ChatGenerator struct {
	Model model.BaseChatModel
}

func NewGenerator(m model.BaseChatModel) *ChatGenerator {
	return &ChatGenerator{Model: m}
}

func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.Model == nil {
		return "", ErrNotConfigured
	}
	resp, err := g.Model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errors.New("empty response from model")
	}
	return strings.TrimSpace(resp.Content), nil
}
