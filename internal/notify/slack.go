package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"digitalcoo/internal/domain"
)

// Slack posts notifications to an incoming webhook.
type Slack struct {
	url    string
	client *http.Client
}

func NewSlack(url string) *Slack {
	return &Slack{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// SlackBlock represents a Slack Block Kit block
type SlackBlock struct {
	Type     string         `json:"type"`
	Text     *SlackTextObj  `json:"text,omitempty"`
	Elements []SlackTextObj `json:"elements,omitempty"`
}

// SlackTextObj represents a Slack text object
type SlackTextObj struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// SlackAttachment represents a Slack attachment (for colored sidebar)
type SlackAttachment struct {
	Color  string       `json:"color"`
	Blocks []SlackBlock `json:"blocks"`
}

// SlackPayload represents the webhook payload
type SlackPayload struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

func slackStyle(notificationType string) (color, emoji string) {
	switch notificationType {
	case domain.NotificationError:
		return "#FF0000", ":x:"
	case domain.NotificationActionRequired:
		return "#FFA500", ":raising_hand:"
	case domain.NotificationTaskUpdate:
		return "#00FF00", ":white_check_mark:"
	default:
		return "#439FE0", ":information_source:"
	}
}

func buildSlackPayload(n domain.Notification) SlackPayload {
	color, emoji := slackStyle(n.Type)
	message := n.Message
	if len(message) > 2500 {
		message = message[:2500] + "\n... _(truncated)_"
	}
	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackTextObj{Type: "plain_text", Text: fmt.Sprintf("%s %s", emoji, n.Title), Emoji: true},
		},
		{
			Type: "section",
			Text: &SlackTextObj{Type: "mrkdwn", Text: message},
		},
	}
	if n.RelatedTaskID != nil {
		blocks = append(blocks, SlackBlock{
			Type:     "context",
			Elements: []SlackTextObj{{Type: "mrkdwn", Text: fmt.Sprintf("Task `%s`", *n.RelatedTaskID)}},
		})
	}
	return SlackPayload{
		Text:        n.Title,
		Attachments: []SlackAttachment{{Color: color, Blocks: blocks}},
	}
}

func (s *Slack) Send(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(buildSlackPayload(n))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("slack status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
