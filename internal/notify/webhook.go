// Package notify delivers notifications to systems outside the dashboard.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"digitalcoo/internal/config"
	"digitalcoo/internal/domain"
)

const defaultWebhookTimeout = 5 * time.Second

// Notifier pushes a stored notification out. Delivery is best effort.
type Notifier interface {
	Deliver(ctx context.Context, n domain.Notification) (bool, error)
}

// Dispatcher fans a notification out to every matching webhook and to Slack.
type Dispatcher struct {
	webhooks []config.Webhook
	slack    *Slack
	client   *http.Client
	log      *zap.Logger
}

func NewDispatcher(cfg *config.Config, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		client: &http.Client{Timeout: defaultWebhookTimeout},
		log:    log,
	}
	if cfg != nil {
		d.webhooks = cfg.Notify.Webhooks
		if strings.TrimSpace(cfg.Notify.SlackWebhookURL) != "" {
			d.slack = NewSlack(cfg.Notify.SlackWebhookURL)
		}
	}
	return d
}

// Enabled reports whether any destination is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && (len(d.webhooks) > 0 || d.slack != nil)
}

// Deliver posts n to all destinations and reports whether at least one
// accepted it. Failures are joined into the returned error.
func (d *Dispatcher) Deliver(ctx context.Context, n domain.Notification) (bool, error) {
	if !d.Enabled() {
		return false, nil
	}
	var (
		delivered bool
		errs      []error
	)
	for _, hook := range d.webhooks {
		if !newTypeFilter(hook.Types).match(n.Type) {
			continue
		}
		if err := d.post(ctx, hook, n); err != nil {
			d.log.Warn("webhook delivery failed", zap.String("url", hook.URL), zap.String("notification_id", n.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if d.slack != nil {
		if err := d.slack.Send(ctx, n); err != nil {
			d.log.Warn("slack delivery failed", zap.String("notification_id", n.ID), zap.Error(err))
			errs = append(errs, err)
		} else {
			delivered = true
		}
	}
	return delivered, errors.Join(errs...)
}

type webhookEvent struct {
	ID               string  `json:"id"`
	Type             string  `json:"type"`
	UserID           string  `json:"userId"`
	Title            string  `json:"title"`
	Message          string  `json:"message"`
	RelatedTaskID    *string `json:"relatedTaskId,omitempty"`
	RelatedProjectID *string `json:"relatedProjectId,omitempty"`
	CreatedAt        string  `json:"createdAt"`
}

func (d *Dispatcher) post(ctx context.Context, hook config.Webhook, n domain.Notification) error {
	data, err := json.Marshal(webhookEvent{
		ID:               n.ID,
		Type:             n.Type,
		UserID:           n.UserID,
		Title:            n.Title,
		Message:          n.Message,
		RelatedTaskID:    n.RelatedTaskID,
		RelatedProjectID: n.RelatedProjectID,
		CreatedAt:        n.CreatedAt,
	})
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(hook.TimeoutSeconds) * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Coo-Event", n.Type)
	req.Header.Set("X-Coo-Delivery", n.ID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Coo-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type typeFilter struct {
	all bool
	set map[string]struct{}
}

func newTypeFilter(types []string) typeFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		key := strings.TrimSpace(t)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return typeFilter{all: true}
	}
	return typeFilter{set: set}
}

func (f typeFilter) match(t string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[t]
	return ok
}
