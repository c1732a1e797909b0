package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"digitalcoo/internal/config"
	"digitalcoo/internal/domain"
	"digitalcoo/internal/drive"
	"digitalcoo/internal/events"
	"digitalcoo/internal/llm"
	"digitalcoo/internal/notify"
	"digitalcoo/internal/repo"
)

// Engine runs the task pipeline. Collaborators are injected at construction
// and never looked up globally.
type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Events     events.Writer
	Config     *config.Config
	Classifier llm.Classifier
	Executor   llm.Generator
	Source     drive.Source
	Notifier   notify.Notifier
	Log        *zap.Logger
	Now        func() time.Time
}

// Deps are the external collaborators of the pipeline. Nil members disable
// the operations that need them.
type Deps struct {
	Classifier llm.Classifier
	Executor   llm.Generator
	Source     drive.Source
	Notifier   notify.Notifier
	Logger     *zap.Logger
}

func New(db *sql.DB, cfg *config.Config, deps Deps) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return Engine{
		DB:         db,
		Repo:       repo.Repo{DB: db},
		Events:     events.Writer{DB: db},
		Config:     cfg,
		Classifier: deps.Classifier,
		Executor:   deps.Executor,
		Source:     deps.Source,
		Notifier:   deps.Notifier,
		Log:        log,
		Now:        time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return domain.FormatTime(e.now())
}

func (e Engine) logger() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

func newID() string {
	return uuid.NewString()
}

func (e Engine) timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

func (e Engine) classifierTimeout() time.Duration {
	return e.timeout(e.Config.Timeouts.Classifier)
}

func (e Engine) executorTimeout() time.Duration {
	return e.timeout(e.Config.Timeouts.Executor)
}

func (e Engine) driveTimeout() time.Duration {
	return e.timeout(e.Config.Timeouts.Drive)
}

// activity appends an activity entry stamped with the engine clock.
func (e Engine) activity(ctx context.Context, tx *sql.Tx, entry events.Entry) error {
	w := e.Events
	w.Now = e.now
	return w.Append(ctx, tx, entry)
}

// inTx runs fn inside a transaction and commits when it returns nil.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type notice struct {
	Type      string
	Title     string
	Message   string
	TaskID    string
	ProjectID *string
}

// notify stores a notification in tx. Delivery to external destinations
// happens after commit through deliver.
func (e Engine) notify(ctx context.Context, tx *sql.Tx, userID string, n notice) (domain.Notification, error) {
	rec := domain.Notification{
		ID:               newID(),
		UserID:           userID,
		Type:             n.Type,
		Title:            n.Title,
		Message:          n.Message,
		RelatedTaskID:    optionalString(n.TaskID),
		RelatedProjectID: n.ProjectID,
		CreatedAt:        e.stamp(),
	}
	if err := e.Repo.InsertNotification(ctx, tx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// deliver pushes committed notifications out. Failures are logged only.
func (e Engine) deliver(ctx context.Context, notes ...domain.Notification) {
	if e.Notifier == nil {
		return
	}
	for _, n := range notes {
		if n.ID == "" {
			continue
		}
		ok, err := e.Notifier.Deliver(ctx, n)
		if err != nil {
			e.logger().Warn("notification delivery failed", zap.String("notification_id", n.ID), zap.Error(err))
		}
		if ok {
			if err := e.Repo.MarkNotificationSent(ctx, n.UserID, n.ID); err != nil {
				e.logger().Warn("mark notification sent", zap.String("notification_id", n.ID), zap.Error(err))
			}
		}
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// trimmedPtr returns nil for nil or blank input.
func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
