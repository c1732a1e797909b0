package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/drive"
	"digitalcoo/internal/events"
	"digitalcoo/internal/llm"
)

type ImportSummary struct {
	Total         int `json:"total"`
	Pending       int `json:"pending"`
	AutoExecute   int `json:"autoExecute"`
	DelegateAgent int `json:"delegateAgent"`
	HumanRequired int `json:"humanRequired"`
}

func (s *ImportSummary) add(category string) {
	s.Total++
	switch category {
	case domain.CategoryAutoExecute:
		s.AutoExecute++
	case domain.CategoryDelegateAgent:
		s.DelegateAgent++
	case domain.CategoryHumanRequired:
		s.HumanRequired++
	default:
		s.Pending++
	}
}

type ImportResult struct {
	File    domain.File   `json:"file"`
	Tasks   []domain.Task `json:"tasks"`
	Summary ImportSummary `json:"summary"`
}

type TriageOutcome struct {
	Task   domain.Task      `json:"task"`
	Triage llm.TriageResult `json:"triage"`
}

type ExecuteResult struct {
	Success bool        `json:"success"`
	Result  *string     `json:"result,omitempty"`
	Error   *string     `json:"error,omitempty"`
	Task    domain.Task `json:"task"`
}

// ImportTasks fetches fileName from folderName, extracts its tasks, stores
// them and triages each one. Steps are committed individually; a parse
// failure leaves the imported file behind.
func (e Engine) ImportTasks(ctx context.Context, userID, folderName, fileName string) (ImportResult, error) {
	folderName = strings.TrimSpace(folderName)
	fileName = strings.TrimSpace(fileName)
	if folderName == "" {
		return ImportResult{}, invalid("folderName", "is required")
	}
	if fileName == "" {
		return ImportResult{}, invalid("fileName", "is required")
	}
	if e.Source == nil {
		return ImportResult{}, drive.ErrNotConfigured
	}
	if e.Classifier == nil {
		return ImportResult{}, llm.ErrNotConfigured
	}
	log := e.logger().With(zap.String("user_id", userID), zap.String("folder", folderName), zap.String("file", fileName))

	meta, content, err := e.fetch(ctx, folderName, fileName)
	if err != nil {
		return ImportResult{}, err
	}

	now := e.stamp()
	file := domain.File{
		ID:          newID(),
		UserID:      userID,
		Name:        fileName,
		MimeType:    meta.MimeType,
		Size:        int64(len(content)),
		Type:        domain.FileTypeInput,
		Source:      domain.FileSourceGoogleDrive,
		ExternalID:  optionalString(meta.ID),
		ExternalURL: optionalString(meta.URL),
		Content:     content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertFile(ctx, nil, file); err != nil {
		return ImportResult{}, err
	}

	pctx, cancel := context.WithTimeout(ctx, e.classifierTimeout())
	parsed, err := e.Classifier.ParseTaskFile(pctx, content)
	cancel()
	if err != nil {
		log.Warn("task file parse failed", zap.String("file_id", file.ID), zap.Error(err))
		return ImportResult{}, err
	}

	res := ImportResult{File: file, Tasks: make([]domain.Task, 0, len(parsed))}
	for _, p := range parsed {
		t, err := e.insertParsedTask(ctx, userID, fileName, p)
		if err != nil {
			return ImportResult{}, err
		}
		res.Tasks = append(res.Tasks, t)
	}

	var notes []domain.Notification
	for i := range res.Tasks {
		out, note, err := e.triage(ctx, res.Tasks[i])
		if err != nil {
			log.Warn("triage failed during import", zap.String("task_id", res.Tasks[i].ID), zap.Error(err))
		} else {
			res.Tasks[i] = out.Task
			notes = append(notes, note)
		}
		res.Summary.add(res.Tasks[i].Category)
	}

	var imported domain.Notification
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.FileProcessed,
			Description: fmt.Sprintf("Imported %d tasks from %s", len(res.Tasks), fileName),
			EntityType:  "file",
			EntityID:    file.ID,
			Metadata: events.Metadata{
				"folder":        folderName,
				"total":         res.Summary.Total,
				"autoExecute":   res.Summary.AutoExecute,
				"delegateAgent": res.Summary.DelegateAgent,
				"humanRequired": res.Summary.HumanRequired,
			},
		}); err != nil {
			return err
		}
		n, err := e.notify(ctx, tx, userID, notice{
			Type:    domain.NotificationInfo,
			Title:   "Tasks Imported",
			Message: fmt.Sprintf("Imported %d tasks from %s: %d auto-execute, %d delegate, %d need attention", res.Summary.Total, fileName, res.Summary.AutoExecute, res.Summary.DelegateAgent, res.Summary.HumanRequired),
		})
		imported = n
		return err
	})
	if err != nil {
		return ImportResult{}, err
	}
	log.Info("tasks imported", zap.String("file_id", file.ID), zap.Int("total", res.Summary.Total), zap.Int("pending", res.Summary.Pending))
	e.deliver(ctx, append(notes, imported)...)
	return res, nil
}

func (e Engine) fetch(ctx context.Context, folderName, fileName string) (drive.FileMeta, string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.driveTimeout())
	defer cancel()
	folder, err := e.Source.FindFolder(ctx, folderName)
	if err != nil {
		return drive.FileMeta{}, "", fmt.Errorf("find folder: %w", err)
	}
	if folder == nil {
		return drive.FileMeta{}, "", &NotFoundError{Entity: "folder", ID: folderName}
	}
	meta, err := e.Source.FindFile(ctx, *folder, fileName)
	if err != nil {
		return drive.FileMeta{}, "", fmt.Errorf("find file: %w", err)
	}
	if meta == nil {
		return drive.FileMeta{}, "", &NotFoundError{Entity: "file", ID: fileName}
	}
	content, err := e.Source.GetContent(ctx, *meta)
	if err != nil {
		return drive.FileMeta{}, "", fmt.Errorf("get content: %w", err)
	}
	return *meta, content, nil
}

// ListSourceFiles lists the documents in a source folder.
func (e Engine) ListSourceFiles(ctx context.Context, folderName string) ([]drive.FileMeta, error) {
	folderName = strings.TrimSpace(folderName)
	if folderName == "" {
		return nil, invalid("folder", "is required")
	}
	if e.Source == nil {
		return nil, drive.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, e.driveTimeout())
	defer cancel()
	folder, err := e.Source.FindFolder(ctx, folderName)
	if err != nil {
		return nil, fmt.Errorf("find folder: %w", err)
	}
	if folder == nil {
		return nil, &NotFoundError{Entity: "folder", ID: folderName}
	}
	files, err := e.Source.ListFiles(ctx, *folder)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	if files == nil {
		files = []drive.FileMeta{}
	}
	return files, nil
}

func (e Engine) insertParsedTask(ctx context.Context, userID, fileName string, p llm.ParsedTask) (domain.Task, error) {
	now := e.stamp()
	t := domain.Task{
		ID:          newID(),
		UserID:      userID,
		Title:       p.Title,
		Description: p.Description,
		Category:    domain.CategoryPending,
		Status:      domain.StatusPending,
		Priority:    normalizePriority(p.Priority),
		SourceFile:  optionalString(fileName),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.ProjectName != "" {
		proj, err := e.Repo.FindProjectByName(ctx, userID, p.ProjectName)
		if err == nil {
			t.ProjectID = &proj.ID
		} else if !notFoundErr(err) {
			return t, err
		}
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
			return err
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.TaskCreated,
			Description: "Created task: " + t.Title,
			EntityType:  "task",
			EntityID:    t.ID,
			Metadata:    events.Metadata{"sourceFile": fileName, "priority": t.Priority},
		})
	})
	return t, err
}

func normalizePriority(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if domain.OneOf(p, domain.TaskPriorities) {
		return p
	}
	return domain.PriorityMedium
}

// Triage classifies a stored task and records its category. A rejected
// classifier reply leaves the task unchanged.
func (e Engine) Triage(ctx context.Context, userID, taskID string) (TriageOutcome, error) {
	if e.Classifier == nil {
		return TriageOutcome{}, llm.ErrNotConfigured
	}
	t, err := e.Repo.GetTask(ctx, nil, userID, taskID)
	if err != nil {
		return TriageOutcome{}, notFound(err, "task", taskID)
	}
	out, note, err := e.triage(ctx, t)
	if err != nil {
		return TriageOutcome{}, err
	}
	e.deliver(ctx, note)
	return out, nil
}

// triage returns the notification it stored, if any, for delivery by the
// caller after all writes are done.
func (e Engine) triage(ctx context.Context, t domain.Task) (TriageOutcome, domain.Notification, error) {
	cctx, cancel := context.WithTimeout(ctx, e.classifierTimeout())
	verdict, err := e.Classifier.ClassifyTask(cctx, t.Title, t.Description)
	cancel()
	if err != nil {
		return TriageOutcome{}, domain.Notification{}, err
	}
	var note domain.Notification
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		now := e.stamp()
		if err := e.Repo.SetTaskCategory(ctx, tx, t.UserID, t.ID, verdict.Category, now); err != nil {
			return notFound(err, "task", t.ID)
		}
		t.Category = verdict.Category
		t.UpdatedAt = now
		t.Version++
		meta := events.Metadata{"category": verdict.Category, "confidence": verdict.Confidence, "reasoning": verdict.Reasoning}
		if verdict.SuggestedAgent != nil {
			meta["suggestedAgent"] = *verdict.SuggestedAgent
		}
		if err := e.activity(ctx, tx, events.Entry{
			UserID:      t.UserID,
			Action:      events.TaskTriaged,
			Description: fmt.Sprintf("Triaged task %q as %s", t.Title, verdict.Category),
			EntityType:  "task",
			EntityID:    t.ID,
			Metadata:    meta,
		}); err != nil {
			return err
		}
		if verdict.Category != domain.CategoryHumanRequired {
			return nil
		}
		n, err := e.notify(ctx, tx, t.UserID, notice{
			Type:      domain.NotificationActionRequired,
			Title:     "Attention Needed",
			Message:   fmt.Sprintf("%q needs your input: %s", t.Title, verdict.Reasoning),
			TaskID:    t.ID,
			ProjectID: t.ProjectID,
		})
		note = n
		return err
	})
	if err != nil {
		return TriageOutcome{}, domain.Notification{}, err
	}
	return TriageOutcome{Task: t, Triage: verdict}, note, nil
}

// Execute runs a task through the executor. The task is claimed with a
// version check so two concurrent executions cannot both proceed; the
// outcome is written as long as the task is still in_progress, so edits
// made while the executor runs do not discard it. Executor failures are
// recorded on the task and reported in the result, not as an error.
func (e Engine) Execute(ctx context.Context, userID, taskID string) (ExecuteResult, error) {
	if e.Executor == nil {
		return ExecuteResult{}, llm.ErrNotConfigured
	}
	var (
		task  domain.Task
		agent *domain.Agent
	)
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		t, err := e.Repo.GetTask(ctx, tx, userID, taskID)
		if err != nil {
			return notFound(err, "task", taskID)
		}
		if t.Status == domain.StatusInProgress {
			return &ConflictError{Entity: "task", ID: taskID}
		}
		prev := t.Status
		now := e.stamp()
		t.Status = domain.StatusInProgress
		t.UpdatedAt = now
		normalizeTaskState(&t, now)
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return writeErr(err, taskID)
		}
		t.Version++
		if t.AssignedAgentID != nil {
			a, err := e.Repo.GetAgent(ctx, tx, userID, *t.AssignedAgentID)
			switch {
			case err == nil && a.IsActive && a.Type == "prompt" && strings.TrimSpace(a.Prompt) != "":
				if err := e.Repo.IncrementAgentUsage(ctx, tx, userID, a.ID, now); err != nil {
					return err
				}
				a.UsageCount++
				agent = &a
			case err != nil && !notFoundErr(err):
				return err
			}
		}
		task = t
		meta := events.Metadata{"previousStatus": prev}
		if agent != nil {
			meta["agentId"] = agent.ID
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.TaskStarted,
			Description: "Started task: " + t.Title,
			EntityType:  "task",
			EntityID:    t.ID,
			Metadata:    meta,
		})
	})
	if err != nil {
		return ExecuteResult{}, err
	}
	log := e.logger().With(zap.String("user_id", userID), zap.String("task_id", taskID))

	timeout := e.executorTimeout()
	xctx, cancel := context.WithTimeout(ctx, timeout)
	output, runErr := e.Executor.Generate(xctx, executionPrompt(task, agent))
	cancel()
	if runErr != nil && errors.Is(runErr, context.DeadlineExceeded) {
		runErr = fmt.Errorf("executor timed out after %s", timeout)
	}

	// the outcome must be recorded even if the caller went away
	wctx := context.WithoutCancel(ctx)
	var (
		res  ExecuteResult
		note domain.Notification
	)
	err = e.inTx(wctx, func(tx *sql.Tx) error {
		t := task
		now := e.stamp()
		entry := events.Entry{UserID: userID, EntityType: "task", EntityID: t.ID}
		n := notice{TaskID: t.ID, ProjectID: t.ProjectID}
		if runErr == nil {
			t.Status = domain.StatusCompleted
			t.Result = &output
			t.CompletedAt = &now
			t.ErrorMessage = nil
			entry.Action = events.TaskCompleted
			entry.Description = "Completed task: " + t.Title
			n.Type, n.Title = domain.NotificationTaskUpdate, "Task Completed"
			n.Message = fmt.Sprintf("%q was completed.", t.Title)
		} else {
			msg := runErr.Error()
			t.Status = domain.StatusFailed
			t.ErrorMessage = &msg
			entry.Action = events.TaskFailed
			entry.Description = "Task failed: " + t.Title
			entry.Metadata = events.Metadata{"error": msg}
			n.Type, n.Title = domain.NotificationError, "Task Failed"
			n.Message = fmt.Sprintf("%q failed: %s", t.Title, truncate(msg, 200))
		}
		t.UpdatedAt = now
		if err := e.Repo.FinishTask(wctx, tx, t); err != nil {
			return writeErr(err, taskID)
		}
		// pick up edits made while the executor ran
		t, err := e.Repo.GetTask(wctx, tx, userID, taskID)
		if err != nil {
			return err
		}
		if err := e.activity(wctx, tx, entry); err != nil {
			return err
		}
		stored, err := e.notify(wctx, tx, userID, n)
		if err != nil {
			return err
		}
		note = stored
		res = ExecuteResult{Success: runErr == nil, Task: t}
		if runErr == nil {
			res.Result = t.Result
		} else {
			res.Error = t.ErrorMessage
		}
		return nil
	})
	if err != nil {
		log.Error("recording execution outcome failed", zap.Bool("executor_ok", runErr == nil), zap.Error(err))
		return ExecuteResult{}, err
	}
	if runErr != nil {
		log.Warn("task execution failed", zap.Error(runErr))
	} else {
		log.Info("task executed", zap.Int("result_len", len(output)))
	}
	e.deliver(wctx, note)
	return res, nil
}

const executionInstructions = `You are the Digital COO, an operations assistant that completes business tasks end to end.
Produce the finished deliverable for the task below, not a plan for doing it.
Write in plain, professional language and format the output in Markdown when structure helps.`

func executionPrompt(t domain.Task, agent *domain.Agent) string {
	var b strings.Builder
	if agent != nil {
		b.WriteString("Agent instructions (")
		b.WriteString(agent.Name)
		b.WriteString("):\n")
		b.WriteString(strings.TrimSpace(agent.Prompt))
		b.WriteString("\n\n")
	}
	b.WriteString(executionInstructions)
	b.WriteString("\n\nTask: ")
	b.WriteString(t.Title)
	if d := strings.TrimSpace(t.Description); d != "" {
		b.WriteString("\nDetails: ")
		b.WriteString(d)
	}
	b.WriteString("\nPriority: ")
	b.WriteString(t.Priority)
	if t.DueDate != nil {
		b.WriteString("\nDue: ")
		b.WriteString(*t.DueDate)
	}
	return b.String()
}
