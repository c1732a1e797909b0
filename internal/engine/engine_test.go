package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"digitalcoo/internal/config"
	"digitalcoo/internal/db"
	"digitalcoo/internal/domain"
	"digitalcoo/internal/drive"
	"digitalcoo/internal/engine"
	"digitalcoo/internal/llm"
	"digitalcoo/internal/migrate"
	"digitalcoo/internal/repo"
)

type fakeClassifier struct {
	mu       sync.Mutex
	verdict  map[string]llm.TriageResult
	fail     map[string]error
	parsed   []llm.ParsedTask
	parseErr error
	calls    int
}

func (f *fakeClassifier) ClassifyTask(ctx context.Context, title, description string) (llm.TriageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.fail[title]; ok {
		return llm.TriageResult{}, err
	}
	if v, ok := f.verdict[title]; ok {
		return v, nil
	}
	return llm.TriageResult{Category: domain.CategoryAutoExecute, Confidence: 0.8, Reasoning: "routine"}, nil
}

func (f *fakeClassifier) ParseTaskFile(ctx context.Context, rawText string) ([]llm.ParsedTask, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.parsed, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	fn      func(ctx context.Context, prompt string) (string, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	fn := g.fn
	g.mu.Unlock()
	if fn == nil {
		return "done", nil
	}
	return fn(ctx, prompt)
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type fakeSource struct {
	folders map[string]map[string]string
}

func (s fakeSource) FindFolder(ctx context.Context, name string) (*drive.Folder, error) {
	if _, ok := s.folders[name]; !ok {
		return nil, nil
	}
	return &drive.Folder{ID: "folder-" + name, Name: name}, nil
}

func (s fakeSource) ListFiles(ctx context.Context, folder drive.Folder) ([]drive.FileMeta, error) {
	var out []drive.FileMeta
	for name := range s.folders[folder.Name] {
		out = append(out, drive.FileMeta{ID: "file-" + name, Name: name})
	}
	return out, nil
}

func (s fakeSource) FindFile(ctx context.Context, folder drive.Folder, name string) (*drive.FileMeta, error) {
	if _, ok := s.folders[folder.Name][name]; !ok {
		return nil, nil
	}
	return &drive.FileMeta{ID: "file-" + name, Name: name, MimeType: "text/plain", URL: "https://example.test/" + name}, nil
}

func (s fakeSource) GetContent(ctx context.Context, file drive.FileMeta) (string, error) {
	for _, files := range s.folders {
		if c, ok := files[file.Name]; ok {
			return c, nil
		}
	}
	return "", errors.New("missing")
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *fakeNotifier) Deliver(ctx context.Context, note domain.Notification) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return true, nil
}

type testEnv struct {
	Engine     engine.Engine
	Ctx        context.Context
	Classifier *fakeClassifier
	Generator  *fakeGenerator
	Notifier   *fakeNotifier
}

const user = "user-a"

var fixedNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Location = "UTC"
	env := &testEnv{
		Ctx:        context.Background(),
		Classifier: &fakeClassifier{verdict: map[string]llm.TriageResult{}, fail: map[string]error{}},
		Generator:  &fakeGenerator{},
		Notifier:   &fakeNotifier{},
	}
	env.Engine = engine.New(conn, cfg, engine.Deps{
		Classifier: env.Classifier,
		Executor:   env.Generator,
		Source: fakeSource{folders: map[string]map[string]string{
			"Inbox": {"tasks.txt": "1. Invoice Acme\n2. Plan offsite"},
		}},
		Notifier: env.Notifier,
	})
	env.Engine.Now = func() time.Time { return fixedNow }
	return env
}

func (env *testEnv) task(t *testing.T, title string) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{Title: &title})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func str(s string) *string { return &s }

func TestTriageStoresCategory(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{
		Title:       str("Generate startup descriptions"),
		Description: str("scrape site, <500 words"),
	})
	if err != nil {
		t.Fatal(err)
	}
	env.Classifier.verdict[task.Title] = llm.TriageResult{Category: domain.CategoryAutoExecute, Confidence: 0.9, Reasoning: "simple writing"}

	out, err := env.Engine.Triage(env.Ctx, user, task.ID)
	if err != nil {
		t.Fatalf("triage: %v", err)
	}
	if out.Triage.Confidence != 0.9 {
		t.Fatalf("unexpected verdict %+v", out.Triage)
	}
	stored, err := env.Engine.GetTask(env.Ctx, user, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Category != domain.CategoryAutoExecute || stored.Status != domain.StatusPending {
		t.Fatalf("expected auto_execute/pending, got %s/%s", stored.Category, stored.Status)
	}
	if stored.Version != task.Version+1 {
		t.Fatalf("expected version bump, got %d", stored.Version)
	}
	logs, err := env.Engine.ListActivity(env.Ctx, repo.ActivityFilters{UserID: user, Action: "task_triaged"})
	if err != nil || len(logs) != 1 || logs[0].EntityID != task.ID {
		t.Fatalf("expected one task_triaged entry, got %v %v", logs, err)
	}
}

func TestTriageHumanRequiredNotifies(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Approve vendor contract")
	env.Classifier.verdict[task.Title] = llm.TriageResult{Category: domain.CategoryHumanRequired, Confidence: 0.7, Reasoning: "needs a signature"}
	if _, err := env.Engine.Triage(env.Ctx, user, task.ID); err != nil {
		t.Fatal(err)
	}
	notes, err := env.Engine.ListNotifications(env.Ctx, user, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Type != domain.NotificationActionRequired || notes[0].Title != "Attention Needed" {
		t.Fatalf("unexpected notifications %+v", notes)
	}
	if notes[0].RelatedTaskID == nil || *notes[0].RelatedTaskID != task.ID {
		t.Fatalf("notification must reference the task")
	}
	if !notes[0].EmailSent {
		t.Fatalf("delivered notification should be marked sent")
	}
	if len(env.Notifier.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(env.Notifier.sent))
	}
}

func TestTriageRejectedReplyLeavesTaskUntouched(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Ambiguous")
	env.Classifier.fail[task.Title] = &llm.ClassificationError{Reason: "category missing"}
	_, err := env.Engine.Triage(env.Ctx, user, task.ID)
	var cerr *llm.ClassificationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ClassificationError, got %v", err)
	}
	stored, _ := env.Engine.GetTask(env.Ctx, user, task.ID)
	if stored.Category != domain.CategoryPending || stored.Version != task.Version {
		t.Fatalf("task changed after failed triage: %+v", stored)
	}
}

func TestTriageMissingTask(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Triage(env.Ctx, user, "nope")
	var nf *engine.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "task" {
		t.Fatalf("expected task NotFoundError, got %v", err)
	}
}

func TestExecuteSuccess(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Weekly report")
	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) { return "Report generated.", nil }

	res, err := env.Engine.Execute(env.Ctx, user, task.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success || res.Result == nil || *res.Result != "Report generated." || res.Error != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	stored, _ := env.Engine.GetTask(env.Ctx, user, task.ID)
	if stored.Status != domain.StatusCompleted || stored.CompletedAt == nil || stored.ErrorMessage != nil {
		t.Fatalf("unexpected stored task %+v", stored)
	}
	if *stored.Result != "Report generated." {
		t.Fatalf("result not stored")
	}
	if !strings.Contains(env.Generator.lastPrompt(), "Weekly report") {
		t.Fatalf("prompt must contain the task title")
	}
	for _, action := range []string{"task_started", "task_completed"} {
		logs, _ := env.Engine.ListActivity(env.Ctx, repo.ActivityFilters{UserID: user, Action: action, EntityID: task.ID})
		if len(logs) != 1 {
			t.Fatalf("expected one %s entry, got %d", action, len(logs))
		}
	}
	notes, _ := env.Engine.ListNotifications(env.Ctx, user, false, 0)
	if len(notes) != 1 || notes[0].Type != domain.NotificationTaskUpdate || notes[0].Title != "Task Completed" {
		t.Fatalf("unexpected notifications %+v", notes)
	}
}

func TestExecuteFailureIsData(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Post to partner portal")
	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) { return "", errors.New("quota exceeded") }

	res, err := env.Engine.Execute(env.Ctx, user, task.ID)
	if err != nil {
		t.Fatalf("execution failure must not be an error: %v", err)
	}
	if res.Success || res.Error == nil || *res.Error != "quota exceeded" || res.Result != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	stored, _ := env.Engine.GetTask(env.Ctx, user, task.ID)
	if stored.Status != domain.StatusFailed || stored.ErrorMessage == nil || *stored.ErrorMessage != "quota exceeded" || stored.CompletedAt != nil {
		t.Fatalf("unexpected stored task %+v", stored)
	}
	notes, _ := env.Engine.ListNotifications(env.Ctx, user, false, 0)
	if len(notes) != 1 || notes[0].Type != domain.NotificationError || notes[0].Title != "Task Failed" {
		t.Fatalf("unexpected notifications %+v", notes)
	}
}

func TestExecuteRecoversFailedTask(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Flaky export")
	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) { return "", errors.New("boom") }
	if _, err := env.Engine.Execute(env.Ctx, user, task.ID); err != nil {
		t.Fatal(err)
	}
	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) { return "exported", nil }
	res, err := env.Engine.Execute(env.Ctx, user, task.ID)
	if err != nil || !res.Success {
		t.Fatalf("re-execute: %+v %v", res, err)
	}
	stored, _ := env.Engine.GetTask(env.Ctx, user, task.ID)
	if stored.ErrorMessage != nil || stored.CompletedAt == nil || stored.Status != domain.StatusCompleted {
		t.Fatalf("failed state not cleared: %+v", stored)
	}
}

func TestExecuteTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Timeouts.Executor = 20 * time.Millisecond
	task := env.task(t, "Slow job")
	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	res, err := env.Engine.Execute(env.Ctx, user, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Error == nil || *res.Error != "executor timed out after 20ms" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExecuteRejectsConcurrentRun(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Long running")
	started := make(chan struct{})
	release := make(chan struct{})
	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) {
		close(started)
		<-release
		return "ok", nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := env.Engine.Execute(env.Ctx, user, task.ID)
		done <- err
	}()
	<-started
	_, err := env.Engine.Execute(env.Ctx, user, task.ID)
	var conflict *engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first execution: %v", err)
	}
	stored, _ := env.Engine.GetTask(env.Ctx, user, task.ID)
	if stored.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
}

func TestExecuteKeepsOutcomeWhenTaskEditedMidRun(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Quarterly report")
	env.Classifier.verdict["Quarterly report"] = llm.TriageResult{Category: domain.CategoryDelegateAgent, Confidence: 0.7, Reasoning: "writing"}
	started := make(chan struct{})
	release := make(chan struct{})
	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) {
		close(started)
		<-release
		return "Report generated.", nil
	}
	type outcome struct {
		res engine.ExecuteResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := env.Engine.Execute(env.Ctx, user, task.ID)
		done <- outcome{res, err}
	}()
	<-started
	if _, err := env.Engine.Triage(env.Ctx, user, task.ID); err != nil {
		t.Fatalf("triage during run: %v", err)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, user, task.ID, engine.TaskInput{Priority: str("urgent")}); err != nil {
		t.Fatalf("edit during run: %v", err)
	}
	close(release)
	out := <-done
	if out.err != nil {
		t.Fatalf("execute: %v", out.err)
	}
	if !out.res.Success || out.res.Result == nil || *out.res.Result != "Report generated." {
		t.Fatalf("unexpected result %+v", out.res)
	}
	stored, err := env.Engine.GetTask(env.Ctx, user, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.StatusCompleted || stored.CompletedAt == nil || stored.Result == nil || *stored.Result != "Report generated." {
		t.Fatalf("outcome not stored: %+v", stored)
	}
	if stored.Category != domain.CategoryDelegateAgent || stored.Priority != "urgent" {
		t.Fatalf("mid-run edits lost: category=%s priority=%s", stored.Category, stored.Priority)
	}
	if out.res.Task.Version != stored.Version {
		t.Fatalf("returned task version %d, stored %d", out.res.Task.Version, stored.Version)
	}
}

func TestExecuteYieldsToStatusChangeMidRun(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Cancel me")
	started := make(chan struct{})
	release := make(chan struct{})
	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) {
		select {
		case <-started:
		default:
			close(started)
		}
		<-release
		return "ok", nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := env.Engine.Execute(env.Ctx, user, task.ID)
		done <- err
	}()
	<-started
	if _, err := env.Engine.UpdateTask(env.Ctx, user, task.ID, engine.TaskInput{Status: str(domain.StatusCancelled)}); err != nil {
		t.Fatalf("cancel during run: %v", err)
	}
	close(release)
	var conflict *engine.ConflictError
	if err := <-done; !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError once the task left in_progress, got %v", err)
	}
	stored, _ := env.Engine.GetTask(env.Ctx, user, task.ID)
	if stored.Status != domain.StatusCancelled || stored.Result != nil {
		t.Fatalf("cancellation overwritten: %+v", stored)
	}
	res, err := env.Engine.Execute(env.Ctx, user, task.ID)
	if err != nil || !res.Success {
		t.Fatalf("re-execute: %+v %v", res, err)
	}
}

func TestExecuteUsesAssignedAgent(t *testing.T) {
	env := newTestEnv(t)
	agent, err := env.Engine.CreateAgent(env.Ctx, user, engine.AgentInput{Name: str("Copywriter"), Prompt: str("Write like a pirate.")})
	if err != nil {
		t.Fatal(err)
	}
	inactive, err := env.Engine.CreateAgent(env.Ctx, user, engine.AgentInput{Name: str("Retired"), Prompt: str("Write in Latin.")})
	if err != nil {
		t.Fatal(err)
	}
	off := false
	if _, err := env.Engine.UpdateAgent(env.Ctx, user, inactive.ID, engine.AgentInput{IsActive: &off}); err != nil {
		t.Fatal(err)
	}

	task, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{Title: str("Launch post"), AssignedAgentID: &agent.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Execute(env.Ctx, user, task.ID); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.Generator.lastPrompt(), "Write like a pirate.") {
		t.Fatalf("agent prompt missing: %s", env.Generator.lastPrompt())
	}
	got, _ := env.Engine.GetAgent(env.Ctx, user, agent.ID)
	if got.UsageCount != 1 {
		t.Fatalf("expected usage 1, got %d", got.UsageCount)
	}

	other, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{Title: str("Old post"), AssignedAgentID: &inactive.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Execute(env.Ctx, user, other.ID); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(env.Generator.lastPrompt(), "Latin") {
		t.Fatalf("inactive agent prompt must not be used")
	}
}

func TestImportTasks(t *testing.T) {
	env := newTestEnv(t)
	acme, err := env.Engine.CreateProject(env.Ctx, user, engine.ProjectInput{Name: str("Acme Corp")})
	if err != nil {
		t.Fatal(err)
	}
	env.Classifier.parsed = []llm.ParsedTask{
		{Title: "Invoice Acme", ProjectName: "acme", Priority: "URGENT"},
		{Title: "Plan offsite", Priority: "whenever"},
	}
	env.Classifier.verdict["Invoice Acme"] = llm.TriageResult{Category: domain.CategoryDelegateAgent, Confidence: 0.6}
	env.Classifier.fail["Plan offsite"] = errors.New("classifier unavailable")

	res, err := env.Engine.ImportTasks(env.Ctx, user, "Inbox", "tasks.txt")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(res.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(res.Tasks))
	}
	first, second := res.Tasks[0], res.Tasks[1]
	if first.ProjectID == nil || *first.ProjectID != acme.ID {
		t.Fatalf("first task should belong to Acme Corp")
	}
	if second.ProjectID != nil {
		t.Fatalf("second task must have no project")
	}
	if first.Priority != domain.PriorityUrgent || second.Priority != domain.PriorityMedium {
		t.Fatalf("priorities not normalized: %s %s", first.Priority, second.Priority)
	}
	if first.Category != domain.CategoryDelegateAgent || second.Category != domain.CategoryPending {
		t.Fatalf("unexpected categories %s %s", first.Category, second.Category)
	}
	if first.SourceFile == nil || *first.SourceFile != "tasks.txt" {
		t.Fatalf("source file not recorded")
	}
	s := res.Summary
	if s.Total != 2 || s.DelegateAgent != 1 || s.Pending != 1 || s.Pending+s.AutoExecute+s.DelegateAgent+s.HumanRequired != s.Total {
		t.Fatalf("unexpected summary %+v", s)
	}
	if res.File.Source != domain.FileSourceGoogleDrive || res.File.Type != domain.FileTypeInput || res.File.ExternalID == nil {
		t.Fatalf("unexpected file %+v", res.File)
	}
	notes, _ := env.Engine.ListNotifications(env.Ctx, user, false, 0)
	if len(notes) != 1 || notes[0].Title != "Tasks Imported" || notes[0].Type != domain.NotificationInfo {
		t.Fatalf("unexpected notifications %+v", notes)
	}
	logs, _ := env.Engine.ListActivity(env.Ctx, repo.ActivityFilters{UserID: user, Action: "file_processed"})
	if len(logs) != 1 || logs[0].EntityID != res.File.ID {
		t.Fatalf("expected one file_processed entry")
	}
}

func TestImportMatchesProjectNamesBeyondASCII(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateProject(env.Ctx, user, engine.ProjectInput{Name: str("Acme Corp")}); err != nil {
		t.Fatal(err)
	}
	church, err := env.Engine.CreateProject(env.Ctx, user, engine.ProjectInput{Name: str("ÉGLISE Rénovation")})
	if err != nil {
		t.Fatal(err)
	}
	env.Classifier.parsed = []llm.ParsedTask{
		{Title: "Order roof tiles", ProjectName: "église rénovation"},
		{Title: "Book mason", ProjectName: "50% off"},
	}
	res, err := env.Engine.ImportTasks(env.Ctx, user, "Inbox", "tasks.txt")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if p := res.Tasks[0].ProjectID; p == nil || *p != church.ID {
		t.Fatalf("expected task in %s, got %v", church.ID, p)
	}
	if res.Tasks[1].ProjectID != nil {
		t.Fatalf("fragment must not act as a wildcard")
	}
}

func TestImportTasksNotFound(t *testing.T) {
	env := newTestEnv(t)
	var nf *engine.NotFoundError
	if _, err := env.Engine.ImportTasks(env.Ctx, user, "Missing", "tasks.txt"); !errors.As(err, &nf) || nf.Entity != "folder" {
		t.Fatalf("expected folder NotFoundError, got %v", err)
	}
	if _, err := env.Engine.ImportTasks(env.Ctx, user, "Inbox", "other.txt"); !errors.As(err, &nf) || nf.Entity != "file" {
		t.Fatalf("expected file NotFoundError, got %v", err)
	}
	var verr *engine.ValidationError
	if _, err := env.Engine.ImportTasks(env.Ctx, user, " ", "tasks.txt"); !errors.As(err, &verr) || verr.Field != "folderName" {
		t.Fatalf("expected folderName ValidationError, got %v", err)
	}
}

func TestImportParseFailureKeepsFile(t *testing.T) {
	env := newTestEnv(t)
	env.Classifier.parseErr = &llm.ParseError{Reason: "no JSON array"}
	_, err := env.Engine.ImportTasks(env.Ctx, user, "Inbox", "tasks.txt")
	var perr *llm.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	files, _ := env.Engine.ListFiles(env.Ctx, repo.FileFilters{UserID: user})
	if len(files) != 1 {
		t.Fatalf("expected imported file to remain, got %d", len(files))
	}
	tasks, _ := env.Engine.ListTasks(env.Ctx, repo.TaskFilters{UserID: user})
	if len(tasks) != 0 {
		t.Fatalf("no tasks expected after parse failure")
	}
}

func TestGeneratePosts(t *testing.T) {
	env := newTestEnv(t)
	file, err := env.Engine.CreateFile(env.Ctx, user, engine.FileInput{Name: str("launch.md"), Type: str(domain.FileTypeMasterDocument), Content: str("X")})
	if err != nil {
		t.Fatal(err)
	}
	if !file.IsMasterDocument {
		t.Fatalf("master document flag not set")
	}
	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) {
		if !strings.HasSuffix(prompt, "Source material:\nX") {
			return "", fmt.Errorf("unexpected prompt %q", prompt)
		}
		return "post", nil
	}
	res, err := env.Engine.GeneratePosts(env.Ctx, user, file.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(res.Posts) != len(domain.Platforms) {
		t.Fatalf("expected %d posts, got %d", len(domain.Platforms), len(res.Posts))
	}
	for i, p := range res.Posts {
		if p.Platform != domain.Platforms[i] || p.Status != "draft" || p.MasterDocumentID != file.ID {
			t.Fatalf("unexpected post %d: %+v", i, p)
		}
	}
	stored, _ := env.Engine.ListSocialPosts(env.Ctx, user, file.ID, "")
	if len(stored) != len(domain.Platforms) {
		t.Fatalf("expected stored posts, got %d", len(stored))
	}
}

func TestGeneratePostsPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	file, _ := env.Engine.CreateFile(env.Ctx, user, engine.FileInput{Name: str("notes.txt")})
	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "TikTok") {
			return "", errors.New("rate limited")
		}
		if !strings.HasSuffix(prompt, "notes.txt") {
			return "", errors.New("file name should be the fallback material")
		}
		return "post", nil
	}
	res, err := env.Engine.GeneratePosts(env.Ctx, user, file.ID)
	if err != nil {
		t.Fatalf("partial failure must not fail the call: %v", err)
	}
	if len(res.Posts) != 5 || len(res.Platforms) != 6 {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, st := range res.Platforms {
		if st.Platform == "tiktok_script" && (st.Status != "failed" || st.Error != "rate limited") {
			t.Fatalf("tiktok status %+v", st)
		}
	}

	env.Generator.fn = func(ctx context.Context, prompt string) (string, error) { return "", errors.New("down") }
	_, err = env.Engine.GeneratePosts(env.Ctx, user, file.ID)
	var gerr *engine.GenerationError
	if !errors.As(err, &gerr) || len(gerr.Errors) != 6 {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	var nf *engine.NotFoundError
	if _, err := env.Engine.GeneratePosts(env.Ctx, user, "missing"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestTaskStateInvariants(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Manual")

	task, err := env.Engine.UpdateTask(env.Ctx, user, task.ID, engine.TaskInput{Status: str(domain.StatusFailed)})
	if err != nil {
		t.Fatal(err)
	}
	if task.ErrorMessage == nil || *task.ErrorMessage != "marked as failed" || task.CompletedAt != nil {
		t.Fatalf("failed invariant broken: %+v", task)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, user, task.ID, engine.TaskInput{Status: str(domain.StatusCompleted)})
	if err != nil {
		t.Fatal(err)
	}
	if task.CompletedAt == nil || task.ErrorMessage != nil {
		t.Fatalf("completed invariant broken: %+v", task)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, user, task.ID, engine.TaskInput{Status: str(domain.StatusPending), ErrorMessage: str("stray")})
	if err != nil {
		t.Fatal(err)
	}
	if task.CompletedAt != nil || task.ErrorMessage != nil {
		t.Fatalf("pending must clear completion fields: %+v", task)
	}
	stored, _ := env.Engine.GetTask(env.Ctx, user, task.ID)
	if stored.Version != task.Version || stored.Version != 4 {
		t.Fatalf("expected version 4, got stored=%d returned=%d", stored.Version, task.Version)
	}
}

func TestUpdateTaskStaleVersion(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Edit me")
	stale := task.Version
	if _, err := env.Engine.UpdateTask(env.Ctx, user, task.ID, engine.TaskInput{Title: str("Edited"), Version: &stale}); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.UpdateTask(env.Ctx, user, task.ID, engine.TaskInput{Title: str("Again"), Version: &stale})
	var conflict *engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	var verr *engine.ValidationError
	if _, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{Title: str("  ")}); !errors.As(err, &verr) || verr.Field != "title" {
		t.Fatalf("expected title error, got %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{Title: str("x"), Priority: str("asap")}); !errors.As(err, &verr) || verr.Field != "priority" {
		t.Fatalf("expected priority error, got %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{Title: str("x"), DueDate: str("tomorrow")}); !errors.As(err, &verr) || verr.Field != "dueDate" {
		t.Fatalf("expected dueDate error, got %v", err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{Title: str("x"), DueDate: str("2024-02-01")})
	if err != nil || task.DueDate == nil || *task.DueDate != "2024-02-01T00:00:00.000000Z" {
		t.Fatalf("due date not normalized: %v %v", task.DueDate, err)
	}
}

func TestTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	mine := env.task(t, "mine")
	theirs, err := env.Engine.CreateTask(env.Ctx, "user-b", engine.TaskInput{Title: str("theirs")})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []repo.TaskFilters{
		{UserID: user},
		{UserID: user, Status: domain.StatusPending},
		{UserID: user, Category: domain.CategoryPending},
	} {
		tasks, err := env.Engine.ListTasks(env.Ctx, f)
		if err != nil {
			t.Fatal(err)
		}
		if len(tasks) != 1 || tasks[0].ID != mine.ID {
			t.Fatalf("filters %+v leaked tasks: %+v", f, tasks)
		}
	}
	var nf *engine.NotFoundError
	if _, err := env.Engine.GetTask(env.Ctx, user, theirs.ID); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for foreign task, got %v", err)
	}
	if _, err := env.Engine.Execute(env.Ctx, user, theirs.ID); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError executing foreign task, got %v", err)
	}
	proj, _ := env.Engine.CreateProject(env.Ctx, "user-b", engine.ProjectInput{Name: str("B only")})
	if _, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{Title: str("x"), ProjectID: &proj.ID}); !errors.As(err, &nf) || nf.Entity != "project" {
		t.Fatalf("expected project NotFoundError, got %v", err)
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	yesterday := fixedNow.Add(-24 * time.Hour)
	env.Engine.Now = func() time.Time { return yesterday }
	old := env.task(t, "old")
	if _, err := env.Engine.UpdateTask(env.Ctx, user, old.ID, engine.TaskInput{Status: str(domain.StatusCompleted)}); err != nil {
		t.Fatal(err)
	}
	env.Engine.Now = func() time.Time { return fixedNow }

	done := env.task(t, "done today")
	if _, err := env.Engine.UpdateTask(env.Ctx, user, done.ID, engine.TaskInput{Status: str(domain.StatusCompleted)}); err != nil {
		t.Fatal(err)
	}
	failed := env.task(t, "broken")
	if _, err := env.Engine.UpdateTask(env.Ctx, user, failed.ID, engine.TaskInput{Status: str(domain.StatusFailed)}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 12; i++ {
		if _, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{Title: str(fmt.Sprintf("decide %d", i)), Category: str(domain.CategoryHumanRequired)}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.Engine.CreateProject(env.Ctx, user, engine.ProjectInput{Name: str("P")}); err != nil {
		t.Fatal(err)
	}

	stats, err := env.Engine.DashboardStats(env.Ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTasks != 15 || stats.CompletedToday != 1 || stats.PendingAttention != 12 || stats.ErrorCount != 1 || stats.ProjectCount != 1 || stats.AgentCount != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ByCategory[domain.CategoryHumanRequired] != 12 {
		t.Fatalf("unexpected breakdown %+v", stats.ByCategory)
	}
	urgent, err := env.Engine.UrgentTasks(env.Ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(urgent) != 10 {
		t.Fatalf("expected 10 urgent tasks, got %d", len(urgent))
	}
	for _, u := range urgent {
		if u.Category != domain.CategoryHumanRequired || u.Status != domain.StatusPending {
			t.Fatalf("unexpected urgent task %+v", u)
		}
	}
}

func TestNotificationsAndTeam(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Sign off")
	env.Classifier.verdict[task.Title] = llm.TriageResult{Category: domain.CategoryHumanRequired, Confidence: 1}
	if _, err := env.Engine.Triage(env.Ctx, user, task.ID); err != nil {
		t.Fatal(err)
	}
	notes, _ := env.Engine.ListNotifications(env.Ctx, user, true, 0)
	if len(notes) != 1 {
		t.Fatalf("expected one unread notification")
	}
	n, err := env.Engine.MarkNotificationRead(env.Ctx, user, notes[0].ID)
	if err != nil || !n.IsRead {
		t.Fatalf("mark read: %+v %v", n, err)
	}
	if count, _ := env.Engine.MarkAllNotificationsRead(env.Ctx, user); count != 0 {
		t.Fatalf("expected nothing left unread, got %d", count)
	}
	var nf *engine.NotFoundError
	if err := env.Engine.DeleteNotification(env.Ctx, "user-b", n.ID); !errors.As(err, &nf) {
		t.Fatalf("foreign delete must be not found, got %v", err)
	}

	m, err := env.Engine.InviteMember(env.Ctx, user, engine.MemberInput{Email: str("Ops@Example.com")})
	if err != nil {
		t.Fatal(err)
	}
	if m.Email != "ops@example.com" || m.Status != "pending" || m.Role != "member" {
		t.Fatalf("unexpected member %+v", m)
	}
	var verr *engine.ValidationError
	if _, err := env.Engine.InviteMember(env.Ctx, user, engine.MemberInput{Email: str("ops@example.com")}); !errors.As(err, &verr) {
		t.Fatalf("expected duplicate invite rejection, got %v", err)
	}
	if _, err := env.Engine.InviteMember(env.Ctx, user, engine.MemberInput{Email: str("not-an-email")}); !errors.As(err, &verr) {
		t.Fatalf("expected email validation error, got %v", err)
	}
	m, err = env.Engine.UpdateMember(env.Ctx, user, m.ID, engine.MemberInput{Status: str("active"), Role: str("admin")})
	if err != nil || m.AcceptedAt == nil || m.Role != "admin" {
		t.Fatalf("activate member: %+v %v", m, err)
	}
	if err := env.Engine.RemoveMember(env.Ctx, user, m.ID); err != nil {
		t.Fatal(err)
	}
	team, _ := env.Engine.ListTeam(env.Ctx, user)
	if len(team) != 0 {
		t.Fatalf("expected empty team")
	}
}

func TestDeleteProjectKeepsTasks(t *testing.T) {
	env := newTestEnv(t)
	proj, _ := env.Engine.CreateProject(env.Ctx, user, engine.ProjectInput{Name: str("Temp")})
	task, err := env.Engine.CreateTask(env.Ctx, user, engine.TaskInput{Title: str("orphan"), ProjectID: &proj.ID})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteProject(env.Ctx, user, proj.ID); err != nil {
		t.Fatal(err)
	}
	stored, err := env.Engine.GetTask(env.Ctx, user, task.ID)
	if err != nil || stored.ProjectID != nil {
		t.Fatalf("task should survive without project: %+v %v", stored, err)
	}
}

func TestSeedDemo(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Engine.SeedDemo(env.Ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if res.Projects != 2 || res.Agents != 1 || res.Tasks != 4 {
		t.Fatalf("unexpected seed result %+v", res)
	}
	agents, _ := env.Engine.ListAgents(env.Ctx, user, true)
	if len(agents) != 1 || agents[0].CreatedBy != "digital_coo" {
		t.Fatalf("unexpected agents %+v", agents)
	}
	var verr *engine.ValidationError
	if _, err := env.Engine.SeedDemo(env.Ctx, user); !errors.As(err, &verr) {
		t.Fatalf("second seed should be rejected, got %v", err)
	}
}

func TestAPIKeys(t *testing.T) {
	env := newTestEnv(t)
	key, plain, err := env.Engine.CreateAPIKey(env.Ctx, user, "ci")
	if err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.UserForAPIKey(env.Ctx, plain)
	if err != nil || got != user {
		t.Fatalf("resolve key: %s %v", got, err)
	}
	for _, other := range []string{"", "user-b"} {
		keys, err := env.Engine.ListAPIKeys(env.Ctx, other)
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 0 {
			t.Fatalf("user %q sees foreign keys: %+v", other, keys)
		}
	}
	if keys, _ := env.Engine.ListAPIKeys(env.Ctx, user); len(keys) != 1 || keys[0].ID != key.ID {
		t.Fatalf("owner listing wrong: %+v", keys)
	}
	var nf *engine.NotFoundError
	if err := env.Engine.RevokeAPIKey(env.Ctx, "", key.ID); !errors.As(err, &nf) {
		t.Fatalf("revoke without user must be not found, got %v", err)
	}
	if err := env.Engine.RevokeAPIKey(env.Ctx, "user-b", key.ID); !errors.As(err, &nf) {
		t.Fatalf("foreign revoke must be not found, got %v", err)
	}
	if err := env.Engine.RevokeAPIKey(env.Ctx, user, key.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UserForAPIKey(env.Ctx, plain); !errors.As(err, &nf) {
		t.Fatalf("revoked key must not resolve, got %v", err)
	}
}
