package drive

import (
	"context"
	"testing"

	"github.com/spf13/afero"
)

func newMemSource(t *testing.T) *LocalSource {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/drive/Inbox/tasks.txt", []byte("- call Acme\n- write post\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := afero.WriteFile(fs, "/drive/Inbox/notes.md", []byte("# notes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.MkdirAll("/drive/Inbox/archive", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return NewLocalSource(fs, "/drive")
}

func TestLocalSourceLookup(t *testing.T) {
	ctx := context.Background()
	src := newMemSource(t)

	folder, err := src.FindFolder(ctx, "Inbox")
	if err != nil || folder == nil {
		t.Fatalf("find folder: %v %v", folder, err)
	}
	files, err := src.ListFiles(ctx, *folder)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || files[0].Name != "notes.md" || files[1].Name != "tasks.txt" {
		t.Fatalf("unexpected files %+v", files)
	}
	file, err := src.FindFile(ctx, *folder, "tasks.txt")
	if err != nil || file == nil {
		t.Fatalf("find file: %v %v", file, err)
	}
	content, err := src.GetContent(ctx, *file)
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if content != "- call Acme\n- write post\n" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestLocalSourceMissing(t *testing.T) {
	ctx := context.Background()
	src := newMemSource(t)

	if f, err := src.FindFolder(ctx, "Outbox"); err != nil || f != nil {
		t.Fatalf("expected nil folder, got %v %v", f, err)
	}
	if f, err := src.FindFolder(ctx, "../etc"); err != nil || f != nil {
		t.Fatalf("expected traversal to be rejected, got %v %v", f, err)
	}
	folder, _ := src.FindFolder(ctx, "Inbox")
	if f, err := src.FindFile(ctx, *folder, "missing.txt"); err != nil || f != nil {
		t.Fatalf("expected nil file, got %v %v", f, err)
	}
	if f, err := src.FindFile(ctx, *folder, "archive"); err != nil || f != nil {
		t.Fatalf("directories are not files, got %v %v", f, err)
	}
}

func TestQuoteEscapesDriveQuery(t *testing.T) {
	if got := quote(`Bob's \ notes`); got != `'Bob\'s \\ notes'` {
		t.Fatalf("quote = %s", got)
	}
}
