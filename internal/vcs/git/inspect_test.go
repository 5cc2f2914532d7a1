package git

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/mschirtzinger/td/internal/vcs"
)

func TestInspect(t *testing.T) {
	repoPath := setupTestRepo(t)
	gitRun(t, repoPath, "remote", "add", "origin", "https://example.com/todos.git")

	for _, msg := range []string{"first", "second", "third"} {
		gitRun(t, repoPath, "commit", "--allow-empty", "-m", msg)
	}
	writeFile(t, filepath.Join(repoPath, "todos.json"), "{}\n")

	status, err := Inspect(repoPath, 2)
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}

	if status.Branch != "main" {
		t.Errorf("Branch = %q, want main", status.Branch)
	}
	if status.RemoteURL != "https://example.com/todos.git" {
		t.Errorf("RemoteURL = %q", status.RemoteURL)
	}
	if len(status.Recent) != 2 {
		t.Fatalf("Recent has %d commits, want 2", len(status.Recent))
	}
	if status.Recent[0].Subject != "third" || status.Recent[1].Subject != "second" {
		t.Errorf("Recent = %+v, want newest first", status.Recent)
	}
	if status.Recent[0].Author != "Test User" {
		t.Errorf("Author = %q", status.Recent[0].Author)
	}
	if len(status.Recent[0].Hash) != 7 {
		t.Errorf("Hash = %q, want short hash", status.Recent[0].Hash)
	}

	if len(status.Changes) != 1 || status.Changes[0].Path != "todos.json" || status.Changes[0].Status != vcs.StatusUntracked {
		t.Errorf("Changes = %+v, want untracked todos.json", status.Changes)
	}
}

func TestInspectUnbornBranch(t *testing.T) {
	repoPath := setupTestRepo(t)

	status, err := Inspect(repoPath, 0)
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}
	if status.Branch != "main" {
		t.Errorf("Branch = %q, want main", status.Branch)
	}
	if len(status.Recent) != 0 {
		t.Errorf("Recent = %+v, want none", status.Recent)
	}
	if status.RemoteURL != "" {
		t.Errorf("RemoteURL = %q, want empty", status.RemoteURL)
	}
}

func TestInspectNotARepository(t *testing.T) {
	if _, err := Inspect(t.TempDir(), 0); !errors.Is(err, vcs.ErrNotARepository) {
		t.Errorf("Inspect() error = %v, want ErrNotARepository", err)
	}
}
