package vcs

import (
	"os"
	"path/filepath"
)

// DetectionResult describes the git state of a data directory.
type DetectionResult struct {
	// RepoRoot is the absolute data directory
	RepoRoot string

	// GitDir is the .git directory (or file, for worktrees)
	GitDir string

	// MergeInProgress indicates MERGE_HEAD exists
	MergeInProgress bool

	// RebaseInProgress indicates a rebase was left unfinished
	RebaseInProgress bool
}

// IsRepository reports whether path is the root of a git working tree.
// Parent directories are not searched: the data directory itself must
// carry the .git entry.
func IsRepository(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// Detect inspects path without running git.
//
// Returns ErrNotARepository if path has no .git entry.
func Detect(path string) (*DetectionResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if !IsRepository(absPath) {
		return nil, ErrNotARepository
	}

	gitDir := filepath.Join(absPath, ".git")
	result := &DetectionResult{
		RepoRoot: absPath,
		GitDir:   gitDir,
	}

	if fileExists(filepath.Join(gitDir, "MERGE_HEAD")) {
		result.MergeInProgress = true
	}
	if dirExists(filepath.Join(gitDir, "rebase-merge")) || dirExists(filepath.Join(gitDir, "rebase-apply")) {
		result.RebaseInProgress = true
	}

	return result, nil
}

// fileExists checks if a file exists (not a directory)
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
