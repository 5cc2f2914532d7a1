package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "td.log")

	l, err := New(Options{File: path, Level: "info"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	l.Debug("hidden")
	l.Info("sync finished", "records", 3)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(data), "sync finished") || !strings.Contains(string(data), "records=3") {
		t.Errorf("log file = %q", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug record written at info level")
	}
}

func TestVerboseTeesToStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "td.log")
	var stderr bytes.Buffer

	l, err := New(Options{File: path, Level: "warn", Verbose: true, Stderr: &stderr})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer l.Close()

	l.With("component", "syncer").Debug("git", "args", "status")
	if !strings.Contains(stderr.String(), "component=syncer") {
		t.Errorf("stderr = %q", stderr.String())
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "git") {
		t.Error("debug record reached the warn-level file")
	}
}

func TestNewWithoutOutputsDiscards(t *testing.T) {
	l, err := New(Options{})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("New() with bad level should fail")
	}
}
