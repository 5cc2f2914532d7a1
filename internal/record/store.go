package record

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxLineSize bounds a single record line.
const maxLineSize = 2 * 1024 * 1024

// Notifier is told about every successful save. The sync layer registers
// one to run a sync after the store changes.
type Notifier interface {
	Notify(path string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(path string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(path string) { f(path) }

// Store reads and writes records in a single JSON-lines file.
type Store struct {
	path      string
	notifiers []Notifier
}

// NewStore returns a store backed by the file at path. The file does not
// need to exist yet.
func NewStore(path string, notifiers ...Notifier) *Store {
	return &Store{path: path, notifiers: notifiers}
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Subscribe registers an additional save notifier.
func (s *Store) Subscribe(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

// Load reads every record in the store. A missing file is an empty store.
// Any undecodable line fails the whole load with a *CorruptRecordError; no
// partial list is returned.
func (s *Store) Load() ([]Record, error) {
	// #nosec G304 - store path comes from configuration
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	return Parse(data)
}

// Parse decodes store file content, assigning positional IDs.
func Parse(data []byte) ([]Record, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	records := []Record{}
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, err := DecodeLine(line, len(records)+1)
		if err != nil {
			return nil, &CorruptRecordError{Line: lineNum, Err: err}
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan store: %w", err)
	}
	return records, nil
}

// Format encodes records one per line, LF-terminated.
func Format(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range records {
		line, err := EncodeLine(r)
		if err != nil {
			return nil, err
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Save replaces the store content with records, in order. The write goes
// through a temp file and a rename, so readers see either the old or the
// new content.
func (s *Store) Save(records []Record) error {
	data, err := Format(records)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(s.path, data); err != nil {
		return err
	}
	for _, n := range s.notifiers {
		n.Notify(s.path)
	}
	return nil
}

// EnsureExists creates an empty store file if none exists.
func (s *Store) EnsureExists() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat store: %w", err)
	}
	return WriteFileAtomic(s.path, nil)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	base := filepath.Base(path)
	tempFile, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", base, err)
	}
	return nil
}
