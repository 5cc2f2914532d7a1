// Package record defines the task record and its line-oriented store.
//
// Each record is one JSON object on one line. Record identity is positional:
// the Nth non-blank line of the store file is record N. Removing or
// reordering records renumbers everything after the change, so IDs are only
// meaningful for the snapshot they were loaded from.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var errNotObject = errors.New("record is not a JSON object")

// DateLayout is the on-disk format of due dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Record is a single task.
type Record struct {
	// ID is the 1-based position of the record in its store. It is never
	// serialized. Records decoded for display only carry ID 0.
	ID int `json:"-"`

	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Finished    bool      `json:"finished"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	DueDate     *Date     `json:"due_date"`
}

// New returns an unfinished record created now.
func New(title string) Record {
	return Record{
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
}

// DecodeLine decodes a single store line and assigns it the given ID.
// Unknown keys, including a legacy "id" key, are ignored. Anything but a
// JSON object is an error.
func DecodeLine(line string, id int) (Record, error) {
	if !strings.HasPrefix(strings.TrimSpace(line), "{") {
		return Record{}, errNotObject
	}
	var r Record
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return Record{}, err
	}
	r.ID = id
	return r, nil
}

// EncodeLine encodes r as a single JSON line without the trailing newline.
func EncodeLine(r Record) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}
	return string(data), nil
}

// DecodeLenient decodes lines for display only. Blank lines and lines that
// do not decode are skipped; every record gets ID 0.
func DecodeLenient(lines []string) []Record {
	var out []Record
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, err := DecodeLine(line, 0)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Fingerprint returns a stable hash of the record's content, excluding ID.
// Two records with equal fingerprints are treated as the same task.
func Fingerprint(r Record) string {
	r.ID = 0
	data, err := json.Marshal(r)
	if err != nil {
		// Only out-of-range timestamps fail to marshal.
		data = []byte(fmt.Sprintf("%+v", r))
	} else {
		// Round-trip through a map so the key order is canonical (sorted).
		var canonical map[string]any
		if json.Unmarshal(data, &canonical) == nil {
			data, _ = json.Marshal(canonical)
		}
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Renumber assigns IDs 1..N in slice order.
func Renumber(records []Record) {
	for i := range records {
		records[i].ID = i + 1
	}
}
