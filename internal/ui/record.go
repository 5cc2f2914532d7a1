package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mschirtzinger/td/internal/record"
)

// RenderRecord formats one record on a single line:
//
//	3. [ ] Buy milk (p2, due 2026-03-01)
func RenderRecord(r record.Record) string {
	var b strings.Builder

	if r.ID > 0 {
		fmt.Fprintf(&b, "%s ", RenderMuted(fmt.Sprintf("%d.", r.ID)))
	}
	if r.Finished {
		b.WriteString(RenderPass(IconDone))
		b.WriteString(" ")
		b.WriteString(RenderMuted(r.Title))
	} else {
		b.WriteString(IconOpen)
		b.WriteString(" ")
		b.WriteString(r.Title)
	}

	if details := recordDetails(r, time.Now()); details != "" {
		b.WriteString(" ")
		b.WriteString(details)
	}
	return b.String()
}

func recordDetails(r record.Record, now time.Time) string {
	var parts []string
	if r.Priority != 0 {
		parts = append(parts, fmt.Sprintf("p%d", r.Priority))
	}
	if r.DueDate != nil {
		due := "due " + r.DueDate.String()
		if !r.Finished && r.DueDate.Before(now.Truncate(24*time.Hour)) {
			due = RenderFail(due)
		}
		parts = append(parts, due)
	}
	if len(parts) == 0 {
		return ""
	}
	return RenderMuted("(") + strings.Join(parts, ", ") + RenderMuted(")")
}

// RenderRecordDetail formats a record over several lines, including its
// description and creation time.
func RenderRecordDetail(r record.Record) string {
	lines := []string{RenderRecord(r)}
	if r.Description != nil && *r.Description != "" {
		for _, l := range strings.Split(*r.Description, "\n") {
			lines = append(lines, "   "+l)
		}
	}
	if !r.CreatedAt.IsZero() {
		lines = append(lines, "   "+RenderMuted("created "+r.CreatedAt.Format(time.RFC3339)))
	}
	return strings.Join(lines, "\n")
}
