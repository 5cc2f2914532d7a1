package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/mschirtzinger/td/internal/record"
)

var dueParser = newDueParser()

// offsetRe matches relative offsets such as +3d, 2w or 1m.
var offsetRe = regexp.MustCompile(`^\+?(\d+)([dwmy])$`)

func newDueParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDue accepts YYYY-MM-DD, an offset from today (+3d, 2w, 1m, 1y) or a
// natural language date such as "tomorrow" relative to now.
func parseDue(text string, now time.Time) (record.Date, error) {
	text = strings.TrimSpace(text)
	if d, err := record.ParseDate(text); err == nil {
		return d, nil
	}
	if m := offsetRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return record.NewDate(addOffset(now, n, m[2])), nil
	}

	r, err := dueParser.Parse(text, now)
	if err != nil {
		return record.Date{}, fmt.Errorf("invalid due date %q: %w", text, err)
	}
	if r == nil {
		return record.Date{}, fmt.Errorf("invalid due date %q: use YYYY-MM-DD or a phrase like \"tomorrow\"", text)
	}
	return record.NewDate(r.Time), nil
}

func addOffset(base time.Time, n int, unit string) time.Time {
	switch unit {
	case "w":
		return base.AddDate(0, 0, 7*n)
	case "m":
		return base.AddDate(0, n, 0)
	case "y":
		return base.AddDate(n, 0, 0)
	}
	return base.AddDate(0, 0, n)
}
