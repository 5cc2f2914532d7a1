package record

import (
	"fmt"
	"sort"
	"strings"
)

// Sort fields accepted by ParseSortOrder.
const (
	SortPriority = "priority"
	SortDueDate  = "due-date"
	SortTitle    = "title"
	SortStatus   = "status"
	SortCreated  = "created"
)

// SortFields lists the sort fields in the order they are documented.
var SortFields = []string{SortPriority, SortDueDate, SortTitle, SortStatus, SortCreated}

// SortKey is one criterion of a sort order. The natural direction is
// highest priority, earliest due date, title A-Z, open before finished and
// newest first. Reverse flips it.
type SortKey struct {
	Field   string
	Reverse bool
}

func (k SortKey) String() string {
	if k.Reverse {
		return k.Field + "-reverse"
	}
	return k.Field
}

// ParseSortOrder parses comma-separated criteria such as
// "due-date,priority-reverse". A "-rev" suffix is accepted for "-reverse".
func ParseSortOrder(s string) ([]SortKey, error) {
	var order []SortKey
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		key := SortKey{Field: part}
		for _, suffix := range []string{"-reverse", "-rev"} {
			if f, ok := strings.CutSuffix(part, suffix); ok {
				key = SortKey{Field: f, Reverse: true}
				break
			}
		}
		if !isSortField(key.Field) {
			return nil, fmt.Errorf("unknown sort field %q (use %s)", key.Field, strings.Join(SortFields, ", "))
		}
		order = append(order, key)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("empty sort order")
	}
	return order, nil
}

func isSortField(f string) bool {
	for _, sf := range SortFields {
		if sf == f {
			return true
		}
	}
	return false
}

// Sort reorders records by order, keeping the existing order between
// records that compare equal, and renumbers them.
func Sort(records []Record, order []SortKey) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, key := range order {
			c := compare(records[i], records[j], key.Field)
			if key.Reverse {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	Renumber(records)
}

// compare returns a negative number when a sorts before b.
func compare(a, b Record, field string) int {
	switch field {
	case SortPriority:
		return b.Priority - a.Priority
	case SortDueDate:
		// Records without a due date go last.
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(b.DueDate.Time)
	case SortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortStatus:
		return boolRank(a.Finished) - boolRank(b.Finished)
	case SortCreated:
		return b.CreatedAt.Compare(a.CreatedAt)
	}
	return 0
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
