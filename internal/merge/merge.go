// Package merge combines two record lists without a common ancestor.
package merge

import "github.com/mschirtzinger/td/internal/record"

// Union returns every local record followed by the remote records whose
// content is not already present. Records are compared by
// record.Fingerprint, so duplicates within either side collapse too.
// The result is renumbered 1..N.
func Union(local, remote []record.Record) []record.Record {
	seen := make(map[string]struct{}, len(local)+len(remote))
	out := make([]record.Record, 0, len(local)+len(remote))

	add := func(records []record.Record) {
		for _, r := range records {
			fp := record.Fingerprint(r)
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			out = append(out, r)
		}
	}
	add(local)
	add(remote)

	record.Renumber(out)
	return out
}

// Stats describes the outcome of a union.
type Stats struct {
	Local      int
	Remote     int
	Added      int
	Duplicates int
}

// UnionWithStats is Union plus counts of what the remote side contributed.
func UnionWithStats(local, remote []record.Record) ([]record.Record, Stats) {
	localOnly := Union(local, nil)
	merged := Union(local, remote)
	added := len(merged) - len(localOnly)
	return merged, Stats{
		Local:      len(local),
		Remote:     len(remote),
		Added:      added,
		Duplicates: len(remote) - added,
	}
}
