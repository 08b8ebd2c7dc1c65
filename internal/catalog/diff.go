package catalog

import "time"

// Diff computes the change report between an old and a new snapshot.
// See DiffAt.
func Diff(old, current Snapshot) *ChangeReport {
	return DiffAt(old, current, time.Now().UTC())
}

// DiffAt computes the change report between an old and a new snapshot,
// stamping it with at.
//
// Articles are joined by SysID. An identity only in current is added; an
// identity in both whose Version differs is updated; an identity only in old
// is removed. Added and updated follow current's order, removed follows old's
// order, so the result is deterministic for identical inputs.
func DiffAt(old, current Snapshot, at time.Time) *ChangeReport {
	prev := old.Index()
	next := current.Index()

	changes := Changes{
		Added:   []string{},
		Updated: []string{},
		Removed: []string{},
	}
	seen := make(map[string]struct{}, len(current))
	for _, r := range current {
		if _, dup := seen[r.SysID]; dup {
			continue
		}
		seen[r.SysID] = struct{}{}

		p, ok := prev[r.SysID]
		switch {
		case !ok:
			changes.Added = append(changes.Added, r.Number)
		case p.Version != r.Version:
			changes.Updated = append(changes.Updated, r.Number)
		}
	}

	gone := make(map[string]struct{}, len(old))
	for _, r := range old {
		if _, ok := next[r.SysID]; ok {
			continue
		}
		if _, dup := gone[r.SysID]; dup {
			continue
		}
		gone[r.SysID] = struct{}{}
		changes.Removed = append(changes.Removed, r.Number)
	}

	return &ChangeReport{LastUpdatedOn: at, Changes: changes}
}
