// Package catalog holds the knowledge-base catalog model: article records,
// snapshots of the remote catalog, and the change report computed between two
// snapshots.
package catalog

import "time"

// ArticleRecord is one knowledge-base article as observed at snapshot time.
// SysID is the stable identity used for diffing; Number is the human-facing
// identifier used for file names and reporting.
type ArticleRecord struct {
	SysID           string `json:"sys_id"`
	Number          string `json:"number"`
	Version         string `json:"version"`
	Title           string `json:"short_description"`
	KnowledgeBase   string `json:"kb_knowledge_base"`
	Domain          string `json:"sys_domain"`
	UpdatedOn       string `json:"sys_updated_on"`
	UpdatedOnMillis int64  `json:"sys_updated_on_millis"`
}

// Snapshot is the ordered sequence of articles returned by one catalog listing.
type Snapshot []ArticleRecord

// Index maps identity to record.
func (s Snapshot) Index() map[string]ArticleRecord {
	m := make(map[string]ArticleRecord, len(s))
	for _, r := range s {
		m[r.SysID] = r
	}
	return m
}

// Numbers returns the article numbers in snapshot order.
func (s Snapshot) Numbers() []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, r.Number)
	}
	return out
}

// DuplicateIdentity returns the first sys_id that appears more than once, or "".
func (s Snapshot) DuplicateIdentity() string {
	seen := make(map[string]struct{}, len(s))
	for _, r := range s {
		if _, ok := seen[r.SysID]; ok {
			return r.SysID
		}
		seen[r.SysID] = struct{}{}
	}
	return ""
}

// Changes classifies article numbers into added, updated and removed buckets.
type Changes struct {
	Added   []string `json:"added"`
	Updated []string `json:"updated"`
	Removed []string `json:"removed"`
}

// Empty reports whether no article changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Refetch returns the numbers that need a fresh rendering: updated, then added.
func (c Changes) Refetch() []string {
	out := make([]string, 0, len(c.Updated)+len(c.Added))
	out = append(out, c.Updated...)
	return append(out, c.Added...)
}

// Stale returns the numbers whose local files no longer match the catalog:
// updated, then removed.
func (c Changes) Stale() []string {
	out := make([]string, 0, len(c.Updated)+len(c.Removed))
	out = append(out, c.Updated...)
	return append(out, c.Removed...)
}

// ChangeReport is the persisted result of diffing two snapshots.
type ChangeReport struct {
	LastUpdatedOn time.Time `json:"last_updated_on"`
	Changes       Changes   `json:"changes"`
}
