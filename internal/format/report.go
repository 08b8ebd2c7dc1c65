package format

import (
	"fmt"
	"strings"

	"kbexport/internal/catalog"
	"kbexport/internal/reconcile"
)

const titleWidth = 60

// Changes renders a change report as one row per changed article. Titles are
// looked up in snap when given.
func Changes(m Mode, r *catalog.ChangeReport, snap catalog.Snapshot) string {
	if r == nil {
		return "no change report\n"
	}
	titles := make(map[string]string, len(snap))
	for _, rec := range snap {
		titles[rec.Number] = rec.Title
	}

	tb := NewTable(m)
	tb.Header("Change", "Number", "Title")
	for _, group := range []struct {
		label   string
		numbers []string
	}{
		{"added", r.Changes.Added},
		{"updated", r.Changes.Updated},
		{"removed", r.Changes.Removed},
	} {
		for _, n := range group.numbers {
			tb.Row(group.label, n, Truncate(titles[n], titleWidth))
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Changes computed %s: %d added, %d updated, %d removed\n",
		FmtTime(r.LastUpdatedOn), len(r.Changes.Added), len(r.Changes.Updated), len(r.Changes.Removed))
	if tb.Len() > 0 {
		b.WriteString(tb.String())
		b.WriteString("\n")
	}
	return b.String()
}

// Snapshot renders the catalog listing.
func Snapshot(m Mode, snap catalog.Snapshot) string {
	tb := NewTable(m)
	tb.Header("Number", "Version", "Updated", "Title")
	for _, r := range snap {
		tb.Row(r.Number, r.Version, r.UpdatedOn, Truncate(r.Title, titleWidth))
	}
	tb.Footer("TOTAL", len(snap), "", "")
	return tb.String() + "\n"
}

// Result renders the outcome of one operation.
func Result(m Mode, res *reconcile.Result) string {
	tb := NewTable(m)
	tb.Header("Mode", "Articles", "Rendered", "Failed", "Deleted")
	tb.Row(res.Mode, res.Articles, len(res.Rendered), len(res.Failed), len(res.Deleted))
	tb.Columns(
		ColumnConfig{Number: 2, Align: AlignRight},
		ColumnConfig{Number: 3, Align: AlignRight},
		ColumnConfig{Number: 4, Align: AlignRight},
		ColumnConfig{Number: 5, Align: AlignRight},
	)
	var b strings.Builder
	b.WriteString(tb.String())
	b.WriteString("\n")
	if res.FirstRun {
		b.WriteString("No previous snapshot was found.\n")
	}
	if len(res.Failed) > 0 {
		fmt.Fprintf(&b, "Failed: %s\n", strings.Join(res.Failed, ", "))
	}
	if len(res.DeleteFailed) > 0 {
		fmt.Fprintf(&b, "Could not delete: %s\n", strings.Join(res.DeleteFailed, ", "))
	}
	return b.String()
}
