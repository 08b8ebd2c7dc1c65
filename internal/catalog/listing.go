package catalog

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// listingContext is the number of unchanged lines kept around each hunk.
const listingContext = 2

// Listing renders a snapshot as one "number version title" line per article.
func Listing(s Snapshot) []string {
	lines := make([]string, 0, len(s))
	for _, r := range s {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s\n", r.Number, r.Version, r.Title))
	}
	return lines
}

// UnifiedListing returns a unified diff between the listings of two snapshots.
// It is an operator aid stored next to the change report; the report itself
// is computed by Diff. An empty string means the listings are identical.
func UnifiedListing(old, current Snapshot, oldName, newName string) (string, error) {
	u := difflib.UnifiedDiff{
		A:        Listing(old),
		B:        Listing(current),
		FromFile: oldName,
		ToFile:   newName,
		Context:  listingContext,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("unified listing: %w", err)
	}
	return strings.TrimSpace(s), nil
}
