package catalog

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(id, number, version string) ArticleRecord {
	return ArticleRecord{SysID: id, Number: number, Version: version, Title: "Title " + number}
}

func TestDiffAt_Scenario(t *testing.T) {
	old := Snapshot{rec("k1", "KB0000001", "v1"), rec("k2", "KB0000002", "v1")}
	current := Snapshot{rec("k1", "KB0000001", "v2"), rec("k3", "KB0000003", "v1")}

	got := DiffAt(old, current, fixedNow)
	want := &ChangeReport{
		LastUpdatedOn: fixedNow,
		Changes: Changes{
			Added:   []string{"KB0000003"},
			Updated: []string{"KB0000001"},
			Removed: []string{"KB0000002"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DiffAt mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffAt_SelfIsEmpty(t *testing.T) {
	s := Snapshot{rec("a", "KB1", "1"), rec("b", "KB2", "3"), rec("c", "KB3", "2")}
	got := DiffAt(s, s, fixedNow)
	if !got.Changes.Empty() {
		t.Errorf("expected empty changes, got %+v", got.Changes)
	}
}

func TestDiffAt_OrderFollowsSnapshots(t *testing.T) {
	old := Snapshot{
		rec("r3", "KB3", "1"),
		rec("u1", "KB10", "1"),
		rec("r1", "KB1", "1"),
		rec("u2", "KB20", "1"),
	}
	current := Snapshot{
		rec("a9", "KB9", "1"),
		rec("u2", "KB20", "2"),
		rec("a5", "KB5", "1"),
		rec("u1", "KB10", "2"),
	}
	got := DiffAt(old, current, fixedNow).Changes
	want := Changes{
		Added:   []string{"KB9", "KB5"},
		Updated: []string{"KB20", "KB10"},
		Removed: []string{"KB3", "KB1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffAt_Deterministic(t *testing.T) {
	old := Snapshot{rec("a", "KB1", "1"), rec("b", "KB2", "1"), rec("c", "KB3", "1")}
	current := Snapshot{rec("d", "KB4", "1"), rec("b", "KB2", "2"), rec("e", "KB5", "1")}

	first, err := json.Marshal(DiffAt(old, current, fixedNow))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		again, err := json.Marshal(DiffAt(old, current, fixedNow))
		if err != nil {
			t.Fatal(err)
		}
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, again)
		}
	}
}

func TestDiffAt_Disjoint(t *testing.T) {
	cases := []struct {
		name     string
		old, cur Snapshot
	}{
		{"both empty", nil, nil},
		{"all added", nil, Snapshot{rec("a", "KB1", "1"), rec("b", "KB2", "1")}},
		{"all removed", Snapshot{rec("a", "KB1", "1"), rec("b", "KB2", "1")}, nil},
		{"mixed", Snapshot{rec("a", "KB1", "1"), rec("b", "KB2", "1"), rec("c", "KB3", "1")},
			Snapshot{rec("b", "KB2", "2"), rec("c", "KB3", "1"), rec("d", "KB4", "1")}},
		{"renumbered identity", Snapshot{rec("a", "KB1", "1")}, Snapshot{rec("a", "KB1-NEW", "1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := DiffAt(tc.old, tc.cur, fixedNow).Changes
			seen := map[string]string{}
			for bucket, nums := range map[string][]string{"added": ch.Added, "updated": ch.Updated, "removed": ch.Removed} {
				for _, n := range nums {
					if prev, ok := seen[n]; ok {
						t.Errorf("%s in both %s and %s", n, prev, bucket)
					}
					seen[n] = bucket
				}
			}

			// Every identity difference is classified exactly once.
			oldIdx, curIdx := tc.old.Index(), tc.cur.Index()
			want := 0
			for id, r := range curIdx {
				if p, ok := oldIdx[id]; !ok || p.Version != r.Version {
					want++
				}
			}
			for id := range oldIdx {
				if _, ok := curIdx[id]; !ok {
					want++
				}
			}
			if got := len(ch.Added) + len(ch.Updated) + len(ch.Removed); got != want {
				t.Errorf("classified %d, want %d", got, want)
			}
		})
	}
}

func TestDiffAt_RenumberedIdentityKeepsNewNumber(t *testing.T) {
	old := Snapshot{rec("a", "KB1", "1")}
	current := Snapshot{rec("a", "KB1-NEW", "2")}
	got := DiffAt(old, current, fixedNow).Changes
	if diff := cmp.Diff([]string{"KB1-NEW"}, got.Updated); diff != "" {
		t.Errorf("updated (-want +got):\n%s", diff)
	}
	if len(got.Removed) != 0 || len(got.Added) != 0 {
		t.Errorf("identity join must ignore number changes: %+v", got)
	}
}

func TestChanges_RefetchAndStale(t *testing.T) {
	c := Changes{Added: []string{"A"}, Updated: []string{"U"}, Removed: []string{"R"}}
	if diff := cmp.Diff([]string{"U", "A"}, c.Refetch()); diff != "" {
		t.Errorf("Refetch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"U", "R"}, c.Stale()); diff != "" {
		t.Errorf("Stale (-want +got):\n%s", diff)
	}
}

func TestChangeReport_JSONShape(t *testing.T) {
	r := DiffAt(nil, Snapshot{rec("a", "KB1", "1")}, fixedNow)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"last_updated_on":"2026-03-01T12:00:00Z","changes":{"added":["KB1"],"updated":[],"removed":[]}}`
	if string(data) != want {
		t.Errorf("json:\n got %s\nwant %s", data, want)
	}
}

func TestSnapshot_DuplicateIdentity(t *testing.T) {
	if id := (Snapshot{rec("a", "KB1", "1"), rec("b", "KB2", "1")}).DuplicateIdentity(); id != "" {
		t.Errorf("unexpected duplicate %q", id)
	}
	if id := (Snapshot{rec("a", "KB1", "1"), rec("a", "KB2", "1")}).DuplicateIdentity(); id != "a" {
		t.Errorf("DuplicateIdentity = %q, want a", id)
	}
}

func TestUnifiedListing(t *testing.T) {
	old := Snapshot{rec("a", "KB1", "1"), rec("b", "KB2", "1")}
	current := Snapshot{rec("a", "KB1", "2"), rec("b", "KB2", "1")}

	out, err := UnifiedListing(old, current, "previous", "current")
	if err != nil {
		t.Fatalf("UnifiedListing: %v", err)
	}
	for _, want := range []string{"--- previous", "+++ current", "-KB1\t1", "+KB1\t2"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	same, err := UnifiedListing(old, old, "previous", "current")
	if err != nil {
		t.Fatal(err)
	}
	if same != "" {
		t.Errorf("identical listings should produce no diff, got:\n%s", same)
	}
}
