package format_test

import (
	"strings"
	"testing"
	"time"

	"kbexport/internal/catalog"
	"kbexport/internal/format"
	"kbexport/internal/reconcile"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Number", "Version")
	tb.Row("KB0010279", "3.0")
	out := tb.String()

	for _, want := range []string{"Number", "KB0010279", "3.0", "───"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if tb.Len() != 1 {
		t.Errorf("Len = %d, want 1", tb.Len())
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Change", "Count")
	tb.Row("added", 2)
	tb.Footer("TOTAL", 2)
	out := tb.String()

	for _, want := range []string{"| Change", "---", "TOTAL"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := format.ParseMode("md"); err != nil || m != format.Markdown {
		t.Errorf("ParseMode(md) = %v, %v", m, err)
	}
	if m, err := format.ParseMode(""); err != nil || m != format.ASCII {
		t.Errorf("ParseMode('') = %v, %v", m, err)
	}
	if _, err := format.ParseMode("html"); err == nil {
		t.Error("expected error")
	}
}

func TestChanges(t *testing.T) {
	r := &catalog.ChangeReport{
		LastUpdatedOn: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Changes: catalog.Changes{
			Added:   []string{"KB3"},
			Updated: []string{"KB1"},
			Removed: []string{"KB2"},
		},
	}
	snap := catalog.Snapshot{{Number: "KB1", Title: "VPN setup"}, {Number: "KB3", Title: "Printer"}}
	out := format.Changes(format.ASCII, r, snap)

	for _, want := range []string{"2026-03-01T12:00:00Z", "1 added, 1 updated, 1 removed", "VPN setup", "removed", "KB2"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if got := format.Changes(format.ASCII, nil, nil); !strings.Contains(got, "no change report") {
		t.Errorf("nil report output = %q", got)
	}
}

func TestResult(t *testing.T) {
	res := &reconcile.Result{
		Mode:     reconcile.ModeListChangesFiles,
		Articles: 3,
		Rendered: []string{"KB1"},
		Failed:   []string{"KB2"},
		Deleted:  []string{},
		FirstRun: true,
	}
	out := format.Result(format.ASCII, res)
	for _, want := range []string{"list_changes_files", "Failed: KB2", "No previous snapshot"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSnapshot_Footer(t *testing.T) {
	out := format.Snapshot(format.Markdown, catalog.Snapshot{{Number: "KB1", Version: "1.0"}})
	if !strings.Contains(out, "TOTAL") || !strings.Contains(out, "KB1") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestFmtDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Minute + 1500*time.Millisecond, "2m 2s"},
	}
	for _, tc := range cases {
		if got := format.FmtDuration(tc.in); got != tc.want {
			t.Errorf("FmtDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := format.Truncate("Zurücksetzen des Kennworts", 10); got != "Zurücks..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := format.Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
	if got := format.Truncate("abcdef", 2); got != "ab" {
		t.Errorf("Truncate = %q", got)
	}
}

func TestFmtTime_Zero(t *testing.T) {
	if format.FmtTime(time.Time{}) != "-" {
		t.Error("zero time should format as -")
	}
}
