package reconcile

import (
	"context"
	"strings"
	"testing"

	"kbexport/internal/monitor"
	"kbexport/internal/store"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"list":                ModeList,
		"LIST_CHANGES":        ModeListChanges,
		"list-files":          ModeListFiles,
		" list_changes_files": ModeListChangesFiles,
	} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("sync"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestRun_DispatchesEachMode(t *testing.T) {
	cases := []struct {
		mode      Mode
		seed      bool
		renders   int
		wantFirst bool
	}{
		{ModeList, false, 0, false},
		{ModeListChanges, false, 0, true},
		{ModeListChanges, true, 0, false},
		{ModeListFiles, false, 2, false},
		{ModeListChangesFiles, false, 2, true},
		{ModeListChangesFiles, true, 2, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			f := newFixture(t, sNew)
			if tc.seed {
				if err := f.store.Save(store.Primary, sOld); err != nil {
					t.Fatal(err)
				}
			}
			res, err := Run(context.Background(), f.ctrl, Options{Mode: tc.mode})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Mode != tc.mode {
				t.Errorf("Result.Mode = %q", res.Mode)
			}
			if len(f.renderer.calls) != tc.renders {
				t.Errorf("renders = %d, want %d", len(f.renderer.calls), tc.renders)
			}
			if res.FirstRun != tc.wantFirst {
				t.Errorf("FirstRun = %v, want %v", res.FirstRun, tc.wantFirst)
			}
			if len(f.events.OfKind(monitor.KindStart)) != 1 || len(f.events.OfKind(monitor.KindDone)) != 1 {
				t.Errorf("expected one start and one done event, got %+v", f.events.Since(0))
			}
		})
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	f := newFixture(t, sNew)
	f.renderer.panic = "KB0000003"

	_, err := Run(context.Background(), f.ctrl, Options{Mode: ModeListFiles})
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("err = %v, want recovered panic", err)
	}
	if len(f.events.OfKind(monitor.KindError)) != 1 {
		t.Error("expected an error event")
	}
}

func TestRun_FetchErrorIsReported(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = context.DeadlineExceeded
	_, err := Run(context.Background(), f.ctrl, Options{Mode: ModeList})
	if err == nil || !strings.HasPrefix(err.Error(), "list:") {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_UnknownMode(t *testing.T) {
	f := newFixture(t)
	if _, err := Run(context.Background(), f.ctrl, Options{Mode: "bogus"}); err == nil {
		t.Error("expected error")
	}
}
