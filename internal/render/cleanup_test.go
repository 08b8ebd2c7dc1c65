package render

import (
	"strings"
	"testing"

	"kbexport/internal/snow"
)

func TestClean_RemovesBoilerplate(t *testing.T) {
	in := `<div class="kb-article-rating">Rate this</div>
<p>Keep me</p>
<script>alert(1)</script>
<form action="/feedback"><input></form>`
	out, err := Clean(in, DefaultRules)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<p>Keep me</p>") {
		t.Errorf("content dropped: %s", out)
	}
	for _, gone := range []string{"Rate this", "alert(1)", "<form"} {
		if strings.Contains(out, gone) {
			t.Errorf("%q should be removed: %s", gone, out)
		}
	}
}

func TestClean_ExpandsCollapsibles(t *testing.T) {
	in := `<details><summary>More</summary>hidden text</details>
<div class="kb-collapsible collapsed extra" style="display: none; color: red" hidden>body</div>
<div aria-expanded="false" style="display:none">panel</div>`
	out, err := Clean(in, DefaultRules)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`<details open="">`,
		`class="kb-collapsible extra"`,
		`style="color: red"`,
		`aria-expanded="true"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "display") || strings.Contains(out, " hidden") {
		t.Errorf("collapsible still hidden:\n%s", out)
	}
}

func TestClean_EmptyRulesStillOpensDetails(t *testing.T) {
	out, err := Clean(`<details>x</details><script>y</script>`, Rules{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<details open="">`) || !strings.Contains(out, "<script>") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRules_Merge(t *testing.T) {
	got := DefaultRules.Merge(Rules{Remove: []string{".promo"}})
	if got.Remove[len(got.Remove)-1] != ".promo" {
		t.Errorf("Merge did not append: %v", got.Remove)
	}
	if len(DefaultRules.Remove) == len(got.Remove) {
		t.Error("Merge mutated DefaultRules")
	}
}

func TestPage_EscapesMetadataKeepsBody(t *testing.T) {
	art := &snow.Article{Number: "KB0010279", Title: "A <b>bold</b> title", Version: "3.0"}
	out, err := Page(art, "<p>body</p>")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<article><p>body</p></article>") {
		t.Errorf("body not embedded verbatim:\n%s", out)
	}
	if strings.Contains(out, "<b>bold</b>") {
		t.Errorf("title not escaped:\n%s", out)
	}
	if !strings.Contains(out, "version 3.0") {
		t.Errorf("version missing:\n%s", out)
	}
}

func TestPath_RejectsTraversal(t *testing.T) {
	if p, err := Path("/out", "KB0010279"); err != nil || p != "/out/KB0010279.pdf" {
		t.Errorf("Path = %q, %v", p, err)
	}
	for _, bad := range []string{"", "..", "../etc/passwd", "KB1/KB2", `KB1\x`} {
		if _, err := Path("/out", bad); err == nil {
			t.Errorf("Path(%q) should fail", bad)
		}
	}
}
