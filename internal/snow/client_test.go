package snow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"kbexport/internal/catalog"
)

func field(v, dv string) map[string]string {
	return map[string]string{"value": v, "display_value": dv}
}

func articleRow(sysID, number, version, updated string) map[string]any {
	return map[string]any{
		"sys_id":            field(sysID, sysID),
		"number":            field(number, number),
		"version":           field("ver-"+version, version),
		"short_description": field("Title "+number, "Title "+number),
		"kb_knowledge_base": field("kb-1", "IT"),
		"sys_domain":        field("dom-1", "global"),
		"sys_updated_on":    field(updated, updated),
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	client, err := New(server.URL, "admin", "secret", WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New("", "u", "p"); err == nil {
		t.Fatal("expected error for empty baseURL")
	}
	c, err := New("acme.service-now.com/", "u", "p")
	if err != nil {
		t.Fatal(err)
	}
	if c.BaseURL() != "https://acme.service-now.com" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
}

func TestField_DecodesBothShapes(t *testing.T) {
	var row Row
	raw := `{"a":"plain","b":{"value":"v","display_value":"d"},"c":null,"d":{"value":"only"}}`
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		t.Fatal(err)
	}
	if row.Get("a").Display() != "plain" || row.Get("b").Value != "v" || row.Get("b").Display() != "d" {
		t.Errorf("unexpected decode: %+v", row)
	}
	if row.Get("c") != (Field{}) || row.Get("missing") != (Field{}) {
		t.Error("null and missing fields should be zero")
	}
	if row.Get("d").Display() != "only" {
		t.Errorf("Display fallback = %q", row.Get("d").Display())
	}
}

func TestBuildQuery(t *testing.T) {
	cases := []struct {
		filter, domain, want string
	}{
		{"", "", "workflow_state=published^active=true^ORDERBYnumber"},
		{"^kb_knowledge_base=abc", "", "workflow_state=published^active=true^kb_knowledge_base=abc^ORDERBYnumber"},
		{"", "acme", "workflow_state=published^active=true^sys_domain.name=acme^ORDERBYnumber"},
	}
	for _, tc := range cases {
		if got := BuildQuery(tc.filter, tc.domain); got != tc.want {
			t.Errorf("BuildQuery(%q, %q) = %q, want %q", tc.filter, tc.domain, got, tc.want)
		}
	}
}

func TestFetcher_PaginatesAndMaps(t *testing.T) {
	var rows []map[string]any
	for i := 1; i <= 5; i++ {
		n := "KB000000" + strconv.Itoa(i)
		rows = append(rows, articleRow("id"+strconv.Itoa(i), n, "1.0", "2026-01-02 03:04:05"))
	}
	var requests int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/api/now/table/kb_knowledge" {
			http.NotFound(w, r)
			return
		}
		if u, p, ok := r.BasicAuth(); !ok || u != "admin" || p != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if !strings.HasPrefix(q.Get("sysparm_query"), BaselineQuery) {
			t.Errorf("query lost the baseline: %q", q.Get("sysparm_query"))
		}
		if q.Get("sysparm_display_value") != "all" {
			t.Errorf("sysparm_display_value = %q", q.Get("sysparm_display_value"))
		}
		limit, _ := strconv.Atoi(q.Get("sysparm_limit"))
		offset, _ := strconv.Atoi(q.Get("sysparm_offset"))
		end := offset + limit
		if end > len(rows) {
			end = len(rows)
		}
		page := []map[string]any{}
		if offset < len(rows) {
			page = rows[offset:end]
		}
		json.NewEncoder(w).Encode(map[string]any{"result": page})
	})

	snap, err := NewFetcher(client, FetchOptions{PageSize: 2}).FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
	if diff := cmp.Diff([]string{"KB0000001", "KB0000002", "KB0000003", "KB0000004", "KB0000005"}, snap.Numbers()); diff != "" {
		t.Errorf("numbers mismatch (-want +got):\n%s", diff)
	}
	want := catalog.ArticleRecord{
		SysID:           "id1",
		Number:          "KB0000001",
		Version:         "1.0",
		Title:           "Title KB0000001",
		KnowledgeBase:   "IT",
		Domain:          "global",
		UpdatedOn:       "2026-01-02 03:04:05",
		UpdatedOnMillis: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(),
	}
	if diff := cmp.Diff(want, snap[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestFetcher_DropsRepeatedIdentity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": []map[string]any{
			articleRow("a", "KB1", "1.0", ""),
			articleRow("a", "KB1", "1.0", ""),
			articleRow("b", "KB2", "1.0", ""),
		}})
	})
	snap, err := NewFetcher(client, FetchOptions{}).FetchSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"KB1", "KB2"}, snap.Numbers()); diff != "" {
		t.Errorf("numbers mismatch (-want +got):\n%s", diff)
	}
}

func TestFetcher_MalformedRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[{"number":"KB1"}]}`))
	})
	if _, err := NewFetcher(client, FetchOptions{}).FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected error for record without sys_id")
	}
}

func TestFetcher_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"User Not Authenticated","detail":"Required to provide Auth information"},"status":"failure"}`))
	})
	_, err := NewFetcher(client, FetchOptions{}).FetchSnapshot(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("expected IsUnauthorized, got: %v", err)
	}
	if !strings.Contains(err.Error(), "User Not Authenticated") {
		t.Errorf("error lost the instance message: %v", err)
	}
}

func TestKnowledge_Get(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("sysparm_query")
		if !strings.HasSuffix(q, "^number=KB0010279") {
			json.NewEncoder(w).Encode(map[string]any{"result": []any{}})
			return
		}
		row := articleRow("x", "KB0010279", "4.0", "2026-01-01 00:00:00")
		row["text"] = field("<p>Body</p>", "<p>Body</p>")
		json.NewEncoder(w).Encode(map[string]any{"result": []any{row}})
	})

	art, err := client.Knowledge().Get(context.Background(), "KB0010279")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if art.Text != "<p>Body</p>" || art.Version != "4.0" || art.Title != "Title KB0010279" {
		t.Errorf("unexpected article: %+v", art)
	}

	_, err = client.Knowledge().Get(context.Background(), "KB9999999")
	if !IsNotFound(err) {
		t.Errorf("expected IsNotFound, got: %v", err)
	}
}

func TestAPIError_PlainBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	})
	_, err := client.Table("kb_knowledge").List(context.Background())
	if !HasStatusCode(err, http.StatusBadGateway) {
		t.Fatalf("expected 502 APIError, got: %v", err)
	}
	if IsNotFound(err) || IsForbidden(err) {
		t.Error("predicates should not match a 502")
	}
}
