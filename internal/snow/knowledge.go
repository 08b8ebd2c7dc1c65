package snow

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kbexport/internal/catalog"
)

// KnowledgeTable is the Table API name of knowledge articles.
const KnowledgeTable = "kb_knowledge"

// BaselineQuery restricts every catalog listing to published, active
// articles. Configured queries narrow it; they never replace it.
const BaselineQuery = "workflow_state=published^active=true"

// timeLayout is the Table API's sys_updated_on value format (UTC).
const timeLayout = "2006-01-02 15:04:05"

var listingFields = []string{
	"sys_id", "number", "version", "short_description",
	"kb_knowledge_base", "sys_domain", "sys_updated_on",
}

// Article is a knowledge article including its HTML body.
type Article struct {
	SysID     string
	Number    string
	Version   string
	Title     string
	UpdatedOn string
	Text      string
}

// KnowledgeScope provides kb_knowledge lookups.
type KnowledgeScope struct {
	table *TableScope
}

// Knowledge returns a KnowledgeScope for the kb_knowledge table.
func (c *Client) Knowledge() *KnowledgeScope {
	return &KnowledgeScope{table: c.Table(KnowledgeTable)}
}

// Get returns the article with the given number. A missing article is
// reported as an *APIError with HTTP 404 so IsNotFound applies.
func (k *KnowledgeScope) Get(ctx context.Context, number string) (*Article, error) {
	rows, err := k.table.List(ctx,
		WithQuery(BaselineQuery+"^number="+number),
		WithFields("sys_id", "number", "version", "short_description", "sys_updated_on", "text"),
		WithDisplayValue("all"),
		WithLimit(1),
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, newAPIError("get article "+number, http.StatusNotFound, "article not found", "")
	}
	r := rows[0]
	return &Article{
		SysID:     r.Get("sys_id").Value,
		Number:    r.Get("number").Display(),
		Version:   r.Get("version").Display(),
		Title:     r.Get("short_description").Display(),
		UpdatedOn: r.Get("sys_updated_on").Value,
		Text:      r.Get("text").Value,
	}, nil
}

// BuildQuery combines the baseline filter, an optional narrowing query and an
// optional domain scope, ordered by number.
func BuildQuery(filter, domain string) string {
	parts := []string{BaselineQuery}
	if f := strings.Trim(strings.TrimSpace(filter), "^"); f != "" {
		parts = append(parts, f)
	}
	if domain != "" {
		parts = append(parts, "sys_domain.name="+domain)
	}
	parts = append(parts, "ORDERBYnumber")
	return strings.Join(parts, "^")
}

// FetchOptions scope a catalog listing.
type FetchOptions struct {
	// Query narrows BaselineQuery.
	Query string
	// Domain scopes the listing to one domain; empty lists every domain.
	Domain string
	// PageSize overrides DefaultPageSize.
	PageSize int
}

// Fetcher reads the whole article catalog as a snapshot.
type Fetcher struct {
	client *Client
	opts   FetchOptions
}

// NewFetcher returns a Fetcher over client.
func NewFetcher(client *Client, opts FetchOptions) *Fetcher {
	return &Fetcher{client: client, opts: opts}
}

// FetchSnapshot lists every matching article in number order. A record whose
// sys_id repeats (offset pagination over a changing table) is dropped; the
// first occurrence wins.
func (f *Fetcher) FetchSnapshot(ctx context.Context) (catalog.Snapshot, error) {
	rows, err := f.client.Table(KnowledgeTable).ListAll(ctx, f.opts.PageSize,
		WithQuery(BuildQuery(f.opts.Query, f.opts.Domain)),
		WithFields(listingFields...),
		WithDisplayValue("all"),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	snap := make(catalog.Snapshot, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		rec, err := recordFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("fetch snapshot: %w", err)
		}
		if _, dup := seen[rec.SysID]; dup {
			f.client.logger.WarnContext(ctx, "duplicate article in listing", "sys_id", rec.SysID, "number", rec.Number)
			continue
		}
		seen[rec.SysID] = struct{}{}
		snap = append(snap, rec)
	}
	return snap, nil
}

func recordFromRow(r Row) (catalog.ArticleRecord, error) {
	rec := catalog.ArticleRecord{
		SysID:         r.Get("sys_id").Value,
		Number:        r.Get("number").Display(),
		Version:       r.Get("version").Display(),
		Title:         r.Get("short_description").Display(),
		KnowledgeBase: r.Get("kb_knowledge_base").Display(),
		Domain:        r.Get("sys_domain").Display(),
		UpdatedOn:     r.Get("sys_updated_on").Value,
	}
	if rec.SysID == "" || rec.Number == "" {
		return rec, fmt.Errorf("malformed record: missing sys_id or number (%q/%q)", rec.SysID, rec.Number)
	}
	if rec.UpdatedOn != "" {
		t, err := time.ParseInLocation(timeLayout, rec.UpdatedOn, time.UTC)
		if err != nil {
			return rec, fmt.Errorf("record %s: parse sys_updated_on: %w", rec.Number, err)
		}
		rec.UpdatedOnMillis = t.UnixMilli()
	}
	return rec, nil
}
