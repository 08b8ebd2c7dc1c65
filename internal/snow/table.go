package snow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPageSize is the sysparm_limit used by ListAll.
const DefaultPageSize = 200

// Field is one column of a Table API row. With sysparm_display_value=all the
// instance sends {"value": ..., "display_value": ...}; otherwise a bare string.
// Both decode into Field.
type Field struct {
	Value        string `json:"value"`
	DisplayValue string `json:"display_value"`
}

// UnmarshalJSON accepts a string, an object or null.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = Field{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field{Value: s, DisplayValue: s}
		return nil
	}
	type plain Field
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode field: %w", err)
	}
	*f = Field(p)
	return nil
}

// Display returns the display value, falling back to the raw value.
func (f Field) Display() string {
	if f.DisplayValue != "" {
		return f.DisplayValue
	}
	return f.Value
}

// Row is one Table API record keyed by column name.
type Row map[string]Field

// Get returns the named column; missing columns are zero.
func (r Row) Get(name string) Field { return r[name] }

type tableRS struct {
	Result []Row `json:"result"`
}

// TableScope lists records of one table.
type TableScope struct {
	client *Client
	name   string
}

// Table returns a TableScope for the named table.
func (c *Client) Table(name string) *TableScope {
	return &TableScope{client: c, name: name}
}

// ListOption configures query parameters for a table listing.
type ListOption func(params url.Values)

// WithQuery sets sysparm_query (an encoded query such as "active=true^ORDERBYnumber").
func WithQuery(q string) ListOption {
	return func(p url.Values) { p.Set("sysparm_query", q) }
}

// WithFields restricts the returned columns.
func WithFields(fields ...string) ListOption {
	return func(p url.Values) { p.Set("sysparm_fields", strings.Join(fields, ",")) }
}

// WithDisplayValue sets sysparm_display_value ("true", "false" or "all").
func WithDisplayValue(v string) ListOption {
	return func(p url.Values) { p.Set("sysparm_display_value", v) }
}

// WithLimit sets sysparm_limit.
func WithLimit(n int) ListOption {
	return func(p url.Values) { p.Set("sysparm_limit", strconv.Itoa(n)) }
}

// WithOffset sets sysparm_offset.
func WithOffset(n int) ListOption {
	return func(p url.Values) { p.Set("sysparm_offset", strconv.Itoa(n)) }
}

// List returns one page of records.
func (s *TableScope) List(ctx context.Context, opts ...ListOption) ([]Row, error) {
	params := url.Values{}
	for _, opt := range opts {
		opt(params)
	}
	u := fmt.Sprintf("%s/api/now/table/%s?%s", s.client.baseURL, url.PathEscape(s.name), params.Encode())

	var rs tableRS
	if err := s.client.doJSON(ctx, u, "list "+s.name, &rs); err != nil {
		return nil, err
	}
	return rs.Result, nil
}

// ListAll returns every record matching opts, paginating by offset with
// pageSize records per request (DefaultPageSize when pageSize <= 0).
func (s *TableScope) ListAll(ctx context.Context, pageSize int, opts ...ListOption) ([]Row, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var all []Row
	offset := 0
	for {
		pageOpts := append(append([]ListOption{}, opts...),
			WithLimit(pageSize),
			WithOffset(offset),
		)
		rows, err := s.List(ctx, pageOpts...)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		s.client.logger.DebugContext(ctx, "page fetched", "table", s.name, "offset", offset, "rows", len(rows))
		if len(rows) < pageSize {
			break
		}
		offset += len(rows)
	}
	return all, nil
}
