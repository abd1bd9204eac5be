package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// DatabaseClient handles Supabase Database (PostgREST) operations.
type DatabaseClient struct {
	client *Client
}

// From starts a query builder for a table.
func (d *DatabaseClient) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  d.client,
		table:   table,
		method:  "GET",
		columns: "*",
		filters: make([]string, 0),
		headers: make(map[string]string),
	}
}

// RPC calls a Postgres function.
func (d *DatabaseClient) RPC(ctx context.Context, fn string, params interface{}) ([]byte, error) {
	body, err := jsonBody(params)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.requestWithServiceKey(ctx, "POST", d.client.restURL+"/rpc/"+url.PathEscape(fn), body, nil)
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, parseError(resp.body, resp.status)
	}
	return resp.body, nil
}

// QueryBuilder builds and executes database queries.
type QueryBuilder struct {
	client      *Client
	table       string
	method      string
	columns     string
	filters     []string
	orders      []string
	limitVal    *int
	offsetVal   *int
	body        []byte
	buildErr    error
	headers     map[string]string
	count       string
	accessToken string
}

// Select specifies columns to select. On mutations it shapes the returned
// representation.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

func (q *QueryBuilder) setBody(data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		q.buildErr = fmt.Errorf("marshal body: %w", err)
		return
	}
	q.body = body
}

// Insert inserts records.
func (q *QueryBuilder) Insert(data interface{}) *QueryBuilder {
	q.method = "POST"
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Upsert upserts records.
func (q *QueryBuilder) Upsert(data interface{}, onConflict string) *QueryBuilder {
	q.method = "POST"
	q.setBody(data)
	q.headers["Prefer"] = "return=representation,resolution=merge-duplicates"
	if onConflict != "" {
		q.filters = append(q.filters, "on_conflict="+url.QueryEscape(onConflict))
	}
	return q
}

// Update updates records.
func (q *QueryBuilder) Update(data interface{}) *QueryBuilder {
	q.method = "PATCH"
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Delete deletes records.
func (q *QueryBuilder) Delete() *QueryBuilder {
	q.method = "DELETE"
	q.headers["Prefer"] = "return=representation"
	return q
}

func (q *QueryBuilder) addFilter(column string, op FilterOperator, value interface{}) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=%s.%s", url.QueryEscape(column), op, url.QueryEscape(fmt.Sprint(value))))
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value interface{}) *QueryBuilder {
	return q.addFilter(column, OpEq, value)
}

// Neq adds a not-equal filter.
func (q *QueryBuilder) Neq(column string, value interface{}) *QueryBuilder {
	return q.addFilter(column, OpNeq, value)
}

// Gte adds a greater-than-or-equal filter.
func (q *QueryBuilder) Gte(column string, value interface{}) *QueryBuilder {
	return q.addFilter(column, OpGte, value)
}

// Lt adds a less-than filter.
func (q *QueryBuilder) Lt(column string, value interface{}) *QueryBuilder {
	return q.addFilter(column, OpLt, value)
}

// Lte adds a less-than-or-equal filter.
func (q *QueryBuilder) Lte(column string, value interface{}) *QueryBuilder {
	return q.addFilter(column, OpLte, value)
}

// ILike adds a case-insensitive LIKE filter.
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return q.addFilter(column, OpILike, pattern)
}

// Is adds an IS filter (for null, true, false).
func (q *QueryBuilder) Is(column string, value interface{}) *QueryBuilder {
	return q.addFilter(column, OpIs, value)
}

// In adds an IN filter.
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return q.addFilter(column, OpIn, "("+strings.Join(quoted, ",")+")")
}

// Or adds an OR filter group, e.g. "name.ilike.*kaos*,slug.eq.kaos".
func (q *QueryBuilder) Or(filters string) *QueryBuilder {
	q.filters = append(q.filters, "or="+url.QueryEscape("("+filters+")"))
	return q
}

// Order adds an order clause.
func (q *QueryBuilder) Order(column string, opts ...OrderDirection) *QueryBuilder {
	dir := OrderAsc
	if len(opts) > 0 {
		dir = opts[0]
	}
	q.orders = append(q.orders, fmt.Sprintf("%s.%s", column, dir))
	return q
}

// Limit sets the maximum number of rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limitVal = &n
	return q
}

// Offset sets the number of rows to skip.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offsetVal = &n
	return q
}

// Single expects a single row result.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.headers["Accept"] = "application/vnd.pgrst.object+json"
	return q
}

// Count requests an exact row count in the Content-Range header.
func (q *QueryBuilder) Count() *QueryBuilder {
	q.count = "exact"
	return q
}

// WithToken runs the query as the user behind token, subject to RLS.
func (q *QueryBuilder) WithToken(token string) *QueryBuilder {
	q.accessToken = token
	return q
}

// Execute executes the query and returns raw bytes.
func (q *QueryBuilder) Execute(ctx context.Context) ([]byte, error) {
	data, _, err := q.ExecuteWithCount(ctx)
	return data, err
}

// ExecuteWithCount executes the query and returns the total row count when
// Count was requested (-1 otherwise).
func (q *QueryBuilder) ExecuteWithCount(ctx context.Context) ([]byte, int64, error) {
	if q.buildErr != nil {
		return nil, -1, q.buildErr
	}
	if q.count != "" {
		q.headers["Prefer"] = appendPrefer(q.headers["Prefer"], "count="+q.count)
	}

	var body io.Reader
	if q.body != nil {
		body = bytes.NewReader(q.body)
	}

	var (
		resp *response
		err  error
	)
	if q.accessToken != "" {
		resp, err = q.client.requestWithToken(ctx, q.method, q.buildURL(), body, q.headers, q.accessToken)
	} else {
		resp, err = q.client.requestWithServiceKey(ctx, q.method, q.buildURL(), body, q.headers)
	}
	if err != nil {
		return nil, -1, err
	}
	if resp.status >= 400 {
		return nil, -1, parseError(resp.body, resp.status)
	}

	return resp.body, parseContentRange(resp.header.Get("Content-Range")), nil
}

// ExecuteInto executes the query and unmarshals into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest interface{}) error {
	data, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// buildURL builds the request URL.
func (q *QueryBuilder) buildURL() string {
	urlStr := q.client.restURL + "/" + url.PathEscape(q.table)

	params := make([]string, 0)
	if q.columns != "" && (q.method == "GET" || q.columns != "*") {
		params = append(params, "select="+url.QueryEscape(q.columns))
	}
	params = append(params, q.filters...)
	if len(q.orders) > 0 {
		params = append(params, "order="+strings.Join(q.orders, ","))
	}
	if q.limitVal != nil {
		params = append(params, fmt.Sprintf("limit=%d", *q.limitVal))
	}
	if q.offsetVal != nil {
		params = append(params, fmt.Sprintf("offset=%d", *q.offsetVal))
	}

	if len(params) > 0 {
		urlStr += "?" + strings.Join(params, "&")
	}
	return urlStr
}

// appendPrefer appends to the Prefer header.
func appendPrefer(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + "," + addition
}

// parseContentRange reads the total from "0-24/318" or "*/0".
func parseContentRange(v string) int64 {
	idx := strings.LastIndex(v, "/")
	if idx < 0 {
		return -1
	}
	total, err := strconv.ParseInt(v[idx+1:], 10, 64)
	if err != nil {
		return -1
	}
	return total
}
