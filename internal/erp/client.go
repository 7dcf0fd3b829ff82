// Package erp talks to the Frappe/ERPNext REST API and adapts its documents to the domain types.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// Config holds connection settings.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Observer receives the duration and outcome of every call.
type Observer interface {
	ObserveERP(op string, started time.Time, err error)
}

// Client wraps interactions with the Frappe REST API.
type Client struct {
	baseURL    string
	auth       string
	httpClient *http.Client
	observer   Observer
}

// NewClient constructs a new client.
func NewClient(cfg Config, observer Observer) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		observer: observer,
	}
	if cfg.APIKey != "" && cfg.APISecret != "" {
		c.auth = fmt.Sprintf("token %s:%s", cfg.APIKey, cfg.APISecret)
	}
	return c
}

// Filter is a Frappe filter: [field, operator, value], or [child doctype, field, operator, value].
type Filter []any

// Eq builds an equality filter.
func Eq(field string, value any) Filter { return Filter{field, "=", value} }

// In builds a membership filter.
func In(field string, values []string) Filter { return Filter{field, "in", values} }

// ChildEq builds an equality filter on a child table field.
func ChildEq(child, field string, value any) Filter { return Filter{child, field, "=", value} }

// Unbounded asks the ERP for every matching row.
const Unbounded = -1

// Query describes a list request.
type Query struct {
	Filters []Filter
	Fields  []string
	Offset  int
	Limit   int
	OrderBy string
}

// Ping checks if the ERP answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/api/method/ping", nil, nil)
}

// GetDocument loads one document into out.
func (c *Client) GetDocument(ctx context.Context, doctype, name string, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, "get", http.MethodGet, resourcePath(doctype, name), nil, &env); err != nil {
		return err
	}
	return decodeInto(env.Data, out)
}

// ListDocuments loads one page of documents into out, which must point to a slice.
func (c *Client) ListDocuments(ctx context.Context, doctype string, q Query, out any) error {
	params := url.Values{}
	if len(q.Filters) > 0 {
		raw, err := json.Marshal(q.Filters)
		if err != nil {
			return err
		}
		params.Set("filters", string(raw))
	}
	if len(q.Fields) > 0 {
		raw, err := json.Marshal(q.Fields)
		if err != nil {
			return err
		}
		params.Set("fields", string(raw))
	}
	switch {
	case q.Limit == Unbounded:
		params.Set("limit_page_length", "0")
	case q.Limit <= 0:
		params.Set("limit_page_length", "20")
	default:
		params.Set("limit_page_length", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("limit_start", strconv.Itoa(q.Offset))
	}
	if q.OrderBy != "" {
		params.Set("order_by", q.OrderBy)
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, "list", http.MethodGet, resourcePath(doctype, "")+"?"+params.Encode(), nil, &env); err != nil {
		return err
	}
	return decodeInto(env.Data, out)
}

// Count returns the number of documents matching filters.
func (c *Client) Count(ctx context.Context, doctype string, filters []Filter) (int, error) {
	payload := map[string]any{"doctype": doctype}
	if len(filters) > 0 {
		payload["filters"] = filters
	}
	var n int
	if err := c.Call(ctx, "frappe.client.get_count", payload, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// Insert creates a document and decodes the stored version into out.
func (c *Client) Insert(ctx context.Context, doctype string, doc any, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, "insert", http.MethodPost, resourcePath(doctype, ""), doc, &env); err != nil {
		return err
	}
	return decodeInto(env.Data, out)
}

// Update patches an existing document.
func (c *Client) Update(ctx context.Context, doctype, name string, doc any, out any) error {
	if name == "" {
		return shared.Invalid("name", "id dokumen wajib diisi untuk pembaruan")
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, "update", http.MethodPut, resourcePath(doctype, name), doc, &env); err != nil {
		return err
	}
	return decodeInto(env.Data, out)
}

// Submit moves a document to docstatus 1.
func (c *Client) Submit(ctx context.Context, doctype, name string) error {
	payload := map[string]any{"doc": map[string]string{"doctype": doctype, "name": name}}
	return c.Call(ctx, "frappe.client.submit", payload, nil)
}

// Cancel moves a document to docstatus 2.
func (c *Client) Cancel(ctx context.Context, doctype, name string) error {
	payload := map[string]string{"doctype": doctype, "name": name}
	return c.Call(ctx, "frappe.client.cancel", payload, nil)
}

// Call invokes a whitelisted method and decodes its "message" into out.
func (c *Client) Call(ctx context.Context, method string, payload any, out any) error {
	var env struct {
		Message json.RawMessage `json:"message"`
	}
	if err := c.do(ctx, method, http.MethodPost, "/api/method/"+method, payload, &env); err != nil {
		return err
	}
	return decodeInto(env.Message, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, payload, out any) (err error) {
	started := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveERP(op, started, err)
		}
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("erp: encode %s: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &shared.TransientError{Op: "erp " + op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &shared.TransientError{Op: "erp " + op, Err: err}
	}
	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("erp: decode %s: %w", op, err)
	}
	return nil
}

func resourcePath(doctype, name string) string {
	p := "/api/resource/" + url.PathEscape(doctype)
	if name != "" {
		p += "/" + url.PathEscape(name)
	}
	return p
}

func decodeInto(raw json.RawMessage, out any) error {
	if out == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("erp: decode payload: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a missing-document error.
func IsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
