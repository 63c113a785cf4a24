// Package cms is a minimal client for the headless CMS backend's REST API.
// Every entity the pipeline touches lives behind the same verb set: filtered
// GET, POST to create, PUT to update by id, all bearer-authenticated.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one backend instance.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BackendError carries the backend's HTTP status and error detail. A timed
// out or refused call surfaces with StatusCode 0.
type BackendError struct {
	StatusCode int
	Detail     string
}

func (e *BackendError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("backend unreachable: %s", e.Detail)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type payload struct {
	Data any `json:"data"`
}

// FindFirst queries resource entries where field matches value and decodes
// the first hit into out. op selects the filter operator, "$eq" or "$eqi"
// (case-insensitive). Returns false without touching out when nothing
// matched.
func (c *Client) FindFirst(ctx context.Context, resource, field, op, value string, out any) (bool, error) {
	entries, err := c.find(ctx, resource, field, op, value)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(entries[0], out); err != nil {
		return false, fmt.Errorf("failed to decode %s entry: %w", resource, err)
	}
	return true, nil
}

// FindAll queries resource entries where field equals value and decodes them
// into out, a pointer to a slice.
func (c *Client) FindAll(ctx context.Context, resource, field, value string, out any) error {
	query := url.Values{}
	query.Set(filterKey(field, "$eq"), value)
	return c.getInto(ctx, resource, query, out)
}

// List fetches every entry of a resource into out, a pointer to a slice.
func (c *Client) List(ctx context.Context, resource string, out any) error {
	return c.getInto(ctx, resource, nil, out)
}

// Create posts a new entry and decodes the created record into out when out
// is non-nil.
func (c *Client) Create(ctx context.Context, resource string, attributes, out any) error {
	raw, err := c.do(ctx, http.MethodPost, "/api/"+resource, nil, payload{Data: attributes})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode %s create response: %w", resource, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode created %s: %w", resource, err)
	}
	return nil
}

// Update overwrites the listed attributes of one entry by id. The backend's
// update API takes absolute values only; there is no increment verb.
func (c *Client) Update(ctx context.Context, resource string, id int, attributes any) error {
	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/%s/%d", resource, id), nil, payload{Data: attributes})
	return err
}

func (c *Client) find(ctx context.Context, resource, field, op, value string) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set(filterKey(field, op), value)
	raw, err := c.do(ctx, http.MethodGet, "/api/"+resource, query, nil)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", resource, err)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode %s entries: %w", resource, err)
	}
	return entries, nil
}

func (c *Client) getInto(ctx context.Context, resource string, query url.Values, out any) error {
	raw, err := c.do(ctx, http.MethodGet, "/api/"+resource, query, nil)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", resource, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s entries: %w", resource, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &BackendError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{StatusCode: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &BackendError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}
	return raw, nil
}

func filterKey(field, op string) string {
	return fmt.Sprintf("filters[%s][%s]", field, op)
}

// errorDetail pulls the backend's error message out of its error envelope,
// falling back to the raw body.
func errorDetail(raw []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	detail := strings.TrimSpace(string(raw))
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return detail
}
