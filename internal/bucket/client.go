package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/leca/cardvault/internal/database"
	"github.com/leca/cardvault/internal/model"
)

// DefaultAccessHeader carries the bucket access id on every request.
const DefaultAccessHeader = "X-CS571-ID"

// Compile-time check that Client implements database.Database.
var _ database.Database = (*Client)(nil)

// APIError is a non-2xx response from the bucket API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bucket: status %d", e.StatusCode)
	}
	return fmt.Sprintf("bucket: status %d: %s", e.StatusCode, e.Message)
}

// Config describes how to reach a bucket collection.
type Config struct {
	BaseURL      string
	AccessID     string
	AccessHeader string
	Timeout      time.Duration
}

// Client talks to a remote document bucket over REST.
//
//	GET    base        -> {"collection": "...", "results": {id: doc}}
//	POST   base        -> creates a document
//	PUT    base?id=ID  -> replaces a document
//	DELETE base?id=ID  -> deletes a document
type Client struct {
	httpClient *http.Client
	baseURL    string
	accessID   string
	header     string
}

// New creates a bucket client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("bucket: base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("bucket: invalid base url: %w", err)
	}
	header := cfg.AccessHeader
	if header == "" {
		header = DefaultAccessHeader
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(base, "/"),
		accessID:   cfg.AccessID,
		header:     header,
	}, nil
}

// List returns every document in the collection, ordered by id.
func (c *Client) List(ctx context.Context) ([]model.Document, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "", nil, &raw); err != nil {
		return nil, err
	}
	return decodeListing(raw)
}

// Create posts a new document and returns the id assigned by the bucket.
func (c *Client) Create(ctx context.Context, body json.RawMessage) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("bucket: create response has no id")
	}
	return resp.ID, nil
}

// Replace overwrites the document with the given id.
func (c *Client) Replace(ctx context.Context, id string, body json.RawMessage) error {
	return c.do(ctx, http.MethodPut, id, body, nil)
}

// Delete removes the document with the given id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, id string, body json.RawMessage, out any) error {
	endpoint := c.baseURL
	if id != "" {
		endpoint += "?" + url.Values{"id": {id}}.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("bucket: build request: %w", err)
	}
	if c.accessID != "" {
		req.Header.Set(c.header, c.accessID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bucket: %s: %w", method, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bucket: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %d bytes rejected by bucket", database.ErrTooLarge, len(body))
	case resp.StatusCode == http.StatusNotFound && id != "":
		return fmt.Errorf("%w: %s", database.ErrNotFound, id)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(payload)}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("bucket: decode response: %w", err)
	}
	return nil
}

// decodeListing accepts both {"results": {id: doc}} and a bare array of
// documents carrying their own "id".
func decodeListing(raw json.RawMessage) ([]model.Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("bucket: decode listing: %w", err)
		}
		docs := make([]model.Document, 0, len(items))
		for _, item := range items {
			var probe struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(item, &probe); err != nil || probe.ID == "" {
				continue
			}
			docs = append(docs, model.Document{ID: probe.ID, Body: item})
		}
		return docs, nil
	}

	var envelope struct {
		Results map[string]json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("bucket: decode listing: %w", err)
	}
	if envelope.Results == nil {
		return nil, errors.New("bucket: unexpected listing format")
	}

	ids := make([]string, 0, len(envelope.Results))
	for id := range envelope.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]model.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, model.Document{ID: id, Body: envelope.Results[id]})
	}
	return docs, nil
}

func errorMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(payload, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		return body.Msg
	}
	return strings.TrimSpace(string(payload))
}
