package jsonbin

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
)

const (
	defaultBaseURL  = "https://api.jsonbin.io/v3/b"
	defaultTimeout  = 15 * time.Second
	maxDocumentSize = 10 << 20 // 10MB
	maxErrorBody    = 4 << 10
)

// Config holds the connection settings for a jsonbin account.
type Config struct {
	BaseURL string
	// MasterKey is sent as X-Master-Key. Reads of public bins work without it.
	MasterKey string
	// Timeout bounds each request. Zero means the default of 15s.
	Timeout time.Duration
	// Versioning asks jsonbin to keep the previous version on every write.
	Versioning bool
}

// Client reads and replaces jsonbin documents. It keeps no state between
// calls other than the HTTP connection pool.
type Client struct {
	baseURL    string
	masterKey  string
	versioning bool
	httpClient *http.Client
}

// NewClient creates a client from cfg, filling in defaults.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		masterKey:  cfg.MasterKey,
		versioning: cfg.Versioning,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchDocument returns the latest version of the document stored in bin id.
func (c *Client) FetchDocument(ctx context.Context, id string) (json.RawMessage, error) {
	if id == "" {
		return nil, errors.New("fetching document: bin id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.binURL(id)+"/latest", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	body, err := c.do(req, "fetch")
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("fetch: empty response body")
	}
	return unwrapRecord(body), nil
}

// PutDocument replaces the whole document in bin id and returns the
// response body as confirmation.
func (c *Client) PutDocument(ctx context.Context, id string, doc json.RawMessage) (json.RawMessage, error) {
	if id == "" {
		return nil, errors.New("storing document: bin id is required")
	}
	if !json.Valid(doc) {
		return nil, errors.New("storing document: document is not valid JSON")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.binURL(id), bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bin-Versioning", strconv.FormatBool(c.versioning))

	body, err := c.do(req, "store")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("store: response is not valid JSON: %.200s", body)
	}
	return json.RawMessage(body), nil
}

// Metadata reads the metadata of bin id without its record.
func (c *Client) Metadata(ctx context.Context, id string) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.binURL(id)+"/latest", nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	body, err := c.do(req, "metadata")
	if err != nil {
		return Metadata{}, err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Metadata{}, fmt.Errorf("decoding metadata: %w", err)
	}
	return env.Metadata, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: executing request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", op, err)
	}
	if len(body) > maxDocumentSize {
		return nil, fmt.Errorf("%s: response exceeds %d bytes", op, maxDocumentSize)
	}
	return body, nil
}

func (c *Client) binURL(id string) string {
	return c.baseURL + "/" + url.PathEscape(id)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.masterKey != "" {
		req.Header.Set("X-Master-Key", c.masterKey)
	}
	req.Header.Set("User-Agent", "karigar")
}
