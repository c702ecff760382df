// Package remote is the client for the versioned remote file store. Every
// file carries an opaque version token; writes and deletes are conditioned
// on the token the caller last saw, so a concurrent change surfaces as
// ErrConflict instead of a silent overwrite. Content travels base64-encoded.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// File is the decoded result of a successful read.
type File struct {
	Content string
	Token   string
}

// DirEntry is one element of a directory listing.
type DirEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Token string `json:"token"`
}

// Store is the remote operations contract. The sync coordinator depends on
// this interface so tests can substitute a fake.
type Store interface {
	Read(ctx context.Context, path string) (*File, error)
	Write(ctx context.Context, path, content string, token *string, message string) (string, error)
	Delete(ctx context.Context, path, token, message string) error
	List(ctx context.Context, dir string) ([]DirEntry, error)
}

// Compile-time interface check
var _ Store = (*Client)(nil)

// Client talks to a contents-style versioned file store over HTTP.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
	retryBase time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client, used in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetryBase overrides the initial backoff delay. Tests shrink it so
// retry paths run in microseconds.
func WithRetryBase(d time.Duration) Option {
	return func(c *Client) { c.retryBase = d }
}

// NewClient creates a client for the store rooted at baseURL. authToken is
// sent as a bearer credential on every request.
func NewClient(baseURL, authToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryBase: baseRetryWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wire formats for the contents endpoints.

type fileResponse struct {
	Content string `json:"content"` // base64
	Token   string `json:"token"`
}

type writeRequest struct {
	Message string  `json:"message"`
	Content string  `json:"content"` // base64
	Token   *string `json:"token,omitempty"`
}

type writeResponse struct {
	Token string `json:"token"`
}

type deleteRequest struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Read fetches a file. An absent file is a non-error outcome: both the
// *File and the error are nil.
func (c *Client) Read(ctx context.Context, path string) (*File, error) {
	var file *File
	err := withRetry(ctx, c.retryBase, IsFatal, func(ctx context.Context) error {
		status, body, err := c.roundTrip(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if status == http.StatusNotFound {
			file = nil
			return nil
		}
		if status != http.StatusOK {
			return classifyStatus(status, string(body))
		}

		var resp fileResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode read response: %w", err)
		}
		raw, err := base64.StdEncoding.DecodeString(resp.Content)
		if err != nil {
			return fmt.Errorf("decode file content: %w", err)
		}
		file = &File{Content: string(raw), Token: resp.Token}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Write stores content at path. A nil token asserts the path does not yet
// exist; a non-nil token asserts the remote content is still at that
// revision. Returns the new version token on success.
func (c *Client) Write(ctx context.Context, path, content string, token *string, message string) (string, error) {
	payload, err := json.Marshal(writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		Token:   token,
	})
	if err != nil {
		return "", fmt.Errorf("encode write request: %w", err)
	}

	var newToken string
	err = withRetry(ctx, c.retryBase, IsFatal, func(ctx context.Context) error {
		status, body, err := c.roundTrip(ctx, http.MethodPut, path, payload)
		if err != nil {
			return err
		}
		if status != http.StatusOK && status != http.StatusCreated {
			return classifyStatus(status, string(body))
		}

		var resp writeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode write response: %w", err)
		}
		newToken = resp.Token
		return nil
	})
	if err != nil {
		return "", err
	}
	return newToken, nil
}

// Delete removes the file at path, conditioned on its version token.
func (c *Client) Delete(ctx context.Context, path, token, message string) error {
	payload, err := json.Marshal(deleteRequest{Message: message, Token: token})
	if err != nil {
		return fmt.Errorf("encode delete request: %w", err)
	}

	return withRetry(ctx, c.retryBase, IsFatal, func(ctx context.Context) error {
		status, body, err := c.roundTrip(ctx, http.MethodDelete, path, payload)
		if err != nil {
			return err
		}
		if status != http.StatusOK && status != http.StatusNoContent {
			return classifyStatus(status, string(body))
		}
		return nil
	})
}

// List enumerates a directory. An absent directory yields an empty list,
// not an error.
func (c *Client) List(ctx context.Context, dir string) ([]DirEntry, error) {
	var entries []DirEntry
	err := withRetry(ctx, c.retryBase, IsFatal, func(ctx context.Context) error {
		status, body, err := c.roundTrip(ctx, http.MethodGet, dir, nil)
		if err != nil {
			return err
		}
		if status == http.StatusNotFound {
			entries = []DirEntry{}
			return nil
		}
		if status != http.StatusOK {
			return classifyStatus(status, string(body))
		}

		entries = entries[:0]
		if err := json.Unmarshal(body, &entries); err != nil {
			return fmt.Errorf("decode listing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []DirEntry{}
	}
	return entries, nil
}

// roundTrip issues one HTTP request and returns the status and body. Only
// transport-level failures return an error; status handling is the
// caller's concern so absence and conflict stay distinguishable.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.contentsURL(path), body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

// contentsURL builds the request URL, escaping each path segment.
func (c *Client) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/contents/" + strings.Join(segments, "/")
}
