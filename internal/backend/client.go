// Package backend is the credentialed JSON client for the recycle backend
// service (guidance, auth and pickup endpoints share it).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Kind classifies a backend failure.
type Kind string

const (
	KindNetwork Kind = "network" // request never produced a response
	KindStatus  Kind = "status"  // non-2xx response
	KindDecode  Kind = "decode"  // 2xx response with an unusable body
)

// Error is returned for every failed backend call.
type Error struct {
	Kind    Kind
	Path    string
	Status  int
	Message string // server-provided message, when the body carried one
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		if e.Message != "" {
			return fmt.Sprintf("backend %s: status %d: %s", e.Path, e.Status, e.Message)
		}
		return fmt.Sprintf("backend %s: status %d", e.Path, e.Status)
	default:
		return fmt.Sprintf("backend %s: %s: %v", e.Path, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Client posts JSON to the backend with cookies kept across calls.
type Client struct {
	baseURL          string
	root             *url.URL // cookie scope
	client           *http.Client
	maxResponseBytes int64
}

// New creates a backend client. A nil httpClient gets a fresh one with a cookie jar.
func New(baseURL string, timeout time.Duration, maxResponseBytes int64, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend base url is empty")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxResponseBytes <= 0 {
		maxResponseBytes = 1 << 20
	}
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Jar:     jar,
		}
	}

	base := strings.TrimRight(baseURL, "/")
	root, err := url.Parse(base + "/")
	if err != nil || root.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", baseURL)
	}

	return &Client{
		baseURL:          base,
		root:             root,
		client:           httpClient,
		maxResponseBytes: maxResponseBytes,
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Cookies returns the name/value pairs the jar sends to the backend.
func (c *Client) Cookies() []*http.Cookie {
	if c.client.Jar == nil {
		return nil
	}
	return c.client.Jar.Cookies(c.root)
}

// RestoreCookies puts previously saved cookies back into the jar, scoped to
// the backend root.
func (c *Client) RestoreCookies(cookies []*http.Cookie) {
	if c.client.Jar == nil || len(cookies) == 0 {
		return
	}
	scoped := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		scoped = append(scoped, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: c.root.Path})
	}
	c.client.Jar.SetCookies(c.root, scoped)
}

// ClearCookies expires every cookie the jar holds for the backend, both at
// the root path and at the path the server may have set.
func (c *Client) ClearCookies() {
	if c.client.Jar == nil {
		return
	}
	var expired []*http.Cookie
	for _, ck := range c.client.Jar.Cookies(c.root) {
		for _, p := range []string{"/", c.root.Path} {
			expired = append(expired, &http.Cookie{Name: ck.Name, Path: p, MaxAge: -1})
		}
	}
	if len(expired) > 0 {
		c.client.Jar.SetCookies(c.root, expired)
	}
}

type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// PostJSON sends in as JSON to path and decodes a 2xx body into out (when out is non-nil).
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Path: path, Err: err}
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.maxResponseBytes+1)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return &Error{Kind: KindNetwork, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(respBody)) > c.maxResponseBytes {
		return &Error{Kind: KindDecode, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("response exceeded limit (%d bytes)", c.maxResponseBytes)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg messageBody
		_ = json.Unmarshal(respBody, &msg)
		text := msg.Message
		if text == "" {
			text = msg.Error
		}
		return &Error{Kind: KindStatus, Path: path, Status: resp.StatusCode, Message: text}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return &Error{Kind: KindDecode, Path: path, Status: resp.StatusCode, Err: errors.New("empty body")}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindDecode, Path: path, Status: resp.StatusCode, Err: err}
	}
	return nil
}
