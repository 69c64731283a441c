package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"curvegraph/pkg/domain"

	"golang.org/x/oauth2"
)

// maxErrorBody caps how much of a failed response body is kept on the error.
const maxErrorBody = 4096

// Client is the HTTP transport to one remote spreadsheet instance. Every
// request carries the bearer token and is resolved against the base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ domain.Transport = (*Client)(nil)

// ClientOption customises a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	base *http.Client
}

// WithHTTPClient sets the client used beneath the token-attaching transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(o *clientOptions) { o.base = hc }
}

// NewClient constructs a transport scoped to baseURL, authorising requests with token.
func NewClient(ctx context.Context, baseURL, token string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("sheets: base url required")
	}
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.base)
	}
	var hc *http.Client
	if token == "" {
		hc = o.base
		if hc == nil {
			hc = http.DefaultClient
		}
	} else {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}, nil
}

// Do sends one request. A non-2xx response fails with *domain.RemoteAPIError
// carrying the response body text; no retry is attempted.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.RemoteAPIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(text)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
