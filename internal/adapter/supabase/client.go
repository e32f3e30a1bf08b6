package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrMissingURL = errors.New("supabase url is required")
	ErrMissingKey = errors.New("supabase key is required")
	ErrInvalidURL = errors.New("invalid supabase url")
)

// APIError is the PostgREST error body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Code != "" {
		return fmt.Sprintf("supabase api error %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("supabase api error %d: %s", e.Status, msg)
}

// Client talks to the PostgREST endpoint of a Supabase project.
type Client struct {
	http *resty.Client
	url  string
}

type Option func(*resty.Client)

func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// NewClient authenticates every request with the project's service key.
func NewClient(supabaseURL, key string, opts ...Option) (*Client, error) {
	if supabaseURL == "" {
		return nil, ErrMissingURL
	}
	if key == "" {
		return nil, ErrMissingKey
	}
	u, err := url.Parse(supabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, supabaseURL)
	}

	base := strings.TrimRight(supabaseURL, "/")
	rc := resty.New().
		SetBaseURL(base+"/rest/v1").
		SetTimeout(30*time.Second).
		SetHeader("apikey", key).
		SetHeader("Authorization", "Bearer "+key).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(rc)
	}

	return &Client{http: rc, url: base}, nil
}

func (c *Client) URL() string {
	return c.url
}

// Upsert inserts rows into table, merging on primary key conflicts.
func (c *Client) Upsert(ctx context.Context, table string, rows any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "resolution=merge-duplicates,return=minimal").
		SetBody(rows).
		SetError(&APIError{}).
		Post("/" + url.PathEscape(table))
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", table, err)
	}
	return checkResponse(resp)
}

// RPC calls a Postgres function and decodes the rows into out.
// A positive limit caps the number of rows returned.
func (c *Client) RPC(ctx context.Context, fn string, params any, limit int, out any) error {
	req := c.http.R().
		SetContext(ctx).
		SetBody(params).
		SetResult(out).
		SetError(&APIError{})
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Post("/rpc/" + url.PathEscape(fn))
	if err != nil {
		return fmt.Errorf("rpc %s: %w", fn, err)
	}
	return checkResponse(resp)
}

// DeleteIn removes rows of table whose column value is one of values.
func (c *Client) DeleteIn(ctx context.Context, table, column string, values []string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam(column, "in.("+strings.Join(values, ",")+")").
		SetError(&APIError{}).
		Delete("/" + url.PathEscape(table))
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return checkResponse(resp)
}

func checkResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}
