// Package api is the REST client for swamp lookup and CRUD.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/SK124/Swamp/internal/dns"
	"github.com/SK124/Swamp/internal/version"
)

var (
	// ErrResolutionFailed wraps any failure to look a swamp up.
	ErrResolutionFailed = errors.New("swamp resolution failed")

	// ErrNoStream means the swamp exists but carries no stream token.
	ErrNoStream = errors.New("there is no stream for the given stream link")

	ErrInvalidSwamp = errors.New("missing required swamp fields")
	ErrInvalidTopic = errors.New("topic name required")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Code, http.StatusText(e.Code), e.Body)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// Client talks to the swamp REST API.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client rooted at baseURL, e.g. http://localhost:8080/api.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q must be http or https", baseURL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dns.DialContext

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout, Transport: transport},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ResolveSwamp looks up a swamp by id with a single request. Any failure is
// reported as ErrResolutionFailed and is not retried. A swamp without a
// stream token yields ErrNoStream.
func (c *Client) ResolveSwamp(ctx context.Context, id string) (Swamp, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Swamp{}, fmt.Errorf("%w: empty swamp id", ErrResolutionFailed)
	}

	var swamp Swamp
	if err := c.do(ctx, http.MethodGet, "/swamp/"+url.PathEscape(id), nil, nil, &swamp); err != nil {
		return Swamp{}, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}
	if swamp.UUID == "" {
		return swamp, ErrNoStream
	}

	c.logger.Debug("swamp resolved", "swamp_id", id, "uuid", swamp.UUID)
	return swamp, nil
}

// ListSwamps returns one page of swamps. Non-positive arguments fall back
// to the server defaults.
func (c *Client) ListSwamps(ctx context.Context, page, perPage int) (SwampPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("pageNumber", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("recordsPerPage", strconv.Itoa(perPage))
	}

	var out SwampPage
	err := c.do(ctx, http.MethodGet, "/swamp", q, nil, &out)
	return out, err
}

// CreateSwamp validates and creates a swamp.
func (c *Client) CreateSwamp(ctx context.Context, s NewSwamp) (Swamp, error) {
	if strings.TrimSpace(s.Title) == "" || s.OwnerID == 0 || s.MaxParticipants == 0 || s.StartTime.IsZero() || s.Duration == 0 {
		return Swamp{}, ErrInvalidSwamp
	}

	var out createSwampResponse
	if err := c.do(ctx, http.MethodPost, "/swamp", nil, s, &out); err != nil {
		return Swamp{}, err
	}
	return out.Swamp, nil
}

func (c *Client) ListTopics(ctx context.Context) ([]Topic, error) {
	var out []Topic
	err := c.do(ctx, http.MethodGet, "/topics", nil, nil, &out)
	return out, err
}

func (c *Client) CreateTopic(ctx context.Context, name string) (Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Topic{}, ErrInvalidTopic
	}

	var out Topic
	err := c.do(ctx, http.MethodPost, "/topics", nil, map[string]string{"name": name}, &out)
	return out, err
}

// UserTopics returns the topic ids a user follows.
func (c *Client) UserTopics(ctx context.Context, userID int) ([]uint, error) {
	var out []uint
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/user/%d/topics", userID), nil, nil, &out)
	return out, err
}

// AddUserTopic records that a user follows the given topics.
func (c *Client) AddUserTopic(ctx context.Context, userID int, topicIDs ...uint) error {
	if len(topicIDs) == 0 {
		return errors.New("no topics given")
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/user/%d/topics", userID), nil, userTopicsRequest{Topics: topicIDs}, nil)
}

// do sends one request. path must already be escaped.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.RawPath = u.EscapedPath() + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return fmt.Errorf("invalid request path %q: %w", path, err)
	}
	u.Path = unescaped
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.ClientName+"/"+version.Version)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
