// Package rest reads identity and the social graph from the HTTP API.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/omochice/dock-chat/internal/directory"
	"github.com/omochice/dock-chat/internal/transport"
)

// DefaultTimeout bounds a request whose context has no deadline.
const DefaultTimeout = 10 * time.Second

type userList struct {
	Users []directory.Counterpart `json:"users"`
}

// Client is a directory.Fetcher talking to the REST API at baseURL.
type Client struct {
	baseURL string
	session string
	http    *fasthttp.Client
	timeout time.Duration
}

var _ directory.Fetcher = (*Client)(nil)

// New creates a Client. session is sent as the session cookie when non-empty.
func New(baseURL, session string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		http:    &fasthttp.Client{Name: "dock-chat"},
		timeout: DefaultTimeout,
	}
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (directory.Counterpart, error) {
	var me directory.Counterpart
	if err := c.get(ctx, "/api/me", &me); err != nil {
		return directory.Counterpart{}, err
	}
	return me, nil
}

// Followers returns the users following userID.
func (c *Client) Followers(ctx context.Context, userID int64) ([]directory.Counterpart, error) {
	return c.users(ctx, fmt.Sprintf("/api/users/%d/followers", userID))
}

// Following returns the users userID follows.
func (c *Client) Following(ctx context.Context, userID int64) ([]directory.Counterpart, error) {
	return c.users(ctx, fmt.Sprintf("/api/users/%d/following", userID))
}

func (c *Client) users(ctx context.Context, path string) ([]directory.Counterpart, error) {
	var list userList
	if err := c.get(ctx, path, &list); err != nil {
		return nil, err
	}
	return list.Users, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.session != "" {
		req.Header.SetCookie(transport.SessionCookie, c.session)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("%w: GET %s: %v", directory.ErrUnavailable, path, err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return fmt.Errorf("%w: GET %s: status %d", directory.ErrUnavailable, path, code)
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
