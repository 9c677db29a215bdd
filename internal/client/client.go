// Package client talks to the chat REST API on behalf of one user.
package client

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

	"github.com/sethvargo/go-retry"

	"github.com/johndosdos/synapse/internal/model"
)

// CredentialProvider supplies the bearer token for each request.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a CredentialProvider with a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrUnauthorized
	}
	return string(t), nil
}

type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialProvider
	retries uint64
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries sets how often an idempotent read is retried on transport
// or 5xx failures.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

func New(baseURL string, creds CredentialProvider, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(BaseURL(baseURL), "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		creds:   creds,
		retries: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the REST origin requests go to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the current bearer token.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.creds.Token(ctx)
}

// History fetches the recent messages of a room. Any failure is returned
// as a *HistoryFetchError.
func (c *Client) History(ctx context.Context, roomID int64) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage

	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		msgs = nil
		err := c.do(ctx, http.MethodGet, roomPath(roomID, "messages"), nil, &msgs)
		if transient(err) && ctx.Err() == nil {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, &HistoryFetchError{RoomID: roomID, Err: err}
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return msgs, nil
}

// Send posts a message. Sends are never retried.
func (c *Client) Send(ctx context.Context, roomID int64, content string) (model.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return model.ChatMessage{}, ErrEmptyContent
	}

	var msg model.ChatMessage
	err := c.do(ctx, http.MethodPost, roomPath(roomID, "messages"),
		model.SendRequest{Content: content, RoomID: roomID}, &msg)
	if err != nil {
		return model.ChatMessage{}, err
	}
	return msg, nil
}

// Join makes the caller a member of roomID.
func (c *Client) Join(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID, "join"), nil, nil)
}

// Leave removes the caller from roomID.
func (c *Client) Leave(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodDelete, roomPath(roomID, "join"), nil, nil)
}

// transient reports whether err is a transport failure or a 5xx response.
func transient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func roomPath(roomID int64, leaf string) string {
	return "/rooms/" + strconv.FormatInt(roomID, 10) + "/" + leaf
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("internal/client: credentials: %w", err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("internal/client: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("internal/client: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("internal/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return responseError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("internal/client: decode response: %w", err)
	}
	return nil
}

func responseError(resp *http.Response) error {
	var body model.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrAccessDenied
	case http.StatusTooManyRequests:
		rl := &RateLimitError{Detail: body.Detail}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			rl.RetryAfter = time.Duration(secs) * time.Second
		}
		return rl
	}
	return &StatusError{Code: resp.StatusCode, Detail: body.Detail}
}
