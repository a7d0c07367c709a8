// Package api is the client's HTTP transport: JSON over a bearer token, a
// one-shot refresh-and-retry on expired access tokens, and a strict mapping
// of HTTP failures onto the domain's sentinel errors so callers can decide
// between "retry later" and "give up".
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
)

const codeTokenExpired = "token_expired"

// Client talks to one sync server on behalf of one account.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func New(baseURL string, timeout time.Duration, logger logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("module", "api_client"),
	}
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, email, password, displayName string) error {
	body := map[string]string{"email": email, "password": password, "displayName": displayName}
	resp, data, err := c.post(ctx, "/api/auth/register", "", body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return statusError(resp.StatusCode, data)
	}
	return nil
}

// Login obtains and stores a token pair.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	resp, data, err := c.post(ctx, "/api/auth/login", "", body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, data)
	}

	var pair tokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	c.setTokens(pair)
	return nil
}

// Refresh rotates the token pair. The server invalidates the presented
// refresh token on success, so the stored pair is replaced atomically.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return common.ErrUnauthorized
	}

	resp, data, err := c.post(ctx, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, data)
	}

	var pair tokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	c.setTokens(pair)
	return nil
}

// Logout revokes the session server-side and drops the stored tokens.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.accessToken, c.refreshToken = "", ""
	c.mu.Unlock()
	if refresh == "" {
		return nil
	}
	_, _, err := c.post(ctx, "/api/auth/logout", "", map[string]string{"refreshToken": refresh})
	return err
}

// Changes pulls the delta feed at or after since.
func (c *Client) Changes(ctx context.Context, since int64) (*feed.Bundle, error) {
	resp, data, err := c.doAuthed(ctx, http.MethodGet,
		"/api/changes?since="+strconv.FormatInt(since, 10), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, data)
	}

	bundle := &feed.Bundle{}
	if err := json.Unmarshal(data, bundle); err != nil {
		return nil, fmt.Errorf("decode changes response: %w", err)
	}
	return bundle, nil
}

// Mutate pushes one action and returns the bundle of rows it changed.
func (c *Client) Mutate(ctx context.Context, action feed.Action) (*feed.Bundle, error) {
	resp, data, err := c.doAuthed(ctx, http.MethodPost, "/api/mutate", action)
	if err != nil {
		return nil, err
	}

	var mr feed.MutationResponse
	if err := json.Unmarshal(data, &mr); err != nil {
		return nil, fmt.Errorf("decode mutation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", sentinelFor(resp.StatusCode), mr.Error)
	}
	return mr.Sync, nil
}

// doAuthed performs a bearer-authenticated request. On a 401 carrying the
// token-expired code it refreshes once and retries; any other failure is
// returned as-is.
func (c *Client) doAuthed(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	resp, data, err := c.do(ctx, method, path, token, body)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, data, nil
	}

	var e apiError
	if json.Unmarshal(data, &e) != nil || e.Code != codeTokenExpired {
		return resp, data, nil
	}

	c.logger.Debug(ctx, "access token expired, refreshing")
	if err := c.Refresh(ctx); err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	token = c.accessToken
	c.mu.Unlock()
	return c.do(ctx, method, path, token, body)
}

func (c *Client) post(ctx context.Context, path, token string, body any) (*http.Response, []byte, error) {
	return c.do(ctx, http.MethodPost, path, token, body)
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and refused connections are the offline case.
		return nil, nil, fmt.Errorf("%w: %v", common.ErrTransient, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response: %v", common.ErrTransient, err)
	}
	return resp, data, nil
}

func (c *Client) setTokens(pair tokenPair) {
	c.mu.Lock()
	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
	c.mu.Unlock()
}

func statusError(status int, data []byte) error {
	msg := ""
	var e apiError
	if json.Unmarshal(data, &e) == nil {
		msg = e.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%w: %s", sentinelFor(status), msg)
}

// sentinelFor maps HTTP statuses back onto the domain's sentinel errors,
// mirroring the server's mapping in the other direction.
func sentinelFor(status int) error {
	switch {
	case status == http.StatusBadRequest:
		return common.ErrValidation
	case status == http.StatusUnauthorized:
		return common.ErrUnauthorized
	case status == http.StatusNotFound:
		return common.ErrNotFound
	case status == http.StatusConflict:
		return common.ErrConflict
	case status == http.StatusTooManyRequests, status >= 500:
		return common.ErrTransient
	default:
		return common.ErrInternal
	}
}
