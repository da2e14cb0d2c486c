package bot

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

	"posthub.org/internal/posts"
)

var (
	// ErrUnauthorized means the API rejected the credentials or the token.
	ErrUnauthorized = errors.New("bot: unauthorized")
	// ErrPostNotFound means the post does not exist or belongs to someone else.
	ErrPostNotFound = errors.New("bot: post not found")
)

// APIError is a non-2xx answer the client has no sentinel for.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api responded %d", e.Status)
	}
	return fmt.Sprintf("api responded %d: %s", e.Status, e.Message)
}

// APIClient talks to the posthub HTTP API.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient builds a client for baseURL. A nil httpClient gets a 10s timeout.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// LoginResult is the token pair returned by /users/login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Register creates an account.
func (c *APIClient) Register(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.doJSON(ctx, http.MethodPost, "/users/register", "", body, nil)
}

// Login exchanges credentials for an access token.
func (c *APIClient) Login(ctx context.Context, username, password string) (LoginResult, error) {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/login", strings.NewReader(form.Encode()))
	if err != nil {
		return LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var res LoginResult
	if err := c.do(req, &res); err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// Logout revokes token on the server.
func (c *APIClient) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodPost, "/users/logout", token, nil, nil)
}

// Me returns the username the token belongs to.
func (c *APIClient) Me(ctx context.Context, token string) (string, error) {
	var res struct {
		Username string `json:"username"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/users/me", token, nil, &res); err != nil {
		return "", err
	}
	return res.Username, nil
}

func (c *APIClient) CreatePost(ctx context.Context, token, title, content string) (posts.Post, error) {
	var p posts.Post
	body := map[string]string{"title": title, "content": content}
	err := c.doJSON(ctx, http.MethodPost, "/posts/create", token, body, &p)
	return p, err
}

func (c *APIClient) ListPosts(ctx context.Context, token string, skip, limit int) ([]posts.Post, error) {
	q := url.Values{"skip": {strconv.Itoa(skip)}, "limit": {strconv.Itoa(limit)}}
	var items []posts.Post
	err := c.doJSON(ctx, http.MethodGet, "/posts/read_all?"+q.Encode(), token, nil, &items)
	return items, err
}

func (c *APIClient) CountPosts(ctx context.Context, token string) (int, error) {
	var res struct {
		Total int `json:"total"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/posts/count", token, nil, &res)
	return res.Total, err
}

func (c *APIClient) GetPost(ctx context.Context, token string, id int64) (posts.Post, error) {
	var p posts.Post
	err := c.doJSON(ctx, http.MethodGet, "/posts/"+strconv.FormatInt(id, 10), token, nil, &p)
	return p, err
}

func (c *APIClient) doJSON(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *APIClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrPostNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
