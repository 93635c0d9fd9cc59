// Package api implements the HTTP client for the remote command center
// authority.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/command-center/client-core/internal/models"
)

const defaultRequestTimeout = 10 * time.Second

// Client issues authenticated requests against one authority endpoint. It
// is immutable after construction; a new session gets a new Client.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	timeout time.Duration
}

// New creates a Client for the given (normalized) server URL. The token
// may be empty for the login call.
func New(serverURL, token string) *Client {
	return &Client{
		http:    &http.Client{},
		baseURL: strings.TrimRight(serverURL, "/"),
		token:   token,
		timeout: defaultRequestTimeout,
	}
}

// WithTimeout returns a copy of the client using the given unary request
// timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	clone := *c
	if timeout > 0 {
		clone.timeout = timeout
	}
	return &clone
}

// WithHTTPClient returns a copy using the given http.Client. Used by tests
// to point at fixture servers.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	clone := *c
	if hc != nil {
		clone.http = hc
	}
	return &clone
}

// BaseURL returns the endpoint the client is bound to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (models.LoginResponse, error) {
	var resp models.LoginResponse
	body, err := c.request(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, &RemoteError{Message: fmt.Sprintf("decode login response: %v", err), StatusCode: http.StatusOK}
	}
	if resp.Token == "" {
		return resp, &AuthError{Message: "login response carried no token"}
	}
	return resp, nil
}

// ListCommands pulls the full command catalog.
func (c *Client) ListCommands(ctx context.Context) ([]models.CommandDefinition, error) {
	body, err := c.request(ctx, http.MethodGet, "/api/commands", nil)
	if err != nil {
		return nil, err
	}
	var commands []models.CommandDefinition
	if err := json.Unmarshal(body, &commands); err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("decode commands: %v", err), StatusCode: http.StatusOK}
	}
	return commands, nil
}

// ListHistory pulls the execution history.
func (c *Client) ListHistory(ctx context.Context) ([]models.ExecutionLog, error) {
	body, err := c.request(ctx, http.MethodGet, "/api/history", nil)
	if err != nil {
		return nil, err
	}
	var history []models.ExecutionLog
	if err := json.Unmarshal(body, &history); err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("decode history: %v", err), StatusCode: http.StatusOK}
	}
	return history, nil
}

// SaveCommand creates (empty mutation ID) or updates (set ID) a command
// and returns the authoritative definition.
func (c *Client) SaveCommand(ctx context.Context, mutation models.CommandMutation) (models.CommandDefinition, error) {
	path := "/api/commands"
	if mutation.ID != "" {
		path += "/" + url.PathEscape(mutation.ID)
	}
	var def models.CommandDefinition
	body, err := c.request(ctx, http.MethodPost, path, mutation)
	if err != nil {
		return def, err
	}
	if err := json.Unmarshal(body, &def); err != nil {
		return def, &RemoteError{Message: fmt.Sprintf("decode command: %v", err), StatusCode: http.StatusOK}
	}
	return def, nil
}

// DeleteCommand deletes a command by ID.
func (c *Client) DeleteCommand(ctx context.Context, id string) error {
	_, err := c.request(ctx, http.MethodDelete, "/api/commands/"+url.PathEscape(id), nil)
	return err
}

// Execute queues a command run and returns the initial (pending) log.
func (c *Client) Execute(ctx context.Context, commandID string, parameters []string) (models.ExecutionLog, error) {
	var entry models.ExecutionLog
	body, err := c.request(ctx, http.MethodPost, "/api/commands/"+url.PathEscape(commandID)+"/execute", models.ExecuteRequest{
		Parameters: parameters,
	})
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(body, &entry); err != nil {
		return entry, &RemoteError{Message: fmt.Sprintf("decode execution: %v", err), StatusCode: http.StatusOK}
	}
	return entry, nil
}

// EventsURL derives the streaming endpoint from the server URL, carrying
// the token as a query parameter.
func (c *Client) EventsURL() string {
	wsURL := c.baseURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return wsURL + "/api/events?token=" + url.QueryEscape(c.token)
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	reqCtx := ctx
	if c.timeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > c.timeout {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
	}

	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = buf
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{Message: remoteMessage(payload)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Message: remoteMessage(payload), StatusCode: resp.StatusCode}
	}

	return payload, nil
}

// remoteMessage extracts the authority's error message body when present.
func remoteMessage(payload []byte) string {
	var eb errorBody
	if err := json.Unmarshal(payload, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	return ""
}
