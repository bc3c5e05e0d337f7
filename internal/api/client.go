// Package api is a thin client for the tenant roles REST API
// (authz2/v1). One Client serves one tenant; every request carries the
// tenant's bearer key and a correlation ID. Requests are never retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	rolesPath      = "authz2/v1/roles/"
	requestTimeout = 30 * time.Second
	maxErrorBody   = 500
)

// Client talks to one tenant's roles API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a logger for request tracing. A nil logger keeps
// the no-op default.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a client for the API rooted at baseURL, e.g.
// https://acme-api.example.cloud/api.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateScopesRequest struct {
	ScopeNames []string `json:"scope_names"`
}

// ListRoles returns the roles visible in the tenant. The list may
// arrive bare or wrapped in a roles/results envelope; entries that do
// not decode as role objects are skipped.
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	body, err := c.do(ctx, http.MethodGet, rolesPath, nil)
	if err != nil {
		return nil, err
	}
	entries, ok := decodeList(body, "roles", "results")
	if !ok {
		c.log.Warn("unrecognized role list shape", zap.Int("bytes", len(body)))
		return nil, nil
	}
	roles := make([]Role, 0, len(entries))
	for _, entry := range entries {
		var role Role
		if err := json.Unmarshal(entry, &role); err != nil {
			c.log.Warn("skipping undecodable role entry", zap.Error(err))
			continue
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// GetRoleByName finds a role by display name, trimming surrounding
// space and ignoring case. Returns nil when no role matches.
func (c *Client) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	roles, err := c.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for i := range roles {
		if strings.ToLower(strings.TrimSpace(roles[i].Name)) == want {
			return &roles[i], nil
		}
	}
	return nil, nil
}

// GetRoleScopes returns the raw scope entries attached to a role.
func (c *Client) GetRoleScopes(ctx context.Context, roleID string) ([]json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, rolesPath+roleID+"/scopes", nil)
	if err != nil {
		return nil, err
	}
	entries, ok := decodeList(body, "scopes", "results")
	if !ok {
		c.log.Warn("unrecognized scope list shape", zap.String("role_id", roleID))
		return nil, nil
	}
	return entries, nil
}

// CreateRole creates a role with no scopes attached yet.
func (c *Client) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	body, err := c.do(ctx, http.MethodPost, rolesPath, createRoleRequest{
		Name:        name,
		Description: description,
	})
	if err != nil {
		return nil, err
	}
	var role Role
	if err := json.Unmarshal(body, &role); err != nil {
		return nil, fmt.Errorf("failed to decode created role: %w", err)
	}
	return &role, nil
}

// UpdateRoleScopes replaces the full scope set on a role.
func (c *Client) UpdateRoleScopes(ctx context.Context, roleID string, scopeNames []string) error {
	if scopeNames == nil {
		scopeNames = []string{}
	}
	_, err := c.do(ctx, http.MethodPut, rolesPath+roleID+"/scopes", updateScopesRequest{
		ScopeNames: scopeNames,
	})
	return err
}

// do sends one request and returns the response body. Non-2xx statuses
// come back as *Error.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	url := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("url", url),
		zap.String("request_id", requestID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("api response",
		zap.String("method", method),
		zap.String("url", url),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Message:    errorMessage(body),
		}
	}
	return body, nil
}

// errorMessage pulls a human-readable message out of an error body,
// preferring the JSON message/detail fields over a raw snippet.
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"message", "detail", "error"} {
			if msg, ok := payload[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody] + "..."
	}
	return snippet
}
