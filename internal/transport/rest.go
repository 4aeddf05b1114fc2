// Package transport implements the authenticated REST collaborator behind
// cache misses.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kagami/pkg/kagami"
)

const (
	defaultBaseURL        = "https://discordapp.com/api"
	defaultRequestTimeout = 10 * time.Second
	maxResponseBytes      = 1 << 20
)

// Client performs authenticated REST calls against the platform API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// ClientOption mutates REST client configuration.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(client *Client) {
		if baseURL != "" {
			client.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(client *Client) {
		if httpClient != nil {
			client.httpClient = httpClient
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// NewClient creates a REST client authenticated with one bot token.
func NewClient(token string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("new rest client: missing token")
	}

	client := &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    defaultBaseURL,
		token:      token,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(client)
	}

	return client, nil
}

// FetchChannel retrieves the raw payload for one channel.
func (c *Client) FetchChannel(ctx context.Context, channelID kagami.Snowflake) (json.RawMessage, error) {
	raw, err := c.do(ctx, http.MethodGet, "/channels/"+channelID.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch channel %s: %w", channelID, err)
	}

	return raw, nil
}

// CreatePrivateChannel opens a direct conversation with one peer user.
func (c *Client) CreatePrivateChannel(ctx context.Context, selfID, peerID kagami.Snowflake) (json.RawMessage, error) {
	body := map[string]string{"recipient_id": peerID.String()}
	raw, err := c.do(ctx, http.MethodPost, "/users/"+selfID.String()+"/channels", body)
	if err != nil {
		return nil, fmt.Errorf("create private channel with %s: %w", peerID, err)
	}

	return raw, nil
}

// ResolveInvite retrieves invite metadata for one bare invite code.
func (c *Client) ResolveInvite(ctx context.Context, code string) (json.RawMessage, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("resolve invite: empty code")
	}

	raw, err := c.do(ctx, http.MethodGet, "/invite/"+code, nil)
	if err != nil {
		return nil, fmt.Errorf("resolve invite %s: %w", code, err)
	}

	return raw, nil
}

// do executes one authenticated request and maps failure statuses to sentinels.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("execute %s %s: %w", method, path, err)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		return payload, nil
	case response.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s %s status %d: %w", method, path, response.StatusCode, kagami.ErrNoPermission)
	case response.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s status %d: %w", method, path, response.StatusCode, kagami.ErrNotFound)
	default:
		c.logger.WarnContext(ctx,
			"rest request failed",
			"method", method,
			"path", path,
			"status", response.StatusCode,
		)
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, path, response.StatusCode)
	}
}

var _ kagami.Transport = (*Client)(nil)
