package smashpros

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodySize caps how much of an upstream body is read
const maxBodySize = 8 << 20

// Client is a smashpros.gg users API client
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(config *ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return NewClientWithHTTPClient(config, &http.Client{
		Timeout: config.Timeout,
	})
}

// NewClientWithHTTPClient creates a new API client with a custom HTTP client
func NewClientWithHTTPClient(config *ClientConfig, httpClient *http.Client) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// BaseURL returns the users endpoint the client talks to
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// PlayerData fetches the profile for a player tag.
// An empty tag is forwarded as an empty path segment.
func (c *Client) PlayerData(ctx context.Context, playerTag string) (*Response, error) {
	return c.get(ctx, "/"+url.PathEscape(playerTag))
}

// PlayerWinsLosses fetches the online wins/losses for a player ID
func (c *Client) PlayerWinsLosses(ctx context.Context, playerID string) (*Response, error) {
	return c.get(ctx, "/"+url.PathEscape(playerID)+"/wins-losses")
}

// get performs a GET against the users endpoint and returns the JSON body
func (c *Client) get(ctx context.Context, path string) (*Response, error) {
	target := c.config.BaseURL + path

	retryCount := c.config.RetryCount
	if retryCount <= 0 {
		retryCount = 1
	}

	// Execute request with retry
	var resp *http.Response
	var lastErr error
	for i := 0; i < retryCount; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}

		resp, err = c.httpClient.Do(req)
		if err == nil {
			break
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if resp == nil {
		return nil, &Error{
			Kind: KindUnavailable,
			URL:  target,
			Err:  fmt.Errorf("request failed after %d attempts: %w", retryCount, lastErr),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, URL: target, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("failed to read response: %w", err)}
	}

	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, &Error{Kind: KindInvalidResponse, URL: target, StatusCode: resp.StatusCode,
			Err: errors.New("response body is not valid JSON")}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(body),
	}, nil
}
