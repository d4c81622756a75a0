// Package client talks to a dmaker executor over HTTP and subscribes to its
// push events over a WebSocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
)

var (
	_ gateway.Gateway     = (*Client)(nil)
	_ gateway.EventSource = (*Client)(nil)
)

// Client implements gateway.Gateway and gateway.EventSource
type Client struct {
	cfg  Config
	base *url.URL
	http *http.Client
	log  logr.Logger
}

// New creates a client for the executor at cfg.BaseURL
func New(cfg Config, log logr.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = DefaultReconnectBackoff
	}
	if cfg.MaxReconnectBackoff <= 0 {
		cfg.MaxReconnectBackoff = DefaultMaxReconnectBackoff
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https: %q", cfg.BaseURL)
	}

	return &Client{
		cfg:  cfg,
		base: base,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.WithName("client"),
	}, nil
}

// ListSummaries fetches the lightweight view of a project's features
func (c *Client) ListSummaries(ctx context.Context, project string, filter gateway.StatusFilter) ([]feature.Feature, error) {
	return c.list(ctx, project, "summary", filter)
}

// ListFull fetches the complete view of a project's features
func (c *Client) ListFull(ctx context.Context, project string, filter gateway.StatusFilter) ([]feature.Feature, error) {
	return c.list(ctx, project, "full", filter)
}

func (c *Client) list(ctx context.Context, project, view string, filter gateway.StatusFilter) ([]feature.Feature, error) {
	q := url.Values{}
	q.Set("view", view)
	q.Set("exclude_completed", strconv.FormatBool(filter.ExcludeCompleted))

	var out []feature.Feature
	if err := c.do(ctx, http.MethodGet, featuresPath(project)+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create adds a feature to project
func (c *Client) Create(ctx context.Context, project string, draft feature.Draft) (feature.Feature, error) {
	var out feature.Feature
	err := c.do(ctx, http.MethodPost, featuresPath(project), draft, &out)
	return out, err
}

// Update applies a partial update
func (c *Client) Update(ctx context.Context, project, featureID string, patch feature.Patch) (feature.Feature, error) {
	var out feature.Feature
	err := c.do(ctx, http.MethodPatch, featurePath(project, featureID), patch, &out)
	return out, err
}

// Delete removes a feature
func (c *Client) Delete(ctx context.Context, project, featureID string) error {
	return c.do(ctx, http.MethodDelete, featurePath(project, featureID), nil, nil)
}

// Start requests a run. A refused start is not an error.
func (c *Client) Start(ctx context.Context, project, featureID string) (gateway.StartResult, error) {
	var out gateway.StartResult
	err := c.do(ctx, http.MethodPost, featurePath(project, featureID)+"/start", nil, &out)
	return out, err
}

// Stop aborts a run
func (c *Client) Stop(ctx context.Context, project, featureID string) error {
	return c.do(ctx, http.MethodPost, featurePath(project, featureID)+"/stop", nil, nil)
}

// History returns journaled events for project with sequence > after
func (c *Client) History(ctx context.Context, project string, after, limit int) ([]HistoryEntry, error) {
	q := url.Values{}
	q.Set("after", strconv.Itoa(after))
	q.Set("limit", strconv.Itoa(limit))

	var out []HistoryEntry
	path := "/api/projects/" + url.PathEscape(project) + "/events?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do sends a JSON request and decodes a JSON reply into out (if non-nil)
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError maps a failed reply onto the gateway sentinels
func decodeError(resp *http.Response) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	if body.Error == "" {
		body.Error = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", gateway.ErrNotFound, body.Error)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", gateway.ErrInvalidInput, body.Error)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", gateway.ErrConflict, body.Error)
	default:
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, body.Error)
	}
}

func featuresPath(project string) string {
	return "/api/projects/" + url.PathEscape(project) + "/features"
}

func featurePath(project, featureID string) string {
	return featuresPath(project) + "/" + url.PathEscape(featureID)
}
