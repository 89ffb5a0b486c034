// Package client is an HTTP client for a running suisen server.
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
	"time"

	"github.com/hyperjump/suisen/internal/models"
	"github.com/hyperjump/suisen/pkg/errors"
)

const defaultTimeout = 60 * time.Second

// Client calls the suisen HTTP API. Error responses come back as coded errors, so callers can
// classify them the same way as errors returned by the service itself.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddItem adds or replaces an item.
func (c *Client) AddItem(ctx context.Context, input models.ItemInput) (*models.AddResult, error) {
	var out models.AddResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/items", nil, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetItem returns one item's metadata.
func (c *Client) GetItem(ctx context.Context, id string) (*models.ItemMetadata, error) {
	var out models.ItemMetadata
	if err := c.do(ctx, http.MethodGet, "/api/v1/items/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recommend returns the items most similar to req.ID.
func (c *Client) Recommend(ctx context.Context, req models.RecommendRequest) (*models.RecommendResponse, error) {
	q := url.Values{}
	if req.TopK != nil {
		q.Set("top_k", strconv.Itoa(*req.TopK))
	}
	if req.ExcludeSelf != nil {
		q.Set("exclude_self", strconv.FormatBool(*req.ExcludeSelf))
	}
	var out models.RecommendResponse
	path := "/api/v1/items/" + url.PathEscape(req.ID) + "/recommendations"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search ranks items against a free-text query.
func (c *Client) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	var out models.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/search", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListItems returns one page of items.
func (c *Client) ListItems(ctx context.Context, filter models.ListFilter) (*models.ListResponse, error) {
	q := url.Values{}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.Limit != 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset != 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	var out models.ListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/items", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, id string) (*models.DeleteResult, error) {
	var out models.DeleteResult
	if err := c.do(ctx, http.MethodDelete, "/api/v1/items/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStats returns the store summary.
func (c *Client) GetStats(ctx context.Context) (*models.Stats, error) {
	var out models.Stats
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reindex asks the server to recompute every embedding.
func (c *Client) Reindex(ctx context.Context) (*models.ReindexResult, error) {
	var out models.ReindexResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/reindex", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.do(ctx, http.MethodGet, "/health", nil, nil, &out)
}

type errorBody struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CodeClientRequestFailure, "encode request")
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, errors.CodeClientRequestFailure, "build request", errors.Field("url", endpoint))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeClientRequestFailure, "request failed", errors.Field("url", endpoint))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		var eb errorBody
		if jsonErr := json.Unmarshal(raw, &eb); jsonErr != nil || eb.Error == "" {
			eb.Error = fmt.Sprintf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return errors.FromHTTPStatus(resp.StatusCode, eb.Code, eb.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CodeClientRequestFailure, "decode response")
	}
	return nil
}
