package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dclabs/mailadmin-api/internal/models"
	appErrors "github.com/dclabs/mailadmin-api/pkg/errors"
)

// envelope mirrors the server response contract with a deferred data payload.
type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Error      *appErrors.Error   `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
}

// Client is a thin HTTP client for the admin console API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New constructs a Client for the given API base URL (including the prefix,
// e.g. "http://localhost:8080/api/v1").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Meta fetches the filter-control catalog.
func (c *Client) Meta(ctx context.Context) (*models.MetaCatalog, error) {
	var catalog models.MetaCatalog
	if _, err := c.get(ctx, "/meta", nil, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// ListSubscribers fetches one filtered page.
func (c *Client) ListSubscribers(ctx context.Context, filter models.SubscriberFilter) (*models.SubscriberPage, *models.Pagination, error) {
	var page models.SubscriberPage
	pagination, err := c.get(ctx, "/subscribers", filterValues(filter), &page)
	if err != nil {
		return nil, nil, err
	}
	return &page, pagination, nil
}

// Bulk executes one chunk of a bulk job. On HTTP-level failures the server
// still responds with the uniform result shape, which is surfaced here with
// OK=false rather than as an error.
func (c *Client) Bulk(ctx context.Context, req models.BulkRequest) (*models.BulkResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode bulk request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bulk", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build bulk request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute bulk request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}

	var result models.BulkResult
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return nil, fmt.Errorf("decode bulk result: %w", err)
		}
	}
	if env.Error != nil && result.Message == "" {
		result.Message = env.Error.Message
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) (*models.Pagination, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Error != nil {
		return nil, env.Error
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if dest != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	return env.Pagination, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func filterValues(f models.SubscriberFilter) url.Values {
	values := url.Values{}
	if f.Search != "" {
		values.Set("search", f.Search)
	}
	if f.Status != "" {
		values.Set("status", f.Status)
	}
	for _, id := range f.Tags {
		values.Add("tags", strconv.FormatInt(id, 10))
	}
	if f.TagsMode == models.MatchAll {
		values.Set("tags_mode", string(models.MatchAll))
	}
	for _, id := range f.Lists {
		values.Add("lists", strconv.FormatInt(id, 10))
	}
	if f.ListsMode == models.MatchAll {
		values.Set("lists_mode", string(models.MatchAll))
	}
	if f.NPAFieldID != nil {
		values.Set("npa_field_id", strconv.FormatInt(*f.NPAFieldID, 10))
	}
	if f.NPA != "" {
		values.Set("npa", f.NPA)
	}
	if f.NPAMin != "" {
		values.Set("npa_min", f.NPAMin)
	}
	if f.NPAMax != "" {
		values.Set("npa_max", f.NPAMax)
	}
	if f.Sort != "" {
		values.Set("sort", f.Sort)
	}
	if f.Order != "" {
		values.Set("order", f.Order)
	}
	if f.Page > 0 {
		values.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(f.PerPage))
	}
	return values
}
