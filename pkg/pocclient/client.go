// Package pocclient is a Go client for the POC portal public API, used by
// SE tooling to register engagements and report daily progress.
package pocclient

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

// Client talks to one portal instance. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a new portal client
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid BaseURL %q", config.BaseURL)
	}

	hc := config.HTTPClient
	if hc == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		http:    hc,
	}, nil
}

// Health checks connectivity. It does not need an API key.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register registers a POC, or returns the existing one for the same SE,
// prospect and product.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deregister soft-deletes a POC. Unknown POCs are reported in the message,
// not as an error.
func (c *Client) Deregister(ctx context.Context, pocUID string) (*DeregisterResponse, error) {
	var out DeregisterResponse
	body := map[string]string{"poc_uid": pocUID}
	if err := c.do(ctx, http.MethodPost, "/api/v1/deregister", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Heartbeat sends the daily status update with the current use case list.
func (c *Client) Heartbeat(ctx context.Context, pocUID string, useCases []HeartbeatUseCase) (*HeartbeatResponse, error) {
	var out HeartbeatResponse
	body := struct {
		POCUID   string             `json:"poc_uid"`
		UseCases []HeartbeatUseCase `json:"use_cases"`
	}{pocUID, useCases}
	if err := c.do(ctx, http.MethodPost, "/api/v1/heartbeat", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteUseCase marks one use case completed or reopens it.
func (c *Client) CompleteUseCase(ctx context.Context, pocUID, code string, completed bool) (*CompleteUseCaseResponse, error) {
	var out CompleteUseCaseResponse
	body := struct {
		POCUID      string `json:"poc_uid"`
		UseCaseCode string `json:"use_case_code"`
		Completed   bool   `json:"completed"`
	}{pocUID, code, completed}
	if err := c.do(ctx, http.MethodPost, "/api/v1/complete_use_case", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rate sets a 1-5 star rating on a use case.
func (c *Client) Rate(ctx context.Context, pocUID, code string, rating int) (*RatingResponse, error) {
	var out RatingResponse
	body := struct {
		POCUID      string `json:"poc_uid"`
		UseCaseCode string `json:"use_case_code"`
		Rating      int    `json:"rating"`
	}{pocUID, code, rating}
	if err := c.do(ctx, http.MethodPost, "/api/v1/rating", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Feedback attaches feedback or a question to a use case. An empty kind
// means feedback.
func (c *Client) Feedback(ctx context.Context, pocUID, code string, kind CommentKind, text string) (*FeedbackResponse, error) {
	var out FeedbackResponse
	body := struct {
		POCUID      string      `json:"poc_uid"`
		UseCaseCode string      `json:"use_case_code"`
		Text        string      `json:"text"`
		Kind        CommentKind `json:"kind,omitempty"`
	}{pocUID, code, text, kind}
	if err := c.do(ctx, http.MethodPost, "/api/v1/feedback", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOutcome patches the outcome fields of a POC.
func (c *Client) UpdateOutcome(ctx context.Context, pocUID string, patch OutcomeUpdate) (*POC, error) {
	var out POC
	if err := c.do(ctx, http.MethodPatch, "/api/v1/pocs/"+url.PathEscape(pocUID), nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Classification returns one POC's derived lifecycle and risk state. A zero
// asOf means now on the server.
func (c *Client) Classification(ctx context.Context, pocUID string, asOf time.Time) (*Classification, error) {
	q := url.Values{}
	if !asOf.IsZero() {
		q.Set("as_of", asOf.UTC().Format(time.RFC3339))
	}
	var out Classification
	path := "/api/v1/pocs/" + url.PathEscape(pocUID) + "/classification"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dashboard evaluates the dashboard for a filter selection. A zero asOf
// means now on the server.
func (c *Client) Dashboard(ctx context.Context, filter DashboardFilter, asOf time.Time) (*DashboardView, error) {
	q := url.Values{}
	for _, v := range filter.Owners {
		q.Add("owner", v)
	}
	for _, v := range filter.Regions {
		q.Add("region", v)
	}
	for _, v := range filter.Products {
		q.Add("product", v)
	}
	for _, v := range filter.Risks {
		q.Add("risk", string(v))
	}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}
	if filter.Category != "" {
		q.Set("category", string(filter.Category))
	}
	if !asOf.IsZero() {
		q.Set("as_of", asOf.UTC().Format(time.RFC3339))
	}

	var out DashboardView
	if err := c.do(ctx, http.MethodGet, "/api/v1/dashboard", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends an authenticated request and decodes a JSON response into out.
// Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		_ = json.Unmarshal(data, apiErr)
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}
	apiErr.Detail = strings.TrimSpace(string(data))
	return apiErr
}
