// Package postgrest implements repository.Store over a PostgREST-compatible
// REST table API (Supabase and self-hosted PostgREST).
//
// Rows travel in the snake_case storage shape declared in mapping.go; this
// package is the only place that knows about it.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"feedrelay/internal/resilience/circuitbreaker"
)

const (
	mediaJSON         = "application/json"
	mediaSingleObject = "application/vnd.pgrst.object+json"

	preferRepresentation = "return=representation"
	preferMinimal        = "return=minimal"

	maxErrorBody = 64 << 10

	defaultTablePrefix = "wx_"
)

// Config configures the REST table client.
type Config struct {
	// URL is the project origin, e.g. https://xyz.supabase.co. Requests go to {URL}/rest/v1/{table}.
	URL string
	// APIKey is sent as the apikey header.
	APIKey string
	// ServiceRoleKey, when set, is used as the bearer token instead of APIKey.
	ServiceRoleKey string
	// TablePrefix is prepended to the logical table names ("feeds", "articles").
	TablePrefix string
	Timeout     time.Duration
}

// LoadConfigFromEnv reads POSTGREST_URL, POSTGREST_API_KEY,
// POSTGREST_SERVICE_ROLE_KEY, TABLE_PREFIX and POSTGREST_TIMEOUT.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:            os.Getenv("POSTGREST_URL"),
		APIKey:         os.Getenv("POSTGREST_API_KEY"),
		ServiceRoleKey: os.Getenv("POSTGREST_SERVICE_ROLE_KEY"),
		TablePrefix:    defaultTablePrefix,
		Timeout:        10 * time.Second,
	}
	if v, ok := os.LookupEnv("TABLE_PREFIX"); ok {
		cfg.TablePrefix = v
	}
	if v := os.Getenv("POSTGREST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("POSTGREST_TIMEOUT %q must be a positive duration", v)
		}
		cfg.Timeout = d
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields required to reach the API.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("POSTGREST_URL is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("POSTGREST_URL %q is not an absolute http(s) URL", c.URL)
	}
	if c.APIKey == "" && c.ServiceRoleKey == "" {
		return errors.New("POSTGREST_API_KEY or POSTGREST_SERVICE_ROLE_KEY is required")
	}
	return nil
}

// Client issues table requests. It is safe for concurrent use and is meant
// to be created once per process.
type Client struct {
	baseURL    string
	apiKey     string
	bearer     string
	prefix     string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient builds a client. httpClient may be nil to use a default with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	bearer := cfg.ServiceRoleKey
	if bearer == "" {
		bearer = cfg.APIKey
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = bearer
	}

	cbCfg := circuitbreaker.TableAPIConfig()
	cbCfg.IsSuccessful = isBreakerSuccess

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/rest/v1/",
		apiKey:     apiKey,
		bearer:     bearer,
		prefix:     cfg.TablePrefix,
		httpClient: httpClient,
		breaker:    circuitbreaker.New(cbCfg),
	}
}

// CircuitBreaker exposes the breaker guarding table calls.
func (c *Client) CircuitBreaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Table returns the physical table name for a logical one.
func (c *Client) Table(name string) string {
	return c.prefix + name
}

// request describes one table call.
type request struct {
	method string
	table  string
	query  url.Values
	body   any
	// single asks for exactly one object; zero rows yields PGRST116.
	single bool
	prefer string
}

// do executes req and decodes a successful response body into out (if non-nil).
func (c *Client) do(ctx context.Context, req request, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, req, out)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, req request, out any) error {
	endpoint := c.baseURL + url.PathEscape(req.table)
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", req.table, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", req.method, req.table, err)
	}
	httpReq.Header.Set("apikey", c.apiKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.bearer)
	if body != nil {
		httpReq.Header.Set("Content-Type", mediaJSON)
	}
	if req.single {
		httpReq.Header.Set("Accept", mediaSingleObject)
	} else {
		httpReq.Header.Set("Accept", mediaJSON)
	}
	if req.prefer != "" {
		httpReq.Header.Set("Prefer", req.prefer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.method, req.table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.table, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// isBreakerSuccess keeps expected outcomes (missing rows, conflicts, bad
// filters) from tripping the breaker; only transport and 5xx failures count.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < 500
	}
	return errors.Is(err, context.Canceled)
}
