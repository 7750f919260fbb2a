package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// NotAvailable is the placeholder OMDb returns for fields it has no data for.
const NotAvailable = "N/A"

// ErrUnauthorized indicates a rejected API key or an exhausted request quota.
// Callers should stop issuing requests for the rest of the run.
var ErrUnauthorized = errors.New("omdb: unauthorized or request limit reached")

// StatusError reports a non-success HTTP status from the OMDb endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("omdb request returned %d", e.StatusCode)
}

// Payload models a single OMDb title record.
type Payload struct {
	Title     string `json:"Title"`
	Year      string `json:"Year"`
	Director  string `json:"Director"`
	Plot      string `json:"Plot"`
	BoxOffice string `json:"BoxOffice"`
	IMDbID    string `json:"imdbID"`
	Response  string `json:"Response"`
	Error     string `json:"Error"`
}

// ParsedYear returns the numeric year when the payload carries one.
func (p *Payload) ParsedYear() (int, bool) {
	raw := strings.TrimSpace(p.Year)
	// Series payloads use ranges like "1995-1998"; take the opening year.
	if idx := strings.IndexAny(raw, "-–"); idx > 0 {
		raw = raw[:idx]
	}
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return year, true
}

// SearchResult is one candidate from a ranked title search.
type SearchResult struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	IMDbID string `json:"imdbID"`
}

type searchResponse struct {
	Search   []SearchResult `json:"Search"`
	Response string         `json:"Response"`
	Error    string         `json:"Error"`
}

// Lookuper defines the OMDb operations used by enrichment.
type Lookuper interface {
	ByTitle(ctx context.Context, title string, year int) (*Payload, error)
	Search(ctx context.Context, title string, year int) ([]SearchResult, error)
	ByID(ctx context.Context, imdbID string) (*Payload, error)
}

// Client provides access to the OMDb API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Lookuper = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates an OMDb client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("omdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("omdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ByTitle performs an exact title lookup. A nil payload with a nil error is a
// definitive not-found response.
func (c *Client) ByTitle(ctx context.Context, title string, year int) (*Payload, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}
	params := url.Values{}
	params.Set("t", title)
	params.Set("plot", "short")
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}

	var payload Payload
	if err := c.get(ctx, params, &payload); err != nil {
		return nil, err
	}
	if !isTrue(payload.Response) {
		return nil, classifyFalseResponse(payload.Error)
	}
	return &payload, nil
}

// Search performs a ranked title search. An empty slice with a nil error is a
// definitive not-found response.
func (c *Client) Search(ctx context.Context, title string, year int) ([]SearchResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}
	params := url.Values{}
	params.Set("s", title)
	params.Set("type", "movie")
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}

	var payload searchResponse
	if err := c.get(ctx, params, &payload); err != nil {
		return nil, err
	}
	if !isTrue(payload.Response) {
		return nil, classifyFalseResponse(payload.Error)
	}
	return payload.Search, nil
}

// ByID fetches the full record for an IMDb identifier.
func (c *Client) ByID(ctx context.Context, imdbID string) (*Payload, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, errors.New("imdb id must not be empty")
	}
	params := url.Values{}
	params.Set("i", imdbID)
	params.Set("plot", "short")

	var payload Payload
	if err := c.get(ctx, params, &payload); err != nil {
		return nil, err
	}
	if !isTrue(payload.Response) {
		return nil, classifyFalseResponse(payload.Error)
	}
	return &payload, nil
}

func (c *Client) get(ctx context.Context, params url.Values, target any) error {
	endpoint, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return fmt.Errorf("parse omdb url: %w", err)
	}
	params.Set("apikey", c.apiKey)
	params.Set("r", "json")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode omdb response: %w", err)
	}
	return nil
}

func isTrue(response string) bool {
	return strings.EqualFold(strings.TrimSpace(response), "True")
}

// classifyFalseResponse separates quota exhaustion (surfaced inside a 200
// body by OMDb) from an ordinary not-found, which is reported as nil error.
func classifyFalseResponse(message string) error {
	if strings.Contains(strings.ToLower(message), "limit") {
		return ErrUnauthorized
	}
	return nil
}
