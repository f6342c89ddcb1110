package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrDone signals the end of a search result sequence.
var ErrDone = errors.New("catalog: no more results")

// searchPageSize bounds how many results a single search request asks for.
const searchPageSize = 40

// ClientConfig configures the HTTP catalog client.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	HTTPClient        *http.Client
}

// ApplyDefaults fills in default values.
func (c *ClientConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.virustotal.com/api/v3"
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 240
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
}

// Validate checks configuration.
func (c *ClientConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("catalog: API key is required")
	}
	return nil
}

// Client talks to the remote intelligence service. Every call is a single
// attempt; the caller decides whether a failure aborts or skips. Requests are
// gated by a client-side limiter so a run stays inside the account quota.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a catalog client.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    cfg.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		logger:  logger,
	}, nil
}

// envelope is the common response wrapper of the v3 API.
type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		Cursor string `json:"cursor"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do issues one rate-limited request and returns the raw response. Error
// responses are decoded into an *APIError.
func (c *Client) do(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Error == nil {
			return nil, fmt.Errorf("catalog: HTTP %d with unreadable error body", resp.StatusCode)
		}
		return nil, &APIError{Code: env.Error.Code, Message: env.Error.Message, Status: resp.StatusCode}
	}

	return resp, nil
}

// getJSON issues a request and decodes the response envelope.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (*envelope, error) {
	resp, err := c.do(ctx, path, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("catalog: decoding response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, errors.New("catalog: response did not contain valid data")
	}
	return &env, nil
}

// GetObject looks up a single artifact by identifier.
func (c *Client) GetObject(ctx context.Context, id string) (*Object, error) {
	env, err := c.getJSON(ctx, "/files/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	obj, err := decodeObject(env.Data)
	if err != nil {
		return nil, fmt.Errorf("catalog: decoding object %s: %w", id, err)
	}
	return obj, nil
}

// GetBehavior fetches the behavior-analysis collection for a file artifact.
// The payload is returned verbatim so it can be persisted unmodified.
func (c *Client) GetBehavior(ctx context.Context, id string) (Report, error) {
	env, err := c.getJSON(ctx, "/files/"+url.PathEscape(id)+"/behaviours", nil)
	if err != nil {
		return nil, err
	}
	return Report(env.Data), nil
}

// DownloadTo streams the raw binary content of a file artifact into sink.
func (c *Client) DownloadTo(ctx context.Context, id string, sink io.Writer) error {
	resp, err := c.do(ctx, "/files/"+url.PathEscape(id)+"/download", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if _, err := io.Copy(sink, resp.Body); err != nil {
		return fmt.Errorf("catalog: downloading %s: %w", id, err)
	}
	return nil
}

// Iterator yields search results one at a time. Next returns ErrDone when
// the bounded sequence is exhausted.
type Iterator interface {
	Next(ctx context.Context) (*Object, error)
}

// SearchIterator pages lazily through an intelligence search.
type SearchIterator struct {
	client    *Client
	query     string
	remaining int
	cursor    string
	buf       []*Object
	done      bool
}

// Search starts an intelligence search returning at most limit results.
// No request is issued until the first call to Next.
func (c *Client) Search(ctx context.Context, query string, limit int) Iterator {
	return &SearchIterator{client: c, query: query, remaining: limit}
}

// Next returns the next search result, fetching a new page when the buffered
// one is exhausted.
func (it *SearchIterator) Next(ctx context.Context) (*Object, error) {
	if it.done && len(it.buf) == 0 {
		return nil, ErrDone
	}

	if len(it.buf) == 0 {
		if err := it.fetchPage(ctx); err != nil {
			it.done = true
			return nil, err
		}
		if len(it.buf) == 0 {
			it.done = true
			return nil, ErrDone
		}
	}

	obj := it.buf[0]
	it.buf = it.buf[1:]
	it.remaining--
	if it.remaining <= 0 {
		it.done = true
		it.buf = nil
	}
	return obj, nil
}

func (it *SearchIterator) fetchPage(ctx context.Context) error {
	if it.remaining <= 0 {
		it.done = true
		return nil
	}

	size := it.remaining
	if size > searchPageSize {
		size = searchPageSize
	}

	query := url.Values{}
	query.Set("query", it.query)
	query.Set("limit", strconv.Itoa(size))
	if it.cursor != "" {
		query.Set("cursor", it.cursor)
	}

	env, err := it.client.getJSON(ctx, "/intelligence/search", query)
	if err != nil {
		return err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return fmt.Errorf("catalog: decoding search page: %w", err)
	}

	for _, item := range items {
		obj, err := decodeObject(item)
		if err != nil {
			return fmt.Errorf("catalog: decoding search result: %w", err)
		}
		it.buf = append(it.buf, obj)
	}

	it.cursor = env.Meta.Cursor
	if it.cursor == "" {
		it.done = true
	}
	return nil
}
