package polar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// BaseURL is the Polar AccessLink data API root.
	BaseURL = "https://www.polaraccesslink.com/v3"
	// AuthURL is the Polar Flow authorization endpoint.
	AuthURL = "https://flow.polar.com/oauth2/authorization"
	// TokenURL is the Polar OAuth2 token endpoint.
	TokenURL = "https://polarremote.com/v2/oauth2/token"

	defaultTimeout = 30 * time.Second
)

// Client is the Polar AccessLink API client. It holds no credentials;
// the access token is supplied per call, since the hosted deployment
// serves many users through one client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a new AccessLink client against the production API.
func New() *Client {
	return NewWithBaseURL(BaseURL)
}

// NewWithBaseURL creates a client against a custom API root. Used by tests.
func NewWithBaseURL(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
	}
}

// RequestOption customizes a single API request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers map[string]string
	body    any
}

// WithHeader adds a header to the request. The Authorization and Accept
// headers are always owned by the client and cannot be overridden.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

// WithJSONBody attaches a JSON-encoded request body.
func WithJSONBody(v any) RequestOption {
	return func(o *requestOptions) {
		o.body = v
	}
}

// Request performs a single authenticated API call and returns the raw JSON
// response body. A 204 or empty body yields a nil result with no error;
// several AccessLink endpoints answer that way when there is no data yet.
// Exactly one HTTP round trip happens per call, never more.
func (c *Client) Request(ctx context.Context, method, path, token string, opts ...RequestOption) (json.RawMessage, error) {
	options := requestOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var bodyReader io.Reader
	if options.body != nil {
		data, err := json.Marshal(options.body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for key, value := range options.headers {
		req.Header.Set(key, value)
	}
	if options.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Set last so callers cannot override them.
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if len(body) == 0 {
		return nil, nil
	}

	return json.RawMessage(body), nil
}

// APIError represents a non-success response from the AccessLink API.
// The status code and the verbatim response body are preserved so callers
// can tell an authentication failure from a missing resource.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("accesslink error (status %d): %s", e.StatusCode, e.Body)
}

// IsUnauthorized returns true for 401 and 403 responses.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound returns true for 404 responses.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict returns true for 409 responses.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}
