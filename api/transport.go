package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultRequestTimeout = 30 * time.Second

// Request describes a single HTTP call to the service.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is a raw response body plus its status. Decoding into the page
// envelope or a single object is the caller's concern.
type Response struct {
	Status int
	Body   []byte
}

// Page is the listing envelope the service wraps collections in. Next is a
// continuation URL, empty on the last page.
type Page struct {
	Items []json.RawMessage `json:"Items"`
	Next  string            `json:"Next,omitempty"`
}

// Transport issues a single HTTP request and returns a parsed response or a
// typed failure. It performs no retries and holds no business logic.
type Transport struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
}

// NewTransport builds a transport for the given instance. The token is
// injected as a bearer credential on every request; the transport treats it
// as opaque.
func NewTransport(baseURL, token string, timeout time.Duration) (*Transport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q is missing scheme or host", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Transport{
		baseURL:    u,
		httpClient: newAuthenticatedClient(token, otelhttp.DefaultClient),
		timeout:    timeout,
	}, nil
}

// authenticatedTransport adds the Authorization header and a per-request
// correlation id, then calls the underlying round-tripper.
type authenticatedTransport struct {
	from  http.RoundTripper
	token string
}

// newAuthenticatedClient wraps the given client so every request carries
// credentials and otel instrumentation.
func newAuthenticatedClient(token string, from *http.Client) *http.Client {
	return &http.Client{
		Transport: &authenticatedTransport{
			from:  from.Transport,
			token: token,
		},
		CheckRedirect: from.CheckRedirect,
		Jar:           from.Jar,
		Timeout:       from.Timeout,
	}
}

func (t *authenticatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	from := t.from
	if from == nil {
		from = http.DefaultTransport
	}
	return from.RoundTrip(req)
}

// Do executes one request under the per-request timeout. Non-2xx responses
// are returned as *APIError with the remote message attached.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	u := *t.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + req.Path
	if req.Query != nil {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing %v %v: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(req.Method, req.Path, resp.StatusCode, respBody)
	}

	return &Response{
		Status: resp.StatusCode,
		Body:   respBody,
	}, nil
}
