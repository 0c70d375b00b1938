package popup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a remote request when neither the request nor the
// HTTP client sets one.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response is read.
const maxBodySize = 4 << 20

// RemoteError describes a failed remote content request.
type RemoteError struct {
	URL    string
	Status int // 0 when no response was received
	Cause  error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Status != 0 && e.Cause != nil:
		return fmt.Sprintf("remote %s: status %d: %v", e.URL, e.Status, e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("remote %s: status %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("remote %s: %v", e.URL, e.Cause)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Cause
}

// HTTPTransport fetches mutations over HTTP and decodes them from JSON.
type HTTPTransport struct {
	client *http.Client
	logger *slog.Logger
	sync   bool
}

// NewHTTPTransport creates a transport. A nil client uses http.DefaultClient.
func NewHTTPTransport(client *http.Client, logger *slog.Logger) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTransport{client: client, logger: logger}
}

// Synchronous returns a copy of t whose Send blocks and completes on the
// calling goroutine.
func (t *HTTPTransport) Synchronous() *HTTPTransport {
	c := *t
	c.sync = true
	return &c
}

// Async reports whether Send completes on another goroutine.
func (t *HTTPTransport) Async() bool { return !t.sync }

// Send implements Transport. Unless t is synchronous the request runs on
// its own goroutine.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) {
	if req.OnBeforeSend != nil && !req.OnBeforeSend(req) {
		return
	}
	if t.sync {
		t.complete(ctx, req)
		return
	}
	go t.complete(ctx, req)
}

func (t *HTTPTransport) complete(ctx context.Context, req *Request) {
	m, err := t.Do(ctx, req)
	if err != nil {
		if req.OnError != nil {
			req.OnError(err)
		}
	} else if req.OnSuccess != nil {
		req.OnSuccess(m)
	}
	if req.OnComplete != nil {
		req.OnComplete()
	}
}

// Do performs the request synchronously.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Mutation, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, &RemoteError{URL: req.URL, Cause: err}
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	timeout := req.Timeout
	if timeout == 0 && t.client.Timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, &RemoteError{URL: u.String(), Cause: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")

	t.logger.Debug("fetching remote popup content", "method", method, "url", u.String())

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &RemoteError{URL: u.String(), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &RemoteError{URL: u.String(), Status: resp.StatusCode}
	}

	var m Mutation
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&m); err != nil {
		return nil, &RemoteError{URL: u.String(), Status: resp.StatusCode, Cause: fmt.Errorf("failed to decode mutation: %w", err)}
	}
	return &m, nil
}
