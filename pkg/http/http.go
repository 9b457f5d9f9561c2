// Package http is the fluent, retry-aware client used for every outgoing
// call (payment processor, reCAPTCHA).
//
//	resp, err := http.Post(base + "/v1/products").
//	    BasicAuth(key, "").
//	    Form(url.Values{"name": {"Order #7"}}).
//	    WithContext(ctx).
//	    Send()
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	gohttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/farmshop/storefront/pkg/logger"
)

var defaultTransport = &gohttp.Transport{
	Proxy:               gohttp.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 20,
	IdleConnTimeout:     90 * time.Second,
}

// DefaultClient is shared by all outgoing requests. Tests replace its
// Transport to intercept calls and restore it with ResetTransport.
var DefaultClient = &gohttp.Client{Transport: defaultTransport}

func ResetTransport() {
	DefaultClient.Transport = defaultTransport
}

// Request is a fluent HTTP request builder.
type Request struct {
	method    string
	url       string
	query     url.Values
	headers   gohttp.Header
	body      any
	timeout   time.Duration
	retries   int
	retryWait time.Duration
	ctx       context.Context
}

func Get(u string) *Request    { return newRequest(gohttp.MethodGet, u) }
func Post(u string) *Request   { return newRequest(gohttp.MethodPost, u) }
func Delete(u string) *Request { return newRequest(gohttp.MethodDelete, u) }

func newRequest(method, u string) *Request {
	h := gohttp.Header{}
	h.Set("Accept", "application/json")
	return &Request{
		method:    method,
		url:       u,
		query:     url.Values{},
		headers:   h,
		timeout:   15 * time.Second,
		retries:   1,
		retryWait: 300 * time.Millisecond,
		ctx:       context.Background(),
	}
}

func (r *Request) Header(key, value string) *Request {
	r.headers.Set(key, value)
	return r
}

func (r *Request) Query(key, value string) *Request {
	r.query.Set(key, value)
	return r
}

func (r *Request) Bearer(token string) *Request {
	return r.Header("Authorization", "Bearer "+token)
}

func (r *Request) BasicAuth(user, pass string) *Request {
	req := gohttp.Request{Header: gohttp.Header{}}
	req.SetBasicAuth(user, pass)
	return r.Header("Authorization", req.Header.Get("Authorization"))
}

// Body sets a JSON body. Strings and byte slices are sent as-is.
func (r *Request) Body(v any) *Request {
	r.body = v
	return r
}

// Form sets an application/x-www-form-urlencoded body.
func (r *Request) Form(values url.Values) *Request {
	r.body = values
	return r
}

// Timeout bounds each attempt separately.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Retry sets the total attempt count and the initial backoff, which doubles
// per attempt. Only transport errors and 5xx/429 responses are retried.
func (r *Request) Retry(n int, wait time.Duration) *Request {
	if n < 1 {
		n = 1
	}
	r.retries = n
	r.retryWait = wait
	return r
}

func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// Send executes the request. A non-2xx response is not an error here; use
// Response.Throw for that.
func (r *Request) Send() (*Response, error) {
	var (
		resp    *Response
		lastErr error
		wait    = r.retryWait
	)

	for attempt := 1; attempt <= r.retries; attempt++ {
		resp, lastErr = r.do()
		if lastErr == nil && !retryable(resp.StatusCode) {
			return resp, nil
		}
		if attempt == r.retries {
			break
		}

		logger.WithCtx(r.ctx).Warn("http: retrying request",
			"url", r.url, "attempt", attempt, "backoff", wait, "error", lastErr)
		select {
		case <-time.After(wait):
		case <-r.ctx.Done():
			return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, r.ctx.Err())
		}
		wait *= 2
	}

	if lastErr != nil {
		return nil, fmt.Errorf("http: %d attempt(s) failed for %s %s: %w", r.retries, r.method, r.url, lastErr)
	}
	return resp, nil
}

func retryable(status int) bool {
	return status >= 500 || status == gohttp.StatusTooManyRequests
}

func (r *Request) do() (*Response, error) {
	body, ct, err := r.encodeBody()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	target := r.url
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.query.Encode()
	}

	req, err := gohttp.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	for k, vs := range r.headers {
		req.Header[k] = vs
	}
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Raw: raw}, nil
}

func (r *Request) encodeBody() (io.Reader, string, error) {
	switch v := r.body.(type) {
	case nil:
		return nil, "", nil
	case url.Values:
		return strings.NewReader(v.Encode()), "application/x-www-form-urlencoded", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	case []byte:
		return bytes.NewReader(v), "application/octet-stream", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("http: marshal body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

func (r *Response) JSON(dest any) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode JSON: %w", err)
	}
	return nil
}

func (r *Response) Text() string { return string(r.Raw) }

// StatusError is returned by Throw for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http: request failed with status %d: %s", e.StatusCode, e.Body)
}

// Throw returns a *StatusError if the status is not 2xx.
func (r *Response) Throw() error {
	if r.OK() {
		return nil
	}
	return &StatusError{StatusCode: r.StatusCode, Body: string(r.Raw)}
}
