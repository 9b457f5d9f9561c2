package testkit

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	shophttp "github.com/farmshop/storefront/pkg/http"
)

// MockTransport is an http.RoundTripper that answers outgoing calls from a
// list of canned responses instead of the network.
//
//	mt := testkit.NewMockTransport(true)
//	mt.On(http.MethodPost, "https://api.stripe.com/v1/products", 200, `{"id":"prod_1"}`)
//	mt.Install(t)
type MockTransport struct {
	mu      sync.Mutex
	steps   []*mockEntry
	calls   []Call
	require bool
}

type mockEntry struct {
	step  MockStep
	count int
}

// Call is one intercepted outgoing request.
type Call struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// NewMockTransport returns an empty transport. With require set, a request
// no step matches fails; otherwise it gets a 404.
func NewMockTransport(require bool) *MockTransport {
	return &MockTransport{require: require}
}

// On registers a canned response for method (empty matches any) and URL
// prefix. Earlier steps win.
func (mt *MockTransport) On(method, urlPrefix string, status int, body string) *MockTransport {
	return mt.Add(MockStep{
		Method:     method,
		MatchURL:   urlPrefix,
		ReturnData: MockReturnData{StatusCode: status, Body: []byte(body)},
	})
}

func (mt *MockTransport) Add(step MockStep) *MockTransport {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.steps = append(mt.steps, &mockEntry{step: step})
	return mt
}

// Install puts mt on the shared outgoing client for the duration of t.
func (mt *MockTransport) Install(t testing.TB) *MockTransport {
	t.Helper()
	shophttp.DefaultClient.Transport = mt
	t.Cleanup(shophttp.ResetTransport)
	return mt
}

func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		_ = req.Body.Close()
		body = string(raw)
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.calls = append(mt.calls, Call{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	for _, e := range mt.steps {
		if e.step.Method != "" && !strings.EqualFold(e.step.Method, req.Method) {
			continue
		}
		if !strings.HasPrefix(req.URL.String(), e.step.MatchURL) {
			continue
		}
		e.count++
		return buildResponse(req, e.step.ReturnData), nil
	}

	if mt.require {
		return nil, fmt.Errorf("testkit: unexpected outgoing call %s %s", req.Method, req.URL)
	}
	return buildResponse(req, MockReturnData{StatusCode: http.StatusNotFound, Body: []byte(`{"error":"no mock configured"}`)}), nil
}

// Calls returns every intercepted request in order.
func (mt *MockTransport) Calls() []Call {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := make([]Call, len(mt.calls))
	copy(out, mt.calls)
	return out
}

// Uncalled lists the steps that never matched a request.
func (mt *MockTransport) Uncalled() []MockStep {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	var out []MockStep
	for _, e := range mt.steps {
		if e.count == 0 {
			out = append(out, e.step)
		}
	}
	return out
}

func buildResponse(req *http.Request, rd MockReturnData) *http.Response {
	code := rd.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(string(rd.Body))),
		Request:    req,
	}
}
