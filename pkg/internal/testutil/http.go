// Package testutil provides mock implementations and testing utilities for the riskboard packages.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockHTTPDoer implements github.HTTPDoer for testing.
// It's programmable - you can configure responses for specific requests.
type MockHTTPDoer struct {
	responses map[string]mockResponse
	errors    map[string]error
	calls     []HTTPCall
	mu        sync.RWMutex
}

type mockResponse struct {
	header http.Header
	body   []byte
	status int
}

// HTTPCall records a single HTTP call.
type HTTPCall struct {
	Header http.Header
	Method string
	URL    string
	Body   []byte
}

// NewMockHTTPDoer creates a new MockHTTPDoer.
func NewMockHTTPDoer() *MockHTTPDoer {
	return &MockHTTPDoer{
		responses: make(map[string]mockResponse),
		errors:    make(map[string]error),
		calls:     []HTTPCall{},
	}
}

// Do executes the HTTP request and returns the configured response.
// Unconfigured requests get a 404.
func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	m.calls = append(m.calls, HTTPCall{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	key := m.makeKey(req.Method, req.URL.String())

	if err, ok := m.errors[key]; ok {
		return nil, err
	}

	if r, ok := m.responses[key]; ok {
		return &http.Response{
			StatusCode: r.status,
			Status:     fmt.Sprintf("%d %s", r.status, http.StatusText(r.status)),
			Body:       io.NopCloser(bytes.NewReader(r.body)),
			Header:     r.header.Clone(),
			Request:    req,
		}, nil
	}

	return &http.Response{
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Body:       io.NopCloser(strings.NewReader(`{"message":"Not Found"}`)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// SetResponse configures a response for a specific method and URL.
// body is JSON-encoded unless it is already a string or []byte.
func (m *MockHTTPDoer) SetResponse(method, url string, statusCode int, body any) {
	m.SetResponseWithHeader(method, url, statusCode, nil, body)
}

// SetResponseWithHeader is SetResponse with response headers.
func (m *MockHTTPDoer) SetResponseWithHeader(method, url string, statusCode int, header http.Header, body any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var bodyBytes []byte
	switch b := body.(type) {
	case nil:
	case string:
		bodyBytes = []byte(b)
	case []byte:
		bodyBytes = b
	default:
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			panic(fmt.Sprintf("failed to marshal response body: %v", err))
		}
	}
	if header == nil {
		header = make(http.Header)
	}

	m.responses[m.makeKey(method, url)] = mockResponse{status: statusCode, header: header, body: bodyBytes}
}

// SetError configures an error for a specific method and URL.
func (m *MockHTTPDoer) SetError(method, url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errors[m.makeKey(method, url)] = err
}

// Calls returns all recorded HTTP calls.
func (m *MockHTTPDoer) Calls() []HTTPCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]HTTPCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how many requests were made to method and url.
func (m *MockHTTPDoer) CallCount(method, url string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, c := range m.calls {
		if c.Method == method && c.URL == url {
			n++
		}
	}
	return n
}

// Reset clears all configured responses and recorded calls.
func (m *MockHTTPDoer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses = make(map[string]mockResponse)
	m.errors = make(map[string]error)
	m.calls = []HTTPCall{}
}

func (*MockHTTPDoer) makeKey(method, url string) string {
	return method + ":" + url
}
