//go:build functional

// Package functional provides functional tests for the items API and its change feed.
package functional

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/simple-api/internal/config"
	"github.com/vyrodovalexey/simple-api/internal/handler"
	"github.com/vyrodovalexey/simple-api/internal/model"
	"github.com/vyrodovalexey/simple-api/internal/server"
	"github.com/vyrodovalexey/simple-api/internal/store"
)

// Environment variable names for test configuration.
const (
	EnvTestServerHost = "TEST_SERVER_HOST"
	EnvTestLogLevel   = "TEST_LOG_LEVEL"
)

// Default test configuration values.
const (
	DefaultTestHost         = "127.0.0.1"
	DefaultTestTimeout      = 30 * time.Second
	DefaultRequestTimeout   = 5 * time.Second
	DefaultWebSocketTimeout = 10 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second
)

// TestServer wraps a running server backed by a fresh memory store.
type TestServer struct {
	Server  *server.Server
	Store   *store.MemoryStore
	BaseURL string
	WSURL   string

	listener net.Listener
	t        *testing.T
	mu       sync.Mutex
	started  bool
	done     chan error
}

// NewTestServer creates a server listening on a free port.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	host := DefaultTestHost
	if v := os.Getenv(EnvTestServerHost); v != "" {
		host = v
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	cfg := &config.Config{
		ServerPort:         port,
		LogLevel:           "error",
		ShutdownTimeout:    DefaultShutdownTimeout,
		EventsEnabled:      true,
		CORSAllowedOrigins: []string{"*"},
	}

	logger := zap.NewNop()
	if os.Getenv(EnvTestLogLevel) == "debug" {
		logger, _ = zap.NewDevelopment()
	}

	itemStore := store.NewMemoryStore()

	return &TestServer{
		Server:   server.New(cfg, logger, itemStore),
		Store:    itemStore,
		BaseURL:  fmt.Sprintf("http://%s:%d", host, port),
		WSURL:    fmt.Sprintf("ws://%s:%d%s", host, port, handler.EventsPath),
		listener: listener,
		t:        t,
		done:     make(chan error, 1),
	}
}

// Start serves on the reserved listener and waits until the server answers.
func (ts *TestServer) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return
	}

	go func() {
		ts.done <- ts.Server.Serve(ts.listener)
	}()

	ts.waitForReady()
	ts.started = true
}

func (ts *TestServer) waitForReady() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ts.t.Fatalf("Server did not become ready within timeout")
		case <-ticker.C:
			resp, err := http.Get(ts.BaseURL + "/health")
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return
				}
			}
		}
	}
}

// Stop shuts the server down and waits for Serve to return.
func (ts *TestServer) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := ts.Server.Shutdown(ctx); err != nil {
		ts.t.Logf("Server shutdown error: %v", err)
	}
	if err := <-ts.done; err != nil {
		ts.t.Logf("Server error: %v", err)
	}

	ts.started = false
}

// HTTPClient provides a configured HTTP client for tests.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a new HTTP client for testing.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: DefaultRequestTimeout},
		baseURL: baseURL,
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Do executes an HTTP request. Body may be a string, a byte slice or any
// value that is JSON encoded.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			bodyReader = bytes.NewBufferString(v)
		case []byte:
			bodyReader = bytes.NewBuffer(v)
		default:
			jsonBody, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewBuffer(jsonBody)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, nil)
}

// Post performs a POST request.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, nil)
}

// Put performs a PUT request.
func (c *HTTPClient) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, nil)
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// ItemRequest is the body sent to create and update items.
type ItemRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Price       float64 `json:"price"`
	OnOffer     bool    `json:"on_offer"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// ParseItem decodes a single item body.
func ParseItem(t *testing.T, body []byte) model.Item {
	t.Helper()

	var item model.Item
	if err := json.Unmarshal(body, &item); err != nil {
		t.Fatalf("Failed to parse item: %v. Body: %s", err, body)
	}
	return item
}

// ParseItems decodes the id-keyed item map.
func ParseItems(t *testing.T, body []byte) map[string]model.Item {
	t.Helper()

	var items map[string]model.Item
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatalf("Failed to parse items: %v. Body: %s", err, body)
	}
	return items
}

// CreateItem posts req and returns the created item.
func CreateItem(t *testing.T, client *HTTPClient, req ItemRequest) model.Item {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
	defer cancel()

	resp, err := client.Post(ctx, "/items", req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	AssertStatusCode(t, resp, http.StatusOK)
	return ParseItem(t, resp.Body)
}

// AssertStatusCode asserts that the response has the expected status code.
func AssertStatusCode(t *testing.T, resp *Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

// AssertNotFound asserts a 404 with the standard detail body.
func AssertNotFound(t *testing.T, resp *Response) {
	t.Helper()
	AssertStatusCode(t, resp, http.StatusNotFound)

	var body model.ErrorResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("Failed to parse error response: %v", err)
	}
	if body.Detail != model.NotFoundMessage {
		t.Errorf("Expected detail %q, got %q", model.NotFoundMessage, body.Detail)
	}
}

// LogTestStart logs the start of a test.
func LogTestStart(t *testing.T, testID, testName string) {
	t.Helper()
	t.Logf("Starting test %s: %s", testID, testName)
}

// LogTestEnd logs the end of a test.
func LogTestEnd(t *testing.T, testID string) {
	t.Helper()
	t.Logf("Completed test %s", testID)
}
