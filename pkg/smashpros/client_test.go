package smashpros

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// mockServer creates a test server that checks the request path and replies with body
func mockServer(t *testing.T, expectedPath string, status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		if r.URL.EscapedPath() != expectedPath {
			t.Errorf("Expected path %s, got %s", expectedPath, r.URL.EscapedPath())
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Expected Accept application/json, got %s", r.Header.Get("Accept"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

// newTestClient creates a client configured for testing
func newTestClient(baseURL string) *Client {
	return NewClient(&ClientConfig{
		BaseURL:    baseURL + "/api/users",
		Timeout:    5 * time.Second,
		RetryCount: 1,
	})
}

func TestPlayerData_PassThrough(t *testing.T) {
	server := mockServer(t, "/api/users/foo", http.StatusOK, `{"name":"foo"}`)
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.PlayerData(context.Background(), "foo")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"name":"foo"}` {
		t.Errorf("Expected body to pass through unchanged, got %s", resp.Body)
	}
}

func TestPlayerData_EscapesTag(t *testing.T) {
	server := mockServer(t, "/api/users/a%20b%2Fc", http.StatusOK, `{}`)
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.PlayerData(context.Background(), "a b/c"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestPlayerData_EmptyTag(t *testing.T) {
	server := mockServer(t, "/api/users/", http.StatusOK, `{"message":"listing"}`)
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.PlayerData(context.Background(), "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(resp.Body) != `{"message":"listing"}` {
		t.Errorf("Unexpected body %s", resp.Body)
	}
}

func TestPlayerWinsLosses(t *testing.T) {
	server := mockServer(t, "/api/users/1234/wins-losses", http.StatusOK, `{"wins":12,"losses":4}`)
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.PlayerWinsLosses(context.Background(), "1234")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(resp.Body) != `{"wins":12,"losses":4}` {
		t.Errorf("Unexpected body %s", resp.Body)
	}
}

func TestNonSuccessJSONIsReturned(t *testing.T) {
	server := mockServer(t, "/api/users/ghost", http.StatusNotFound, `{"error":"User not found"}`)
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.PlayerData(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Expected no error for a JSON 404, got %v", err)
	}
	if resp.OK() {
		t.Error("Expected OK() to be false for 404")
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestInvalidJSON(t *testing.T) {
	server := mockServer(t, "/api/users/foo", http.StatusBadGateway, `<html>bad gateway</html>`)
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.PlayerData(context.Background(), "foo")

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if apiErr.Kind != KindInvalidResponse {
		t.Errorf("Expected KindInvalidResponse, got %s", apiErr.Kind)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected status 502 recorded, got %d", apiErr.StatusCode)
	}
}

func TestEmptyBodyIsInvalid(t *testing.T) {
	server := mockServer(t, "/api/users/foo", http.StatusOK, ``)
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.PlayerData(context.Background(), "foo")

	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindInvalidResponse {
		t.Fatalf("Expected KindInvalidResponse, got %v", err)
	}
}

func TestUnavailable(t *testing.T) {
	server := mockServer(t, "/api/users/foo", http.StatusOK, `{}`)
	url := server.URL
	server.Close()

	client := NewClient(&ClientConfig{
		BaseURL:    url + "/api/users",
		Timeout:    time.Second,
		RetryCount: 2,
	})
	_, err := client.PlayerData(context.Background(), "foo")

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if apiErr.Kind != KindUnavailable {
		t.Errorf("Expected KindUnavailable, got %s", apiErr.Kind)
	}
}

func TestRetryOnlyOnTransportErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{BaseURL: server.URL, RetryCount: 3})
	resp, err := client.PlayerData(context.Background(), "foo")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500 relayed, got %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected exactly one call, got %d", n)
	}
}

func TestContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.PlayerData(ctx, "foo")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindUnavailable {
		t.Fatalf("Expected KindUnavailable on cancellation, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected wrapped context.DeadlineExceeded, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	client := NewClient(&ClientConfig{})
	if client.BaseURL() != DefaultBaseURL {
		t.Errorf("Expected default base URL, got %s", client.BaseURL())
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("Expected 30s default timeout, got %v", client.httpClient.Timeout)
	}

	client = NewClient(&ClientConfig{BaseURL: "http://example.test/api/users/"})
	if client.BaseURL() != "http://example.test/api/users" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.BaseURL())
	}
}
