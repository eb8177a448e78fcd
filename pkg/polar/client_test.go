package polar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Error("missing or incorrect Authorization header")
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Error("missing or incorrect Accept header")
		}
		if r.Header.Get("X-Extra") != "yes" {
			t.Error("caller-supplied header was dropped")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	client := NewWithBaseURL(server.URL)

	body, err := client.Request(context.Background(), http.MethodGet, "/test", "test-token",
		WithHeader("X-Extra", "yes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"status": "ok"}` {
		t.Errorf("unexpected body %q", string(body))
	}
}

func TestRequestCannotOverrideOwnedHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer real-token" {
			t.Errorf("Authorization header was overridden: %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept header was overridden: %q", r.Header.Get("Accept"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewWithBaseURL(server.URL)

	_, err := client.Request(context.Background(), http.MethodGet, "/test", "real-token",
		WithHeader("Authorization", "Bearer forged"),
		WithHeader("Accept", "text/csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestEmptyBodyIsNil(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"204 no content", http.StatusNoContent},
		{"200 empty body", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewWithBaseURL(server.URL)

			body, err := client.Request(context.Background(), http.MethodGet, "/test", "token")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if body != nil {
				t.Errorf("expected nil body, got %q", string(body))
			}
		})
	}
}

func TestRequestErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "unauthorized"}`))
	}))
	defer server.Close()

	client := NewWithBaseURL(server.URL)

	_, err := client.Request(context.Background(), http.MethodGet, "/test", "bad-token")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}
	if apiErr.Body != `{"error": "unauthorized"}` {
		t.Errorf("response body not preserved verbatim: %q", apiErr.Body)
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		isUnauthorized bool
		isNotFound     bool
		isConflict     bool
	}{
		{"401 Unauthorized", 401, true, false, false},
		{"403 Forbidden", 403, true, false, false},
		{"404 Not Found", 404, false, true, false},
		{"409 Conflict", 409, false, false, true},
		{"500 Internal Server Error", 500, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{StatusCode: tt.statusCode, Body: "test"}

			if got := err.IsUnauthorized(); got != tt.isUnauthorized {
				t.Errorf("IsUnauthorized() = %v, want %v", got, tt.isUnauthorized)
			}
			if got := err.IsNotFound(); got != tt.isNotFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.isNotFound)
			}
			if got := err.IsConflict(); got != tt.isConflict {
				t.Errorf("IsConflict() = %v, want %v", got, tt.isConflict)
			}
		})
	}
}

func TestRequestSingleRoundTrip(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewWithBaseURL(server.URL)

	_, err := client.Request(context.Background(), http.MethodGet, "/test", "token")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("expected exactly one round trip, got %d", calls)
	}
}
