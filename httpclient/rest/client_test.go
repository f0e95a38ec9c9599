package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/kbukum/meshkit/discovery"
	"github.com/kbukum/meshkit/httpclient"
	"github.com/kbukum/meshkit/logger"
	"github.com/kbukum/meshkit/testutil"
)

type testUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	reg, err := discovery.NewRegistry(discovery.Config{}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	srv := testutil.NewInstanceServer(t)
	srv.Handle(h)
	if err := reg.RegisterService(discovery.ServiceInstance{
		ID: "u1", Name: "users", Host: srv.Host(), Port: srv.Port(),
	}); err != nil {
		t.Fatal(err)
	}
	c, err := httpclient.NewResilient(httpclient.Config{RetryDelay: time.Millisecond}, reg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return New(c)
}

func TestGet_DecodesJSON(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/users/1" {
			t.Errorf("expected /users/1, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Accept"); ct != "application/json" {
			t.Errorf("expected Accept: application/json, got %s", ct)
		}
		_ = json.NewEncoder(w).Encode(testUser{Name: "Alice", Email: "alice@example.com"})
	})

	resp, err := Get[testUser](context.Background(), c, "users", "/users/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Data.Name != "Alice" {
		t.Errorf("expected Alice, got %s", resp.Data.Name)
	}
	if resp.StatusCode != 200 || resp.InstanceID != "u1" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestPost_SendsBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var user testUser
		_ = json.NewDecoder(r.Body).Decode(&user)
		user.Email = "bob@example.com"
		w.WriteHeader(201)
		_ = json.NewEncoder(w).Encode(user)
	})

	resp, err := Post[testUser](context.Background(), c, "users", "/users", testUser{Name: "Bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 201 || resp.Data.Email != "bob@example.com" || resp.Data.Name != "Bob" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestClient_Methods(t *testing.T) {
	tests := []struct {
		method string
		call   func(c *Client) error
	}{
		{http.MethodPut, func(c *Client) error {
			_, err := Put[testUser](context.Background(), c, "users", "/users/1", testUser{})
			return err
		}},
		{http.MethodPatch, func(c *Client) error {
			_, err := Patch[testUser](context.Background(), c, "users", "/users/1", testUser{})
			return err
		}},
		{http.MethodDelete, func(c *Client) error {
			_, err := Delete[struct{}](context.Background(), c, "users", "/users/1")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.method {
					t.Errorf("expected %s, got %s", tt.method, r.Method)
				}
				w.WriteHeader(http.StatusNoContent)
			})
			if err := tt.call(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGet_WithQueryAndHeaders(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("expected page=2, got %q", got)
		}
		if got := r.Header.Get("X-Tenant"); got != "acme" {
			t.Errorf("expected X-Tenant=acme, got %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("WithHeaders must keep Accept, got %q", got)
		}
		if got := r.Header.Get(httpclient.HeaderCorrelationID); got != "corr-9" {
			t.Errorf("expected correlation id, got %q", got)
		}
		_ = json.NewEncoder(w).Encode([]testUser{})
	})

	_, err := Get[[]testUser](context.Background(), c, "users", "/users",
		WithQuery(map[string]string{"page": "2"}),
		WithHeaders(map[string]string{"X-Tenant": "acme"}),
		WithCorrelationID("corr-9"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGet_ErrorResponse_StillDecodesBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "missing"})
	})

	resp, err := Get[testUser](context.Background(), c, "users", "/users/9", WithRetries(0))
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if resp == nil || resp.StatusCode != 404 || resp.Data.Name != "missing" {
		t.Errorf("expected the error body to be decoded, got %+v", resp)
	}
}

func TestGet_Fallback(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	resp, err := Get[testUser](context.Background(), c, "users", "/users/1",
		WithRetries(0), WithTimeout(time.Second), WithFallback(testUser{Name: "cached"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Fallback || resp.Data.Name != "cached" {
		t.Errorf("unexpected fallback response %+v", resp)
	}
}

func TestGet_UnknownService(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := Get[testUser](context.Background(), c, "ghost", "/")
	if !IsNoInstance(err) {
		t.Fatalf("expected no instance, got %v", err)
	}
}
