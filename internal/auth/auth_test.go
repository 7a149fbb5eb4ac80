package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fransolofran/mesita-go/internal/core"
)

func TestTokenSource_LoginSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/getToken" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Username"); got != "bot" {
			t.Errorf("X-Username = %q, want %q", got, "bot")
		}
		if got := r.Header.Get("X-Password"); got != "s3cr3t" {
			t.Errorf("X-Password = %q, want %q", got, "s3cr3t")
		}
		w.Header().Set(AuthHeader, "tok-abc123")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.Client(), srv.URL, Credentials{Username: "bot", Password: "s3cr3t"}, time.Second)
	token, err := ts.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "tok-abc123" {
		t.Errorf("token = %q, want %q", token, "tok-abc123")
	}
	if got := ts.Token(); got != token {
		t.Errorf("Token() = %q, want cached %q", got, token)
	}
}

func TestTokenSource_LoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.Client(), srv.URL, Credentials{Username: "bot", Password: "wrong"}, time.Second)
	_, err := ts.Login(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected credentials")
	}
	var authErr *core.AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("expected core.AuthError, got %T: %v", err, err)
	}
}

func TestTokenSource_LoginServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.Client(), srv.URL, Credentials{Username: "bot", Password: "pw"}, time.Second)
	_, err := ts.Login(context.Background())
	if err == nil {
		t.Fatal("expected error for 5xx response")
	}
	var netErr *core.TransientNetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("expected core.TransientNetworkError, got %T: %v", err, err)
	}
}

func TestTokenSource_LoginMissingTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.Client(), srv.URL, Credentials{Username: "bot", Password: "pw"}, time.Second)
	_, err := ts.Login(context.Background())
	if err == nil {
		t.Fatal("expected error when X-Auth-Token header is absent")
	}
	var authErr *core.AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("expected core.AuthError, got %T: %v", err, err)
	}
}
