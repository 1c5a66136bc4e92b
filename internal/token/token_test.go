package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/babelrelay/internal/config"
)

func newTestService(endpoint string) (*Service, *time.Time) {
	s := NewService(config.SpeechTokenConfig{
		Endpoint:        endpoint,
		SubscriptionKey: "secret-key",
		Region:          "westeurope",
		TTL:             9 * time.Minute,
	})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestToken_FetchesAndCaches(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "secret-key" {
			t.Errorf("missing subscription key header")
		}
		w.Write([]byte("tok-123"))
	}))
	defer srv.Close()

	s, now := newTestService(srv.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tok, err := s.Token(ctx)
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok != "tok-123" {
			t.Fatalf("token = %q", tok)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("issuing endpoint called %d times, want 1 (cached)", calls.Load())
	}

	// Past the TTL a fresh token is fetched.
	*now = now.Add(10 * time.Minute)
	if _, err := s.Token(ctx); err != nil {
		t.Fatalf("Token after expiry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("issuing endpoint called %d times after expiry, want 2", calls.Load())
	}
}

func TestToken_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	s, _ := newTestService(srv.URL)
	if _, err := s.Token(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestToken_NoEndpoint(t *testing.T) {
	s, _ := newTestService("")
	if _, err := s.Token(context.Background()); err == nil {
		t.Fatal("expected error without an endpoint")
	}
}

func TestHandler_ServesTokenAndRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tok-xyz"))
	}))
	defer srv.Close()

	s, _ := newTestService(srv.URL)
	req := httptest.NewRequest("GET", "/api/speech/token", nil)
	rec := httptest.NewRecorder()
	s.Handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body tokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Token != "tok-xyz" || body.Region != "westeurope" {
		t.Errorf("body = %+v", body)
	}
}

func TestHandler_UpstreamFailure(t *testing.T) {
	s, _ := newTestService("")
	req := httptest.NewRequest("GET", "/api/speech/token", nil)
	rec := httptest.NewRecorder()
	s.Handler(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
