// Package token proxies short-lived speech-recognition credentials to the
// browser client.
//
// The browser recognizer needs a bearer token for its STT service, but the
// subscription key must never reach the client. The relay fetches a token
// server-side and caches it for slightly less than its advertised lifetime,
// so a room full of listeners does not hammer the issuing endpoint.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/babelrelay/internal/config"
)

// Service fetches and caches speech tokens. Safe for concurrent use.
type Service struct {
	endpoint string
	key      string
	region   string
	ttl      time.Duration

	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

// NewService creates a token service from cfg.
func NewService(cfg config.SpeechTokenConfig) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 9 * time.Minute
	}
	return &Service{
		endpoint:   cfg.Endpoint,
		key:        cfg.SubscriptionKey,
		region:     cfg.Region,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// Token returns a valid speech token, fetching a fresh one when the cached
// token is past its TTL.
func (s *Service) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.token != "" && s.now().Sub(s.fetchedAt) < s.ttl {
		tok := s.token
		s.mu.Unlock()
		return tok, nil
	}
	s.mu.Unlock()

	tok, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.token = tok
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return tok, nil
}

// fetch requests a new token from the issuing endpoint.
func (s *Service) fetch(ctx context.Context) (string, error) {
	if s.endpoint == "" {
		return "", fmt.Errorf("token: no issuing endpoint configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("token: build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	req.Header.Set("Content-Length", "0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token: issuing endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("token: read response: %w", err)
	}
	tok := strings.TrimSpace(string(raw))
	if tok == "" {
		return "", fmt.Errorf("token: issuing endpoint returned an empty token")
	}
	return tok, nil
}

// tokenResponse is the JSON shape served to the browser.
type tokenResponse struct {
	Token  string `json:"token"`
	Region string `json:"region"`
}

// Handler serves GET /api/speech/token.
func (s *Service) Handler(w http.ResponseWriter, r *http.Request) {
	tok, err := s.Token(r.Context())
	if err != nil {
		http.Error(w, `{"error":"token unavailable"}`, http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(tokenResponse{Token: tok, Region: s.region})
}

// Register adds the token route to mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/speech/token", s.Handler)
}
