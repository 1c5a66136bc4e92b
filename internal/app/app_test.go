package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/babelrelay/internal/config"
	"github.com/MrWong99/babelrelay/internal/observe"
	translatemock "github.com/MrWong99/babelrelay/pkg/provider/translate/mock"
	ttsmock "github.com/MrWong99/babelrelay/pkg/provider/tts/mock"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.Providers.TTS.Name = "elevenlabs"
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("validate config: %v", err)
	}

	a, err := New(context.Background(), cfg, &Providers{
		Translator: &translatemock.Provider{},
		TTS:        &ttsmock.Provider{},
		TTSName:    "elevenlabs",
	}, WithVersion("1.2.3"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_RequiresProviders(t *testing.T) {
	cfg := &config.Config{}
	if _, err := New(context.Background(), cfg, &Providers{TTS: &ttsmock.Provider{}}); err == nil {
		t.Error("expected error without a translator")
	}
	if _, err := New(context.Background(), cfg, &Providers{Translator: &translatemock.Provider{}}); err == nil {
		t.Error("expected error without a tts provider")
	}
}

func TestHealthz_Route(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		OK      bool   `json:"ok"`
		Method  string `json:"method"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Method != "websocket" || body.Version != "1.2.3" {
		t.Errorf("healthz = %+v", body)
	}
}

func TestReadyz_Route(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMetrics_Route(t *testing.T) {
	snap := observe.NewSnapshot()
	snap.ConnOpened()
	cfg := &config.Config{}
	cfg.Providers.TTS.Name = "elevenlabs"
	if err := config.Validate(cfg); err != nil {
		t.Fatal(err)
	}
	a, err := New(context.Background(), cfg, &Providers{
		Translator: &translatemock.Provider{},
		TTS:        &ttsmock.Provider{},
	}, WithSnapshot(snap))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/metrics", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats observe.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.ActiveConnections != 1 {
		t.Errorf("active connections = %d, want 1", stats.ActiveConnections)
	}
}

func TestTokenRoute_OnlyWhenConfigured(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest("GET", "/api/speech/token", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no token issuer is configured", rec.Code)
	}
}
