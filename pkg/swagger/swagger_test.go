package swagger

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fueltracker/pkg/config"
	"fueltracker/pkg/logger"
)

func init() {
	logger.Discard()
}

const fuelDoc = `{
  "openapi": "3.0.3",
  "info": {"title": "Fuel Tracker API", "version": "1.0.0"},
  "servers": [{"url": "/"}],
  "security": [{"bearerAuth": []}],
  "tags": [{"name": "auth"}, {"name": "records"}],
  "paths": {
    "/api/v1/auth/login": {"post": {}},
    "/api/v1/auth/register": {"post": {}},
    "/api/v1/records": {"get": {}}
  },
  "components": {"securitySchemes": {"bearerAuth": {"type": "http"}}, "schemas": {}}
}`

func get(h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// compact схлопывает пробелы: html/template обрамляет значения в JS пробелами
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func served(t *testing.T, h http.Handler) map[string]any {
	t.Helper()
	w := get(h, "/swagger/openapi.json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("served document is not JSON: %v", err)
	}
	return doc
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BasePath != "/swagger" || cfg.DocPath != "/openapi.json" {
		t.Errorf("paths = %s %s", cfg.BasePath, cfg.DocPath)
	}
	if cfg.HideAuth || cfg.ServerURL != "" || cfg.Version != "" {
		t.Error("default config must not rewrite the document")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		App:     config.AppConfig{Version: "2.1.0"},
		Auth:    config.AuthConfig{Enabled: false},
		Swagger: config.SwaggerConfig{Title: "燃費 API", ServerURL: "https://fuel.example.jp"},
	}

	c := FromConfig(cfg)
	if c.Title != "燃費 API" || c.ServerURL != "https://fuel.example.jp" || c.Version != "2.1.0" {
		t.Errorf("unexpected config %+v", c)
	}
	if !c.HideAuth {
		t.Error("auth routes must be hidden when auth is disabled")
	}

	cfg.Auth.Enabled = true
	cfg.Swagger.Title = ""
	c = FromConfig(cfg)
	if c.HideAuth {
		t.Error("auth routes must stay when auth is enabled")
	}
	if c.Title != DefaultConfig().Title {
		t.Errorf("Title = %s, want default", c.Title)
	}
}

func TestHandler_UI(t *testing.T) {
	h := NewHandler(&Config{Title: "燃費 API", BasePath: "/swagger", DocPath: "/openapi.json"}, []byte(fuelDoc))

	for _, path := range []string{"/swagger/", "/swagger/index.html"} {
		t.Run(path, func(t *testing.T) {
			w := get(h, path)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
				t.Errorf("Content-Type = %s", ct)
			}
			body := w.Body.String()
			if !strings.Contains(body, "燃費 API") {
				t.Error("page should contain the title")
			}
			if !strings.Contains(body, `\/swagger\/openapi.json`) && !strings.Contains(body, "/swagger/openapi.json") {
				t.Error("page should point at the document")
			}
			if !strings.Contains(compact(body), "persistAuthorization: true") {
				t.Error("bearer token should persist when auth is shown")
			}
		})
	}
}

func TestHandler_DocumentUnchangedByDefault(t *testing.T) {
	h := NewHandler(nil, []byte(fuelDoc))

	w := get(h, "/swagger/openapi.json")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %s", ct)
	}
	if w.Body.String() != fuelDoc {
		t.Error("document should be served byte for byte")
	}
	if w.Header().Get("ETag") == "" {
		t.Error("ETag header should be set")
	}
	if cors := w.Header().Get("Access-Control-Allow-Origin"); cors != "*" {
		t.Errorf("CORS header = %s, want *", cors)
	}
}

func TestHandler_RewritesServerAndVersion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerURL = "https://fuel.example.jp"
	cfg.Version = "2.1.0"

	doc := served(t, NewHandler(cfg, []byte(fuelDoc)))

	servers := doc["servers"].([]any)
	if len(servers) != 1 || servers[0].(map[string]any)["url"] != "https://fuel.example.jp" {
		t.Errorf("servers = %v", servers)
	}
	if v := doc["info"].(map[string]any)["version"]; v != "2.1.0" {
		t.Errorf("version = %v", v)
	}
	if _, ok := doc["paths"].(map[string]any)["/api/v1/auth/login"]; !ok {
		t.Error("auth paths must stay unless hidden")
	}
}

func TestHandler_HideAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HideAuth = true

	h := NewHandler(cfg, []byte(fuelDoc))
	doc := served(t, h)

	paths := doc["paths"].(map[string]any)
	if len(paths) != 1 {
		t.Errorf("paths = %v, want only /api/v1/records", paths)
	}
	if _, ok := paths["/api/v1/records"]; !ok {
		t.Error("records path must stay")
	}
	if _, ok := doc["security"]; ok {
		t.Error("global security must be removed")
	}
	if _, ok := doc["components"].(map[string]any)["securitySchemes"]; ok {
		t.Error("security schemes must be removed")
	}
	tags := doc["tags"].([]any)
	if len(tags) != 1 || tags[0].(map[string]any)["name"] != "records" {
		t.Errorf("tags = %v", tags)
	}

	if body := get(h, "/swagger/").Body.String(); !strings.Contains(compact(body), "persistAuthorization: false") {
		t.Error("token persistence is pointless without auth")
	}
}

func TestHandler_InvalidDocumentServedAsIs(t *testing.T) {
	raw := []byte("not json")
	cfg := DefaultConfig()
	cfg.HideAuth = true

	w := get(NewHandler(cfg, raw), "/swagger/openapi.json")

	if w.Body.String() != "not json" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHandler_NotFound(t *testing.T) {
	h := NewHandler(nil, []byte(`{}`))

	for _, path := range []string{"/swagger/nonexistent", "/swagger/swagger.json"} {
		if w := get(h, path); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, w.Code)
		}
	}
}

func TestHandler_ETag(t *testing.T) {
	h := NewHandler(nil, []byte(fuelDoc))

	etag := get(h, "/swagger/openapi.json").Header().Get("ETag")
	w := get(h, "/swagger/openapi.json", "If-None-Match", etag)

	if w.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", w.Code)
	}

	if NewHandler(nil, []byte(fuelDoc)).etag != h.etag {
		t.Error("ETag should depend only on document content")
	}
	hidden := DefaultConfig()
	hidden.HideAuth = true
	if NewHandler(hidden, []byte(fuelDoc)).etag == h.etag {
		t.Error("rewritten document needs its own ETag")
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	RegisterRoutes(mux, nil, []byte(fuelDoc))

	if w := get(mux, "/swagger/"); w.Code != http.StatusOK {
		t.Errorf("ui status = %d", w.Code)
	}
	if w := get(mux, "/swagger/openapi.json"); w.Code != http.StatusOK {
		t.Errorf("document status = %d", w.Code)
	}
	w := get(mux, "/swagger")
	if w.Code != http.StatusMovedPermanently {
		t.Errorf("status = %d, want 301", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/swagger/" {
		t.Errorf("Location = %s", loc)
	}
}

func BenchmarkHandler_ServeDocument(b *testing.B) {
	h := NewHandler(nil, make([]byte, 100000))
	req := httptest.NewRequest(http.MethodGet, "/swagger/openapi.json", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		io.Copy(io.Discard, w.Body)
	}
}
