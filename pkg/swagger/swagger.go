// Package swagger отдаёт OpenAPI-документ fuel-svc и Swagger UI к нему.
// Документ подстраивается под развёртывание: адрес сервера, версия,
// маршруты /auth только при включённой аутентификации.
package swagger

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"fueltracker/pkg/config"
	"fueltracker/pkg/logger"
)

const authPathPrefix = "/api/v1/auth/"

var uiTemplate = template.Must(template.New("swagger-ui").Parse(uiPage))

// Config конфигурация Swagger UI
type Config struct {
	Title     string
	BasePath  string
	DocPath   string
	ServerURL string
	Version   string
	// HideAuth убирает из документа /auth маршруты и bearer-схему
	HideAuth bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Title:    "Fuel Tracker API",
		BasePath: "/swagger",
		DocPath:  "/openapi.json",
	}
}

// FromConfig строит конфигурацию UI из конфигурации приложения
func FromConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg.Swagger.Title != "" {
		c.Title = cfg.Swagger.Title
	}
	c.ServerURL = cfg.Swagger.ServerURL
	c.Version = cfg.App.Version
	c.HideAuth = !cfg.Auth.Enabled
	return c
}

// Handler HTTP handler для Swagger UI
type Handler struct {
	config *Config
	doc    []byte
	etag   string
}

// NewHandler создаёт handler. Документ переписывается один раз при создании.
func NewHandler(cfg *Config, doc []byte) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	prepared, err := prepare(doc, cfg)
	if err != nil {
		logger.Log.Warn("Serving OpenAPI document as is", "error", err)
		prepared = doc
	}
	return &Handler{
		config: cfg,
		doc:    prepared,
		etag:   fmt.Sprintf(`"%x"`, sha256.Sum256(prepared)),
	}
}

// prepare применяет настройки развёртывания к документу.
// Без изменений исходные байты возвращаются как есть.
func prepare(doc []byte, cfg *Config) ([]byte, error) {
	if cfg.ServerURL == "" && cfg.Version == "" && !cfg.HideAuth {
		return doc, nil
	}

	var root map[string]any
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}

	if cfg.ServerURL != "" {
		root["servers"] = []any{map[string]any{"url": cfg.ServerURL}}
	}
	if info, ok := root["info"].(map[string]any); ok && cfg.Version != "" {
		info["version"] = cfg.Version
	}
	if cfg.HideAuth {
		stripAuth(root)
	}

	return json.Marshal(root)
}

func stripAuth(root map[string]any) {
	if paths, ok := root["paths"].(map[string]any); ok {
		for p := range paths {
			if strings.HasPrefix(p, authPathPrefix) {
				delete(paths, p)
			}
		}
	}
	delete(root, "security")
	if components, ok := root["components"].(map[string]any); ok {
		delete(components, "securitySchemes")
	}

	if tags, ok := root["tags"].([]any); ok {
		kept := tags[:0]
		for _, t := range tags {
			if m, ok := t.(map[string]any); ok && m["name"] == "auth" {
				continue
			}
			kept = append(kept, t)
		}
		root["tags"] = kept
	}
}

// ServeHTTP обрабатывает HTTP запросы
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, h.config.BasePath)

	switch strings.TrimPrefix(path, "/") {
	case "", "index.html":
		h.serveUI(w)
	case strings.TrimPrefix(h.config.DocPath, "/"):
		h.serveDoc(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) serveUI(w http.ResponseWriter) {
	data := struct {
		Title   string
		DocURL  string
		Persist bool
	}{
		Title:   h.config.Title,
		DocURL:  h.config.BasePath + h.config.DocPath,
		Persist: !h.config.HideAuth,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if err := uiTemplate.Execute(w, data); err != nil {
		logger.Log.Error("Failed to render swagger page", "error", err)
	}
}

func (h *Handler) serveDoc(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("If-None-Match") == h.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("ETag", h.etag)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if _, err := w.Write(h.doc); err != nil {
		logger.Log.Debug("Failed to write openapi document", "error", err)
	}
}

// uiPage страница Swagger UI, документ берётся по DocURL
const uiPage = `<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
    <style>
        body { margin: 0; background: #fafafa; }
        .swagger-ui .topbar { display: none; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: "{{.DocURL}}",
                dom_id: "#swagger-ui",
                deepLinking: true,
                docExpansion: "list",
                defaultModelsExpandDepth: 1,
                persistAuthorization: {{.Persist}},
                presets: [SwaggerUIBundle.presets.apis],
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`

// RegisterRoutes регистрирует UI и документ в существующем mux
func RegisterRoutes(mux *http.ServeMux, cfg *Config, doc []byte) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	mux.Handle("GET "+cfg.BasePath+"/", NewHandler(cfg, doc))
	mux.Handle("GET "+cfg.BasePath, http.RedirectHandler(cfg.BasePath+"/", http.StatusMovedPermanently))
}
