package main

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/notification-service/contracts"
)

const swaggerUITemplate = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Notification Service API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
    <style>body{margin:0} #swagger-ui{max-width:1400px;margin:0 auto}</style>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-standalone-preset.js"></script>
    <script>
      const urls = /*__SPECS__*/;
      window.ui = SwaggerUIBundle({
        urls: urls,
        "urls.primaryName": urls[0] ? urls[0].name : '',
        dom_id: '#swagger-ui',
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis, SwaggerUIStandalonePreset],
        layout: 'StandaloneLayout'
      });
    </script>
  </body>
</html>`

func registerDocsRoutes(router chi.Router, logger *zap.Logger) {
	router.Get("/docs", docsUIHandler(logger))
	router.Get("/openapi/{name}.json", openapiJSONHandler(logger))
}

type docEntry struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func docEntries() []docEntry {
	names := make([]string, 0, len(contracts.Documents))
	for name := range contracts.Documents {
		names = append(names, name)
	}
	slices.Sort(names)

	entries := make([]docEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, docEntry{URL: "/openapi/" + name + ".json", Name: name})
	}
	return entries
}

func docsUIHandler(logger *zap.Logger) http.HandlerFunc {
	list, err := json.Marshal(docEntries())
	if err != nil {
		logger.Error("encode documentation list", zap.Error(err))
		list = []byte("[]")
	}
	page := []byte(strings.Replace(swaggerUITemplate, "/*__SPECS__*/", string(list), 1))

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}
}

// openapiJSONHandler renders each contract once and serves the cached bytes afterwards.
func openapiJSONHandler(logger *zap.Logger) http.HandlerFunc {
	rendered := make(map[string]func() ([]byte, error), len(contracts.Documents))
	for name, load := range contracts.Documents {
		rendered[name] = sync.OnceValues(func() ([]byte, error) {
			doc, err := load()
			if err != nil {
				return nil, err
			}
			return doc.MarshalJSON()
		})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		render, ok := rendered[name]
		if !ok {
			http.NotFound(w, r)
			return
		}

		body, err := render()
		if err != nil {
			logger.Error("render openapi document", zap.String("name", name), zap.Error(err))
			http.Error(w, "openapi document unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
