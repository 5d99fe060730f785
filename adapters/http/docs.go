package http

import (
	"fmt"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// swaggerUI returns a Swagger UI handler rendering the spec served at
// specURL.
func swaggerUI(specURL string) http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL(specURL))
}

// redocPage renders a ReDoc viewer over the spec served at specURL.
func redocPage(title, specURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s</title>
  <style>body { margin: 0; padding: 0; }</style>
</head>
<body>
  <redoc spec-url="%s"></redoc>
  <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>`, title, specURL)
	}
}
