// Package web embeds the browser UI served at the site root.
package web

import (
	"embed"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
)

//go:embed static
var static embed.FS

// Handler serves the embedded UI. Register it after the API routes so they take precedence.
func Handler() fiber.Handler {
	return filesystem.New(filesystem.Config{
		Root:       http.FS(static),
		PathPrefix: "static",
		Index:      "index.html",
		MaxAge:     300,
	})
}
