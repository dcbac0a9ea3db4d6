package handler

import (
	"github.com/gofiber/fiber/v2"

	"docvault/internal/logging"
	"docvault/internal/service"
)

// RegisterRoutes attaches the health and document routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db Pinger, docSvc service.DocumentService, log logging.Logger) {
	if log == nil {
		log = logging.Nop()
	}

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", ListDocuments(docSvc, log))
	app.Post("/documents/upload", UploadDocument(docSvc, log))
	app.Get("/documents/:id", GetDocument(docSvc, log))
	app.Delete("/documents/:id", DeleteDocument(docSvc, log))
}
