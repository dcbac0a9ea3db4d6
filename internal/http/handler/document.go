package handler

import (
	"fmt"
	"mime"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/service"
)

// uploadResponse is returned by POST /documents/upload.
type uploadResponse struct {
	Message string          `json:"message"`
	File    *model.Document `json:"file"`
}

// listResponse is returned by GET /documents.
type listResponse struct {
	Message string           `json:"message"`
	Data    []model.Document `json:"data"`
}

// deleteResponse is returned by DELETE /documents/:id.
type deleteResponse struct {
	Message string `json:"message"`
	File    string `json:"file"`
}

// openFormFile is swapped in tests to simulate a spooled part that cannot be read back.
var openFormFile = func(fh *multipart.FileHeader) (multipart.File, error) {
	return fh.Open()
}

// parseID rejects ids that are not integers. Zero and negative ids parse fine
// and are left to the catalog, which never issues them.
func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, service.ErrInvalidID
	}
	return id, nil
}

// attachmentDisposition keeps the original filename intact. Non-ASCII names
// are sent as an RFC 2231 filename* parameter.
func attachmentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

// ListDocuments godoc
// @Summary List documents
// @Tags documents
// @Produce json
// @Success 200 {object} listResponse
// @Failure 500 {object} errorPayload
// @Router /documents [get]
func ListDocuments(docSvc service.DocumentService, log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := docSvc.List(c.UserContext())
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Status(fiber.StatusOK).JSON(listResponse{
			Message: "Documents fetched successfully",
			Data:    docs,
		})
	}
}

// UploadDocument godoc
// @Summary Upload a PDF document
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF file"
// @Success 201 {object} uploadResponse
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /documents/upload [post]
func UploadDocument(docSvc service.DocumentService, log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeServiceError(c, log, service.ErrFileRequired)
		}

		f, err := openFormFile(fh)
		if err != nil {
			return writeServiceError(c, log, fmt.Errorf("%w: open uploaded file: %w", service.ErrStorageFailure, err))
		}
		defer f.Close()

		// the part's declared type, not a sniffed one
		ct := fh.Header.Get(fiber.HeaderContentType)

		doc, err := docSvc.Upload(c.UserContext(), f, fh.Filename, ct, fh.Size)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(uploadResponse{
			Message: "PDF uploaded",
			File:    doc,
		})
	}
}

// GetDocument godoc
// @Summary Download a document
// @Tags documents
// @Produce application/pdf
// @Param id path int true "Document ID"
// @Success 200 {file} file
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /documents/{id} [get]
func GetDocument(docSvc service.DocumentService, log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return writeServiceError(c, log, err)
		}

		dl, err := docSvc.Fetch(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, log, err)
		}

		c.Set(fiber.HeaderContentDisposition, attachmentDisposition(dl.Document.Filename))
		c.Type("pdf")
		size := int(dl.Size)
		if size <= 0 {
			size = -1
		}
		// fasthttp closes the stream once the body is written
		return c.SendStream(dl.Content, size)
	}
}

// DeleteDocument godoc
// @Summary Delete a document
// @Tags documents
// @Produce json
// @Param id path int true "Document ID"
// @Success 200 {object} deleteResponse
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /documents/{id} [delete]
func DeleteDocument(docSvc service.DocumentService, log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return writeServiceError(c, log, err)
		}

		filename, err := docSvc.Remove(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Status(fiber.StatusOK).JSON(deleteResponse{
			Message: "Document deleted successfully",
			File:    filename,
		})
	}
}
