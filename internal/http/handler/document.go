package handler

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/service"
)

// ListDocuments handles GET /documents?limit=&offset=&folder_path=.
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(service.DefaultListLimit)))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), service.ListQuery{
			Limit:      limit,
			Offset:     offset,
			FolderPath: c.Query("folder_path"),
		})
		if err != nil {
			return writeServiceError(c, err, "document")
		}
		return c.JSON(res)
	}
}

// UploadDocument handles POST /documents (multipart/form-data).
// Fields: file (required), tags (comma separated), folder_path, ocr_engine.
// A ZIP upload answers with every created document.
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		res, err := svc.Ingest(c.UserContext(), service.IngestRequest{
			File:        f,
			Size:        fh.Size,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Tags:        c.FormValue("tags"),
			FolderPath:  c.FormValue("folder_path"),
			OCREngine:   c.FormValue("ocr_engine"),
		})
		if err != nil {
			return writeServiceError(c, err, "document")
		}
		if res.Archive {
			return c.Status(fiber.StatusCreated).JSON(res)
		}
		return c.Status(fiber.StatusCreated).JSON(res.Documents[0])
	}
}

// GetDocument handles GET /documents/:id.
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err, "document")
		}
		return c.JSON(doc)
	}
}

// DeleteDocument handles DELETE /documents/:id.
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err, "document")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type moveRequest struct {
	FolderPath *string `json:"folder_path"`
}

// MoveDocument handles PATCH /documents/:id with {"folder_path": "..."}.
func MoveDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var body moveRequest
		if err := c.BodyParser(&body); err != nil || body.FolderPath == nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "folder_path is required")
		}
		doc, err := svc.Move(c.UserContext(), id, *body.FolderPath)
		if err != nil {
			return writeServiceError(c, err, "document")
		}
		return c.JSON(doc)
	}
}

// GetOriginal streams the stored file as an attachment.
func GetOriginal(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		content, err := svc.Original(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err, "document")
		}
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", content.Filename))
		return sendContent(c, content)
	}
}

// GetThumbnail streams the preview image. Documents without one answer 404.
func GetThumbnail(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		content, err := svc.Thumbnail(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err, "thumbnail")
		}
		return sendContent(c, content)
	}
}

// ReOCRDocument handles POST /documents/:id/reocr?ocr_engine=.
func ReOCRDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.ReOCR(c.UserContext(), id, c.Query("ocr_engine"))
		if err != nil {
			return writeServiceError(c, err, "document")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":      "OCR processing started",
			"document_id": doc.ID,
			"ocr_status":  doc.OCRStatus,
		})
	}
}

// sendContent streams the body; fasthttp closes it once written.
func sendContent(c *fiber.Ctx, content *service.Content) error {
	if content.ContentType != "" {
		c.Set(fiber.HeaderContentType, content.ContentType)
	}
	size := int(content.Size)
	if size <= 0 {
		size = -1
	}
	return c.Status(fiber.StatusOK).SendStream(content.Body, size)
}

func documentID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
