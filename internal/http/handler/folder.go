package handler

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/service"
)

// ListFolders handles GET /folders.
func ListFolders(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		folders, err := svc.Folders(c.UserContext())
		if err != nil {
			return writeServiceError(c, err, "folder")
		}
		return c.JSON(folders)
	}
}

// CreateFolder handles POST /folders?path=. Folders have no storage of their
// own, so this only answers with the normalized path.
func CreateFolder(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := c.Query("path")
		if p == "" {
			return writeError(c, fiber.StatusBadRequest, "PATH_REQUIRED", "path is required")
		}
		folder, err := svc.CreateFolder(c.UserContext(), p)
		if err != nil {
			return writeServiceError(c, err, "folder")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":         "Folder created",
			"path":           folder.Path,
			"name":           folder.Name,
			"document_count": folder.DocumentCount,
		})
	}
}

// FolderContents handles GET /folders/* with limit and offset.
func FolderContents(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := url.PathUnescape(c.Params("*"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PATH", "invalid folder path")
		}
		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(service.DefaultListLimit)))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.FolderContents(c.UserContext(), p, limit, offset)
		if err != nil {
			return writeServiceError(c, err, "folder")
		}
		return c.JSON(res)
	}
}
