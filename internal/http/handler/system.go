package handler

import (
	"github.com/gofiber/fiber/v2"

	"docvault/internal/service"
)

// StorageInfo handles GET /system/storage.
func StorageInfo(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		info, err := svc.StorageInfo(c.UserContext())
		if err != nil {
			return writeServiceError(c, err, "storage")
		}
		return c.JSON(info)
	}
}

// OCREngines handles GET /system/ocr-engines.
func OCREngines(svc service.SystemService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Engines(c.UserContext()))
	}
}

// GetSettings handles GET /system/settings.
func GetSettings(svc service.SystemService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Settings(c.UserContext()))
	}
}

// UpdateSettings handles PUT /system/settings. Fields omitted from the body
// keep their current value.
func UpdateSettings(svc service.SystemService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		next := svc.Settings(c.UserContext())
		if err := c.BodyParser(&next); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid settings body")
		}
		updated, err := svc.UpdateSettings(c.UserContext(), next)
		if err != nil {
			return writeServiceError(c, err, "settings")
		}
		return c.JSON(updated)
	}
}
