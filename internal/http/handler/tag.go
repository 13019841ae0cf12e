package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/service"
)

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CreateTag handles POST /tags with {"name", "color"}.
func CreateTag(svc service.TagService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body tagRequest
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid tag body")
		}
		tag, err := svc.Create(c.UserContext(), body.Name, body.Color)
		if err != nil {
			return writeServiceError(c, err, "tag")
		}
		return c.Status(fiber.StatusCreated).JSON(tag)
	}
}

// ListTags handles GET /tags.
func ListTags(svc service.TagService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tags, err := svc.List(c.UserContext())
		if err != nil {
			return writeServiceError(c, err, "tag")
		}
		return c.JSON(tags)
	}
}

// UpdateTag handles PUT /tags/:id. Name and color come from the JSON body or,
// when there is none, from the query string.
func UpdateTag(svc service.TagService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		body := tagRequest{Name: c.Query("name"), Color: c.Query("color")}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid tag body")
			}
		}
		tag, err := svc.Update(c.UserContext(), id, body.Name, body.Color)
		if err != nil {
			return writeServiceError(c, err, "tag")
		}
		return c.JSON(tag)
	}
}

// DeleteTag handles DELETE /tags/:id.
func DeleteTag(svc service.TagService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err, "tag")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// AttachTag handles POST /documents/:id/tags/:tag_id.
func AttachTag(svc service.TagService) fiber.Handler {
	return tagAssociation(func(c *fiber.Ctx, docID, tagID string) error {
		doc, err := svc.Attach(c.UserContext(), docID, tagID)
		if err != nil {
			return writeServiceError(c, err, "document or tag")
		}
		return c.JSON(doc)
	})
}

// DetachTag handles DELETE /documents/:id/tags/:tag_id.
func DetachTag(svc service.TagService) fiber.Handler {
	return tagAssociation(func(c *fiber.Ctx, docID, tagID string) error {
		doc, err := svc.Detach(c.UserContext(), docID, tagID)
		if err != nil {
			return writeServiceError(c, err, "document")
		}
		return c.JSON(doc)
	})
}

func tagAssociation(fn func(c *fiber.Ctx, docID, tagID string) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docID, tagID := c.Params("id"), c.Params("tag_id")
		if _, err := uuid.Parse(docID); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if _, err := uuid.Parse(tagID); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		return fn(c, docID, tagID)
	}
}
