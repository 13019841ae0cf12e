package handler

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/service"
)

const defaultPageSize = repository.DefaultSearchLimit

type searchResponse struct {
	Items    []model.Document `json:"data"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// advancedSearchRequest is the JSON body of POST /search/advanced.
type advancedSearchRequest struct {
	Text       string     `json:"text"`
	Tags       []string   `json:"tags"`
	FolderPath string     `json:"folder_path"`
	MimeTypes  []string   `json:"mime_types"`
	DateFrom   *time.Time `json:"date_from"`
	DateTo     *time.Time `json:"date_to"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	SortBy     string     `json:"sort_by"`
	SortOrder  string     `json:"sort_order"`
}

// SearchDocuments handles GET /search. Query parameters: q, tags and
// mime_types (comma separated), folder_path, date_from and date_to (RFC 3339
// or YYYY-MM-DD, inclusive), page, page_size, sort_by, sort_order.
func SearchDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := strconv.Atoi(c.Query("page", "1"))
		if err != nil || page < 1 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "page must be a positive integer")
		}
		pageSize, err := strconv.Atoi(c.Query("page_size", strconv.Itoa(defaultPageSize)))
		if err != nil || pageSize < 1 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE_SIZE", "page_size must be a positive integer")
		}
		from, err := parseDate(c.Query("date_from"), false)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", "invalid date_from")
		}
		to, err := parseDate(c.Query("date_to"), true)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", "invalid date_to")
		}

		return runSearch(c, svc, repository.SearchQuery{
			Text:       c.Query("q"),
			Tags:       splitList(c.Query("tags")),
			FolderPath: c.Query("folder_path"),
			MimeTypes:  splitList(c.Query("mime_types")),
			DateFrom:   from,
			DateTo:     to,
			SortBy:     c.Query("sort_by"),
			SortOrder:  c.Query("sort_order"),
		}, page, pageSize)
	}
}

// AdvancedSearch handles POST /search/advanced with a JSON body.
func AdvancedSearch(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body advancedSearchRequest
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid search body")
		}
		if body.Page == 0 {
			body.Page = 1
		}
		if body.PageSize == 0 {
			body.PageSize = defaultPageSize
		}
		if body.Page < 1 || body.PageSize < 1 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "page and page_size must be positive")
		}

		return runSearch(c, svc, repository.SearchQuery{
			Text:       body.Text,
			Tags:       body.Tags,
			FolderPath: body.FolderPath,
			MimeTypes:  body.MimeTypes,
			DateFrom:   body.DateFrom,
			DateTo:     body.DateTo,
			SortBy:     body.SortBy,
			SortOrder:  body.SortOrder,
		}, body.Page, body.PageSize)
	}
}

func runSearch(c *fiber.Ctx, svc service.DocumentService, q repository.SearchQuery, page, pageSize int) error {
	if pageSize > repository.MaxSearchLimit {
		pageSize = repository.MaxSearchLimit
	}
	// The offset must not wrap around for huge pages.
	if page-1 > math.MaxInt/pageSize {
		return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "page is out of range")
	}
	q.Limit = pageSize
	q.Offset = (page - 1) * pageSize

	res, err := svc.Search(c.UserContext(), q)
	if err != nil {
		return writeServiceError(c, err, "document")
	}
	return c.JSON(searchResponse{Items: res.Items, Total: res.Total, Page: page, PageSize: pageSize})
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain date used as
// an upper bound covers the whole day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
