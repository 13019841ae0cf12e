package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docvault/internal/http/apidocs"
	"docvault/internal/http/middleware"
	"docvault/internal/service"
)

// Services are the collaborators the routes call into.
type Services struct {
	// DB is pinged by /health; nil when the in-memory index is used.
	DB        Pinger
	Documents service.DocumentService
	Tags      service.TagService
	System    service.SystemService
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: parse, call the service, map errors.
func RegisterRoutes(app *fiber.App, s Services) {
	apidocs.Register()
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.Send(apidocs.YAML())
	})
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/docs", func(c *fiber.Ctx) error {
		return c.Redirect("/swagger/index.html")
	})

	gatherer := s.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	app.Get("/health", HealthCheck(s.DB))
	app.Get("/healthz", LivenessProbe())

	docs := app.Group("/documents")
	docs.Get("/", ListDocuments(s.Documents))
	docs.Post("/", UploadDocument(s.Documents))
	docs.Get("/:id", GetDocument(s.Documents))
	docs.Patch("/:id", MoveDocument(s.Documents))
	docs.Delete("/:id", DeleteDocument(s.Documents))
	docs.Get("/:id/original", GetOriginal(s.Documents))
	docs.Get("/:id/thumbnail", GetThumbnail(s.Documents))
	docs.Post("/:id/reocr", ReOCRDocument(s.Documents))
	docs.Post("/:id/tags/:tag_id", AttachTag(s.Tags))
	docs.Delete("/:id/tags/:tag_id", DetachTag(s.Tags))

	app.Get("/search", SearchDocuments(s.Documents))
	app.Post("/search/advanced", AdvancedSearch(s.Documents))

	app.Get("/folders", ListFolders(s.Documents))
	app.Post("/folders", CreateFolder(s.Documents))
	app.Get("/folders/*", FolderContents(s.Documents))

	app.Get("/tags", ListTags(s.Tags))
	app.Post("/tags", CreateTag(s.Tags))
	app.Put("/tags/:id", UpdateTag(s.Tags))
	app.Delete("/tags/:id", DeleteTag(s.Tags))

	sys := app.Group("/system")
	sys.Get("/storage", StorageInfo(s.Documents))
	sys.Get("/ocr-engines", OCREngines(s.System))
	sys.Get("/settings", middleware.NoStore(), GetSettings(s.System))
	sys.Put("/settings", middleware.NoStore(), UpdateSettings(s.System))
}
