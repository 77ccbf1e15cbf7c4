package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/apperr"
	"github.com/sefazor/guestdrop-backend/internal/middleware"
	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/service"
	jwtPkg "github.com/sefazor/guestdrop-backend/pkg/jwt"
	"github.com/sefazor/guestdrop-backend/pkg/utils"
)

type RouterConfig struct {
	Tokens             *jwtPkg.Issuer
	InternalJobSecret  string
	CORSOrigins        string
	RateLimitPerMinute int
	RequestLogging     bool

	Events   *service.EventService
	Sessions *service.SessionService
	Uploads  *service.UploadService
	Media    *service.MediaService
	Facets   *service.FacetService
	Jobs     *service.JobRegistry
	Logger   *zap.Logger
}

// NewApp builds the fiber app with every route mounted.
func NewApp(cfg RouterConfig) *fiber.App {
	validator := utils.NewValidator()
	eventHandler := NewEventHandler(cfg.Events, cfg.Sessions, validator, cfg.Logger)
	guestHandler := NewGuestHandler(cfg.Sessions, cfg.Uploads, cfg.Media, validator, cfg.Logger)
	mediaHandler := NewMediaHandler(cfg.Media, cfg.Facets, cfg.Logger)
	jobHandler := NewJobHandler(cfg.Jobs, cfg.Logger)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse(string(apperr.CodeInvalidInput), fe.Message))
			}
			return respondError(c, cfg.Logger, err)
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE",
	}))
	if cfg.RequestLogging {
		app.Use(logger.New())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(models.SuccessResponse(nil, "ok"))
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	internal := app.Group("/internal", middleware.InternalSecret(cfg.InternalJobSecret))
	internal.Post("/jobs/:name", jobHandler.RunJob)

	api := app.Group("/api")
	if cfg.RateLimitPerMinute > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitPerMinute,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
		}))
	}

	// Public guest routes
	api.Post("/join/:slug", guestHandler.Join)

	guest := api.Group("/guest", middleware.GuestAuth(cfg.Tokens))
	guest.Get("/session", guestHandler.GetSession)
	guest.Put("/session", guestHandler.RenameSession)
	guest.Get("/media", guestHandler.ListMyMedia)
	guest.Post("/uploads", guestHandler.ReserveUpload)
	guest.Post("/uploads/:id/finalize", guestHandler.FinalizeUpload)

	events := api.Group("/events", middleware.OrganizerAuth(cfg.Tokens))
	events.Post("/", eventHandler.CreateEvent)
	events.Get("/", eventHandler.ListEvents)
	events.Get("/:id", eventHandler.GetEvent)
	events.Post("/:id/archive", eventHandler.ArchiveEvent)
	events.Get("/:id/qr", eventHandler.GetQRCode)
	events.Get("/:id/sessions", eventHandler.ListSessions)
	events.Post("/:id/sessions/:sessionId/deactivate", eventHandler.DeactivateSession)
	events.Get("/:id/media", mediaHandler.ListMedia)
	events.Post("/:id/media/:mediaId/hide", mediaHandler.HideMedia)
	events.Post("/:id/media/:mediaId/unhide", mediaHandler.UnhideMedia)
	events.Get("/:id/download", mediaHandler.DownloadManifest)
	events.Get("/:id/facets", mediaHandler.ListFacets)

	return app
}
