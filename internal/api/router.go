package api

import (
	"errors"
	"time"

	"fintrack/internal/api/handlers"
	"fintrack/pkg/auth"
	"fintrack/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// multipart framing on top of the file itself
const formOverhead = 1 << 20

type Handlers struct {
	Auth        *handlers.AuthHandler
	Import      *handlers.ImportHandler
	Category    *handlers.CategoryHandler
	Transaction *handlers.TransactionHandler
	Health      *handlers.HealthHandler
}

type Options struct {
	MaxUploadBytes int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

func SetupRouter(h Handlers, jwtManager *auth.JWTManager, opts Options, appLogger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    opts.MaxUploadBytes + formOverhead,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			if code == fiber.StatusInternalServerError {
				appLogger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "HTTP",
			})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	app.Get("/health", h.Health.Health)

	// Auth routes (public)
	authGroup := app.Group("/user/auth")
	authGroup.Post("/register", h.Auth.Register)
	authGroup.Post("/login", h.Auth.Login)
	authGroup.Post("/refresh", h.Auth.RefreshToken)

	protected := app.Group("/api/v1", middleware.AuthMiddleware(jwtManager, appLogger))

	imports := protected.Group("/imports")
	imports.Post("", h.Import.Upload)
	imports.Get("", h.Import.ListJobs)
	imports.Get("/:id", h.Import.GetJob)
	imports.Patch("/:id/drafts/:index", h.Import.PatchDraft)
	imports.Put("/:id/drafts/:index", h.Import.ReplaceDraft)
	imports.Post("/:id/commit", h.Import.Commit)

	categories := protected.Group("/categories")
	categories.Get("", h.Category.ListCategories)
	categories.Post("", h.Category.CreateCategory)

	protected.Get("/transactions", h.Transaction.ListTransactions)

	return app
}
