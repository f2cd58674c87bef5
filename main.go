package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"dashmail/composer"
	"dashmail/config"
	"dashmail/dispatch"
	"dashmail/handlers/api"
	"dashmail/handlers/web"
	"dashmail/middleware"
	"dashmail/storage"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// Helper function to determine if request is an API request
func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	path := c.Path()
	return len(path) >= 4 && path[:4] == "/api"
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		return
	}
	utils.Log.SetLevel(utils.ParseLevel(cfg.Server.LogLevel))

	// Initialize i18n system
	if err := utils.InitI18n(); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
	}

	// Storage layers
	users, err := storage.NewUserStorage(cfg.Server.DataDir)
	if err != nil {
		utils.Log.Error("Failed to initialize user storage: %v", err)
		return
	}
	if password, err := users.EnsureAdmin(); err != nil {
		utils.Log.Error("Failed to ensure admin user: %v", err)
		return
	} else if password != "" {
		utils.Log.Info("Created default admin user with password: %s", password)
	}

	blobs, err := storage.NewFileBlobStore(filepath.Join(cfg.Server.DataDir, "blobs"), "/api/attachments")
	if err != nil {
		utils.Log.Error("Failed to initialize blob storage: %v", err)
		return
	}
	drafts := storage.NewDraftStorage(cfg.Server.DataDir)
	outbox, err := storage.OpenOutbox(cfg.Server.DataDir)
	if err != nil {
		utils.Log.Error("Failed to open outbox: %v", err)
		return
	}
	defer outbox.Close()

	// Composer core
	templates := composer.NewDefaultStore()
	sessions := composer.NewSessionManager(blobs, cfg.Compose.MaxAttachmentBytes, cfg.Compose.MaxImageWidth, cfg.SessionTTL())
	defer sessions.Shutdown()

	// Delivery
	smtpTransport := api.NewSMTPTransport(cfg)
	dispatcher := dispatch.NewDispatcher(outbox, smtpTransport, cfg.DispatchInterval())
	if err := dispatcher.Start(); err != nil {
		utils.Log.Error("Failed to start dispatcher: %v", err)
		return
	}
	defer dispatcher.Stop()

	// Initialize template engine with custom functions
	engine := html.New("./templates", ".html")
	engine.AddFunc("lower", strings.ToLower)
	engine.AddFunc("trim", strings.TrimSpace)
	engine.AddFunc("formatDate", func(t time.Time) string {
		return t.Format("Jan 02, 2006 15:04")
	})
	engine.AddFunc("formatSize", func(size int64) string {
		const unit = 1024
		if size < unit {
			return fmt.Sprintf("%d B", size)
		}
		div, exp := int64(unit), 0
		for n := size / unit; n >= unit; n /= unit {
			div *= unit
			exp++
		}
		return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
	})

	// Initialize Fiber with template engine
	app := fiber.New(fiber.Config{
		Views:     engine,
		BodyLimit: int(cfg.Compose.MaxAttachmentBytes) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
				if code >= 500 {
					utils.Log.Error("Application error: %v", appErr)
				}
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			if isAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{
					"error": err.Error(),
				})
			}

			return c.Status(code).Render("error", fiber.Map{
				"Error": err.Error(),
				"Code":  code,
			})
		},
	})

	// Add global middleware
	app.Use(recover.New())  // Recover from panics
	app.Use(logger.New())   // Request logging
	app.Use(compress.New()) // Response compression
	app.Use(helmet.New(helmet.Config{ // Security headers
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline';",
	}))

	// Add locale middleware
	app.Use(middleware.LocaleMiddleware())

	// Add rate limiting (100 requests per minute per IP)
	app.Use(middleware.RateLimiter(100, time.Minute))

	// Initialize handlers
	authHandler := api.NewAuthHandler(cfg, users)
	userHandler := api.NewUserHandler(users)
	templateHandler := api.NewTemplateHandler(templates)
	composeHandler := api.NewComposeHandler(sessions, templates)
	scheduleHandler := api.NewScheduleHandler(sessions)
	attachmentHandler := api.NewAttachmentHandler(sessions, utils.NewMemoryCache(cfg.Cache.Folder))
	notificationHandler := api.NewNotificationHandler()
	submitHandler := api.NewSubmitHandler(sessions, outbox, smtpTransport, notificationHandler)
	draftHandler := api.NewDraftHandler(sessions, drafts)
	outboxHandler := api.NewOutboxHandler(outbox)
	previewHandler := web.NewPreviewHandler(sessions)
	i18nHandler := &api.I18nHandler{}

	// Public routes
	app.Post("/api/login", authHandler.HandleLogin)
	app.Get("/api/logout", authHandler.HandleLogout)
	app.Get("/api/i18n/:lang", i18nHandler.GetTranslations)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Protected routes group
	protected := app.Group("", api.SessionMiddleware(cfg))
	protected.Use(middleware.CSRFProtection(middleware.CSRFConfig{
		TokenLength:  32,
		CookieName:   "csrf_token",
		HeaderName:   "X-CSRF-Token",
		ContextKey:   "csrf",
		CookieMaxAge: 3600,
		Skipper:      func(c *fiber.Ctx) bool { return c.Get("Authorization") != "" },
	}))

	apiRoutes := protected.Group("/api")
	{
		// CSRF token for the SPA's mutating requests
		apiRoutes.Get("/csrf", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"token": middleware.GenerateCSRFToken(c)})
		})

		// Template catalog
		apiRoutes.Get("/templates", templateHandler.ListTemplates)
		apiRoutes.Get("/templates/:key", templateHandler.GetTemplate)

		// Composition sessions
		apiRoutes.Post("/compose", composeHandler.HandleOpen)
		apiRoutes.Get("/compose/:session_id", composeHandler.HandleState)
		apiRoutes.Delete("/compose/:session_id", composeHandler.HandleClose)
		apiRoutes.Post("/compose/:session_id/template", composeHandler.HandleSelectTemplate)
		apiRoutes.Post("/compose/:session_id/field", composeHandler.HandleField)
		apiRoutes.Patch("/compose/:session_id", composeHandler.HandleUpdate)
		apiRoutes.Post("/compose/:session_id/submit", submitHandler.HandleSubmit)

		// Scheduling
		apiRoutes.Post("/compose/:session_id/schedule/open", scheduleHandler.HandleOpen)
		apiRoutes.Post("/compose/:session_id/schedule/confirm", scheduleHandler.HandleConfirm)
		apiRoutes.Post("/compose/:session_id/schedule/cancel", scheduleHandler.HandleCancel)
		apiRoutes.Delete("/compose/:session_id/schedule", scheduleHandler.HandleClear)
		apiRoutes.Post("/schedule/preview", scheduleHandler.HandlePreview)

		// Attachments
		apiRoutes.Post("/compose/:session_id/attachments", attachmentHandler.HandleUpload)
		apiRoutes.Delete("/compose/:session_id/attachments/:attachment_id", attachmentHandler.HandleRemove)
		apiRoutes.Get("/compose/:session_id/attachments/:attachment_id/download", attachmentHandler.HandleDownload)
		apiRoutes.Get("/compose/:session_id/attachments/:attachment_id/preview", attachmentHandler.HandlePreview)
		apiRoutes.Post("/attachments/download", attachmentHandler.HandleProxyDownload)

		// Drafts
		apiRoutes.Post("/compose/:session_id/drafts", draftHandler.HandleSave)
		apiRoutes.Post("/compose/:session_id/drafts/:draft_id/restore", draftHandler.HandleRestore)
		apiRoutes.Get("/drafts", draftHandler.HandleList)
		apiRoutes.Get("/drafts/:draft_id", draftHandler.HandleGet)
		apiRoutes.Delete("/drafts/:draft_id", draftHandler.HandleDelete)

		// Scheduled outbox
		apiRoutes.Get("/outbox", outboxHandler.HandleList)
		apiRoutes.Delete("/outbox/:job_id", outboxHandler.HandleCancel)

		// Notifications
		apiRoutes.Get("/notifications/stream", notificationHandler.HandleSSE)
		apiRoutes.Get("/notifications/ws", websocket.New(notificationHandler.HandleWebSocket))

		// User administration
		apiRoutes.Get("/users", userHandler.ListUsers)
		apiRoutes.Post("/users", userHandler.CreateUser)
		apiRoutes.Put("/users/password", userHandler.UpdatePassword)
	}

	// Server-rendered draft preview
	protected.Get("/preview/:session_id", previewHandler.HandlePreview)

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		localizer, ok := c.Locals("localizer").(*i18n.Localizer)
		if !ok {
			localizer = utils.Localizer
		}

		if isAPIRequest(c) {
			return c.Status(404).JSON(fiber.Map{
				"error": utils.T(localizer, "error_404"),
			})
		}
		return c.Status(404).Render("error", fiber.Map{
			"Error": utils.T(localizer, "error_404"),
			"Code":  404,
		})
	})

	// Start server
	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}
