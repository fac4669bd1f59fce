package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/mediagen/backend/internal/config"
	"github.com/mediagen/backend/internal/database"
	"github.com/mediagen/backend/internal/gemini"
	"github.com/mediagen/backend/internal/handlers"
	"github.com/mediagen/backend/internal/middleware"
	"github.com/mediagen/backend/internal/services"
	"github.com/mediagen/backend/internal/storage"
	"github.com/mediagen/backend/pkg/logger"
	"github.com/mediagen/backend/pkg/mediatoken"
)

func main() {
	_ = godotenv.Load()
	logger.Init()

	cfg := config.Load()
	mediatoken.Configure(cfg.MediaAuth.Secret, cfg.MediaAuth.TTL)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if err := database.SeedAdmin(db, cfg.Admin); err != nil {
		log.Fatalf("admin bootstrap failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	geminiClient := gemini.NewClient(cfg.Gemini)

	quotaService := services.NewQuotaService(db, cfg.Quota)
	authService := services.NewAuthService(db, quotaService, cfg.Session.TTL)
	adminService := services.NewAdminService(db, quotaService)
	auditService := services.NewAuditService(db)
	generationService := services.NewGenerationService(db, quotaService, storageClient, geminiClient, cfg.Gemini.PollInterval, cfg.Gemini.PollTimeout)
	retentionService := services.NewRetentionService(db, storageClient, cfg.Media.RetentionDays)

	authHandler := handlers.NewAuthHandler(db, authService, auditService)
	quotasHandler := handlers.NewQuotasHandler(quotaService, adminService, auditService)
	usersHandler := handlers.NewUsersHandler(db, adminService, quotaService, auditService)
	generateHandler := handlers.NewGenerateHandler(generationService)
	videoHandler := handlers.NewVideoHandler(generationService)
	mediaHandler := handlers.NewMediaHandler(db, authService, adminService, storageClient, auditService)
	metaHandler := handlers.NewMetaHandler(cfg)

	authMiddleware := middleware.NewAuthMiddleware(authService)

	app := fiber.New(fiber.Config{BodyLimit: 50 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/set-password", authHandler.SetPassword)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)

	api.Get("/config", authMiddleware.RequireAuth, metaHandler.AppConfig)
	api.Get("/quotas/me", authMiddleware.RequireAuth, quotasHandler.Mine)

	generateRoutes := api.Group("/generate", authMiddleware.RequireAuth)
	generateRoutes.Post("/image", generateHandler.GenerateImage)
	generateRoutes.Post("/edit", generateHandler.EditImage)
	generateRoutes.Post("/music", generateHandler.GenerateMusic)
	generateRoutes.Post("/video", videoHandler.Generate)
	generateRoutes.Post("/animate", videoHandler.Animate)

	jobRoutes := api.Group("/jobs", authMiddleware.RequireAuth)
	jobRoutes.Get("/", videoHandler.ListJobs)
	jobRoutes.Get("/:jobId", videoHandler.GetJob)

	// GET /api/media/:id authorizes itself: it accepts either a bearer
	// session or a signed token in the query string, so media elements can
	// load it without headers.
	api.Get("/media/:id", mediaHandler.Get)

	mediaRoutes := api.Group("/media", authMiddleware.RequireAuth)
	mediaRoutes.Get("/", mediaHandler.List)
	mediaRoutes.Get("/:id/url", mediaHandler.URL)
	mediaRoutes.Delete("/:id", mediaHandler.Delete)

	adminRoutes := api.Group("/admin", authMiddleware.RequireAuth, middleware.AdminOnly)
	adminRoutes.Post("/users", usersHandler.BulkCreate)
	adminRoutes.Get("/users", usersHandler.List)
	adminRoutes.Get("/users/:userId", usersHandler.Get)
	adminRoutes.Patch("/users/:userId", usersHandler.Update)
	adminRoutes.Put("/users/:userId/tags", usersHandler.SetTags)
	adminRoutes.Get("/users/:userId/generations", usersHandler.Generations)
	adminRoutes.Get("/users/:userId/quotas", quotasHandler.AdminGet)
	adminRoutes.Put("/users/:userId/quotas", quotasHandler.AdminUpdate)
	adminRoutes.Post("/users/:userId/quotas/reset", quotasHandler.AdminReset)
	adminRoutes.Get("/tags", usersHandler.AllTags)

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	go runSessionSweep(sweepCtx, authService, cfg.Session.SweepInterval)
	go runRetentionSweep(sweepCtx, retentionService, cfg.Media.SweepInterval)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		stopSweeps()
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
		auditService.Close()
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

// runSessionSweep deletes expired session rows on an interval. Expired
// sessions are already rejected lazily at auth time; the sweep only keeps
// the table from growing.
func runSessionSweep(ctx context.Context, auth *services.AuthService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := auth.SweepExpired(); err != nil {
				logger.Error("session_sweep_failed", err, nil)
			} else if removed > 0 {
				logger.Info("session_sweep_completed", map[string]interface{}{"removed": removed})
			}
		}
	}
}

func runRetentionSweep(ctx context.Context, retention *services.RetentionService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := retention.Sweep(ctx); err != nil {
				logger.Error("retention_sweep_failed", err, nil)
			}
		}
	}
}
