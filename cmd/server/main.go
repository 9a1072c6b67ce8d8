package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/shaggydog-ai/shaggydog/internal/api/v1/handlers"
	"github.com/shaggydog-ai/shaggydog/internal/api/v1/middleware"
	"github.com/shaggydog-ai/shaggydog/internal/api/v1/routes"
	"github.com/shaggydog-ai/shaggydog/internal/config"
	"github.com/shaggydog-ai/shaggydog/internal/db"
	"github.com/shaggydog-ai/shaggydog/internal/db/repos"
	"github.com/shaggydog-ai/shaggydog/internal/logger"
	"github.com/shaggydog-ai/shaggydog/internal/services"
	"github.com/shaggydog-ai/shaggydog/internal/vision"
)

func main() {
	// Load .env file if present; real env vars take precedence
	_ = godotenv.Load()

	logger.InitializeAndConfigure()
	cfg := config.Load()

	database, err := db.New(cfg.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	visionClient, err := vision.NewClient(vision.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		logger.Fatalf("Failed to create vision client: %v", err)
	}

	// Repositories and services
	userRepo := repos.NewUserRepository(database)
	jobRepo := repos.NewJobRepository(database)

	userService := services.NewUserService(userRepo)
	jobService := services.NewJobService(
		jobRepo,
		services.NewDetector(visionClient),
		services.NewGenerator(visionClient),
		cfg.StageCount,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Pipeline workers; jobs abandoned by a previous run are re-queued
	// before new submissions arrive.
	var wg sync.WaitGroup
	pool := services.NewPool(jobService, cfg.Workers)
	pool.Start(ctx, &wg)
	if err := pool.Reconcile(ctx); err != nil {
		logger.Errorf("Reconciliation sweep failed: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.MaxUploadSize) + 1024*1024, // multipart overhead headroom
	})
	app.Use(middleware.Logger())

	jobHandler := handlers.NewJobHandler(jobService, pool, cfg.MaxUploadSize)
	userHandler := handlers.NewUserHandler(userService)
	routes.RegisterRoutes(app, userHandler, jobHandler, middleware.RequireAuth(userService))

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		_ = app.Shutdown()
	}()

	logger.Infof("Listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Errorf("Server stopped: %v", err)
	}

	cancel()
	wg.Wait()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
