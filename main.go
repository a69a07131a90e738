package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"draft_server/config"
	"draft_server/core/service/intake"
	"draft_server/internal/bootstrap"
	"draft_server/pkg/crypto"
	"draft_server/pkg/logger"
)

func main() {
	mode := flag.String("mode", "all", "run mode: api, worker, or all")
	flag.Parse()

	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "draft-server",
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config: %v", err)
	}

	if err := crypto.Init(); err != nil {
		logger.Fatal("Failed to initialize encryption: %v", err)
	}

	deps, cleanup, err := bootstrap.NewDependencies(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	// The draft queue is in-process, so the pool runs in every mode;
	// the scheduler and HTTP surface are what the mode toggles.
	wrk := bootstrap.NewWorker(cfg, deps)
	wrk.Start()
	defer wrk.Stop()

	if *mode != "api" {
		wrk.StartScheduler()
	}

	var app *fiber.App
	if *mode != "worker" {
		intakeSvc := intake.NewService(deps.SubscriptionRepo, wrk.Queue(), deps.Redis, cfg.WebhookClientState)
		app = bootstrap.NewAPI(cfg, deps, intakeSvc)

		go func() {
			logger.Info("Starting HTTP server on port %s (mode: %s)", cfg.Port, *mode)
			if err := app.Listen(":" + cfg.Port); err != nil {
				logger.Fatal("Server failed: %v", err)
			}
		}()
	} else {
		logger.Info("Running in worker mode (no HTTP server)")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	if app != nil {
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("Server shutdown error: %v", err)
		}
	}
}
