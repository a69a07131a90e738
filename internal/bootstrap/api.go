package bootstrap

import (
	"strings"

	apihttp "draft_server/adapter/in/http"
	"draft_server/config"
	"draft_server/core/service/intake"
	"draft_server/infra/middleware"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// NewAPI assembles the HTTP surface: the unauthenticated webhook and
// health endpoints, and the JWT-protected dashboard API.
func NewAPI(cfg *config.Config, deps *Dependencies, intakeSvc *intake.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		// go-json is noticeably faster than encoding/json
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 5 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// CORS: credentials require explicit origins
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health checks (no auth)
	healthHandler := apihttp.NewHealthHandler(deps.DB, deps.Redis)
	healthHandler.Register(app)

	// Webhook intake (no auth - the notification provider calls this,
	// validated by clientState)
	webhookHandler := apihttp.NewWebhookHandler(intakeSvc)
	webhookHandler.Register(app)

	// Dashboard API (JWT protected)
	api := app.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))

	clientHandler := apihttp.NewClientHandler(deps.ClientRepo, deps.RenewalService)
	clientHandler.Register(api)

	templateHandler := apihttp.NewTemplateHandler(deps.TemplateRepo)
	templateHandler.Register(api)

	emailHandler := apihttp.NewEmailHandler(deps.EmailRepo, deps.ResponseRepo)
	emailHandler.Register(api)

	return app
}
