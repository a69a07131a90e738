package bootstrap

import (
	"strings"
	"time"

	"draft_server/adapter/out/credential"
	"draft_server/adapter/out/generation"
	"draft_server/adapter/out/graphmail"
	"draft_server/adapter/out/persistence"
	"draft_server/config"
	"draft_server/core/domain"
	"draft_server/core/port/out"
	"draft_server/core/service/drafting"
	"draft_server/core/service/subscription"
	"draft_server/infra/database"
	"draft_server/pkg/crypto"
	"draft_server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	SQLDB  *sqlx.DB
	Redis  *redis.Client

	Encryptor *crypto.Encryptor

	// Repositories
	ClientRepo       domain.ClientRepository
	EmailRepo        domain.EmailRepository
	ResponseRepo     domain.ResponseRepository
	TemplateRepo     domain.TemplateRepository
	SubscriptionRepo domain.SubscriptionRepository

	// Outbound gateways
	Credentials out.CredentialProvider
	Mailbox     out.MailboxGateway
	Engine      out.GenerationEngine

	// Services
	Orchestrator   *drafting.Orchestrator
	RenewalService *subscription.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	// Database (pgxpool, health checks)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for the repository adapters)
	// Simple protocol avoids prepared statement conflicts behind PgBouncer
	sqlxURL := cfg.DatabaseURL
	if strings.Contains(sqlxURL, "?") {
		sqlxURL += "&default_query_exec_mode=simple_protocol"
	} else {
		sqlxURL += "?default_query_exec_mode=simple_protocol"
	}
	sqlDB, err := sqlx.Connect("pgx", sqlxURL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis is optional: intake dedupe degrades to DB-only idempotency
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis connection failed, dedupe falls back to DB uniqueness: %v", err)
	} else {
		deps.Redis = redisClient
		cleanups = append(cleanups, func() { redisClient.Close() })
	}

	// Token encryption
	encKey := cfg.EncryptionKey
	if encKey == "" {
		encKey = cfg.JWTSecret
	}
	encryptor, err := crypto.NewEncryptor([]byte(encKey))
	if err != nil {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		return nil, nil, err
	}
	deps.Encryptor = encryptor

	// Repositories
	deps.ClientRepo = persistence.NewClientAdapter(sqlDB)
	deps.EmailRepo = persistence.NewEmailAdapter(sqlDB)
	deps.ResponseRepo = persistence.NewResponseAdapter(sqlDB)
	deps.TemplateRepo = persistence.NewTemplateAdapter(sqlDB)
	deps.SubscriptionRepo = persistence.NewSubscriptionAdapter(sqlDB)

	// Credential provider (Azure OAuth refresh + encrypted storage)
	deps.Credentials = credential.NewProvider(deps.ClientRepo, encryptor, credential.Config{
		ClientID:     cfg.MicrosoftClientID,
		ClientSecret: cfg.MicrosoftClientSecret,
		TenantID:     cfg.MicrosoftTenantID,
		RedirectURL:  cfg.MicrosoftRedirectURL,
	})

	// Graph mailbox gateway
	deps.Mailbox = graphmail.NewGateway(30 * time.Second)

	// Generation engine
	deps.Engine = generation.NewEngine(generation.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout(),
	})

	// Drafting pipeline
	deps.Orchestrator = drafting.NewOrchestrator(
		deps.ClientRepo,
		deps.EmailRepo,
		deps.ResponseRepo,
		deps.TemplateRepo,
		deps.SubscriptionRepo,
		deps.Credentials,
		deps.Mailbox,
		deps.Engine,
	)

	// Subscription renewal
	deps.RenewalService = subscription.NewService(deps.SubscriptionRepo, deps.Credentials, deps.Mailbox)

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}
