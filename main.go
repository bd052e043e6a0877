package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/pisoforte/insights-engine/pkg/audit"
	"github.com/pisoforte/insights-engine/pkg/auth"
	"github.com/pisoforte/insights-engine/pkg/config"
	"github.com/pisoforte/insights-engine/pkg/database"
	"github.com/pisoforte/insights-engine/pkg/handlers"
	"github.com/pisoforte/insights-engine/pkg/llm"
	"github.com/pisoforte/insights-engine/pkg/repositories"
	"github.com/pisoforte/insights-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host),
		zap.String("redis", cfg.Redis.Host),
		zap.String("ai_provider", cfg.AI.Provider))

	ctx := context.Background()

	// Migrations run over database/sql; the pipeline itself uses pgxpool.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Insights.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	aiClient, err := llm.NewClient(&cfg.AI, logger)
	if err != nil {
		logger.Fatal("Failed to create AI client", zap.Error(err))
	}

	generator := services.NewQueryGenerator(aiClient,
		time.Duration(cfg.AI.TimeoutSeconds)*time.Second, logger)
	executor := services.NewQueryExecutor(db, cfg.Insights.MaxRowLimit, logger)
	cache := services.NewResultCache(redisClient,
		time.Duration(cfg.Insights.CacheTTLMinutes)*time.Minute, logger)
	auditRepo := repositories.NewAuditRepository(db)
	secAuditor := audit.NewSecurityAuditor(logger)

	insightsService := services.NewInsightsService(
		generator, executor, cache, auditRepo, secAuditor,
		cfg.Insights.MaxRowLimit, logger)

	authMiddleware := auth.NewMiddleware(auth.NewAuthService(&cfg.Auth), logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewInsightsHandler(insightsService, logger).RegisterRoutes(mux, authMiddleware)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting insights-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
