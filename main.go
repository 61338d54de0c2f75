package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/config"
	"github.com/strata-bi/strata-engine/pkg/database"
	"github.com/strata-bi/strata-engine/pkg/handlers"
	"github.com/strata-bi/strata-engine/pkg/logging"
	"github.com/strata-bi/strata-engine/pkg/middleware"
	"github.com/strata-bi/strata-engine/pkg/repositories"
	"github.com/strata-bi/strata-engine/pkg/services"
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
		zap.String("model_path", cfg.ModelPath),
		zap.Float64("matcher_threshold", cfg.Matcher.AcceptanceThreshold),
		zap.Bool("history_enabled", cfg.Database.Enabled()))

	loader := services.NewModelLoader(logger)
	source := func() ([]byte, error) { return os.ReadFile(cfg.ModelPath) }

	definition, err := source()
	if err != nil {
		logger.Fatal("Failed to read semantic model document", zap.Error(err))
	}
	model, err := loader.Load(definition)
	if err != nil {
		logger.Fatal("Failed to load semantic model", zap.Error(err))
	}

	var history services.ResolutionHistoryService
	if cfg.Database.Enabled() {
		ctx := context.Background()
		if err := database.RunMigrations(cfg.Database.URL(), cfg.Database.MigrationsPath, logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
		}
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.URL(),
			MaxConnections: cfg.Database.MaxConnections,
		})
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
		}
		defer db.Close()
		history = services.NewResolutionHistoryService(repositories.NewResolutionHistoryRepository(db), logger)
	}

	matcher := services.NewVerifiedMatcher(cfg.Matcher.AcceptanceThreshold, logger)
	resolver := services.NewJoinResolver(logger)
	substitutor := services.NewSubstitutor(cfg.Resolution.DefaultLookbackDays, cfg.Resolution.DefaultRowLimit, logger)
	resolution := services.NewResolutionService(model, source, loader, matcher, resolver, substitutor, history, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewResolveHandler(resolution, logger).RegisterRoutes(mux)
	if history != nil {
		handlers.NewHistoryHandler(history, logger).RegisterRoutes(mux)
	}

	handler := middleware.RequestLogger(logger)(mux)
	handler = middleware.BearerAuth(cfg.Auth.TokenSecret, logger)(handler)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting strata-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.String("model", model.Name))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
