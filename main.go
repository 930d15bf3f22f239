package main

import (
	"context"
	"os"
	"time"

	"civicdesk/config"
	"civicdesk/database"
	"civicdesk/handlers"
	"civicdesk/middleware"
	"civicdesk/search"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	logger := newLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = newLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	cache := search.NewResultCache(cfg.CacheTTL)
	toggles := search.FeatureToggles{WrongDefaultSort: cfg.WrongDefaultSort}
	engine := search.NewEngine(db, cache, toggles, logger)

	r := gin.Default()
	r.Use(middleware.RequestID())

	r.GET("/health", handlers.HealthCheck)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired(cfg.JWTSecret))
	api.GET("/requests/search", handlers.SimpleSearch(engine))
	api.POST("/requests/search", handlers.RichSearch(engine))
	api.GET("/requests/search/suggestions", handlers.Suggestions(db))
	api.POST("/requests/export", handlers.Export(engine))
	api.POST("/admin/cache/clear", handlers.CacheClear(engine))

	logger.Info().Str("port", cfg.Port).Msg("server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// newLogger builds the process logger. Unrecognized or empty level strings
// fall back to info.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
