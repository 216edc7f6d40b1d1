package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/embedpulse/survey-server/config"
	"github.com/embedpulse/survey-server/controllers"
	"github.com/embedpulse/survey-server/middleware"
	"github.com/embedpulse/survey-server/routes"
	"github.com/embedpulse/survey-server/services"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	config.ConnectDB(cfg)

	quotaOpts := []services.QuotaOption{}
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		client := redis.NewClient(opt)
		quotaOpts = append(quotaOpts, services.WithQuotaCache(services.NewRedisQuotaCache(client)))
		slog.Info("quota cache backed by redis")
	}
	controllers.Init(
		services.NewAggregator(config.DB),
		services.NewQuotaGate(config.DB, quotaOpts...),
	)

	middleware.ConfigureSubmitLimiter(cfg.SubmitPerMinute, cfg.SubmitBurst)

	r := gin.Default()

	// The widget lives on arbitrary third-party pages, so any origin may
	// call the API; the bearer token is the actual gate.
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if err := r.SetTrustedProxies(nil); err != nil {
		panic(err)
	}

	routes.SetupRoutes(r)

	slog.Info("server listening", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
