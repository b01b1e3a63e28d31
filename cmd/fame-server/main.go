package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fame/internal/api"
	"fame/internal/app"
	"fame/internal/config"
	"fame/internal/logger"
	"fame/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const tokenTTL = 30 * 24 * time.Hour

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.RequireServer(); err != nil {
		log.Fatal("invalid server configuration", zap.Error(err))
	}

	ctx := context.Background()

	// 2. Initialize the application
	application, cleanup, err := app.Bootstrap(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	// 3. Initialize Telegram Bot
	bot, err := telegram.NewBot(cfg, application, log)
	if err != nil {
		log.Fatal("failed to initialize telegram bot", zap.Error(err))
	}

	// 4. Routes
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(api.RouterConfig{
		Handler:        api.NewHandler(application, log),
		Tokens:         api.NewTokenIssuer(cfg.APIJWTSecret, tokenTTL),
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         log,
	})
	r.POST("/webhook", gin.WrapF(bot.HandleWebhook))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 5. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info("fame server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("server exiting")
}
