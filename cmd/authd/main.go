package main

import (
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"msgapp/internal/config"
	"msgapp/internal/httpapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.AuthJWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	tokens := httpapi.NewTokenService(cfg.AuthJWTSecret, time.Duration(cfg.AuthTokenTTLMinutes)*time.Minute)
	authHandler := httpapi.NewAuthHandler(logger, tokens)
	router := httpapi.NewRouter(logger, authHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting authd", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
