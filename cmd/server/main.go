package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/uidraft/backend/internal/auth"
	"github.com/uidraft/backend/internal/config"
	"github.com/uidraft/backend/internal/db"
	"github.com/uidraft/backend/internal/handlers"
	"github.com/uidraft/backend/internal/presence"
	"github.com/uidraft/backend/internal/ratelimit"
	"github.com/uidraft/backend/internal/relay"
	"github.com/uidraft/backend/internal/rooms"
	"github.com/uidraft/backend/internal/storage"
	"github.com/uidraft/backend/internal/vision"
	"github.com/uidraft/backend/internal/ws"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "uidraft").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	database, err := db.New(cfg.DatabaseURL, cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer database.Close()

	if err := database.RunMigrations("migrations"); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	authService := auth.NewService(database.Postgres, cfg.JWTSecret, cfg.JWTExpiry)
	roomStore := rooms.NewStore(database.Postgres)
	limiter := ratelimit.NewLimiter(database.Redis)
	tracker := presence.NewTracker(database.Redis, logger)
	visionClient := vision.NewClient(cfg.OpenAIBase, cfg.OpenAIKey, cfg.VisionModel, logger)

	var objectStore *storage.Service
	if cfg.S3Endpoint != "" {
		objectStore, err = storage.New(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("object storage unavailable, continuing without it")
		}
	}

	relayServer := relay.NewServer(logger)
	wsHandler := ws.NewHandler(relayServer, tracker, authService, logger)

	authHandler := handlers.NewAuthHandler(authService, limiter, logger)
	roomsHandler := handlers.NewRoomsHandler(roomStore, authService, tracker, logger)
	generateHandler := handlers.NewGenerateHandler(visionClient, objectStore, limiter, logger)

	r := mux.NewRouter()
	r.Handle("/ws", wsHandler)
	r.HandleFunc("/health", handlers.Health(database)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(authService.Middleware)
	authed.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet)
	authed.HandleFunc("/rooms", roomsHandler.Create).Methods(http.MethodPost)
	authed.HandleFunc("/rooms", roomsHandler.List).Methods(http.MethodGet)
	authed.HandleFunc("/rooms/join", roomsHandler.Join).Methods(http.MethodPost)
	authed.HandleFunc("/rooms/{id}", roomsHandler.Get).Methods(http.MethodGet)
	authed.HandleFunc("/rooms/{id}", roomsHandler.Update).Methods(http.MethodPut)
	authed.HandleFunc("/rooms/{id}", roomsHandler.Delete).Methods(http.MethodDelete)
	authed.HandleFunc("/rooms/{id}/share", roomsHandler.Share).Methods(http.MethodPost)
	authed.HandleFunc("/flutter/generate-flutter", generateHandler.Flutter).Methods(http.MethodPost)
	authed.HandleFunc("/generate/generate-json", generateHandler.JSON).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsMiddleware(requestLogger(logger)(r)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server exited")
}

// corsMiddleware lets the browser editor call the API from its own origin.
// OPTIONS preflights are answered here so they never reach the router.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if r.URL.Path == "/health" {
				return
			}
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
