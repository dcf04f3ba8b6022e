package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"pharmcatalog/docs" // swagger docs

	"pharmcatalog/internal/auth"
	"pharmcatalog/internal/cache"
	"pharmcatalog/internal/config"
	"pharmcatalog/internal/db"
	"pharmcatalog/internal/handler"
	"pharmcatalog/internal/logger"
	"pharmcatalog/internal/repository"
	"pharmcatalog/internal/router"
	"pharmcatalog/internal/service"
	"pharmcatalog/internal/storage"
)

// @title Pharmacy Catalog API
// @version 1.0
// @description Drug catalog administration API with JWT authentication, role based access and image uploads.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.JWTSecret == "change-me" {
		log.Warn().Msg("JWT_SECRET is the built-in default; set a real secret outside development")
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN, db.NewLogger(log))
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database init")
	}

	if cfg.ResetDB {
		log.Warn().Msg("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			log.Warn().Err(err).Msg("failed to drop tables (may not exist)")
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal().Err(err).Msg("auto-migrate")
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if cacheClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := cacheClient.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, serving without cache")
			cacheClient.Close()
			cacheClient = nil
		}
		cancel()
	}
	defer cacheClient.Close()

	store, err := storage.NewLocal(cfg.UploadDir, cfg.UploadURLPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("upload storage init")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	drugRepo := repository.NewDrugRepository(gormDB)

	// Initialize auth components
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry)

	// Initialize services
	authService := service.NewAuthService(userRepo, hasher, jwtService)
	drugService := service.NewDrugService(drugRepo, cacheClient, cfg.CacheTTL)
	uploadService := service.NewUploadService(store, service.UploadLimits{
		MaxFiles:     cfg.UploadMaxFiles,
		MaxFileBytes: cfg.UploadMaxFileBytes,
	}, log)

	e := echo.New()
	router.Register(e, cfg, log, jwtService, func(ctx context.Context) error {
		return db.Ping(ctx, gormDB)
	}, router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Drugs:   handler.NewDrugHandler(drugService, uploadService, log),
		Uploads: handler.NewUploadHandler(uploadService),
	})

	if cfg.SwaggerHost != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
		docs.SwaggerInfo.Host = host
		if strings.HasPrefix(cfg.SwaggerHost, "https://") {
			docs.SwaggerInfo.Schemes = []string{"https"}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info().Str("addr", addr).Str("swagger", "/swagger/index.html").Msg("server starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}
