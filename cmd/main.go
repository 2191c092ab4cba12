package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/rxcheck-identity/config"
	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/internal/bootstrap"
	"github.com/oksasatya/rxcheck-identity/internal/container"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
	"github.com/oksasatya/rxcheck-identity/internal/infrastructure/memory"
	"github.com/oksasatya/rxcheck-identity/internal/infrastructure/redisstore"
	"github.com/oksasatya/rxcheck-identity/internal/infrastructure/totp"
	"github.com/oksasatya/rxcheck-identity/internal/interface/middleware"
	"github.com/oksasatya/rxcheck-identity/internal/router"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
	"github.com/oksasatya/rxcheck-identity/pkg/validation"
)

func main() {
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, helpers.WithLevel(cfg.LogLevel))
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	users, closeStore, err := bootstrap.OpenUserStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open user store: %v", err)
	}
	defer closeStore()

	// Redis backs the rate limiter and single-use temp tokens. Without it
	// both fall back to process memory.
	var usedTokens port.UsedTokenStore = memory.NewUsedTokenStore()
	rdb, err := helpers.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable; using in-process limiter and token store")
		rdb = nil
	} else {
		defer func() { _ = rdb.Close() }()
		usedTokens = redisstore.NewUsedTokenStore(rdb)
	}

	objects, closeObjects, err := bootstrap.OpenObjectStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}
	defer closeObjects()

	index, err := bootstrap.OpenUserIndex(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("elasticsearch unavailable; search disabled")
	}

	notifier, closeNotifier := bootstrap.OpenNotifier(ctx, cfg, logger)
	defer closeNotifier()
	notes := application.NewNotifications(notifier, logger, cfg.NotifyTimeout)

	jwtManager := helpers.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTTempTTL)
	creds := application.NewCredentialManager(helpers.NewBcryptHasher(cfg.BcryptCost))
	factor := totp.NewProvider(users, cfg.TOTPIssuer)

	userSvc := application.NewUserService(users, creds, objects, index, notes, logger)
	userSvc.SignedURLTTL = cfg.SignedURLTTL
	userSvc.AvatarMaxPx = cfg.AvatarMaxPx

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetRedis(rdb)
	container.SetJWT(jwtManager)
	container.SetServices(&container.Services{
		Auth:         application.NewAuthService(users, creds, factor, jwtManager, usedTokens, logger),
		Users:        userSvc,
		Resets:       application.NewResetService(users, creds, notes, logger, cfg.ResetCodeTTL),
		SecondFactor: application.NewSecondFactorService(users, factor, notes, logger),
	})

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	if cfg.HTTPLogEnabled {
		r.Use(middleware.AccessLog(logger))
	} else {
		r.Use(middleware.AccessLog(nil))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID, "X-OTPAuth-URL"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	reg := router.NewRegistry(r, "/api")
	router.InitModules(reg)
	reg.RegisterAll()
	logger.WithField("routes", len(reg.Routes())).Debug("routes registered")

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}
	notes.Wait()
	logger.Info("server exited properly")
}
