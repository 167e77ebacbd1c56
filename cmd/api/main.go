package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"bueiro-auth/internal/config"
	"bueiro-auth/internal/db"
	apihttp "bueiro-auth/internal/http"
	"bueiro-auth/internal/queue"
	"bueiro-auth/internal/repository"
	"bueiro-auth/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)

	tokenSvc, err := service.NewTokenService(
		cfg.SecretKey,
		cfg.Algorithm,
		time.Duration(cfg.AccessTokenExpireMinutes)*time.Minute,
	)
	if err != nil {
		logger.Fatal("token service init", zap.Error(err))
	}
	totpSvc := service.NewTOTPService(cfg.TOTPIssuer)
	authSvc := service.NewAuthService(logger, userRepo, tokenSvc, totpSvc)

	var tasks queue.Enqueuer = queue.NewDisabledEnqueuer()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			tasks = queue.NewRedisEnqueuer(redisClient)
		}
		cancel()
	}

	authHandler := apihttp.NewAuthHandler(logger, authSvc, tasks)
	router := apihttp.NewRouter(logger, authHandler, tokenSvc, userRepo, cfg.CORSOrigins, func(ctx context.Context) error {
		return db.Ping(ctx, pool)
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
