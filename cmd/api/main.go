package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/openfield/notify-api/internal/config"
	"github.com/openfield/notify-api/internal/email"
	"github.com/openfield/notify-api/internal/handler"
	notificationhandler "github.com/openfield/notify-api/internal/handler/notification"
	subscriptionhandler "github.com/openfield/notify-api/internal/handler/subscription"
	userhandler "github.com/openfield/notify-api/internal/handler/user"
	"github.com/openfield/notify-api/internal/middleware"
	"github.com/openfield/notify-api/internal/push"
	"github.com/openfield/notify-api/internal/repository/postgres"
	"github.com/openfield/notify-api/internal/router"
	authservice "github.com/openfield/notify-api/internal/service/auth"
	notificationservice "github.com/openfield/notify-api/internal/service/notification"
	subscriptionservice "github.com/openfield/notify-api/internal/service/subscription"
	userservice "github.com/openfield/notify-api/internal/service/user"
	"github.com/openfield/notify-api/pkg/logger"
	"github.com/openfield/notify-api/pkg/messaging"
	"github.com/openfield/notify-api/pkg/messaging/redis"
	"github.com/openfield/notify-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Log.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	subscriptionRepo := postgres.NewSubscriptionRepository(base)
	notificationRepo := postgres.NewNotificationRepository(base)

	pusher, err := push.NewWebPushSender(push.Config{
		Subscriber:      cfg.Push.Subscriber,
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		TTL:             cfg.Push.TTL,
	})
	if err != nil {
		log.Fatal(err, "failed to initialize push sender")
	}

	var mailer email.Service
	if cfg.SMTP.Enabled {
		mailer = email.NewService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	var broker messaging.Broker
	if cfg.Redis.Enabled {
		broker, err = redis.NewBroker(redis.Config{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log.Zerolog())
		if err != nil {
			log.Fatal(err, "failed to connect to Redis")
		}
		defer broker.Close()
	}

	m := metrics.NewMetrics("notify", prometheus.DefaultRegisterer)

	authSvc := authservice.NewService(cfg.JWT)
	userSvc := userservice.NewService(userRepo)
	subscriptionSvc := subscriptionservice.NewService(subscriptionRepo)
	notificationSvc := notificationservice.NewService(
		notificationRepo,
		subscriptionRepo,
		userRepo,
		pusher,
		mailer,
		broker,
		m,
		log,
		notificationservice.Config{
			MaxParallel: cfg.Push.MaxParallel,
			FrontendURL: cfg.FrontendURL,
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(authSvc, userSvc)

	h := handler.NewHandler(db)
	subscriptionH := subscriptionhandler.NewHandler(subscriptionSvc, cfg.Push.VAPIDPublicKey)
	notificationH := notificationhandler.NewHandler(notificationSvc)
	userH := userhandler.NewHandler(userSvc)

	r := router.NewRouter(log, authMiddleware, subscriptionH, notificationH, userH, h, router.Config{
		Timeout:   time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		RateLimit: middleware.RateLimiterConfig{RequestsPerSecond: cfg.RateLimit.RequestsPerSecond, Burst: cfg.RateLimit.Burst},
		CORS:      middleware.DefaultCORSConfig(),
		Namespace: "notify",
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Zerolog().Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("server exited")
}
