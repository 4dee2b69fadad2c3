package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/razaaliwebdev/sello/core"
	"github.com/razaaliwebdev/sello/modules/notifications"
	"github.com/razaaliwebdev/sello/modules/promotions"
	"github.com/razaaliwebdev/sello/pkg/audience"
	"github.com/razaaliwebdev/sello/pkg/authctx"
	"github.com/razaaliwebdev/sello/pkg/broadcast"
	"github.com/razaaliwebdev/sello/pkg/config"
	"github.com/razaaliwebdev/sello/pkg/email"
	"github.com/razaaliwebdev/sello/pkg/httpserver"
	"github.com/razaaliwebdev/sello/pkg/logger"
	"github.com/razaaliwebdev/sello/pkg/mongo"
	"github.com/razaaliwebdev/sello/pkg/redis"
)

type appConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"sello"`

	HTTP  httpserver.Config
	Mongo mongo.Config
	Redis redis.Config
	Email email.Config
}

func main() {
	ctx := context.Background()

	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithEnvironment(cfg.Environment, cfg.ServiceName))
	logger.SetAsDefault(log)

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	mongoClient, err := mongo.Connect(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.Mongo.Database)

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Email sender: Postmark in real environments, file dump in development
	// or when disabled.
	var sender email.Sender
	if cfg.Email.Enabled && cfg.Email.PostmarkServerToken != "" {
		sender, err = email.NewPostmarkClient(cfg.Email)
		if err != nil {
			return err
		}
	} else {
		sender = email.NewDevSender(cfg.Email.DevOutputDir)
		log.InfoContext(ctx, "email delivery disabled, writing to disk",
			slog.String("dir", cfg.Email.DevOutputDir))
	}

	hub := broadcast.NewHub[notifications.Payload]()
	defer hub.Close()

	notifStore := notifications.NewMongoStorage(db)
	if err := notifStore.EnsureIndexes(ctx); err != nil {
		return err
	}
	promoStore := promotions.NewMongoStorage(db)
	if err := promoStore.EnsureIndexes(ctx); err != nil {
		return err
	}

	resolver := audience.NewResolver(audience.NewMongoUserStore(db))
	engine := notifications.NewEngine(notifStore,
		notifications.WithLogger(log),
		notifications.WithBroadcaster(hub),
		notifications.WithEmail(sender, cfg.Email.Enabled),
		notifications.WithBaseURL(cfg.Email.BaseURL),
	)

	notifSvc := notifications.NewService(notifStore, resolver, engine)
	promoSvc := promotions.NewService(promoStore, resolver, engine,
		promotions.WithServiceLogger(log),
		promotions.WithCache(promotions.NewRedisCache(redisClient, promotions.WithCacheLogger(log))),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(authctx.Middleware)

	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/readyz", httpserver.HealthCheckHandler(ctx, log,
		mongo.Healthcheck(mongoClient),
		redis.Healthcheck(redisClient),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/promotions", promotions.NewHandler(promoSvc, log).Router())
		r.Mount("/notifications", notifications.NewHandler(notifSvc, hub, log).Router())
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		core.JSONError(w, core.ErrNotFound)
	})

	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}
