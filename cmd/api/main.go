package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comparteride/circles-backend/api/routes"
	"github.com/comparteride/circles-backend/internal/circles"
	"github.com/comparteride/circles-backend/internal/invitations"
	"github.com/comparteride/circles-backend/internal/memberships"
	"github.com/comparteride/circles-backend/internal/ratings"
	"github.com/comparteride/circles-backend/internal/rides"
	"github.com/comparteride/circles-backend/internal/users"
	"github.com/comparteride/circles-backend/pkg/config"
	"github.com/comparteride/circles-backend/pkg/db"
	"github.com/comparteride/circles-backend/pkg/logger"
	"github.com/comparteride/circles-backend/pkg/metrics"
	"github.com/comparteride/circles-backend/pkg/migrate"
	"github.com/comparteride/circles-backend/pkg/outbox"
	"github.com/comparteride/circles-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	circlesRepo := circles.NewRepository(conn)
	membershipsRepo := memberships.NewRepository(conn)
	ridesRepo := rides.NewRepository(conn)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	rideMetrics := metrics.NewRideMetrics(prometheus.DefaultRegisterer)

	usersService, err := users.NewService(users.ServiceParams{
		Tx:             dbClient,
		Repo:           usersRepo,
		Outbox:         outboxService,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	circlesService, err := circles.NewService(dbClient, circlesRepo, membershipsRepo, outboxService, cfg.Invitations)
	if err != nil {
		logg.Error(context.Background(), "failed to create circles service", err)
		os.Exit(1)
	}

	invitationsService, err := invitations.NewService(invitations.ServiceParams{
		Tx:          dbClient,
		Repo:        invitations.NewRepository(conn),
		Memberships: membershipsRepo,
		Circles:     circlesRepo,
		Outbox:      outboxService,
		Logger:      logg,
		Metrics:     rideMetrics,
		Config:      cfg.Invitations,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invitations service", err)
		os.Exit(1)
	}

	ridesService, err := rides.NewService(rides.ServiceParams{
		Tx:          dbClient,
		Repo:        ridesRepo,
		Memberships: membershipsRepo,
		Circles:     circlesRepo,
		Users:       usersRepo,
		Outbox:      outboxService,
		Logger:      logg,
		Metrics:     rideMetrics,
		Config:      cfg.Rides,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rides service", err)
		os.Exit(1)
	}

	ratingsService, err := ratings.NewService(ratings.ServiceParams{
		Tx:     dbClient,
		Repo:   ratings.NewRepository(conn),
		Rides:  ridesRepo,
		Users:  usersRepo,
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ratings service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Cache:       redisClient,
			Metrics:     promhttp.Handler(),
			Users:       usersService,
			Circles:     circlesService,
			Invitations: invitationsService,
			Rides:       ridesService,
			Ratings:     ratingsService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shutting down gracefully")
}
