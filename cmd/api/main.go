package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/gym/internal/api"
	"example.com/gym/internal/auth"
	"example.com/gym/internal/config"
	"example.com/gym/internal/domain"
	"example.com/gym/internal/logger"
	"example.com/gym/internal/outbox"
	"example.com/gym/internal/persistence"
	httptransport "example.com/gym/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := persistence.Open(connectCtx, cfg)
	connectCancel()
	if err != nil {
		log.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	settingsOpts := []domain.SettingsOption{domain.WithSettingsLogger(log)}
	attendanceOpts := []domain.AttendanceOption{domain.WithLogger(log), domain.WithLocation(cfg.Location())}
	if cfg.EventsEnabled {
		publisher := outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
		defer publisher.Close()
		settingsOpts = append(settingsOpts, domain.WithSettingsPublisher(publisher))
		attendanceOpts = append(attendanceOpts, domain.WithPublisher(publisher))
	}

	settings := domain.NewSettingsService(store, settingsOpts...)
	attendance := domain.NewAttendanceService(store, store, settings, attendanceOpts...)

	mux := http.NewServeMux()
	api.NewHandler(attendance, settings, log).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.SkipPublic)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.Chain(mux,
		httptransport.CORS(cfg.CORSOrigin),
		httptransport.RequestLogger(log),
		authMiddleware.Wrap,
		httptransport.Timeout(cfg.RequestTimeout),
	))

	go func() {
		log.Info("gym api listening", "address", cfg.HTTPAddress, "store", cfg.StoreDriver, "events", cfg.EventsEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", "error", err)
	}
}
