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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/techserwis/notification_service/internal/platform/config"
	"github.com/techserwis/notification_service/internal/platform/database"
	"github.com/techserwis/notification_service/internal/platform/logger"

	"github.com/techserwis/notification_service/internal/notification_service/adapters/emailprovider"
	"github.com/techserwis/notification_service/internal/notification_service/app"
	"github.com/techserwis/notification_service/internal/notification_service/repository/postgres"
	transporthttp "github.com/techserwis/notification_service/internal/notification_service/transport/http"
)

const (
	serviceName     = "notification-service"
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("Starting service...")

	startupCtx, startupCancel := context.WithTimeout(mainCtx, startupTimeout)
	dbPool, err := database.NewDBPool(startupCtx, cfg.PostgresDSN)
	startupCancel()
	if err != nil {
		log.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	log.Info("Database connection pool initialized")

	notificationRepo := postgres.NewPgNotificationRepository(dbPool, log)

	provider := emailprovider.NewResendProvider(log, cfg.ResendAPIURL, cfg.ResendAPIKey,
		&http.Client{Timeout: cfg.ProviderRequestTimeout()})

	dispatcher := app.NewDispatcher(notificationRepo, provider, log, app.DispatcherConfig{
		BatchLimit:        cfg.BatchLimit,
		InterMessageDelay: cfg.InterMessageDelay(),
		SenderAddress:     cfg.SenderAddress,
	})
	enqueueService := app.NewEnqueueService(notificationRepo, log, cfg.DefaultMaxRetries)

	validate := validator.New()
	handler := transporthttp.NewNotificationHandler(enqueueService, dispatcher, log, validate)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	handler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbPool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		log.Info("Starting HTTP server...", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		log.Info("Initiating HTTP server graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Optional internal sweep ticker. The default posture is
	// DISPATCH_INTERVAL_SECONDS=0: the store stays passive and sweeps are
	// triggered only via POST /api/v1/notifications/dispatch by an external
	// scheduler.
	if interval := cfg.DispatchInterval(); interval > 0 {
		g.Go(func() error {
			log.Info("Starting internal dispatch ticker...", "interval", interval)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					summary, sweepErr := dispatcher.RunSweep(groupCtx, nil)
					if sweepErr != nil {
						// Store unreachable: keep ticking, records stay
						// pending and a later sweep picks them up.
						log.ErrorContext(groupCtx, "Scheduled sweep failed", "error", sweepErr)
						continue
					}
					if summary.Total > 0 {
						log.InfoContext(groupCtx, "Scheduled sweep finished",
							"total", summary.Total, "sent", summary.Sent, "failed", summary.Failed)
					}
				case <-groupCtx.Done():
					log.Info("Dispatch ticker stopping")
					return nil
				}
			}
		})
	}

	log.Info("Service components initialized. Service is ready.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received termination signal", "signal", sig.String())
	case <-groupCtx.Done():
		log.Error("A critical component failed, initiating shutdown")
	}

	mainCancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Error during shutdown", "error", err)
	}
	log.Info("Service shutdown complete.")
}
