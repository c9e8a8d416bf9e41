// Package main runs the collaboration engine: the request lifecycle services,
// the realtime synchronizer, and the REST API in a single process.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/CollabMarket/collab_engine/internal/app"
	"github.com/CollabMarket/collab_engine/internal/app/domain/collab"
	gatewaysb "github.com/CollabMarket/collab_engine/internal/app/gateway/supabase"
	"github.com/CollabMarket/collab_engine/internal/app/httpapi"
	paymentsvc "github.com/CollabMarket/collab_engine/internal/app/services/payments"
	syncsvc "github.com/CollabMarket/collab_engine/internal/app/services/sync"
	"github.com/CollabMarket/collab_engine/internal/app/storage/postgres"
	"github.com/CollabMarket/collab_engine/internal/config"
	"github.com/CollabMarket/collab_engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("engine").WithError(err).Error("loading configuration")
		os.Exit(1)
	}

	log := logger.New(cfg.Logging).WithField("component", "engine")

	gw, err := gatewaysb.New(gatewaysb.Config{
		URL:    cfg.Supabase.URL,
		APIKey: cfg.Supabase.APIKey,
	}, log)
	if err != nil {
		log.WithError(err).Error("building gateway")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := gw.Connect(ctx); err != nil {
		log.WithError(err).Warn("realtime connection failed; continuing with polling only")
	}

	var stores app.Stores
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			log.WithError(err).Error("opening database")
			os.Exit(1)
		}
		defer db.Close()
		pg := postgres.New(db)
		stores = app.Stores{Requests: pg, Payments: pg, Posts: pg}
		log.Info("using postgres-backed local cache")
	} else {
		log.Info("DATABASE_URL not set; using in-memory local cache")
	}

	var mapping map[string]string
	if cfg.BucketMappingFile != "" {
		mapping, err = config.LoadBucketMapping(cfg.BucketMappingFile)
		if err != nil {
			log.WithError(err).Error("loading bucket mapping")
			os.Exit(1)
		}
	}

	application, err := app.New(gw, stores, app.Options{
		ActorID: cfg.Actor.ID,
		Role:    collab.Role(cfg.Actor.Role),
		Fulfillment: paymentsvc.RunnerConfig{
			Delay:       cfg.Fulfill.Delay,
			Interval:    cfg.Fulfill.Interval,
			AutoFulfill: cfg.Fulfill.AutoFulfill,
		},
		Sync: syncsvc.Config{
			ResyncSchedule: cfg.Sync.ResyncSchedule,
		},
		BucketMapping: mapping,
	}, log)
	if err != nil {
		log.WithError(err).Error("building application")
		os.Exit(1)
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("starting application")
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewHandler(application),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
	if err := gw.CloseRealtime(); err != nil {
		log.WithError(err).Warn("closing realtime connection")
	}
}
