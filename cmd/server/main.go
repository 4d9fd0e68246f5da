package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/mbodji/lendscan/internal/config"
	"github.com/mbodji/lendscan/internal/notify"
	"github.com/mbodji/lendscan/internal/repository/mongodb"
	"github.com/mbodji/lendscan/internal/repository/session"
	"github.com/mbodji/lendscan/internal/scheduler"
	"github.com/mbodji/lendscan/internal/server/handlers"
	"github.com/mbodji/lendscan/internal/server/router"
	eventctxsvc "github.com/mbodji/lendscan/internal/service/eventctx"
	scansvc "github.com/mbodji/lendscan/internal/service/scan"
	trackingsvc "github.com/mbodji/lendscan/internal/service/tracking"
	barcodeclient "github.com/mbodji/lendscan/pkg/clients/barcode"
	"github.com/mbodji/lendscan/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	repo, err := mongodb.NewRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	bus := notify.NewBus()
	sessions := session.NewFileStore(cfg.Session.FilePath)

	tracking := trackingsvc.NewService(repo, trackingsvc.NewLists(), bus, baseLogger.Named("svc.tracking"))
	pending := scansvc.NewPending(tracking, cfg.Scan.ConfirmWindow, cfg.Scan.CountdownTick, baseLogger.Named("svc.scan.pending"))
	scans := scansvc.NewService(repo, pending, baseLogger.Named("svc.scan"))
	events := eventctxsvc.NewManager(sessions, scans, tracking, baseLogger.Named("svc.eventctx"))

	// Restore the previous session's event selection before serving.
	events.Restore(context.Background())

	decoder := barcodeclient.NewClient(cfg.Barcode)
	scanHandler := handlers.NewScanHandler(scans, events, decoder, baseLogger.Named("handlers.scan"))
	eventHandler := handlers.NewEventHandler(events, repo, tracking, baseLogger.Named("handlers.event"))
	engine := router.New(scanHandler, eventHandler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Scan.RefreshInterval, events, tracking, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
