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

	"go.uber.org/zap"

	"github.com/linesmerrill/court-case-portal/api/handlers"
	"github.com/linesmerrill/court-case-portal/api/scheduler"
	"github.com/linesmerrill/court-case-portal/config"
	"github.com/linesmerrill/court-case-portal/databases"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := handlers.App{}
	a.Config = *config.New()
	defer func() { _ = zap.L().Sync() }()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err := a.Initialize(connectCtx) //initialize database and router
	cancel()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().Fatalw("failed to initialize", "error", err)
	}

	reconciler := scheduler.NewReconciler(
		databases.NewHearingDatabase(a.DB()),
		a.Mutator,
		a.Notes,
		a.Config.ReminderLead,
	)
	sched := scheduler.NewScheduler(reconciler, databases.NewSchedulerLockDatabase(a.DB()), &a.Config)
	if err := sched.Start(); err != nil {
		zap.S().Fatalw("failed to start reconciliation scheduler", "error", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zap.S().Infow("court-case-portal is up and running",
			"port", a.Config.Port,
			"url", a.Config.BaseURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Errorw("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	zap.S().Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Warnw("failed to shut down http server cleanly", "error", err)
	}
	sched.Stop()
	if err := a.Close(shutdownCtx); err != nil {
		zap.S().Warnw("failed to disconnect from database", "error", err)
	}
}
