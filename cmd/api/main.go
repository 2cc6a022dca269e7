package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/finclass/bank-sim/internal/config"
	"github.com/finclass/bank-sim/internal/handler"
	"github.com/finclass/bank-sim/internal/integrations/rates"
	"github.com/finclass/bank-sim/internal/middleware"
	"github.com/finclass/bank-sim/internal/notify"
	"github.com/finclass/bank-sim/internal/repository"
	"github.com/finclass/bank-sim/internal/scheduler"
	"github.com/finclass/bank-sim/internal/service"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database. No schedule can be trusted without durable
	// state, so store connectivity failure here is fatal.
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	hub := notify.NewHub(logger)
	if cfg.SMTPHost != "" {
		hub.AddSink(notify.NewEmailSink(cfg, logger))
	}
	ratesClient := rates.NewClient(cfg, logger)
	applier := scheduler.NewApplier(repo, hub, ratesClient, logger)
	engine := scheduler.NewEngine(repo, applier, cfg.CatchupFallback, logger)
	sched := scheduler.New(repo, applier, logger)

	ctx := context.Background()

	// Replay everything missed during the silent window, then arm timers.
	res := engine.Run(ctx)
	if !res.Success {
		logger.Fatalf("Startup catch-up failed: %s", res.Error)
	}
	if err := sched.Start(ctx); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	// Periodic safety sweep: heals schedules whose timer was lost.
	sweeper := cron.New(cron.WithLocation(cfg.Location()))
	if _, err := sweeper.AddFunc(cfg.SweepSpec, func() {
		r := engine.Run(context.Background())
		if !r.Success {
			logger.Errorf("Catch-up sweep failed: %s", r.Error)
		}
	}); err != nil {
		logger.Fatalf("Invalid catch-up sweep spec %q: %v", cfg.SweepSpec, err)
	}
	sweeper.Start()

	svc := service.NewService(repo, sched, engine, ratesClient, logger, cfg)
	h := handler.NewHandler(svc)

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/key-rate", h.KeyRate).Methods("GET")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	authRouter.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	authRouter.HandleFunc("/accounts/{id}/scheduled", h.AddScheduled).Methods("POST")
	authRouter.HandleFunc("/accounts/{id}/scheduled/{txID}", h.DeleteScheduled).Methods("DELETE")
	authRouter.HandleFunc("/admin/catchup", h.RunCatchup).Methods("POST")
	authRouter.HandleFunc("/admin/catchup/stats", h.CatchupStats).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown: record the stop time so the next startup knows
	// the silent-window start.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit
	logger.Info("Shutting down")

	sweeper.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Failed to record shutdown: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}
