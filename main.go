package main

import (
	"flag"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"remind-server/alarm"
	"remind-server/backup"
	"remind-server/config"
	"remind-server/delivery"
	"remind-server/handlers"
	"remind-server/middleware"
	"remind-server/schedule"
	"remind-server/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.S().Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		zap.S().Fatalf("invalid config: %v", err)
	}

	logger, err := buildLogger(cfg.Log.Level)
	if err != nil {
		zap.S().Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}

	s, err := store.New(cfg.DBPath, log)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}
	defer s.Close()

	if cfg.Backup.Enabled {
		keeper, err := backup.Open(cfg.Backup.RepoPath, log)
		if err != nil {
			log.Fatalf("failed to open backup repository: %v", err)
		}
		s.SetSnapshotter(keeper)
		log.Infof("snapshot backup enabled at %s", cfg.Backup.RepoPath)
	}

	auth := middleware.NewAuth(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	hub := handlers.NewHub(auth, log)
	go hub.Run()

	engine := schedule.NewEngine(loc)

	// The dispatcher fires into the delivery handler, which in turn schedules
	// repeats back through the dispatcher.
	var deliveryHandler *delivery.Handler
	dispatcher := alarm.New(
		func(id string) { deliveryHandler.HandleFire(id) },
		func() bool { return cfg.Alarm.ExactEnabled },
		log,
	)
	defer dispatcher.Stop()
	deliveryHandler = delivery.NewHandler(s, engine, dispatcher, hub, log)

	// Pending timers do not survive a restart; rebuild them from the store.
	deliveryHandler.Reconcile()

	authHandler := handlers.NewAuthHandler(s, auth)
	reminderHandler := handlers.NewReminderHandler(s, engine, dispatcher, hub, log)

	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/ws", hub.HandleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Protected routes
	mux.HandleFunc("GET /api/auth/me", auth.Require(authHandler.Me))

	mux.HandleFunc("GET /api/reminders", auth.Require(reminderHandler.List))
	mux.HandleFunc("POST /api/reminders", auth.Require(reminderHandler.Create))
	mux.HandleFunc("GET /api/reminders/history", auth.Require(reminderHandler.History))
	mux.HandleFunc("DELETE /api/reminders/history", auth.Require(reminderHandler.ClearHistory))
	mux.HandleFunc("PUT /api/reminders/{id}", auth.Require(reminderHandler.Update))
	mux.HandleFunc("DELETE /api/reminders/{id}", auth.Require(reminderHandler.Delete))
	mux.HandleFunc("DELETE /api/reminders/{id}/purge", auth.Require(reminderHandler.Purge))
	mux.HandleFunc("POST /api/reminders/{id}/complete", auth.Require(reminderHandler.Complete))
	mux.HandleFunc("POST /api/reminders/{id}/restore", auth.Require(reminderHandler.Restore))

	handler := corsMiddleware(mux)

	log.Infof("remind server starting on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stdout"}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func init() {
	// Fallback logger for failures before the configured one exists.
	zap.ReplaceGlobals(zap.Must(zap.NewProduction()))
}
