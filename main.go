package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/JBRUL254/apexnurse/config"
	"github.com/JBRUL254/apexnurse/db"
	"github.com/JBRUL254/apexnurse/explain"
	"github.com/JBRUL254/apexnurse/handlers"
	"github.com/JBRUL254/apexnurse/ingestion"
	"github.com/JBRUL254/apexnurse/middleware"
	"github.com/JBRUL254/apexnurse/session"
	"github.com/JBRUL254/apexnurse/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Select the question/performance backend
	var (
		backend store.Store
		bank    store.BankWriter
	)
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := db.InitDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		defer pool.Close()
		if err := db.CreateSchema(pool); err != nil {
			log.Fatalf("Error creating database schema: %v", err)
		}
		pg := store.NewPostgres(pool)
		backend, bank = pg, pg
	case "rest":
		backend = store.NewREST(cfg.QuestionAPIURL, cfg.QuestionAPITimeout)
	case "sqlite":
		sq, err := store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Unable to open sqlite store: %v", err)
		}
		defer sq.Close()
		backend, bank = sq, sq
	default:
		log.Fatalf("Unknown store backend: %s", cfg.StoreBackend)
	}

	// Seed question banks on startup if configured
	if cfg.SeedPath != "" {
		if bank == nil {
			log.Printf("SEED_PATH is set but the %s backend is read-only, skipping seeding", cfg.StoreBackend)
		} else if err := ingestion.SeedFromDir(context.Background(), bank, cfg.SeedPath); err != nil {
			log.Fatalf("Error seeding question banks: %v", err)
		}
	}

	// Live sessions for this process
	registry := session.NewRegistry(cfg.SessionIdleTTL)

	// Reasoning proxy, enabled only when a key is configured
	var explainClient *explain.Client
	if cfg.ExplainAPIKey != "" {
		explainClient = explain.NewClient(cfg.ExplainAPIURL, cfg.ExplainAPIKey, cfg.ExplainModel, cfg.ExplainAPITimeout)
	} else {
		log.Println("EXPLAIN_API_KEY not set, explanations disabled")
	}

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Initialize Gin router
	router := gin.Default()

	// Middleware
	router.Use(middleware.Logger()) // Custom logger middleware
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))

	// Guest token endpoint stays outside the auth group
	router.POST("/auth/guest", handlers.GuestLogin(cfg.Auth))

	// API Routes (version 1)
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.Auth(cfg.Auth))
	{
		apiV1.GET("/papers", handlers.GetPapers(backend))
		apiV1.GET("/papers/:paper/series", handlers.GetSeries(backend))

		apiV1.POST("/sessions", handlers.StartSession(backend, registry, cfg.RandomSampleSize))
		apiV1.GET("/sessions/:session_id", handlers.GetSessionState(registry))
		apiV1.POST("/sessions/:session_id/select", handlers.SelectOption(registry))
		apiV1.POST("/sessions/:session_id/check", handlers.CheckAnswer(registry))
		apiV1.POST("/sessions/:session_id/next", handlers.NextQuestion(registry))
		apiV1.POST("/sessions/:session_id/previous", handlers.PreviousQuestion(registry))
		apiV1.POST("/sessions/:session_id/jump", handlers.JumpToQuestion(registry))
		apiV1.POST("/sessions/:session_id/finish", handlers.FinishSession(registry, backend))
		apiV1.POST("/sessions/:session_id/exit", handlers.ExitSession(registry))

		apiV1.POST("/explain", handlers.Explain(explainClient))

		apiV1.GET("/performance", handlers.GetPerformance(backend))
		apiV1.GET("/preferences", handlers.GetPreferences(backend))
		apiV1.PUT("/preferences", handlers.UpdatePreferences(backend))
	}

	// Background sweep for abandoned sessions, stopped on shutdown
	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if dropped := registry.Sweep(time.Now()); dropped > 0 {
					log.Printf("Swept %d abandoned session(s), %d still live", dropped, registry.Len())
				}
			case <-sweepDone:
				return
			}
		}
	}()

	// Start the server
	srv := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	// Goroutine to gracefully shut down the server
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		close(sweepDone)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("ApexNurse server starting on %s (backend: %s)", cfg.ServerPort, cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server startup error: %v", err)
	}
	log.Println("Server exited gracefully.")
}
