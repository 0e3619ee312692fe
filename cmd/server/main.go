package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/formpilot/formpilot/internal/api"
	"github.com/formpilot/formpilot/internal/broadcast"
	"github.com/formpilot/formpilot/internal/config"
	"github.com/formpilot/formpilot/internal/engine"
	"github.com/formpilot/formpilot/internal/executor"
	"github.com/formpilot/formpilot/internal/ratelimit"
	"github.com/formpilot/formpilot/internal/session"
	"github.com/formpilot/formpilot/internal/stream"
	"github.com/formpilot/formpilot/internal/workflow"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	log.Println("Starting FormPilot...")

	cfg := config.Load()

	// Redis connection shared with the automation workers
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatalf("Failed to reach Redis at %s: %v", cfg.RedisAddr, err)
	}
	cancelPing()
	log.Println("✓ Redis connected")

	// Worker launcher
	launcher, err := engine.NewDockerLauncher(rdb, engine.DockerLauncherConfig{
		WorkerImage:    cfg.WorkerImage,
		RedisAddr:      cfg.RedisAddr,
		Headless:       cfg.Headless,
		StartupTimeout: cfg.WorkerStartupTimeout,
		RPCWait:        cfg.NavigationTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create worker launcher: %v", err)
	}
	defer launcher.Close()

	imageCtx, cancelImage := context.WithTimeout(context.Background(), 5*time.Minute)
	log.Println("⏳ Ensuring worker image is available...")
	if err := launcher.EnsureImage(imageCtx); err != nil {
		cancelImage()
		log.Fatalf("Failed to ensure worker image: %v", err)
	}
	cancelImage()
	log.Println("✓ Worker image ready")

	// Core components, constructed and owned here (no globals)
	events := broadcast.New()

	registry := session.NewRegistry(launcher, session.Config{
		IdleTimeout:   cfg.IdleTimeout,
		SweepInterval: cfg.SweepInterval,
		CloseTimeout:  cfg.CloseTimeout,
	})
	registry.StartSweeper()
	log.Println("✓ Session registry initialized")

	exec := executor.New(events, executor.Config{
		NavigationTimeout: cfg.NavigationTimeout,
		SettleDelay:       cfg.SettleDelay,
		SubmitSettle:      cfg.SubmitSettle,
	})

	orc := workflow.New(registry, exec, events)
	streamServer := stream.NewServer(events, orc)
	limiter := ratelimit.NewLimiter(cfg.RequestsPerMinute, cfg.Burst)

	handler := api.NewHandler(orc)
	router := handler.SetupRoutes(streamServer, limiter)
	log.Println("✓ HTTP routes configured")

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // long-poll style input resolution; bounded per request
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on %s", cfg.HTTPAddr)
		log.Printf("📍 API endpoints at %s/v1", cfg.HTTPAddr)
		log.Printf("🔌 Event stream at %s/v1/ws", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("⏳ Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	registry.Stop()
	registry.CloseAll(shutdownCtx)

	log.Println("✅ Server stopped cleanly")
}
