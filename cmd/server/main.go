package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/api"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/config"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/worker"
)

func main() {
	// Load configuration from environment
	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		log.Fatalf("Failed to load server configuration: %v", err)
	}

	// Build service and queue from configuration
	svc, queue, err := serverConfig.BuildService()
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer queue.Close()

	// Verify database connectivity before serving traffic
	if serverConfig.DatabaseType == "postgres" {
		if err := config.PingPostgres(serverConfig.DatabaseURL, serverConfig.DBSchema); err != nil {
			log.Fatalf("Database check failed: %v", err)
		}
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	workerDone := make(chan struct{})
	if serverConfig.EmbedWorker {
		w := worker.New(queue, svc,
			worker.WithBackoff(serverConfig.RetryBaseDelay, serverConfig.RetryMaxDelay),
			worker.WithMaxDeliveries(serverConfig.MaxDeliveries),
		)
		go func() {
			defer close(workerDone)
			if err := w.Run(workerCtx); err != nil {
				log.Printf("Worker stopped with error: %v", err)
			}
		}()
	} else {
		close(workerDone)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: routes(svc, serverConfig),
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Simple Moderation Server starting on port %s (env: %s)", serverConfig.Port, serverConfig.Environment)
		log.Printf("Queue: %s, classifier: %s, embedded worker: %t", serverConfig.QueueURL, serverConfig.ClassifierURL, serverConfig.EmbedWorker)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Stop the embedded worker and wait for in-flight work to settle.
	stopWorker()
	select {
	case <-workerDone:
	case <-ctx.Done():
		log.Println("Worker did not stop in time")
	}

	log.Println("Server exiting")
}

func routes(svc simplemoderation.Service, serverConfig *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS for development
	if serverConfig.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	handler := api.NewModerationHandler(svc)
	r.Mount("/api", handler.Routes())

	return r
}
