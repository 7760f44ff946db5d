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

	"memodesk-backend/internal/config"
	"memodesk-backend/internal/database"
	"memodesk-backend/internal/handlers"
	"memodesk-backend/internal/markdown"
	"memodesk-backend/internal/middleware"
	"memodesk-backend/internal/providers"
	"memodesk-backend/internal/repository"
	"memodesk-backend/internal/router"
	"memodesk-backend/internal/services"
	"memodesk-backend/internal/storage"
	"memodesk-backend/internal/websocket"
	"memodesk-backend/internal/worker"
	"memodesk-backend/migrations"
)

func main() {
	log.Println("🚀 Starting Memodesk Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	if err := database.RunMigrations(pool, migrations.FS); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Initialize Blob Storage ────
	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("✗ Storage initialization failed: %v", err)
	}
	log.Printf("✓ Blob storage ready (%s)", cfg.StorageType)

	// ──── Step 5: Initialize Language Models ────
	registry, err := providers.New(context.Background(), providers.Settings{
		Provider:        cfg.LLMProvider,
		Model:           cfg.HostedModel,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		TestEnvironment: cfg.TestEnvironment,
	})
	if err != nil {
		log.Fatalf("✗ Language model initialization failed: %v", err)
	}
	defer registry.Close()
	if cfg.TestEnvironment {
		log.Println("✓ Stand-in language models bound (test environment)")
	} else {
		log.Printf("✓ Hosted language models bound (%s)", cfg.LLMProvider)
	}

	// ──── Initialize Repositories ────
	chatRepo := repository.NewChatRepo(pool)
	messageRepo := repository.NewMessageRepo(pool)
	documentRepo := repository.NewDocumentRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	queue := worker.NewQueue(redisClients.Queue, jobRepo)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	chatService := services.NewChatService(chatRepo, messageRepo, documentRepo, registry, queue, cfg.ModelConcurrency)
	titleService := services.NewTitleService(chatRepo, registry)
	extractor := services.NewExtractor()
	renderer := markdown.NewRenderer()

	// ──── Initialize Handlers ────
	fileHandler := handlers.NewFileHandler(store, documentRepo, queue, cfg.UploadMaxBytes)
	chatHandler := handlers.NewChatHandler(chatService, chatRepo, registry)
	markdownHandler := handlers.NewMarkdownHandler(renderer)

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		jobRepo,
		documentRepo,
		store,
		extractor,
		titleService,
		redisClients,
		cfg.UploadMaxBytes,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)
	defer wsHub.Close()
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	limiter := middleware.NewRateLimiter(120, time.Minute)
	defer limiter.Stop()

	r := router.New(
		jwtAuth,
		limiter,
		fileHandler,
		chatHandler,
		markdownHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// chat responses stream for as long as the model keeps talking
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Memodesk Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
