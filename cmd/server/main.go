package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger/internal/config"
	"ledger/internal/handler"
	"ledger/internal/repository"
	"ledger/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	log.Printf("Ledger AI Assistant")
	log.Printf("Version: %s", Version)
	log.Printf("Build Time: %s", BuildTime)
	log.Printf("Git Commit: %s", GitCommit)
	log.Println("")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Initialize database connection
	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	log.Println("✅ Connected to PostgreSQL database")

	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	// Initialize services
	chatClient := service.NewOpenAIClient(time.Duration(cfg.AI.Timeout) * time.Second)
	extractor := service.NewExtractor(chatClient)
	catalog := service.NewCatalog(repo)
	recorder := service.NewRecorder(repo, repo)
	prober := service.NewProber(repo, chatClient)

	fallback := service.Credentials{
		APIKey:    cfg.AI.APIKey,
		BaseURL:   cfg.AI.BaseURL,
		ModelName: cfg.AI.ModelName,
	}
	if fallback.APIKey != "" {
		log.Printf("✅ Environment AI credential configured (model: %s)", fallback.ModelName)
	} else {
		log.Println("⚠️  No AI_API_KEY set - extraction relies on the provider catalog")
	}

	conversation := service.NewConversation(extractor, catalog, recorder, fallback)

	log.Println("✅ Services initialized")

	// Initialize handlers
	chatHandler := handler.NewChatHandler(conversation)
	aiHandler := handler.NewAIHandler(catalog, prober)
	txnHandler := handler.NewTransactionHandler(conversation)
	unitHandler := handler.NewUnitHandler(recorder)

	// Setup Gin router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Content-Type", "Authorization",
		"X-Session-Id", "x-ai-api-key", "x-ai-base-url", "x-ai-model-name",
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "ledger-ai-assistant",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	api := router.Group("/api")
	{
		api.POST("/chat", chatHandler.Submit)
		api.GET("/chat/messages", chatHandler.Messages)
		api.POST("/transactions", txnHandler.Create)
		api.GET("/units", unitHandler.List)

		ai := api.Group("/ai")
		{
			ai.GET("/providers", aiHandler.ListProviders)
			ai.POST("/providers", aiHandler.CreateProvider)
			ai.PATCH("/providers/:id", aiHandler.UpdateProvider)
			ai.POST("/models", aiHandler.CreateModel)
			ai.GET("/settings", aiHandler.GetSettings)
			ai.PUT("/settings", aiHandler.SaveSettings)
			ai.POST("/test", aiHandler.Probe)
		}
	}

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("🚀 Starting server on %s", addr)

	go func() {
		if err := router.Run(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	log.Println("✅ Server stopped")
}
