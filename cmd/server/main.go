package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nlaakstudios/storyboard-studio/config"
	"github.com/nlaakstudios/storyboard-studio/internal/database"
	"github.com/nlaakstudios/storyboard-studio/internal/handlers"
	"github.com/nlaakstudios/storyboard-studio/internal/services"
	"github.com/nlaakstudios/storyboard-studio/internal/worker"
)

func main() {
	fmt.Println("Storyboard Studio")

	cfg := config.LoadConfig()
	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Server port: %d", cfg.ServerPort)
	log.Printf("Database path: %s", cfg.DBPath)

	for _, dir := range []string{cfg.BuildsPath, cfg.SunoPath, cfg.TempPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create storage directory %s: %v", dir, err)
		}
	}
	log.Printf("Storage directories verified")

	if err := database.InitDB(cfg.DBPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	buildRepo := database.NewBuildRepository(database.DB)
	queueRepo := database.NewQueueRepository(database.DB)

	broadcaster := services.NewProgressBroadcaster()

	buildHandler := handlers.NewBuildHandler(buildRepo, queueRepo, broadcaster)
	queueHandler := handlers.NewQueueHandler(queueRepo, broadcaster)
	progressHandler := handlers.NewProgressHandler(broadcaster)
	dashboardHandler := handlers.NewDashboardHandler(database.DB)
	sunoHandler := handlers.NewSunoHandler(cfg)

	processor := worker.NewProcessor(buildRepo, broadcaster, cfg)
	queueWorker := worker.NewWorker(queueRepo, buildRepo, broadcaster, processor, 5*time.Second)
	go queueWorker.Start()
	log.Println("Queue worker started (polling every 5 seconds)")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// CORS middleware - MUST be first
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Add("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Add("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Add("Access-Control-Allow-Headers", "Content-Type, Authorization, Cache-Control, Accept")
		c.Writer.Header().Add("Access-Control-Expose-Headers", "Content-Type, Cache-Control, Connection")
		c.Writer.Header().Add("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "storyboard-studio",
		})
	})

	api := router.Group("/api")
	{
		api.GET("/dashboard", dashboardHandler.GetDashboard)

		builds := api.Group("/builds")
		{
			builds.GET("", buildHandler.GetAll)
			builds.POST("", buildHandler.Create)
			builds.GET("/:id", buildHandler.GetByID)
			builds.DELETE("/:id", buildHandler.Delete)
		}

		queue := api.Group("/queue")
		{
			queue.GET("", queueHandler.GetAll)
			queue.GET("/next", queueHandler.GetNext)
			queue.GET("/:id", queueHandler.GetByID)
			queue.DELETE("/:id", queueHandler.Delete)
		}

		progress := api.Group("/progress")
		{
			progress.GET("/stream", progressHandler.StreamProgress)
			progress.GET("/stats", progressHandler.GetStats)
		}

		suno := api.Group("/suno")
		{
			suno.POST("/preprocess", sunoHandler.Preprocess)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	log.Printf("Starting server on %s", addr)

	go func() {
		if err := router.Run(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	queueWorker.Stop()
	database.Close()

	log.Println("Shutdown complete")
}
