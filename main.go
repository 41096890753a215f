package main

import (
	"log"
	"net/http"
	"strings"

	"kaitori-tracker/internal/api"
	"kaitori-tracker/internal/config"
	"kaitori-tracker/internal/database"
	"kaitori-tracker/internal/services/ingest"
	"kaitori-tracker/internal/services/kline"
	"kaitori-tracker/internal/services/sheet"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	tables, err := sheet.Load(cfg.TablesPath)
	if err != nil {
		log.Fatal("Failed to load lookup tables:", err)
	}

	fetcher := sheet.NewFetcher(cfg.SheetURL, cfg.FetchTimeout)
	merger := ingest.NewMerger(db, tables)
	candles := kline.NewService(db)
	pipeline := ingest.NewPipeline(fetcher, tables, merger, candles, cfg.StoreColumnOffset)
	hub := api.NewHub()

	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Run-report push channel
	r.GET("/ws", hub.HandleWS)

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/ws" {
			c.Status(http.StatusNotFound)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// API routes
	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, db, pipeline, candles, hub)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
