package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/deca/lifetrack-voice/internal/archive"
	"github.com/deca/lifetrack-voice/internal/capture"
	"github.com/deca/lifetrack-voice/internal/config"
	"github.com/deca/lifetrack-voice/internal/executor"
	"github.com/deca/lifetrack-voice/internal/handler"
	"github.com/deca/lifetrack-voice/internal/history"
	"github.com/deca/lifetrack-voice/internal/nlu"
	"github.com/deca/lifetrack-voice/internal/session"
	"github.com/deca/lifetrack-voice/internal/storage/memory"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("Configuration loaded successfully")
	log.Printf("Server will listen on port: %s", cfg.Port)
	log.Printf("Live recognizer enabled: %v", cfg.EnableLiveASR)

	// Domain stores and run history
	stores := memory.NewStores()
	domain := executor.DomainContext{
		Schedule:     stores.Schedule,
		Transactions: stores.Transactions,
		Workouts:     stores.Workouts,
		Food:         stores.Food,
		CheckIns:     stores.CheckIns,
		Goals:        stores.Goals,
	}

	hist := history.NewManager(cfg.HistoryPath, cfg.HistoryMaxRecords,
		time.Duration(cfg.HistoryExpiryHours)*time.Hour)

	// Understanding backend
	understander := nlu.NewClient(cfg.VoiceServiceURL, cfg.VoiceServiceAPIKey, cfg.Language, cfg.Timezone)
	poll := nlu.PollOptions{Timeout: cfg.PollTimeout, Interval: cfg.PollInterval}

	// Capture archiving is optional; a nil uploader disables it.
	var archiver capture.Archiver
	if uploader := archive.NewUploader(cfg.ArchiveAccessKey, cfg.ArchiveSecretKey, cfg.ArchiveBucket, cfg.ArchiveDomain); uploader != nil {
		archiver = uploader
		log.Println("Capture archiving enabled")
	}

	// Capture back-ends: prefer the streaming recognizer, fall back to
	// record-and-upload.
	var live capture.Session
	if cfg.EnableLiveASR && cfg.LiveASRURL != "" {
		live = capture.NewLiveSession(capture.LiveConfig{
			URL:        cfg.LiveASRURL,
			APIKey:     cfg.VoiceServiceAPIKey,
			SampleRate: cfg.SampleRate,
		}, capture.NewFFmpegSource("", cfg.SampleRate))
	}
	recorder := capture.NewRecorderSession(
		capture.NewFFmpegSource("", cfg.SampleRate),
		understander, archiver, cfg.SampleRate, poll)
	backend := capture.Select(live, recorder)

	controller := session.New(backend, understander, executor.New(), domain, hist, nil)

	// Expired run records are swept in the background.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if removed := hist.CleanupExpired(); removed > 0 {
				log.Printf("Removed %d expired run records", removed)
			}
		}
	}()

	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Create router
	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	h := handler.NewHandler(controller, hist)

	// Routes
	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		api.POST("/voice/start", h.StartVoice)
		api.POST("/voice/stop", h.StopVoice)
		api.POST("/voice/cancel", h.CancelVoice)
		api.GET("/voice/status", h.VoiceStatus)

		api.POST("/voice/text", h.TextCommand)

		api.GET("/voice/history", h.History)
		api.DELETE("/voice/history", h.ClearHistory)
	}

	// Start server
	addr := ":" + cfg.Port
	log.Printf("Starting lifetrack-voice server on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
