package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/redwood-webops/ins-display/config"
	"github.com/redwood-webops/ins-display/handlers"
	"github.com/redwood-webops/ins-display/models"
	"github.com/redwood-webops/ins-display/services"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Printf("⚠️ config load failed, using defaults: %v", err)
		cfg = config.Fallback()
	}

	db, err := models.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("❌ database init failed: %v", err)
	}
	log.Printf("✅ database ready: %s", cfg.Database.Path)

	if !cfg.IsDebugMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		c.String(500, "Internal Server Error: %v", recovered)
	}))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposeHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
	}))

	client := services.NewInstagramClient(cfg.Instagram)
	auth := services.NewAuthService(db, client, cfg.Instagram)
	sync := services.NewSyncService(db, client, auth)
	posts := services.NewPostService(db)

	handler := &handlers.InstagramHandler{
		Auth:       auth,
		Sync:       sync,
		Posts:      posts,
		TrustProxy: cfg.App.TrustProxy,
	}
	handler.Register(r)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":      "ok",
			"app":         cfg.App.Name,
			"version":     cfg.App.Version,
			"environment": cfg.App.Environment,
		})
	})

	if cfg.Cron.Enabled {
		go startCronJobs(cfg, sync)
	}

	log.Printf("🚀 %s v%s listening on :%s (%s)",
		cfg.App.Name, cfg.App.Version, cfg.App.Port, cfg.App.Environment)
	if err := r.Run(":" + cfg.App.Port); err != nil {
		log.Fatalf("❌ server failed: %v", err)
	}
}

// startCronJobs runs the periodic refresh+sync pass until the process gets a
// termination signal.
func startCronJobs(cfg *config.AppConfig, sync *services.SyncService) {
	c := cron.New()

	_, err := c.AddFunc(cfg.Cron.Schedule, func() {
		log.Println("⏰ scheduled pass: refreshing expiring tokens")
		sync.RefreshExpiringAccounts(context.Background())
	})
	if err != nil {
		log.Printf("❌ cron registration failed: %v", err)
		return
	}

	c.Start()
	log.Printf("📅 scheduled pass registered: %s", cfg.Cron.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 stopping scheduler...")
	c.Stop()
}
