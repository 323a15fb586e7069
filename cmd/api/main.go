package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spiritrealm/earn-engine/internal/config"
	"github.com/spiritrealm/earn-engine/internal/handlers"
	"github.com/spiritrealm/earn-engine/internal/middleware"
	"github.com/spiritrealm/earn-engine/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	table, err := cfg.LoadRewardTable()
	if err != nil {
		log.Fatalf("Failed to load reward table: %v", err)
	}

	rules := services.EligibilityRules{
		SpinCooldown: cfg.SpinCooldown,
		MineCooldown: cfg.MineCooldown,
		MineDailyCap: cfg.MineDailyCap,
	}

	store, err := services.NewRedisStore(cfg, rules)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer store.Close()

	engine, err := services.NewRewardEngine(store, table)
	if err != nil {
		log.Fatalf("Failed to build reward engine: %v", err)
	}

	jwtService := services.NewJWTService(cfg)

	wsHandler := handlers.NewWebSocketHandler(store)
	engine.SetBroadcaster(wsHandler)

	rewardHandler := handlers.NewRewardHandler(engine, store)
	userHandler := handlers.NewUserHandler(store)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateLimitMiddleware(store))
	{
		protected.GET("/me", userHandler.GetCurrentUser)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		rewards := protected.Group("/rewards")
		{
			rewards.POST("/spin", rewardHandler.Spin)
			rewards.POST("/mine", rewardHandler.Mine)
			rewards.POST("/box", rewardHandler.Box)
			rewards.POST("/box/keys", rewardHandler.BuyBoxKeys)

			rewards.GET("/balance", rewardHandler.GetBalance)
			rewards.GET("/history", rewardHandler.GetHistory)

			rewards.GET("/verification", rewardHandler.GetVerificationData)
			rewards.POST("/verify", rewardHandler.VerifyReward)
		}
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
